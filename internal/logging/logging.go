// Package logging builds the zap logger shared by every component
// instead of relying on package-level globals -- it's constructed once
// at startup and threaded down explicitly.
package logging

import "go.uber.org/zap"

// New builds the zap logger. development selects zap's development
// logger (console encoder, readable for local work); otherwise zap's
// production logger (JSON encoder, for shipped logs) is used.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
