// Package rpc is a placeholder for a future gRPC admin surface over this
// ledger. It carries no handlers yet; every operation this service
// exposes today is served over internal/httpapi.
package rpc
