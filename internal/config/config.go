// Package config loads the ledger server's environment-driven
// configuration using ardanlabs/conf.
package config

import (
	"errors"
	"time"

	"github.com/ardanlabs/conf/v3"

	"empower1.com/ledgerd/internal/ledgererr"
)

// Config holds every environment-tunable setting the server needs.
type Config struct {
	ServerToken      string        `conf:"env:SERVER_TOKEN"`
	Port             int           `conf:"env:PORT,default:8080"`
	BlockchainPath   string        `conf:"env:BLOCKCHAIN_PATH,default:data/blockchain.json"`
	TransactionsPath string        `conf:"env:TRANSACTIONS_PATH,default:data/transactions.tsv"`
	MineDifficulty   int           `conf:"env:MINE_DIFFICULTY,default:0"`
	WriteLockTimeout time.Duration `conf:"env:WRITE_LOCK_TIMEOUT,default:5s"`
}

// Load parses Config from the process environment. requireToken should
// be true for any command that can mutate the ledger (serve); read-only
// commands may pass false.
func Load(requireToken bool) (*Config, error) {
	var cfg Config
	help, err := conf.Parse("", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return nil, ledgererr.ValidationError("%s", help)
		}
		return nil, ledgererr.ValidationError("parse configuration: %v", err)
	}

	if requireToken && cfg.ServerToken == "" {
		return nil, ledgererr.ValidationError("SERVER_TOKEN must be set to run a mutating command")
	}
	return &cfg, nil
}
