// Package httpapi is the thin HTTP boundary in front of the ledger: it
// decodes requests, calls into internal/ledger, and encodes the result.
// No ledger logic lives here.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"empower1.com/ledgerd/internal/ledger"
)

// Server wires the ledger components to HTTP handlers.
type Server struct {
	blocks       *ledger.BlockLog
	transactions *ledger.TransactionLog
	coordinator  *ledger.WriteCoordinator
	validator    *ledger.ChainValidator
	reconciler   *ledger.Reconciler
	balances     *ledger.BalanceEngine
	migrator     *ledger.Migrator

	serverToken string
	difficulty  int
	logger      *zap.Logger

	shutdown chan struct{}
}

// Config bundles the dependencies Server needs to be constructed.
type Config struct {
	Blocks       *ledger.BlockLog
	Transactions *ledger.TransactionLog
	Coordinator  *ledger.WriteCoordinator
	ServerToken  string
	Difficulty   int
	Logger       *zap.Logger
}

// NewServer builds a Server ready to be mounted with Router().
func NewServer(cfg Config) *Server {
	return &Server{
		blocks:       cfg.Blocks,
		transactions: cfg.Transactions,
		coordinator:  cfg.Coordinator,
		validator:    ledger.NewChainValidator(),
		reconciler:   ledger.NewReconciler(cfg.Blocks, cfg.Transactions),
		balances:     ledger.NewBalanceEngine(cfg.Transactions),
		migrator:     ledger.NewMigrator(),
		serverToken:  cfg.ServerToken,
		difficulty:   cfg.Difficulty,
		logger:       cfg.Logger,
		shutdown:     make(chan struct{}),
	}
}

// Shutdown returns a channel that closes when a client has called
// /shutdown.
func (s *Server) Shutdown() <-chan struct{} { return s.shutdown }

// Router builds the chi mux for every route the ledger exposes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	guard := TokenGuard(s.serverToken)

	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Post("/add_block", s.handleAddBlock)
		r.Post("/upload_chain", s.handleUploadChain)
		r.Post("/shutdown", s.handleShutdown)
	})

	r.Get("/get_chain", s.handleGetChain)
	r.Get("/download_chain", s.handleDownloadChain)
	r.Get("/get_last_block", s.handleGetLastBlock)
	r.Get("/validate_chain", s.handleValidateChain)
	r.Get("/validate_transactions", s.handleValidateTransactions)
	r.Get("/download_transactions", s.handleDownloadTransactions)
	r.Get("/get_balance", s.handleGetBalance)

	return r
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
