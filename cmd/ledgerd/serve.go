package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"empower1.com/ledgerd/internal/config"
	"empower1.com/ledgerd/internal/httpapi"
	"empower1.com/ledgerd/internal/ledger"
	"empower1.com/ledgerd/internal/logging"
)

func newServeCommand() *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP ledger server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(development)
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "use a human-readable logger instead of JSON")
	return cmd
}

func runServe(development bool) error {
	logger, err := logging.New(development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(true)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := os.MkdirAll(parentDir(cfg.BlockchainPath), 0o755); err != nil {
		return fmt.Errorf("prepare blockchain directory: %w", err)
	}
	if err := os.MkdirAll(parentDir(cfg.TransactionsPath), 0o755); err != nil {
		return fmt.Errorf("prepare transactions directory: %w", err)
	}

	blocks, err := ledger.NewBlockLog(cfg.BlockchainPath)
	if err != nil {
		return fmt.Errorf("open block log: %w", err)
	}
	if _, err := blocks.EnsureGenesis(); err != nil {
		return fmt.Errorf("ensure genesis block: %w", err)
	}

	transactions, err := ledger.NewTransactionLog(cfg.TransactionsPath)
	if err != nil {
		return fmt.Errorf("open transactions log: %w", err)
	}

	coordinator := ledger.NewWriteCoordinator(cfg.WriteLockTimeout)

	server := httpapi.NewServer(httpapi.Config{
		Blocks:       blocks,
		Transactions: transactions,
		Coordinator:  coordinator,
		ServerToken:  cfg.ServerToken,
		Difficulty:   cfg.MineDifficulty,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Sugar().Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdownCh:
		logger.Sugar().Infof("caught signal %v, shutting down", sig)
	case <-server.Shutdown():
		logger.Info("shutdown requested via HTTP")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
