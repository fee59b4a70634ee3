package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"empower1.com/ledgerd/internal/config"
	"empower1.com/ledgerd/internal/ledger"
)

func newValidateCommand() *cobra.Command {
	var repair, force bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "validate the block chain and, optionally, repair the transactions log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(repair, force)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "append missing transaction rows when the log falls short")
	cmd.Flags().BoolVar(&force, "force", false, "also truncate and rewrite malformed or mismatching rows")
	return cmd
}

func runValidate(repair, force bool) error {
	cfg, err := config.Load(false)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	blocks, err := ledger.NewBlockLog(cfg.BlockchainPath)
	if err != nil {
		return fmt.Errorf("open block log: %w", err)
	}
	if err := ledger.NewChainValidator().Validate(blocks); err != nil {
		return fmt.Errorf("chain is invalid: %w", err)
	}
	fmt.Println("the block chain is valid")

	transactions, err := ledger.NewTransactionLog(cfg.TransactionsPath)
	if err != nil {
		return fmt.Errorf("open transactions log: %w", err)
	}

	// Run can write (bootstrap a virgin transactions file, or append/
	// truncate under repair) even when repair is false, so the write
	// lock is always taken, matching spec.md §5's single-writer rule.
	coordinator := ledger.NewWriteCoordinator(cfg.WriteLockTimeout)
	if err := coordinator.Lock(context.Background()); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	defer coordinator.Unlock()

	report, err := ledger.NewReconciler(blocks, transactions).Run(repair, force)
	if err != nil {
		return fmt.Errorf("reconcile transactions log: %w", err)
	}
	fmt.Println(report.Message)
	if !report.Valid {
		return fmt.Errorf("transactions log is invalid")
	}
	return nil
}
