package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"empower1.com/ledgerd/internal/config"
	"empower1.com/ledgerd/internal/ledger"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "re-derive every block's hash under the current preimage rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func runMigrate() error {
	cfg, err := config.Load(false)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	coordinator := ledger.NewWriteCoordinator(cfg.WriteLockTimeout)
	if err := coordinator.Lock(context.Background()); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	defer coordinator.Unlock()

	report, err := ledger.NewMigrator().Run(cfg.BlockchainPath)
	if err != nil {
		return fmt.Errorf("migrate block log: %w", err)
	}
	fmt.Printf("migrated %d block(s) (%d skipped), backup written to %s\n",
		report.BlocksRead-report.BlocksSkipped, report.BlocksSkipped, report.BackupPath)

	blocks, err := ledger.NewBlockLog(cfg.BlockchainPath)
	if err != nil {
		return fmt.Errorf("open migrated block log: %w", err)
	}
	if err := ledger.NewChainValidator().Validate(blocks); err != nil {
		return fmt.Errorf("migrated block log failed validation: %w", err)
	}
	fmt.Println("migrated block log is valid")
	return nil
}
