package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"empower1.com/ledgerd/internal/config"
	"empower1.com/ledgerd/internal/core"
	"empower1.com/ledgerd/internal/ledger"
	"empower1.com/ledgerd/internal/ledgererr"
)

func newBalanceCommand() *cobra.Command {
	var user, userUnhashed string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "print a user's signed balance from the transactions log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(user, userUnhashed)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "pre-hashed user identifier")
	cmd.Flags().StringVar(&userUnhashed, "user-unhashed", "", "unhashed user identifier, hashed before lookup")
	return cmd
}

func runBalance(user, userUnhashed string) error {
	if (user == "") == (userUnhashed == "") {
		return errors.New("provide exactly one of --user or --user-unhashed")
	}
	if userUnhashed != "" {
		user = core.HashUser(userUnhashed)
	}

	cfg, err := config.Load(false)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	transactions, err := ledger.NewTransactionLog(cfg.TransactionsPath)
	if err != nil {
		return fmt.Errorf("open transactions log: %w", err)
	}

	result, err := ledger.NewBalanceEngine(transactions).Balance(user)
	if err != nil {
		if kind, ok := ledgererr.KindOf(err); ok && kind == ledgererr.NotFound {
			return fmt.Errorf("user %q has no recorded transactions", user)
		}
		return fmt.Errorf("compute balance: %w", err)
	}
	fmt.Println(result.Balance)
	return nil
}
