package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "ledgerd",
		Short: "ledgerd runs and maintains the community coin ledger",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newValidateCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newBalanceCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
