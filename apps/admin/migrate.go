package main

import (
	"github.com/spf13/cobra"

	"github.com/cadence/academy/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [command] [args...]",
		Short: "Run a goose command against the embedded migrations (default: up)",
		Long: `Run a goose command against the embedded migrations.

Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version, fix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return gooseRunFunc(cli.sqlDB, args...)
		},
	}
}
