// Package cli implements the odmq command line: it translates predicate
// sequences into native filters and runs them against a configured store.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags and the state prepared for subcommands.
type RootOptions struct {
	ConfigPath string

	Config *Config
	Logger *zap.Logger
}

// NewRootCommand creates the root command for the odmq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "odmq",
		Short:         "Query document stores with predicate sequences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.ConfigPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			opts.Config = cfg
			opts.Logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (yaml, json or toml)")
	flags.String("driver", "", "store driver (sqlite|mongodb)")
	flags.String("schema", "", "path to a schema definition (JSON)")
	flags.String("collection", "", "collection name, overrides the schema name")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("dsn", "", "sqlite database file")
	flags.String("mongo-uri", "", "mongodb connection string")
	flags.String("database", "", "mongodb database")

	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewModifyCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))

	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
