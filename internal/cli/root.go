package cli

import (
	"context"
	"fmt"
	"slices"

	"cadak-tickets/internal/app"
	"cadak-tickets/internal/config"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string // "json" | "text"
	EnvFile string

	// openApp builds the services used by the operational commands.
	openApp func(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app.App, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for ticketctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{openApp: openConfiguredApp})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticketctl",
		Short: "Operate the cadak ticketing backend",
		Long: `ticketctl runs schema migrations and the support operations of the
ticketing backend: re-reconciling a payment, inspecting an order,
checking a ticket in by hand and settling seller payout requests.

Configuration is read from the environment, optionally seeded from an
env file, exactly as the API server reads it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "env file loaded before reading configuration")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewCheckInCommand(opts))
	cmd.AddCommand(NewPayoutCommand(opts))

	return cmd
}

// loadConfig reads configuration the same way the API server does.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if err := config.LoadEnvFiles(opts.EnvFile); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load env file", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

func openConfiguredApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	// Keep stdout for command output.
	logger := config.NewLogger(cfg.Logger).Output(cmd.ErrOrStderr())

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize services", err)
	}
	return a, nil
}
