package cli

import (
	"fmt"
	"io"

	"cadak-tickets/internal/database"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// MigrateOptions holds flags for the migrate commands.
type MigrateOptions struct {
	*RootOptions
	DatabaseURL string
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back the embedded schema migrations.

The database is taken from --database-url when given, otherwise from the
DB_* environment variables used by the API server.

Examples:
  ticketctl migrate up
  ticketctl migrate version --format json
  ticketctl migrate down --database-url postgres://postgres@localhost:5432/cadak?sslmode=disable`,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "postgres:// URL overriding the DB_* settings")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, cmd, func(m *database.Migrator) error {
				if err := m.Up(); err != nil {
					return WrapExitError(ExitCommandError, "migrate up failed", err)
				}
				return reportVersion(opts, cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, cmd, func(m *database.Migrator) error {
				if err := m.Down(); err != nil {
					return WrapExitError(ExitCommandError, "migrate down failed", err)
				}
				return reportVersion(opts, cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(opts, cmd, func(m *database.Migrator) error {
				return reportVersion(opts, cmd, m)
			})
		},
	})

	return cmd
}

// databaseURL prefers --database-url over the DB_* configuration.
func databaseURL(opts *MigrateOptions) (string, error) {
	if opts.DatabaseURL != "" {
		return opts.DatabaseURL, nil
	}
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return "", err
	}
	return cfg.Database.ConnectionString(), nil
}

func withMigrator(opts *MigrateOptions, cmd *cobra.Command, fn func(*database.Migrator) error) error {
	url, err := databaseURL(opts)
	if err != nil {
		return err
	}

	logger := zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	m, err := database.NewMigrator(url, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open migrator", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close migrator")
		}
	}()

	return fn(m)
}

type schemaVersion struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func reportVersion(opts *MigrateOptions, cmd *cobra.Command, m *database.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schema version", err)
	}

	return writeOutput(cmd.OutOrStdout(), opts.Format, schemaVersion{Version: version, Dirty: dirty}, func(w io.Writer) {
		if dirty {
			fmt.Fprintf(w, "schema version %d (dirty)\n", version)
			return
		}
		fmt.Fprintf(w, "schema version %d\n", version)
	})
}
