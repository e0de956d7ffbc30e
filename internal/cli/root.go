package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/roach88/fitsaga/internal/app"
)

// Environment variables that supply flag defaults.
const (
	EnvDatabase = "FITSAGA_DB"
	EnvTimezone = "FITSAGA_TZ"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // SQLite path or postgres:// URL
	Timezone string // IANA zone that defines a workout day

	// Now overrides the wall clock (for testing). Nil means time.Now.
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fitsaga CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	loadDotEnv(".env")

	cmd := &cobra.Command{
		Use:   "fitsaga",
		Short: "fitsaga - workout plans, streaks and achievements",
		Long: `Consistency layer for a fitness tracker.

Plan ingestion, workout completion and achievement unlocks each touch
several documents; every operation runs as a compensating transaction
so a failed write leaves no partial state behind.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(cmd, opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", os.Getenv(EnvDatabase),
		"SQLite database path or postgres:// URL (env "+EnvDatabase+")")
	cmd.PersistentFlags().StringVar(&opts.Timezone, "tz", envOr(EnvTimezone, "UTC"),
		"time zone that defines a workout day (env "+EnvTimezone+")")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewVolumeCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewStreakCommand(opts))
	cmd.AddCommand(NewAchievementsCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadDotEnv reads path into the environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring env file", "path", path, "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// configureLogging sends structured logs to stderr; --verbose enables debug.
func configureLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openApp opens the configured store and wires the services over it.
// The returned close function must be called when the command is done.
func openApp(ctx context.Context, opts *RootOptions) (*app.App, func(), error) {
	if opts.Database == "" {
		return nil, nil, NewExitError(ExitCommandError, "no database: set --db or "+EnvDatabase)
	}
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid --tz", err)
	}

	slog.Debug("opening database", "db", redactDSN(opts.Database))
	backing, err := app.OpenStore(ctx, opts.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	appOpts := []app.Option{
		app.WithLocation(loc),
		app.WithLogger(slog.Default()),
	}
	if opts.Now != nil {
		appOpts = append(appOpts, app.WithClock(opts.Now))
	}
	closeFn := func() {
		if err := backing.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
	return app.New(backing, appOpts...), closeFn, nil
}

// redactDSN masks the password of a URL DSN.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return dsn
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
