// Package cli implements the inputreplay command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/inputreplay/internal/adapters/repository"
	"github.com/okian/inputreplay/internal/config"
	"github.com/okian/inputreplay/pkg/logger"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json", "yaml"} //nolint:gochecknoglobals // flag vocabulary

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format  string
	Backend string
	Store   string

	cfg *config.Config
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "inputreplay",
		Short: "Record and replay pointer and keyboard input",
		Long: `inputreplay records pointer and keyboard input into named sessions and
replays them with their original relative timing, optionally scaled.

Configuration is read from defaults, the YAML file named by REPLAY_CONFIG and
REPLAY_* environment variables; --backend and --store override the store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := loadConfig(cmd.Context(), opts)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			opts.cfg = cfg
			if err := logger.InitWithOptions(logger.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Output: cmd.ErrOrStderr(),
			}); err != nil {
				return WrapExitError(ExitCommandError, "init logging", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "session store backend (csv|sqlite); overrides store_backend")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "sessions directory or sqlite file; overrides the configured location")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewDriveCommand(opts))

	return cmd
}

// Execute runs the root command and exits with its code.
func Execute() {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(GetExitCode(err))
	}
}

func loadConfig(ctx context.Context, opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Backend != "" {
		cfg.StoreBackend = strings.ToLower(opts.Backend)
	}
	if opts.Store != "" {
		if cfg.StoreBackend == config.BackendSQLite {
			cfg.SQLitePath = opts.Store
		} else {
			cfg.SessionsDir = opts.Store
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	store, err := repository.Open(ctx, cfg.StoreBackend, cfg.StoreLocation(), repository.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	return store, nil
}

// ExitError carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err, defaulting to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
