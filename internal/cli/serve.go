package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/inputreplay/internal/adapters/http/api"
	"github.com/okian/inputreplay/internal/adapters/http/swagger"
	"github.com/okian/inputreplay/internal/adapters/input"
	"github.com/okian/inputreplay/internal/app"
	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// ready, when set, receives the bound address once listening.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API",
		Long: `Run the HTTP control API. Input is captured from POST /input and
playback goes to the log injector. SIGINT or SIGTERM saves an active
recording, stops playback and shuts the server down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address; overrides addr")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg := opts.cfg
	addr := cfg.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	l := logger.Get()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	feed := input.NewFeed(input.WithFeedLogger(l))
	inj := input.NewLogInjector(l.Named("injector"))

	orchOpts := []app.Option{
		app.WithLogger(l),
		app.WithKeyAliases(cfg.KeyAliases),
	}
	var orch *app.Orchestrator
	if cfg.FrameInterval() > 0 {
		// Without a display to capture, frames are status snapshots.
		orchOpts = append(orchOpts, app.WithFrameSource(app.FrameSourceFunc(func(context.Context) (model.Frame, error) {
			b, err := json.Marshal(orch.Status())
			if err != nil {
				return model.Frame{}, err
			}
			return model.Frame{Data: b, Ext: "json"}, nil
		}), cfg.FrameInterval()))
	}
	orch = app.New(store, feed, inj, orchOpts...)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(orch, feed,
		api.WithDefaultSpeed(cfg.DefaultSpeed),
		api.WithLogger(l.Named("api")),
	).Register(ctx, mux)

	srv := &http.Server{
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}
	l.Info(ctx, "starting HTTP server",
		logger.String("addr", ln.Addr().String()),
		logger.String("store_backend", cfg.StoreBackend),
		logger.String("store", cfg.StoreLocation()),
	)
	if opts.ready != nil {
		opts.ready <- ln.Addr().String()
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		l.Info(ctx, "shutting down server...")
	case err := <-serveErr:
		runErr = WrapExitError(ExitFailure, "serve", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := orch.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := feed.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		l.Error(shutdownCtx, "shutdown incomplete", logger.Error(err))
		if runErr == nil {
			runErr = WrapExitError(ExitFailure, "shutdown", err)
		}
	}

	l.Info(shutdownCtx, "server stopped")
	return runErr
}
