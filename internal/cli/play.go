package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/inputreplay/internal/adapters/input"
	"github.com/okian/inputreplay/internal/app"
	"github.com/okian/inputreplay/internal/domain/playback"
	"github.com/okian/inputreplay/pkg/logger"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Speed      float64
	Vocabulary []string
}

type playResult struct {
	Session   string  `json:"session" yaml:"session"`
	Speed     float64 `json:"speed" yaml:"speed"`
	Emitted   int     `json:"emitted" yaml:"emitted"`
	Failed    int     `json:"failed" yaml:"failed"`
	Cursor    int     `json:"cursor" yaml:"cursor"`
	Stopped   bool    `json:"stopped" yaml:"stopped"`
	ElapsedMS int64   `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// NewPlayCommand creates the play command. Without an OS injector wired
// in, actions go to the dry-run log injector.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play <name>",
		Short: "Replay a stored session through the log injector",
		Long: `Replay a stored session, preserving inter-event gaps divided by --speed.

Every injected action is written to the log. Interrupting the command stops
the playback between events.

Examples:
  inputreplay play demo
  inputreplay play demo --speed 2 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts, args[0])
		},
	}

	cmd.Flags().Float64Var(&opts.Speed, "speed", 0, "playback speed multiplier (default from config)")
	cmd.Flags().StringSliceVar(&opts.Vocabulary, "vocabulary", nil, "key tokens the injector accepts; empty accepts all")

	return cmd
}

func runPlay(cmd *cobra.Command, opts *PlayOptions, name string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := opts.cfg
	speed := cfg.DefaultSpeed
	if cmd.Flags().Changed("speed") {
		speed = opts.Speed
	}
	if err := playback.ValidateSpeed(speed); err != nil {
		return WrapExitError(ExitCommandError, "play", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	l := logger.Named("play")
	inj := input.NewLogInjector(l.Named("injector"), opts.Vocabulary...)
	// Nothing is recorded from the command line; the source stays nil.
	orch := app.New(store, nil, inj,
		app.WithLogger(l),
		app.WithKeyAliases(cfg.KeyAliases),
	)
	defer func() { _ = orch.Close(context.Background()) }()

	if _, err := orch.StartPlayback(ctx, name, speed); err != nil {
		return WrapExitError(ExitFailure, "play", err)
	}
	res, err := orch.WaitPlayback(ctx)
	if err != nil {
		// interrupted: stop between events and report how far it got
		if stopErr := orch.StopPlayback(context.Background()); stopErr != nil {
			return WrapExitError(ExitFailure, "play", stopErr)
		}
		res, _ = orch.LastPlayback()
	}

	out := playResult{
		Session:   name,
		Speed:     speed,
		Emitted:   res.Emitted,
		Failed:    res.Failed,
		Cursor:    res.Cursor,
		Stopped:   res.Stopped,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	return render(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) error {
		state := "completed"
		if out.Stopped {
			state = "stopped"
		}
		_, err := fmt.Fprintf(w, "%s %s at %gx: %d emitted, %d failed (%s)\n",
			name, state, speed, out.Emitted, out.Failed, res.Elapsed.Round(time.Millisecond))
		return err
	})
}
