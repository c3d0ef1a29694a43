package cli

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/inputreplay/internal/testevents"
)

// DriveOptions holds flags for the drive command.
type DriveOptions struct {
	*RootOptions
	URL       string
	Session   string
	Events    int
	BatchSize int
	Pace      time.Duration
	Speed     float64
	Timeout   time.Duration
	Output    string
}

type driveResult struct {
	Session    string `json:"session" yaml:"session"`
	Generated  int    `json:"generated" yaml:"generated"`
	Submitted  int    `json:"submitted" yaml:"submitted"`
	Recorded   int    `json:"recorded" yaml:"recorded"`
	Replayed   int    `json:"replayed" yaml:"replayed"`
	PlaybackID string `json:"playback_id,omitempty" yaml:"playback_id,omitempty"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
}

// NewDriveCommand creates the drive command.
func NewDriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Record a synthetic session against a running server",
		Long: `Drive a running inputreplay server end to end: start a recording, post
generated pointer and keyboard input to /input, stop, verify the stored
session and, with --speed, replay it.

Examples:
  inputreplay drive --events 500 --batch 50 --pace 20ms
  inputreplay drive --url http://replay:9080 --speed 4 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDrive(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "server base URL (default derived from addr)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session name (default drive-<uuid>)")
	cmd.Flags().IntVar(&opts.Events, "events", 200, "number of notifications to generate")
	cmd.Flags().IntVar(&opts.BatchSize, "batch", 50, "notifications per request")
	cmd.Flags().DurationVar(&opts.Pace, "pace", 0, "pause between batches")
	cmd.Flags().Float64Var(&opts.Speed, "speed", 0, "replay speed after verification; 0 skips replay")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request and settle timeout")
	cmd.Flags().StringVar(&opts.Output, "output", "", "write generated events to this JSON file")

	return cmd
}

func runDrive(cmd *cobra.Command, opts *DriveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.Events <= 0 || opts.BatchSize <= 0 || opts.Speed < 0 {
		return NewExitError(ExitCommandError, "drive: --events and --batch must be positive and --speed not negative")
	}
	url := opts.URL
	if url == "" {
		url = baseURL(opts.cfg.Addr)
	}

	stats, err := testevents.Run(ctx, testevents.Config{
		BaseURL:    strings.TrimRight(url, "/"),
		Session:    opts.Session,
		NumEvents:  opts.Events,
		BatchSize:  opts.BatchSize,
		Pace:       opts.Pace,
		Speed:      opts.Speed,
		Timeout:    opts.Timeout,
		OutputFile: opts.Output,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "drive", err)
	}

	out := driveResult{
		Session:    stats.Session,
		Generated:  stats.EventsGenerated,
		Submitted:  stats.EventsSubmitted,
		Recorded:   stats.EventsRecorded,
		Replayed:   stats.EventsReplayed,
		PlaybackID: stats.PlaybackID,
		DurationMS: stats.Duration.Milliseconds(),
	}
	return render(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s: %d submitted, %d recorded, %d replayed (%s)\n",
			out.Session, out.Submitted, out.Recorded, out.Replayed, stats.Duration.Round(time.Millisecond))
		return err
	})
}

// baseURL turns a listen address such as ":9080" into a local URL.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}
