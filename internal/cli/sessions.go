package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/inputreplay/internal/adapters/repository"
	"github.com/okian/inputreplay/internal/app"
)

// NewSessionsCommand creates the sessions command group.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored sessions",
	}
	cmd.AddCommand(newSessionsListCommand(rootOpts))
	cmd.AddCommand(newSessionsShowCommand(rootOpts))
	cmd.AddCommand(newSessionsDeleteCommand(rootOpts))
	return cmd
}

func newSessionsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored session names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, rootOpts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			names, err := store.List(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "list sessions", err)
			}
			if names == nil {
				names = []string{}
			}
			return render(cmd.OutOrStdout(), rootOpts.Format, map[string][]string{"sessions": names}, func(w io.Writer) error {
				for _, n := range names {
					if _, err := fmt.Fprintln(w, n); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newSessionsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the events of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, rootOpts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			s, err := store.Load(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "show session", err)
			}
			view := app.NewSessionView(s)
			return render(cmd.OutOrStdout(), rootOpts.Format, view, func(w io.Writer) error {
				return writeSessionText(w, view)
			})
		},
	}
}

func newSessionsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a session and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, rootOpts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			removed, err := store.Delete(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "delete session", err)
			}
			if !removed {
				return WrapExitError(ExitFailure, "delete session", fmt.Errorf("%q: %w", args[0], repository.ErrSessionNotFound))
			}
			return render(cmd.OutOrStdout(), rootOpts.Format, map[string]any{"deleted": args[0]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "deleted %s\n", args[0])
				return err
			})
		},
	}
}

func writeSessionText(w io.Writer, v app.SessionView) error {
	if _, err := fmt.Fprintf(w, "session %s: %d events, %.3fs\n", v.Name, v.Count, v.Duration); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tKIND\tDETAIL")
	for _, e := range v.Events {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\n", e.Offset, e.Kind, eventDetail(e))
	}
	return tw.Flush()
}

func eventDetail(e app.EventView) string {
	switch {
	case e.Key != "":
		return e.Key
	case e.Button != "" && e.X != nil && e.Y != nil && e.Pressed != nil:
		return fmt.Sprintf("%s pressed=%t at (%d,%d)", e.Button, *e.Pressed, *e.X, *e.Y)
	case e.X != nil && e.Y != nil:
		return fmt.Sprintf("(%d,%d)", *e.X, *e.Y)
	default:
		return ""
	}
}
