package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/report"
	"github.com/fakeyudi/tomato/internal/store"
	"github.com/fakeyudi/tomato/internal/timer"
	"github.com/fakeyudi/tomato/internal/watch"
)

var (
	statusOutput string
	statusWatch  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer state",
	Long: `Show the timer state.

Without --watch the daemon is asked directly. With --watch the persisted
state is followed on disk and printed again after every change, which also
works while the daemon is down.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, err := report.NewRenderer(statusOutput)
		if err != nil {
			return err
		}
		if statusWatch {
			return watchStatus(cmd, renderer)
		}

		st, err := newClient().State(cmd.Context())
		if err != nil {
			return err
		}
		return printStatus(cmd, renderer, st)
	},
}

func printStatus(cmd *cobra.Command, renderer report.Renderer, st timer.State) error {
	out, err := renderer.Render(report.FromState(st))
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// watchStatus prints the persisted state, then again on every write, until
// the command context is cancelled.
func watchStatus(cmd *cobra.Command, renderer report.Renderer) error {
	if cfg.StateBackend == store.BackendMemory {
		return errors.New("status --watch needs a file or sqlite state_backend")
	}
	ctx := cmd.Context()
	w, err := watch.New(store.Files(cfg.StateBackend, cfg.DataDir))
	if err != nil {
		return err
	}

	var last string
	show := func() error {
		st, err := loadPersisted(ctx)
		if errors.Is(err, timer.ErrNoState) {
			if last == "" {
				cmd.Println("no timer state yet; waiting for the daemon")
				last = "-"
			}
			return nil
		}
		if err != nil {
			// A reader can race a writer; the next event retries.
			cmd.PrintErrf("read state: %v\n", err)
			return nil
		}
		out, err := renderer.Render(report.FromState(st))
		if err != nil {
			return fmt.Errorf("render status: %w", err)
		}
		if string(out) == last {
			return nil
		}
		last = string(out)
		if statusOutput == "" || statusOutput == "text" {
			cmd.Println()
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}

	if err := show(); err != nil {
		w.Close() //nolint:errcheck
		return err
	}
	return w.Run(ctx, func(string) error { return show() })
}

func loadPersisted(ctx context.Context) (timer.State, error) {
	kv, err := store.Open(ctx, cfg.StateBackend, cfg.DataDir)
	if err != nil {
		return timer.State{}, err
	}
	defer kv.Close() //nolint:errcheck
	return store.NewTimerRepository(kv).Load(ctx)
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "output format: text, json or yaml")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "follow the persisted state and print every change")
	rootCmd.AddCommand(statusCmd)
}
