package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/api"
	"github.com/fakeyudi/tomato/internal/report"
	"github.com/fakeyudi/tomato/internal/timer"
)

var eventsJSON bool

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow timer events as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		enc := json.NewEncoder(out)
		err := newClient().Events(cmd.Context(), func(line api.EventLine) error {
			if eventsJSON {
				return enc.Encode(line)
			}
			return writeEventLine(out, line)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// writeEventLine prints one event for people, e.g.
// "09:25:03 TIME_UPDATE work 24:57 running".
func writeEventLine(w io.Writer, line api.EventLine) error {
	stamp := line.EmittedAt.Local().Format("15:04:05")
	if line.Type == timer.EventPhaseComplete {
		_, err := fmt.Fprintf(w, "%s %s %s phase finished\n", stamp, line.Type, line.Mode)
		return err
	}
	text := fmt.Sprintf("%s %s %s %s", stamp, line.Type, line.Mode, report.FormatClock(line.TimeLeft))
	if line.IsRunning != nil {
		if *line.IsRunning {
			text += " running"
		} else {
			text += " paused"
		}
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func init() {
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "print raw NDJSON lines")
	rootCmd.AddCommand(eventsCmd)
}
