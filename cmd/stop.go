package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/report"
)

var stopReset bool

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Pause the countdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := newClient()
		st, err := c.State(ctx)
		if err != nil {
			return err
		}
		switch {
		case st.IsRunning:
			err = c.Stop(ctx, stopReset)
		case stopReset:
			// The daemon ignores stop while idle, so rewind explicitly.
			err = c.SetTimer(ctx, st.DurationFor(st.Mode), false)
		}
		if err != nil {
			return err
		}

		if st, err = c.State(ctx); err != nil {
			return err
		}
		verb := "paused"
		if stopReset {
			verb = "reset"
		}
		cmd.Printf("Timer %s: %s phase, %s left.\n", verb, st.Mode, report.FormatClock(st.TimeLeft))
		return nil
	},
}

func init() {
	stopCmd.Flags().BoolVar(&stopReset, "reset", false, "rewind the current phase to its full length")
	rootCmd.AddCommand(stopCmd)
}
