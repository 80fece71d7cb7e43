package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/report"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start or resume the countdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if err := c.Start(cmd.Context()); err != nil {
			return err
		}
		st, err := c.State(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("Timer started: %s phase, %s left.\n", st.Mode, report.FormatClock(st.TimeLeft))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
