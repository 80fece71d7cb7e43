package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/config"
	"github.com/fakeyudi/tomato/internal/report"
)

var (
	setWork  bool
	setBreak bool
)

var setCmd = &cobra.Command{
	Use:   "set <minutes|duration>",
	Short: "Set the time left, or a phase length",
	Long: `Set the time left on the current phase.

A bare number counts minutes ("tomato set 25"); anything else is read as a
duration ("tomato set 90s"). With --work the value also becomes the work
length for future phases. With --break only the break length changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := config.ParseSeconds(args[0])
		if err != nil {
			return err
		}
		c := newClient()
		if setBreak {
			if err := c.SetBreak(cmd.Context(), seconds); err != nil {
				return err
			}
			cmd.Printf("Break length set to %s.\n", report.FormatClock(seconds))
			return nil
		}
		if err := c.SetTimer(cmd.Context(), seconds, setWork); err != nil {
			return err
		}
		if setWork {
			cmd.Printf("Work length and time left set to %s.\n", report.FormatClock(seconds))
			return nil
		}
		cmd.Printf("Time left set to %s.\n", report.FormatClock(seconds))
		return nil
	},
}

func init() {
	setCmd.Flags().BoolVar(&setWork, "work", false, "also make this the work length")
	setCmd.Flags().BoolVar(&setBreak, "break", false, "set the break length instead of the time left")
	setCmd.MarkFlagsMutuallyExclusive("work", "break")
	rootCmd.AddCommand(setCmd)
}
