package cmd

import (
	"errors"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/tui"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the full-screen countdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(os.Stdout.Fd()) {
			return errors.New("view needs an interactive terminal; try 'tomato status --watch'")
		}
		c := newClient()
		// Fail before taking over the screen when the daemon is down.
		if _, err := c.Health(cmd.Context()); err != nil {
			return err
		}
		return tui.Run(cmd.Context(), c)
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
