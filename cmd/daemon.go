package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/daemon"
)

var daemonEphemeral bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the timer daemon in the foreground",
	Long: `Run the timer daemon in the foreground.

The daemon owns the countdown, persists it after every change and serves
the other tomato commands over a unix socket. Stop it with Ctrl+C; a
running timer picks up where it left off on the next start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(cmd.ErrOrStderr(), "tomatod: ", log.LstdFlags|log.Lmsgprefix)
		return daemon.Run(cmd.Context(), cfg, daemon.RunOptions{
			Logger:    logger,
			Ephemeral: daemonEphemeral,
		})
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonEphemeral, "ephemeral", false, "keep timer state in memory only")
	rootCmd.AddCommand(daemonCmd)
}
