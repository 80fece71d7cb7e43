package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/timer"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Check or test desktop notifications",
}

var notifyTestCmd = &cobra.Command{
	Use:       "test [work|break]",
	Short:     "Show the alert a finished phase would raise",
	Long:      "Show the alert a finished phase would raise. Without a phase the daemon picks one at random.",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(timer.ModeWork), string(timer.ModeBreak)},
	RunE: func(cmd *cobra.Command, args []string) error {
		var phase timer.Mode
		if len(args) == 1 {
			phase = timer.Mode(args[0])
		}
		resp, err := newClient().TestNotification(cmd.Context(), phase)
		if err != nil {
			return err
		}
		cmd.Printf("Sent %s alert %s.\n", resp.Phase, resp.AlertID)
		if resp.Fallback {
			cmd.Printf("Message (fallback): %s\n", resp.Message)
		} else {
			cmd.Printf("Message: %s\n", resp.Message)
		}
		return nil
	},
}

var notifyPermissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Report whether the daemon may show notifications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		granted, err := newClient().CheckPermission(cmd.Context())
		if err != nil {
			return err
		}
		if !granted {
			return fmt.Errorf("notifications are not available (notifier %q)", cfg.Notifier)
		}
		cmd.Println("Notifications are enabled.")
		return nil
	},
}

func init() {
	notifyCmd.AddCommand(notifyTestCmd, notifyPermissionCmd)
	rootCmd.AddCommand(notifyCmd)
}
