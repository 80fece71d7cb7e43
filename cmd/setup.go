package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/config"
	"github.com/fakeyudi/tomato/internal/profile"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure tomato (re-run anytime to edit settings)",
	Args:  cobra.NoArgs,
	// Bypass the root hook so a broken config file can still be rewritten.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(os.Stdin.Fd()) {
			return errors.New("setup needs an interactive terminal")
		}
		return runSetup(cmd, resolvedConfigPath())
	},
}

// runSetup runs the wizard seeded from the config at path, or from the
// defaults when it is missing or unreadable, and saves the result there.
func runSetup(cmd *cobra.Command, path string) error {
	existing, err := config.Load(path)
	if err != nil {
		cmd.PrintErrf("  ⚠ %v; starting from defaults\n", err)
		existing = config.Defaults()
	}

	updated, err := profile.RunSetup(existing)
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("setup cancelled")
	}
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := config.Save(path, updated); err != nil {
		return err
	}
	cmd.Printf("  ✓ Config saved to %s.\n", path)
	cmd.Println("  Run 'tomato daemon' to start the timer service.")
	cmd.Println()
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
