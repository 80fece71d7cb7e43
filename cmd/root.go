package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/tomato/internal/client"
	"github.com/fakeyudi/tomato/internal/config"
)

// cfg holds the loaded configuration, populated in PersistentPreRunE.
var cfg config.Config

// configPath is the --config flag; empty means config.DefaultPath().
var configPath string

var rootCmd = &cobra.Command{
	Use:           "tomato",
	Short:         "Pomodoro work/break timer with a background daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := resolvedConfigPath()

		// First run: offer the wizard when a person is at the keyboard.
		// Pipes, scripts and the daemon itself continue with defaults.
		if cmd.Name() != "daemon" && !configExists(path) && term.IsTerminal(os.Stdin.Fd()) {
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "  Welcome to tomato! Looks like this is your first time.")
			if err := runSetup(cmd, path); err != nil {
				return err
			}
		}

		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func configExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// newClient dials the daemon named by the configuration.
func newClient() *client.Client {
	return client.New(cfg.SocketPath)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/tomato/config.yaml)")
}
