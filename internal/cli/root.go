// Package cli defines the futureslab commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"futureslab/internal/config"
	"futureslab/internal/logging"
)

var (
	envFile  string
	logLevel string
	devLogs  bool
)

var rootCmd = &cobra.Command{
	Use:   "futureslab",
	Short: "Facilitated futures workshop",
	Long: `futureslab runs a facilitated scenario workshop. A moderator hosts a
session, participants join with a short code, and every step's scenario is
written by a generative model from the group's choices.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&devLogs, "dev", false, "Human-readable development logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(seedCmd)
}

// loadConfig reads the environment and applies the persistent flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("dev") {
		cfg.Dev = devLogs
	}
	return cfg, nil
}

func newLogger(cfg config.Config, paths ...string) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.Dev, paths...)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}
