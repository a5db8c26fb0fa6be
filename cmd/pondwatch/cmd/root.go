// Package cmd implements the CLI commands for pondwatch.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"pondwatch/internal/config"
	"pondwatch/internal/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pondwatch",
	Short: "Pond water-quality classification and SMS alerting",
	Long: `pondwatch classifies pond sensor readings (temperature, pH, ammonia,
dissolved oxygen, fish surface respiration) into calibrated bands and sends
an SMS when a sensor turns bad.

Configuration is read from an optional YAML file, then overridden by
PONDWATCH_* and TWILIO_* environment variables. A .env file in the working
directory is loaded first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			loaded.LogLevel = level
		}
		logger.InitWithWriter(loaded.LogLevel, os.Stderr)

		cfg = loaded
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv("PONDWATCH_CONFIG"), "path to YAML config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
}
