// Package main provides the draconic operator CLI: it rolls dice, expands
// scripts against the configured stores, and signs or verifies capability
// tokens.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/observability"
)

var (
	configPath string
	envFile    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "draconic",
	Short: "Operator tools for the draconic scripting core",
	Long: `draconic runs the user-scripting core outside the chat bot: roll dice,
expand alias and snippet text, and sign or verify capability tokens.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnv,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file (defaults and DRACONIC_ environment only when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(rollCmd, expandCmd, signCmd, verifyCmd)
}

// loadEnv loads the dotenv file so its values reach viper's environment
// overrides. A missing file is not an error.
func loadEnv(*cobra.Command, []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadFromViper(config.NewViper())
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	if verbose {
		cfg.Level = "debug"
	}
	return observability.NewLogger(cfg)
}
