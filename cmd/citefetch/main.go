// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the citefetch CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citefetch/internal/faults"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured in the root pre-run from --verbose.
var logger = slog.New(slog.DiscardHandler)

// rootCmd is the base command for the citefetch CLI.
var rootCmd = &cobra.Command{
	Use:   "citefetch",
	Short: "Fetch EndNote citations for a list of paper titles",
	Long: `citefetch drives a browser through Google Scholar to collect an EndNote
(.enw) citation for every title in a plain-text list. Titles are processed one
at a time with a randomized pause between searches. When a verification
challenge appears the run waits for an operator to clear it in the browser
window.

A local ledger remembers which titles were already saved so that re-running
the same list only fetches what is missing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if viper.GetBool("verbose") {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./citefetch.yaml or $XDG_CONFIG_HOME/citefetch/citefetch.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("citefetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "citefetch"))
	}

	viper.SetEnvPrefix("CITEFETCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// exitCode maps a command error to the process status. Per-title failures
// never reach here; only usage errors, an unavailable browser and
// interrupts do.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case faults.Is(err, faults.KindUsage):
		return 2
	case faults.Is(err, faults.KindSessionUnavailable):
		return 3
	default:
		return 1
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}
