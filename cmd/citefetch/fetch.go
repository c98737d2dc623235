// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/citefetch/internal/acquire"
	"github.com/pdiddy/citefetch/internal/browser"
	"github.com/pdiddy/citefetch/internal/ledger"
	"github.com/pdiddy/citefetch/internal/report"
	"github.com/pdiddy/citefetch/internal/titles"
	"github.com/pdiddy/citefetch/pkg/types"
)

const (
	defaultOutputDir       = "downloads"
	defaultMinDelay        = 5 * time.Second
	defaultMaxDelay        = 10 * time.Second
	defaultCaptchaTimeout  = 5 * time.Minute
	defaultDownloadTimeout = 30 * time.Second
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <titles.txt>",
	Short: "Fetch an EndNote citation for every title in a file",
	Long: `Fetch reads one paper title per line, searches Google Scholar for each,
picks the result whose title is closest to the requested one and saves its
EndNote export as "<canonical title>.enw" in the output directory.

Connectivity failures restart the browser and retry the title with backoff.
Titles without a usable result are reported and the batch moves on. Titles a
previous run already saved are skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

// fetchFlags maps config keys to the flag that sets them.
var fetchFlags = map[string]string{
	"output_dir":       "output-dir",
	"download_dir":     "download-dir",
	"headless":         "headless",
	"chrome_path":      "chrome-path",
	"base_url":         "base-url",
	"max_retries":      "max-retries",
	"min_delay":        "min-delay",
	"max_delay":        "max-delay",
	"captcha_timeout":  "captcha-timeout",
	"download_timeout": "download-timeout",
	"protected_terms":  "protected-terms",
	"min_score":        "min-score",
	"ledger":           "ledger",
	"no_ledger":        "no-ledger",
	"force":            "force",
}

func init() {
	f := fetchCmd.Flags()
	f.String("output-dir", defaultOutputDir, "directory for saved .enw citations")
	f.String("download-dir", "", "directory the browser downloads into (default: output dir)")
	f.Bool("headless", false, "run Chrome without a window (challenges cannot be solved)")
	f.String("chrome-path", "", "Chrome executable (default: discovered)")
	f.String("base-url", acquire.DefaultBaseURL, "search engine root URL")
	f.Int("max-retries", acquire.DefaultMaxRetries, "attempts per title on connectivity failures")
	f.Duration("min-delay", defaultMinDelay, "minimum pause between titles")
	f.Duration("max-delay", defaultMaxDelay, "maximum pause between titles")
	f.Duration("captcha-timeout", defaultCaptchaTimeout, "how long to wait for a challenge to be cleared")
	f.Duration("download-timeout", defaultDownloadTimeout, "how long to wait for the export download")
	f.StringSlice("protected-terms", nil, "terms kept verbatim in queries (default: built-in list)")
	f.Float64("min-score", 0, "reject best matches with a lower title similarity (0 disables)")
	f.String("ledger", defaultLedgerPath(), "ledger database path")
	f.Bool("no-ledger", false, "do not read or write the ledger")
	f.Bool("force", false, "fetch titles even if the ledger has them")
	f.String("report", "", "write a YAML run report to this file")
	f.Bool("plain", false, "print unstyled progress lines")

	for key, flag := range fetchFlags {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(fetchCmd)
}

func defaultLedgerPath() string {
	return filepath.Join(xdg.DataHome, "citefetch", "ledger.db")
}

// pipelineConfig assembles the stage configurations from flags, the
// config file and the environment. Keys without a flag (user_agents,
// captcha_markers, navigation_timeout, session_max_attempts, the export_*
// and download_* tuning keys) come from the config file or CITEFETCH_*
// variables; zero values leave the stage defaults in place.
func pipelineConfig() types.PipelineConfig {
	outputDir := viper.GetString("output_dir")
	downloadDir := viper.GetString("download_dir")
	if downloadDir == "" {
		downloadDir = outputDir
	}
	return types.PipelineConfig{
		Browser: types.BrowserConfig{
			Headless:    viper.GetBool("headless"),
			ExecPath:    viper.GetString("chrome_path"),
			UserAgents:  viper.GetStringSlice("user_agents"),
			DownloadDir: downloadDir,

			NavigationTimeout: viper.GetDuration("navigation_timeout"),
		},
		Session: types.SessionConfig{
			MaxAttempts: viper.GetInt("session_max_attempts"),
		},
		Gate: types.GateConfig{
			Timeout:      viper.GetDuration("captcha_timeout"),
			PollInterval: viper.GetDuration("captcha_poll_interval"),
			Markers:      viper.GetStringSlice("captcha_markers"),
		},
		Export: types.ExportConfig{
			PanelTimeout: viper.GetDuration("export_panel_timeout"),
			LinkAttempts: viper.GetInt("export_link_attempts"),
			LinkTimeout:  viper.GetDuration("export_link_timeout"),
		},
		Download: types.DownloadConfig{
			Timeout:      viper.GetDuration("download_timeout"),
			PollInterval: viper.GetDuration("download_poll_interval"),
			Settle:       viper.GetDuration("download_settle"),
			OutputDir:    outputDir,
		},
		Acquisition: types.AcquisitionConfig{
			BaseURL:        viper.GetString("base_url"),
			MaxRetries:     viper.GetInt("max_retries"),
			MinDelay:       viper.GetDuration("min_delay"),
			MaxDelay:       viper.GetDuration("max_delay"),
			MinScore:       viper.GetFloat64("min_score"),
			ProtectedTerms: viper.GetStringSlice("protected_terms"),
			Force:          viper.GetBool("force"),
		},
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	list, err := titles.Load(args[0])
	if err != nil {
		return err
	}
	cfg := pipelineConfig()
	if len(cfg.Acquisition.ProtectedTerms) == 0 {
		cfg.Acquisition.ProtectedTerms = nil
	}
	if err := os.MkdirAll(cfg.Browser.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	var reporter acquire.Reporter = report.NewConsole(cmd.OutOrStdout())
	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		reporter = acquire.TextReporter{W: cmd.OutOrStdout()}
	}
	opts := []acquire.Option{
		acquire.WithLogger(logger),
		acquire.WithReporter(reporter),
	}

	var store *ledger.Store
	var run ledger.Run
	if !viper.GetBool("no_ledger") {
		store, err = ledger.Open(viper.GetString("ledger"))
		if err != nil {
			return err
		}
		defer store.Close()
		run, err = store.StartRun(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, acquire.WithLedger(ledger.Recorder{Store: store, RunID: run.ID}))
		logger.Debug("run started", "run_id", run.ID, "ledger", viper.GetString("ledger"))
	}

	started := time.Now()
	launcher := browser.NewLauncher(cfg.Browser, logger.With("component", "browser"))
	p := acquire.New(cfg, launcher, opts...)
	res, runErr := p.AcquireBatch(ctx, list)

	if store != nil {
		run.Succeeded, run.Failed, run.Skipped = res.Succeeded, res.Failed, res.Skipped
		if err := store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("finishing run", "error", err)
		}
	}
	if path, _ := cmd.Flags().GetString("report"); path != "" {
		runID := run.ID
		if runID == "" {
			runID = uuid.NewString()
		}
		rf := report.NewRunFile(runID, args[0], started, cfg, res, runErr)
		if err := report.WriteRunFile(path, rf); err != nil {
			logger.Warn("writing run report", "path", path, "error", err)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "Run report written to", path)
		}
	}
	return runErr
}
