package types

import "time"

// BrowserConfig holds settings for launching the automated browser.
type BrowserConfig struct {
	// Headless runs Chrome without a window. The CAPTCHA gate needs a
	// visible window to be cleared by an operator.
	Headless bool `json:"headless" yaml:"headless"`

	// ExecPath overrides the Chrome binary chromedp would discover.
	ExecPath string `json:"exec_path,omitempty" yaml:"exec_path,omitempty"`

	// UserAgents is the pool a random User-Agent is drawn from per session.
	UserAgents []string `json:"user_agents,omitempty" yaml:"user_agents,omitempty"`

	// DownloadDir is where the browser saves export files.
	DownloadDir string `json:"download_dir" yaml:"download_dir"`

	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration `json:"navigation_timeout" yaml:"navigation_timeout"`
}

// SessionConfig holds settings for the session manager.
type SessionConfig struct {
	// MaxAttempts is the number of launch attempts before the session is
	// declared unavailable (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// GateConfig holds settings for the CAPTCHA gate.
type GateConfig struct {
	// Timeout is how long the gate waits for an operator (default 5m).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// PollInterval is how often the page is re-checked (default 1s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// Markers are lowercase substrings that identify a challenge page.
	Markers []string `json:"markers,omitempty" yaml:"markers,omitempty"`
}

// ExportConfig holds settings for the citation exporter.
type ExportConfig struct {
	// PanelTimeout bounds the wait for the citation panel (default 10s).
	PanelTimeout time.Duration `json:"panel_timeout" yaml:"panel_timeout"`

	// LinkAttempts is the number of waits per export-link locator (default 3).
	LinkAttempts int `json:"link_attempts" yaml:"link_attempts"`

	// LinkTimeout bounds each export-link wait (default 5s).
	LinkTimeout time.Duration `json:"link_timeout" yaml:"link_timeout"`
}

// DownloadConfig holds settings for the download resolver.
type DownloadConfig struct {
	// Timeout bounds the wait for the export file (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// PollInterval is the directory polling interval (default 500ms).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// Settle is the pause after a file appears (default 1s).
	Settle time.Duration `json:"settle" yaml:"settle"`

	// OutputDir is where citation records are persisted.
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// AcquisitionConfig holds settings for the retry orchestrator.
type AcquisitionConfig struct {
	// BaseURL is the search engine root (default https://scholar.google.com).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// MaxRetries is the per-title transport retry budget (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MinDelay and MaxDelay bound the random pause between titles (5s-10s).
	MinDelay time.Duration `json:"min_delay" yaml:"min_delay"`
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// MinScore rejects best matches below this similarity. Zero disables
	// the check.
	MinScore float64 `json:"min_score" yaml:"min_score"`

	// ProtectedTerms are kept verbatim by the query normalizer.
	ProtectedTerms []string `json:"protected_terms,omitempty" yaml:"protected_terms,omitempty"`

	// Force re-fetches titles the ledger already holds.
	Force bool `json:"force" yaml:"force"`
}

// PipelineConfig groups all stage configurations for one run.
type PipelineConfig struct {
	Browser     BrowserConfig     `json:"browser" yaml:"browser"`
	Session     SessionConfig     `json:"session" yaml:"session"`
	Gate        GateConfig        `json:"gate" yaml:"gate"`
	Export      ExportConfig      `json:"export" yaml:"export"`
	Download    DownloadConfig    `json:"download" yaml:"download"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition"`
}
