package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the mirror
type Config struct {
	// Remote collection layout
	Source SourceConfig `yaml:"source" json:"source"`

	// Session collaborator (browser or plain http)
	Session SessionConfig `yaml:"session" json:"session"`

	// Pagination scanning
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Document acquisition
	Download DownloadConfig `yaml:"download" json:"download"`

	// Local gap repair
	Reconcile ReconcileConfig `yaml:"reconcile" json:"reconcile"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Run-level behaviour
	Run RunConfig `yaml:"run" json:"run"`
}

// SourceConfig describes where listings and documents live
type SourceConfig struct {
	// ListURL is a template; {dataset} and {page} are substituted.
	ListURL          string   `yaml:"list_url" json:"list_url"`
	Site             string   `yaml:"site" json:"site"`
	LinkContains     string   `yaml:"link_contains" json:"link_contains"`
	Extension        string   `yaml:"extension" json:"extension"`
	IDPattern        string   `yaml:"id_pattern" json:"id_pattern"`
	Datasets         []int    `yaml:"datasets" json:"datasets"`
	ChallengeMarkers []string `yaml:"challenge_markers" json:"challenge_markers"`
}

// SessionConfig holds the collaborator settings
type SessionConfig struct {
	Driver      string        `yaml:"driver" json:"driver"`
	Headless    bool          `yaml:"headless" json:"headless"`
	ControlURL  string        `yaml:"control_url" json:"control_url"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	Account     string        `yaml:"account" json:"account"`
	Cookie      string        `yaml:"-" json:"-"`
	PageTimeout time.Duration `yaml:"page_timeout" json:"page_timeout"`
}

// ScanConfig holds pagination scanning configuration
type ScanConfig struct {
	EmptyPageThreshold int           `yaml:"empty_page_threshold" json:"empty_page_threshold"`
	MaxPages           int           `yaml:"max_pages" json:"max_pages"`
	PageDelay          time.Duration `yaml:"page_delay" json:"page_delay"`
	FetchAttempts      int           `yaml:"fetch_attempts" json:"fetch_attempts"`
	RetryDelay         time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Delay        time.Duration `yaml:"delay" json:"delay"`
	RetryCeiling int           `yaml:"retry_ceiling" json:"retry_ceiling"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	TempSuffix   string        `yaml:"temp_suffix" json:"temp_suffix"`
	ValidatePDF  bool          `yaml:"validate_pdf" json:"validate_pdf"`
	MaxPerHour   int           `yaml:"max_per_hour" json:"max_per_hour"`
}

// ReconcileConfig holds gap repair configuration. AdoptExisting marks a
// pending record complete when its file is already on disk and verifies.
type ReconcileConfig struct {
	AdoptExisting bool `yaml:"adopt_existing" json:"adopt_existing"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	// DirPattern names a dataset directory; {dataset} is substituted.
	DirPattern string `yaml:"dir_pattern" json:"dir_pattern"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnVerification   bool   `yaml:"on_verification" json:"on_verification"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File receives the append-only activity log as JSON lines.
	File  string `yaml:"file" json:"file"`
	Quiet bool   `yaml:"quiet" json:"quiet"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// RunConfig holds orchestrator settings
type RunConfig struct {
	Mode      string `yaml:"mode" json:"mode"`
	MaxReauth int    `yaml:"max_reauth" json:"max_reauth"`
}

// Modes understood by the orchestrator
const (
	ModeScan     = "scan"
	ModeDownload = "download"
	ModeSync     = "sync"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			ListURL:      "https://www.justice.gov/epstein/doj-disclosures/data-set-{dataset}-files?page={page}",
			Site:         "https://www.justice.gov",
			LinkContains: "/epstein/files/",
			Extension:    ".pdf",
			IDPattern:    `(?i)^EFTA0*(\d+)\.pdf$`,
			Datasets:     []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
			ChallengeMarkers: []string{
				"verify you are human",
				"are you a robot",
				"captcha",
			},
		},
		Session: SessionConfig{
			Driver:      "browser",
			Headless:    false,
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			PageTimeout: 60 * time.Second,
		},
		Scan: ScanConfig{
			EmptyPageThreshold: 3,
			MaxPages:           200000,
			PageDelay:          1500 * time.Millisecond,
			FetchAttempts:      3,
			RetryDelay:         5 * time.Second,
		},
		Download: DownloadConfig{
			Delay:        750 * time.Millisecond,
			RetryCeiling: 5,
			Timeout:      180 * time.Second,
			TempSuffix:   ".part",
			ValidatePDF:  true,
			MaxPerHour:   0, // 0 means no limit
		},
		Reconcile: ReconcileConfig{
			AdoptExisting: true,
		},
		Output: OutputConfig{
			BaseDirectory: ".",
			DirPattern:    "data{dataset}",
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnVerification:   true,
			OnComplete:       true,
			NotificationType: "desktop",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "download.log",
		},
		Run: RunConfig{
			Mode:      ModeSync,
			MaxReauth: 5,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("DOCMIRROR_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("DOCMIRROR_DRIVER"); v != "" {
		c.Session.Driver = v
	}
	if v := os.Getenv("DOCMIRROR_CONTROL_URL"); v != "" {
		c.Session.ControlURL = v
	}
	if v := os.Getenv("DOCMIRROR_USER_AGENT"); v != "" {
		c.Session.UserAgent = v
	}
	if v := os.Getenv("DOCMIRROR_ACCOUNT"); v != "" {
		c.Session.Account = v
	}
	if v := os.Getenv("DOCMIRROR_COOKIE"); v != "" {
		c.Session.Cookie = v
	}
	if v := os.Getenv("DOCMIRROR_HEADLESS"); v != "" {
		c.Session.Headless = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("DOCMIRROR_MODE"); v != "" {
		c.Run.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("DOCMIRROR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCMIRROR_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("DOCMIRROR_METRICS_TEXTFILE"); v != "" {
		c.Metrics.Textfile = v
	}
	if v := os.Getenv("DOCMIRROR_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("DOCMIRROR_RETRY_CEILING"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DOCMIRROR_RETRY_CEILING: %w", err))
		} else {
			c.Download.RetryCeiling = n
		}
	}
	if v := os.Getenv("DOCMIRROR_EMPTY_PAGE_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DOCMIRROR_EMPTY_PAGE_THRESHOLD: %w", err))
		} else {
			c.Scan.EmptyPageThreshold = n
		}
	}
	if v := os.Getenv("DOCMIRROR_DOWNLOAD_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DOCMIRROR_DOWNLOAD_DELAY: %w", err))
		} else {
			c.Download.Delay = d
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"docmirror.yaml",
		".docmirror.yaml",
		".docmirror.yml",
		filepath.Join(home, ".config", "docmirror", "config.yaml"),
		filepath.Join(home, ".config", "docmirror", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if !strings.Contains(c.Source.ListURL, "{page}") {
		errs = append(errs, errors.New("source list_url must contain {page}"))
	}
	if c.Source.IDPattern != "" {
		if _, err := regexp.Compile(c.Source.IDPattern); err != nil {
			errs = append(errs, fmt.Errorf("source id_pattern: %w", err))
		}
	}
	if len(c.Source.Datasets) == 0 {
		errs = append(errs, errors.New("at least one dataset is required"))
	}
	for _, ds := range c.Source.Datasets {
		if ds <= 0 {
			errs = append(errs, fmt.Errorf("dataset number must be positive, got %d", ds))
		}
	}

	switch strings.ToLower(c.Session.Driver) {
	case "browser", "http":
	default:
		errs = append(errs, fmt.Errorf("unknown session driver %q", c.Session.Driver))
	}

	if c.Scan.EmptyPageThreshold <= 0 {
		errs = append(errs, errors.New("empty page threshold must be positive"))
	}
	if c.Scan.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Scan.FetchAttempts <= 0 {
		errs = append(errs, errors.New("fetch attempts must be positive"))
	}
	if c.Scan.PageDelay < 0 || c.Download.Delay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}

	if c.Download.RetryCeiling <= 0 {
		errs = append(errs, errors.New("retry ceiling must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if !strings.HasPrefix(c.Download.TempSuffix, ".") || len(c.Download.TempSuffix) < 2 {
		errs = append(errs, errors.New("temp suffix must start with a dot"))
	} else if strings.EqualFold(c.Download.TempSuffix, c.Source.Extension) {
		errs = append(errs, errors.New("temp suffix must differ from the document extension"))
	}
	if c.Download.MaxPerHour < 0 {
		errs = append(errs, errors.New("max per hour cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if !strings.Contains(c.Output.DirPattern, "{dataset}") {
		errs = append(errs, errors.New("output dir_pattern must contain {dataset}"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	switch c.Run.Mode {
	case ModeScan, ModeDownload, ModeSync:
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q", c.Run.Mode))
	}
	if c.Run.MaxReauth < 0 {
		errs = append(errs, errors.New("max reauth cannot be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if mode, ok := flags["mode"].(string); ok && mode != "" {
		c.Run.Mode = strings.ToLower(mode)
	}
	if datasets, ok := flags["datasets"].([]int); ok && len(datasets) > 0 {
		c.Source.Datasets = datasets
	}
	if headless, ok := flags["headless"].(bool); ok && headless {
		c.Session.Headless = true
	}
	if driver, ok := flags["driver"].(string); ok && driver != "" {
		c.Session.Driver = driver
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Session.Account = account
	}
	if controlURL, ok := flags["control-url"].(string); ok && controlURL != "" {
		c.Session.ControlURL = controlURL
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if quiet, ok := flags["quiet"].(bool); ok && quiet {
		c.Logging.Quiet = true
	}
	if textfile, ok := flags["metrics-textfile"].(string); ok && textfile != "" {
		c.Metrics.Textfile = textfile
	}
	if noValidate, ok := flags["no-validate"].(bool); ok && noValidate {
		c.Download.ValidatePDF = false
	}
	if adopt, ok := flags["adopt-existing"].(bool); ok {
		c.Reconcile.AdoptExisting = adopt
	}
}

// DatasetDir returns the output directory of one dataset.
func (c *Config) DatasetDir(dataset int) string {
	name := strings.ReplaceAll(c.Output.DirPattern, "{dataset}", strconv.Itoa(dataset))
	return filepath.Join(c.Output.BaseDirectory, name)
}

// LogFilePath resolves the activity log path against the output directory.
func (c *Config) LogFilePath() string {
	if c.Logging.File == "" || filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(c.Output.BaseDirectory, c.Logging.File)
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".docmirror.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
