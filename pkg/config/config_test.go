package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Scan.EmptyPageThreshold)
	assert.Equal(t, 200000, cfg.Scan.MaxPages)
	assert.Equal(t, 5, cfg.Download.RetryCeiling)
	assert.Equal(t, 750*time.Millisecond, cfg.Download.Delay)
	assert.Equal(t, ".part", cfg.Download.TempSuffix)
	assert.Equal(t, ModeSync, cfg.Run.Mode)
	assert.True(t, cfg.Reconcile.AdoptExisting)
	assert.Len(t, cfg.Source.Datasets, 11)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DOCMIRROR_OUTPUT_DIR", "/tmp/mirror")
	t.Setenv("DOCMIRROR_DRIVER", "http")
	t.Setenv("DOCMIRROR_COOKIE", "session=abc")
	t.Setenv("DOCMIRROR_MODE", "SCAN")
	t.Setenv("DOCMIRROR_RETRY_CEILING", "7")
	t.Setenv("DOCMIRROR_DOWNLOAD_DELAY", "2s")
	t.Setenv("DOCMIRROR_NOTIFICATIONS_ENABLED", "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/mirror", cfg.Output.BaseDirectory)
	assert.Equal(t, "http", cfg.Session.Driver)
	assert.Equal(t, "session=abc", cfg.Session.Cookie)
	assert.Equal(t, ModeScan, cfg.Run.Mode)
	assert.Equal(t, 7, cfg.Download.RetryCeiling)
	assert.Equal(t, 2*time.Second, cfg.Download.Delay)
	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("DOCMIRROR_RETRY_CEILING", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCMIRROR_RETRY_CEILING")
	assert.Equal(t, 5, cfg.Download.RetryCeiling)
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "docmirror.yaml")
		content := `
source:
  datasets: [2, 4]
scan:
  empty_page_threshold: 6
  page_delay: 3s
download:
  delay: 1s
  retry_ceiling: 3
  validate_pdf: false
output:
  base_directory: /srv/mirror
  dir_pattern: "set-{dataset}"
run:
  mode: download
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configPath))

		assert.Equal(t, []int{2, 4}, cfg.Source.Datasets)
		assert.Equal(t, 6, cfg.Scan.EmptyPageThreshold)
		assert.Equal(t, 3*time.Second, cfg.Scan.PageDelay)
		assert.Equal(t, time.Second, cfg.Download.Delay)
		assert.Equal(t, 3, cfg.Download.RetryCeiling)
		assert.False(t, cfg.Download.ValidatePDF)
		assert.Equal(t, ModeDownload, cfg.Run.Mode)
		// untouched keys keep their defaults
		assert.Equal(t, ".part", cfg.Download.TempSuffix)
		assert.Equal(t, filepath.Join("/srv/mirror", "set-4"), cfg.DatasetDir(4))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("scan: [unclosed"), 0644))

		err := DefaultConfig().LoadFromFile(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("missing explicit file", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero threshold", func(c *Config) { c.Scan.EmptyPageThreshold = 0 }, "empty page threshold"},
		{"zero ceiling", func(c *Config) { c.Download.RetryCeiling = 0 }, "retry ceiling"},
		{"suffix without dot", func(c *Config) { c.Download.TempSuffix = "part" }, "temp suffix"},
		{"suffix equals extension", func(c *Config) { c.Download.TempSuffix = ".PDF" }, "differ from the document extension"},
		{"unknown driver", func(c *Config) { c.Session.Driver = "curl" }, "unknown session driver"},
		{"bad mode", func(c *Config) { c.Run.Mode = "mirror" }, "invalid mode"},
		{"no page placeholder", func(c *Config) { c.Source.ListURL = "https://example.test/list" }, "{page}"},
		{"bad id pattern", func(c *Config) { c.Source.IDPattern = "([" }, "id_pattern"},
		{"negative dataset", func(c *Config) { c.Source.Datasets = []int{-1} }, "dataset number"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.MaxPages = 0
	cfg.Download.Timeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max pages")
	assert.Contains(t, err.Error(), "download timeout")
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Session.Cookie = "secret"
	cfg.Scan.EmptyPageThreshold = 4

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, 4, loaded.Scan.EmptyPageThreshold)
	assert.Equal(t, cfg.Download.Delay, loaded.Download.Delay)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":         "/out",
		"mode":           "Scan",
		"datasets":       []int{9},
		"headless":       true,
		"log-level":      "debug",
		"no-validate":    true,
		"adopt-existing": true,
		"quiet":          false,
	})

	assert.Equal(t, "/out", cfg.Output.BaseDirectory)
	assert.Equal(t, ModeScan, cfg.Run.Mode)
	assert.Equal(t, []int{9}, cfg.Source.Datasets)
	assert.True(t, cfg.Session.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Download.ValidatePDF)
	assert.True(t, cfg.Reconcile.AdoptExisting)
	assert.False(t, cfg.Logging.Quiet)
}

func TestLogFilePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.BaseDirectory = "/srv/mirror"
	assert.Equal(t, filepath.Join("/srv/mirror", "download.log"), cfg.LogFilePath())

	cfg.Logging.File = "/var/log/docmirror.log"
	assert.Equal(t, "/var/log/docmirror.log", cfg.LogFilePath())

	cfg.Logging.File = ""
	assert.Equal(t, "", cfg.LogFilePath())
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCMIRROR_OUTPUT_DIR", "/env/out")

	cfg, err := Load("", map[string]interface{}{"mode": "download"})
	require.NoError(t, err)
	assert.Equal(t, "/env/out", cfg.Output.BaseDirectory)
	assert.Equal(t, ModeDownload, cfg.Run.Mode)

	_, err = Load("", map[string]interface{}{"mode": "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
