package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"docmirror/pkg/auth"
	"docmirror/pkg/config"
	"docmirror/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage docmirror configuration files.

Configuration is merged from, highest priority first:
  - command line flags
  - environment variables (DOCMIRROR_*, also read from .env)
  - the configuration file
  - default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Long: `Write a configuration file with every option at its default.

The file is created as 'docmirror.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the paths it names",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "docmirror.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Println("\nTo start over, first remove the existing file:")
		fmt.Printf("  rm %s\n", path)
		return fmt.Errorf("%s exists", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Review source.list_url and output.base_directory")
	fmt.Println("2. Run 'docmirror config validate'")
	fmt.Println("3. Start with 'docmirror sync'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Effective configuration")
	fmt.Println()
	fmt.Print(string(data))

	if cfg.Session.Cookie != "" {
		fmt.Printf("\n# session cookie from DOCMIRROR_COOKIE: %s\n", auth.Sanitize(&auth.Credential{Cookie: cfg.Session.Cookie}).Cookie)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed")
		return err
	}

	var problems, warnings []string

	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if logPath := cfg.LogFilePath(); logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.Session.Driver == "http" && cfg.Session.Cookie == "" {
		if mgr, err := auth.NewManager(); err != nil {
			warnings = append(warnings, "credential store unavailable and DOCMIRROR_COOKIE is not set")
		} else if _, err := mgr.RetrieveDefault(); err != nil {
			warnings = append(warnings, "http driver selected but no session cookie is stored; run 'docmirror auth login'")
		}
	}
	if cfg.Session.Headless && cfg.Session.Driver != "http" {
		warnings = append(warnings, "headless browser: verification pages cannot be cleared by hand")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Datasets: %v\n", cfg.Source.Datasets)
	fmt.Printf("  Driver: %s\n", cfg.Session.Driver)
	fmt.Printf("  Empty pages before stopping: %d\n", cfg.Scan.EmptyPageThreshold)
	fmt.Printf("  Retry ceiling: %d\n", cfg.Download.RetryCeiling)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
