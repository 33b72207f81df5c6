package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"docmirror/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docmirror",
	Short: "Resumable mirror for gated, paginated document collections",
	Long: `docmirror keeps a local copy of a document collection that is published as
numbered listing pages behind a session and an occasional human verification.

Every dataset keeps two files next to its documents:
  - index_<N>.json   every known document and its download status
  - resume_<N>.txt   the last listing page whose discoveries are saved

Runs can be interrupted at any point and resumed later. Nothing is downloaded
twice, missing files are noticed and fetched again, and new documents at the
end of the collection are picked up by the next scan.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || useTUI {
			return
		}
		switch cmd.Name() {
		case "sync", "scan", "download", "run":
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		ui.PrintWarning("Interrupted. Progress is saved; run the same command again to resume.")
		os.Exit(130)
	default:
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: docmirror.yaml, ~/.config/docmirror/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress console logs and progress")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "one line per document instead of a progress bar")

	rootCmd.SetVersionTemplate(`docmirror {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
