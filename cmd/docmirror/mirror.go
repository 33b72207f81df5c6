package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"docmirror/pkg/auth"
	"docmirror/pkg/config"
	"docmirror/pkg/dataset"
	"docmirror/pkg/logger"
	"docmirror/pkg/metrics"
	"docmirror/pkg/mirror"
	"docmirror/pkg/session"
	"docmirror/pkg/ui"
	"docmirror/pkg/ui/tui"
)

var (
	// Run flags shared by sync, scan, download, run and status
	outputDir       string
	driver          string
	headless        bool
	account         string
	controlURL      string
	datasetSel      string
	assumeYes       bool
	rescan          bool
	metricsTextfile string
	noValidate      bool
	adoptExisting   bool
	useTUI          bool
	runMode         string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan for new documents, repair gaps and download everything pending",
	Long: `Run all three stages for each selected dataset in ascending order:

  1. scan       walk the listing pages from the saved cursor and record new documents
  2. reconcile  mark documents whose local file went missing for download again
  3. download   fetch every pending document, one at a time

When the session expires or a verification page appears, the run pauses and
asks you to fix it, then continues where it stopped.`,
	Example: `  # Everything, asking which datasets on a terminal
  docmirror sync

  # Datasets 1 to 3 and 7 without questions
  docmirror sync --datasets 1-3,7 --yes

  # Plain HTTP with a stored cookie and the full-screen dashboard
  docmirror sync --driver http --tui`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMirror(cmd, config.ModeSync)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Only discover documents; nothing is downloaded",
	Example: `  docmirror scan --datasets 9
  docmirror scan --datasets 9 --rescan   # start again from page 1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMirror(cmd, config.ModeScan)
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Repair gaps and download documents already in the index",
	Example: `  docmirror download --datasets 1,3,5
  docmirror download --adopt-existing=false   # fetch again even if a valid file is on disk`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMirror(cmd, config.ModeDownload)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run in the mode given by --mode, the config file, or a menu",
	Example: `  docmirror run --mode scan
  docmirror run            # asks for the mode on a terminal`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMirror(cmd, runMode)
	},
}

func init() {
	for _, c := range []*cobra.Command{syncCmd, scanCmd, downloadCmd, runCmd} {
		addRunFlags(c)
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "scan, download or sync")
}

func addRunFlags(c *cobra.Command) {
	addSelectionFlags(c)
	c.Flags().StringVar(&driver, "driver", "", "session driver: browser or http")
	c.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	c.Flags().StringVarP(&account, "account", "a", "", "stored session cookie to use with the http driver")
	c.Flags().StringVar(&controlURL, "control-url", "", "DevTools URL of an already running browser")
	c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask before starting a dataset for the first time")
	c.Flags().BoolVar(&rescan, "rescan", false, "forget the scan cursor and start from page 1")
	c.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when done")
	c.Flags().BoolVar(&noValidate, "no-validate", false, "skip the PDF structure check before saving")
	c.Flags().BoolVar(&adoptExisting, "adopt-existing", true, "mark valid files already on disk as complete instead of downloading them again")
	c.Flags().BoolVar(&useTUI, "tui", false, "full-screen dashboard")
}

func addSelectionFlags(c *cobra.Command) {
	c.Flags().StringVarP(&outputDir, "output", "o", "", "base directory holding the dataset directories")
	c.Flags().StringVarP(&datasetSel, "datasets", "d", "", `datasets to process, e.g. "1,3,5", "1-11" or "all"`)
}

// flagOverrides collects the flags the user set, keyed the way
// config.MergeCommandLineFlags expects
func flagOverrides(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, v interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = v
		}
	}
	set("output", outputDir)
	set("driver", driver)
	set("headless", headless)
	set("account", account)
	set("control-url", controlURL)
	set("metrics-textfile", metricsTextfile)
	set("no-validate", noValidate)
	set("adopt-existing", adoptExisting)
	set("log-level", logLevel)
	if quiet || useTUI {
		flags["quiet"] = true
	}
	return flags
}

func loadConfig(cmd *cobra.Command, mode string) (*config.Config, error) {
	flags := flagOverrides(cmd)
	if mode != "" {
		flags["mode"] = mode
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	cfg.Logging.File = cfg.LogFilePath()
	return cfg, nil
}

func runMirror(cmd *cobra.Command, mode string) error {
	prompter := session.NewTerminalPrompter()
	interactive := prompter.IsTerminal()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mode == "" && interactive {
		chosen, err := chooseMode(ctx, prompter)
		if err != nil {
			return err
		}
		mode = chosen
	}

	cfg, err := loadConfig(cmd, mode)
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return err
	}

	sel := datasetSel
	if sel == "" && interactive && !assumeYes {
		sel, err = chooseDatasets(ctx, prompter, cfg.Source.Datasets)
		if err != nil {
			return err
		}
	}
	numbers, err := dataset.ParseSelection(sel, cfg.Source.Datasets)
	if err != nil {
		return err
	}
	datasets := dataset.Catalog(cfg, numbers)

	var creds session.Credentials
	if mgr, err := auth.NewManager(); err == nil {
		creds = mgr
	} else {
		log.WithError(err).Warn("Credential store unavailable, using DOCMIRROR_COOKIE only")
	}

	notifier := ui.NewNotifier(cfg.Notifications)
	opts := mirror.Options{
		Rescan:   rescan,
		Notifier: notifier,
	}

	var ask asker = prompter
	var sessionPrompter session.Prompter = prompter
	switch {
	case useTUI:
		dash := tui.New(stop, notifier)
		dash.Start()
		defer dash.Stop()
		wrapped := &suspendingPrompter{inner: prompter, screen: dash}
		ask, sessionPrompter = wrapped, wrapped
		opts.Observer = dash
		opts.Notifier = dash
	case !quiet:
		opts.Observer = ui.NewProgressDisplay(verbose)
	}

	if !assumeYes && interactive {
		opts.Confirm = func(ds dataset.Dataset) bool {
			return confirm(ctx, ask, fmt.Sprintf("%s has no index yet. Start it in %s? [Y/n] ", ds, ds.Dir), true)
		}
	}

	sess, err := session.New(cfg, sessionPrompter, creds, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	log.InfoWithFields("Run starting", map[string]interface{}{
		"version":  version,
		"mode":     cfg.Run.Mode,
		"driver":   cfg.Session.Driver,
		"datasets": numbers,
	})

	rep, runErr := mirror.New(cfg, sess, opts, log, metrics.New()).Run(ctx, datasets)
	if rep != nil && !useTUI {
		printReport(rep)
	}
	if runErr != nil && ctx.Err() != nil {
		return context.Canceled
	}
	return runErr
}

func printReport(rep *mirror.Report) {
	fmt.Println()
	ui.PrintHighlight(fmt.Sprintf("%s summary", strings.ToUpper(rep.Mode)))
	for _, d := range rep.Datasets {
		name := fmt.Sprintf("dataset %d", d.Dataset)
		switch {
		case d.Skipped:
			ui.PrintInfo(name, "skipped")
			continue
		case d.Err != nil:
			ui.PrintError(name, d.Err)
		}

		var parts []string
		if rep.Mode != config.ModeDownload {
			parts = append(parts, fmt.Sprintf("%d pages, %d new", d.PagesScanned, d.Discovered))
			if d.ScanInterrupted {
				parts = append(parts, "scan interrupted")
			}
		}
		if rep.Mode != config.ModeScan {
			parts = append(parts, fmt.Sprintf("%d downloaded, %d failed", d.Completed, d.Failed))
			if d.Demoted > 0 {
				parts = append(parts, fmt.Sprintf("%d missing files requeued", d.Demoted))
			}
			if d.Orphans > 0 {
				parts = append(parts, fmt.Sprintf("%d untracked files", d.Orphans))
			}
		}
		if d.Recoveries > 0 {
			parts = append(parts, fmt.Sprintf("%d session recoveries", d.Recoveries))
		}
		ui.PrintInfo(name, strings.Join(parts, " • "))

		if len(d.Exhausted) > 0 {
			ui.PrintWarning(fmt.Sprintf("  %d documents reached the retry limit; see 'docmirror status --datasets %d'", len(d.Exhausted), d.Dataset))
		}
	}
}
