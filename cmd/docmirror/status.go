package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"docmirror/pkg/checkpoint"
	"docmirror/pkg/config"
	"docmirror/pkg/cursor"
	"docmirror/pkg/dataset"
	"docmirror/pkg/index"
	"docmirror/pkg/ui"
)

var showFailed bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what each dataset has discovered and downloaded",
	Long: `Show per-status record counts and the scan cursor of each dataset, and list
documents that reached the retry limit. Those are no longer attempted; inspect
them by hand, then delete their entry or reset retry_count in the index to try
again.

Do not run this while a mirror run is active on the same datasets.`,
	Example: `  docmirror status
  docmirror status --datasets 4 --failed`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	addSelectionFlags(statusCmd)
	statusCmd.Flags().BoolVar(&showFailed, "failed", false, "also list failed documents that will be retried")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	numbers, err := dataset.ParseSelection(datasetSel, cfg.Source.Datasets)
	if err != nil {
		return err
	}

	for _, ds := range dataset.Catalog(cfg, numbers) {
		if err := printDatasetStatus(os.Stdout, cfg, ds); err != nil {
			ui.PrintError(ds.String(), err)
		}
	}
	return nil
}

func printDatasetStatus(out io.Writer, cfg *config.Config, ds dataset.Dataset) error {
	fmt.Fprintf(out, "\n%s  %s\n", ui.Magenta(ds.String()), ui.Dim(ds.Dir))

	path := index.PathFor(ds.Dir, ds.Number)
	if !checkpoint.Exists(path) {
		fmt.Fprintln(out, "  not started")
		return nil
	}

	store, err := index.Open(path, ds.Number, index.Options{RetryCeiling: cfg.Download.RetryCeiling}, nil)
	if err != nil {
		return err
	}
	cur, err := cursor.ForDataset(ds.Dir, ds.Number).Load()
	if err != nil {
		return err
	}

	counts := store.Counts()
	exhausted := store.Exhausted()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  records\t%d\n", store.Len())
	for _, st := range []index.Status{index.StatusComplete, index.StatusDiscovered, index.StatusFailed, index.StatusSkipped} {
		fmt.Fprintf(w, "  %s\t%d\n", st, counts[st])
	}
	fmt.Fprintf(w, "  retry limit reached\t%d\n", len(exhausted))
	fmt.Fprintf(w, "  last scanned page\t%d (%d empty in a row)\n", cur.LastScannedPage, cur.ConsecutiveEmptyPages)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(exhausted) > 0 {
		fmt.Fprintln(out, ui.Yellow("  retry limit reached:"))
		printRecords(out, exhausted)
	}
	if showFailed {
		var retrying []index.Record
		for _, rec := range store.WithStatus(index.StatusFailed) {
			if rec.RetryCount < store.Ceiling() {
				retrying = append(retrying, rec)
			}
		}
		if len(retrying) > 0 {
			fmt.Fprintln(out, ui.Cyan("  failed, will be retried:"))
			printRecords(out, retrying)
		}
	}
	return nil
}

func printRecords(out io.Writer, recs []index.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, rec := range recs {
		fmt.Fprintf(w, "    %s\tpage %d\t%d attempts\t%s\n", rec.ID, rec.SourcePage, rec.RetryCount, rec.LastError)
	}
	w.Flush()
}
