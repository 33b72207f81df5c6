// Package reconcile aligns a dataset index with the files actually on disk
// before downloads start.
package reconcile

import (
	"context"
	"time"

	"docmirror/pkg/index"
	"docmirror/pkg/logger"
	"docmirror/pkg/metrics"
	"docmirror/pkg/storage"
)

// Options configure reconciliation
type Options struct {
	Dataset int
	// AdoptExisting promotes pending records whose final file is already
	// present and passes Verify, instead of downloading them again.
	AdoptExisting bool
	Verify        storage.VerifyFunc
}

// Result summarises a reconciliation
type Result struct {
	Checked int
	Demoted []string
	Adopted []string
	// Orphans are local documents without a complete record. They are
	// reported and left alone.
	Orphans []string
}

// Reconciler compares the index with the dataset directory
type Reconciler struct {
	store   *index.Store
	files   *storage.Manager
	opts    Options
	logger  logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a reconciler
func New(store *index.Store, files *storage.Manager, opts Options, log logger.Logger, m *metrics.Metrics) *Reconciler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Reconciler{
		store:   store,
		files:   files,
		opts:    opts,
		logger:  log.WithFields(map[string]interface{}{"dataset": opts.Dataset, "stage": "reconcile"}),
		metrics: m,
		now:     time.Now,
	}
}

// Run demotes complete records whose file is missing or empty, optionally
// adopts verified files for pending records, and reports orphans. Each group
// of changes is persisted as one batch.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	demoted, err := r.demote(ctx, res)
	if err != nil {
		return res, err
	}
	if len(demoted) > 0 {
		if err := r.store.UpsertMany(demoted...); err != nil {
			return res, err
		}
		r.metrics.AddDemoted(r.opts.Dataset, len(demoted))
		for _, rec := range demoted {
			res.Demoted = append(res.Demoted, rec.ID)
			logger.LogActivity(r.logger, logger.EventDemoted, "Local file missing, record returned to discovered", map[string]interface{}{
				"id": rec.ID,
			})
		}
	}

	if r.opts.AdoptExisting {
		adopted, err := r.adopt(ctx)
		if err != nil {
			return res, err
		}
		if len(adopted) > 0 {
			if err := r.store.UpsertMany(adopted...); err != nil {
				return res, err
			}
			for _, rec := range adopted {
				res.Adopted = append(res.Adopted, rec.ID)
				logger.LogActivity(r.logger, logger.EventAdopted, "Existing file adopted", map[string]interface{}{
					"id":    rec.ID,
					"bytes": rec.Bytes,
				})
			}
		}
	}

	orphans, err := r.orphans()
	if err != nil {
		return res, err
	}
	res.Orphans = orphans
	if len(orphans) > 0 {
		r.logger.InfoWithFields("Local documents without a complete record", map[string]interface{}{
			"count": len(orphans),
			"ids":   orphans,
		})
	}

	r.logger.InfoWithFields("Reconciliation finished", map[string]interface{}{
		"checked": res.Checked,
		"demoted": len(res.Demoted),
		"adopted": len(res.Adopted),
		"orphans": len(res.Orphans),
	})
	return res, nil
}

func (r *Reconciler) demote(ctx context.Context, res *Result) ([]index.Record, error) {
	var out []index.Record
	for _, rec := range r.store.WithStatus(index.StatusComplete) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Checked++
		size, exists, err := r.files.Size(rec.ID)
		if err != nil {
			return nil, err
		}
		if exists && size > 0 {
			continue
		}
		rec.Status = index.StatusDiscovered
		rec.RetryCount = 0
		rec.CompletedAt = nil
		rec.Bytes = 0
		rec.SHA256 = ""
		rec.LastError = "local file missing"
		out = append(out, rec)
	}
	return out, nil
}

func (r *Reconciler) adopt(ctx context.Context) ([]index.Record, error) {
	var out []index.Record
	candidates := append(r.store.WithStatus(index.StatusDiscovered), r.store.WithStatus(index.StatusFailed)...)
	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.files.HasComplete(rec.ID) {
			continue
		}
		if r.opts.Verify != nil {
			if err := r.opts.Verify(r.files.FinalPath(rec.ID)); err != nil {
				r.logger.WithError(err).DebugWithFields("Existing file failed verification, will download", map[string]interface{}{
					"id": rec.ID,
				})
				continue
			}
		}
		sum, err := r.files.Checksum(rec.ID)
		if err != nil {
			return nil, err
		}
		now := r.now()
		rec.Status = index.StatusComplete
		rec.CompletedAt = &now
		rec.Bytes = sum.Bytes
		rec.SHA256 = sum.SHA256
		rec.LastError = ""
		out = append(out, rec)
	}
	return out, nil
}

func (r *Reconciler) orphans() ([]string, error) {
	names, err := r.files.ListDocuments()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		rec, ok := r.store.Get(name)
		if !ok || rec.Status != index.StatusComplete {
			out = append(out, name)
		}
	}
	return out, nil
}
