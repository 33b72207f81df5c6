// Package downloader is the acquisition engine: it turns pending index
// records into verified local documents, one at a time.
package downloader

import (
	"context"
	stderrors "errors"
	"time"

	"docmirror/pkg/errors"
	"docmirror/pkg/index"
	"docmirror/pkg/logger"
	"docmirror/pkg/metrics"
	"docmirror/pkg/ratelimit"
	"docmirror/pkg/source"
	"docmirror/pkg/storage"
)

// Options configure the engine
type Options struct {
	Dataset int
	// Delay is the minimum spacing between consecutive attempts.
	Delay time.Duration
	// MaxPerHour caps attempts per rolling hour; 0 disables the cap.
	MaxPerHour int
	// Timeout bounds a single document transfer.
	Timeout time.Duration
	// Verify checks a fully written temp file before it is renamed.
	Verify storage.VerifyFunc
	// Observer, when set, is told about every attempt.
	Observer Observer
}

// Observer follows engine progress, typically to render it
type Observer interface {
	OnAttempt(rec index.Record, n, total int)
	OnResult(rec index.Record, err error)
}

// Result summarises one engine run
type Result struct {
	Pending   int
	Attempted int
	Completed int
	Failed    int
	Bytes     int64
	// Exhausted lists records at the retry ceiling; they were not attempted.
	Exhausted []string
	// Swept lists stale temp files removed at start.
	Swept []string
}

// Engine downloads the pending records of one dataset
type Engine struct {
	store   *index.Store
	files   *storage.Manager
	fetcher source.Fetcher
	limiter ratelimit.Limiter
	opts    Options
	logger  logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEngine creates an engine
func NewEngine(store *index.Store, files *storage.Manager, fetcher source.Fetcher, opts Options, log logger.Logger, m *metrics.Metrics) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{
		store:   store,
		files:   files,
		fetcher: fetcher,
		limiter: ratelimit.ForDownloads(opts.Delay, opts.MaxPerHour),
		opts:    opts,
		logger:  log.WithFields(map[string]interface{}{"dataset": opts.Dataset, "stage": "download"}),
		metrics: m,
		now:     time.Now,
	}
}

// Run attempts every pending record once, in index order. A record's
// failure is recorded and the run moves on. An expired session or a
// challenge is recorded against the current record and then returned, as is
// any failure to persist the index.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	swept, err := e.files.SweepTemp()
	if err != nil {
		e.logger.WithError(err).Warn("Failed to remove stale temp files")
	}
	res.Swept = swept
	if len(swept) > 0 {
		e.logger.InfoWithFields("Removed stale temp files", map[string]interface{}{
			"count": len(swept),
		})
	}

	for _, rec := range e.store.Exhausted() {
		res.Exhausted = append(res.Exhausted, rec.ID)
		logger.LogActivity(e.logger, logger.EventExhausted, "Retry ceiling reached, skipping", map[string]interface{}{
			"id":          rec.ID,
			"retry_count": rec.RetryCount,
			"last_error":  rec.LastError,
		})
	}

	pending := e.store.AllPending()
	res.Pending = len(pending)
	e.logger.InfoWithFields("Download stage started", map[string]interface{}{
		"pending":   len(pending),
		"exhausted": len(res.Exhausted),
	})

	for i, rec := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return res, err
		}
		if e.opts.Observer != nil {
			e.opts.Observer.OnAttempt(rec, i+1, len(pending))
		}

		done, attemptErr, err := e.acquire(ctx, rec)
		if err != nil {
			return res, err
		}
		res.Attempted++
		if e.opts.Observer != nil {
			e.opts.Observer.OnResult(done, attemptErr)
		}

		if attemptErr != nil {
			res.Failed++
			if errors.IsSessionSignal(attemptErr) {
				return res, attemptErr
			}
			continue
		}
		res.Completed++
		res.Bytes += done.Bytes
	}

	e.logger.InfoWithFields("Download stage finished", map[string]interface{}{
		"attempted": res.Attempted,
		"completed": res.Completed,
		"failed":    res.Failed,
		"bytes":     res.Bytes,
	})
	return res, nil
}

// acquire performs one attempt. attemptErr is the record-scoped outcome;
// err is set only when the run itself must stop (index not persisted, or
// the run was cancelled mid-transfer, in which case the record stays
// "downloading" and is returned to "discovered" on the next load).
func (e *Engine) acquire(ctx context.Context, rec index.Record) (done index.Record, attemptErr, err error) {
	start := e.now()
	rec.Status = index.StatusDownloading
	rec.LastAttemptAt = &start
	if err := e.store.Upsert(rec); err != nil {
		return rec, nil, err
	}

	logger.LogActivity(e.logger, logger.EventAttempt, "Downloading document", map[string]interface{}{
		"id":      rec.ID,
		"url":     rec.URL,
		"attempt": rec.RetryCount + 1,
	})

	result, fetchErr := e.transfer(ctx, rec)
	elapsed := e.now().Sub(start)

	if fetchErr != nil {
		if ctx.Err() != nil {
			return rec, nil, ctx.Err()
		}

		rec.Status = index.StatusFailed
		rec.RetryCount++
		rec.LastError = fetchErr.Error()
		if err := e.store.Upsert(rec); err != nil {
			return rec, fetchErr, err
		}

		errType := errors.TypeOf(fetchErr)
		e.metrics.ObserveDownload(e.opts.Dataset, false, 0, elapsed)
		e.metrics.IncError(string(errType))

		event, msg := logger.EventFailed, "Download failed"
		if rec.RetryCount >= e.store.Ceiling() {
			event, msg = logger.EventExhausted, "Download failed, retry ceiling reached"
		}
		logger.LogActivity(e.logger.WithError(fetchErr), event, msg, map[string]interface{}{
			"id":          rec.ID,
			"retry_count": rec.RetryCount,
			"error_type":  string(errType),
		})
		return rec, fetchErr, nil
	}

	completed := e.now()
	rec.Status = index.StatusComplete
	rec.CompletedAt = &completed
	rec.Bytes = result.Bytes
	rec.SHA256 = result.SHA256
	rec.LastError = ""
	if err := e.store.Upsert(rec); err != nil {
		return rec, nil, err
	}

	e.metrics.ObserveDownload(e.opts.Dataset, true, result.Bytes, elapsed)
	logger.LogActivity(e.logger, logger.EventComplete, "Document saved", map[string]interface{}{
		"id":          rec.ID,
		"bytes":       result.Bytes,
		"sha256":      result.SHA256,
		"duration_ms": elapsed.Milliseconds(),
	})
	return rec, nil, nil
}

// transfer fetches one document into place under the per-document timeout
func (e *Engine) transfer(ctx context.Context, rec index.Record) (*storage.WriteResult, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	doc, err := e.fetcher.FetchDocument(fetchCtx, source.Ref{ID: rec.ID, URL: rec.URL, Page: rec.SourcePage})
	if err != nil {
		return nil, classifyTimeout(err)
	}
	defer doc.Body.Close()

	result, err := e.files.Save(fetchCtx, rec.ID, doc.Body, doc.Size, e.opts.Verify)
	if err != nil {
		return nil, classifyTimeout(err)
	}
	return result, nil
}

func classifyTimeout(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) && errors.TypeOf(err) == errors.ErrorTypeUnknown {
		return errors.Wrap(errors.ErrorTypeTimeout, "document transfer", err)
	}
	return err
}
