// Package scanner walks the listing pages of a dataset and records every
// document it has not seen before.
package scanner

import (
	"context"
	"fmt"
	"time"

	"docmirror/pkg/cursor"
	"docmirror/pkg/errors"
	"docmirror/pkg/index"
	"docmirror/pkg/logger"
	"docmirror/pkg/metrics"
	"docmirror/pkg/ratelimit"
	"docmirror/pkg/retry"
	"docmirror/pkg/source"
)

// Options configure a scan
type Options struct {
	Dataset int
	// EmptyPageThreshold is how many consecutive pages without a new id
	// end the scan.
	EmptyPageThreshold int
	// MaxPages is a hard upper bound on the page number.
	MaxPages int
	// PageDelay is the minimum spacing between page fetches.
	PageDelay time.Duration
	// FetchAttempts bounds retries of one page on transient errors.
	FetchAttempts int
	// RetryDelay is the base backoff between those retries.
	RetryDelay time.Duration
}

// Result summarises a scan
type Result struct {
	StartPage    int
	LastPage     int
	PagesScanned int
	Discovered   int
	// Exhausted is set when the empty-page threshold was reached.
	Exhausted bool
	// HitPageCap is set when MaxPages stopped the scan.
	HitPageCap bool
	// Interrupted is set when a page kept failing; a later run resumes.
	Interrupted bool
}

// Scanner is the pagination scanner of one dataset
type Scanner struct {
	store   *index.Store
	cursor  *cursor.Manager
	lister  source.Lister
	limiter ratelimit.Limiter
	retry   *retry.Config
	opts    Options
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates a scanner
func New(store *index.Store, cur *cursor.Manager, lister source.Lister, opts Options, log logger.Logger, m *metrics.Metrics) *Scanner {
	if opts.EmptyPageThreshold <= 0 {
		opts.EmptyPageThreshold = 3
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 200000
	}
	if opts.FetchAttempts <= 0 {
		opts.FetchAttempts = 3
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithFields(map[string]interface{}{"dataset": opts.Dataset, "stage": "scan"})

	backoff := retry.NewErrorTypeBackoff(opts.RetryDelay)
	return &Scanner{
		store:   store,
		cursor:  cur,
		lister:  lister,
		limiter: ratelimit.NewPacer(opts.PageDelay),
		retry: &retry.Config{
			MaxAttempts: opts.FetchAttempts,
			BackoffFor:  backoff.For,
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		opts:    opts,
		logger:  log,
		metrics: m,
	}
}

// startPosition decides where a scan begins: never below the last durable
// page. A finished scan (streak already at the threshold) starts a tail pass
// there with a fresh, in-memory streak.
func (s *Scanner) startPosition(c cursor.Cursor) (page int, tail bool) {
	return max(1, c.LastScannedPage), c.ConsecutiveEmptyPages >= s.opts.EmptyPageThreshold
}

// Scan runs until the empty-page threshold is reached, the page cap is hit,
// a page keeps failing, or the session needs a human. Expired sessions and
// challenges are returned as errors with the cursor left on the last durable
// page; the caller recovers the session and calls Scan again.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	c, err := s.cursor.Load()
	if err != nil {
		return nil, err
	}

	page, tail := s.startPosition(c)
	tailEmpty := 0

	res := &Result{StartPage: page}
	s.logger.InfoWithFields("Scan started", map[string]interface{}{
		"start_page":   page,
		"tail_pass":    tail,
		"empty_streak": c.ConsecutiveEmptyPages,
		"known":        s.store.Len(),
	})

	first := true
	for ; ; page++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if page > s.opts.MaxPages {
			res.HitPageCap = true
			s.logger.WarnWithFields("Page cap reached, stopping scan", map[string]interface{}{
				"max_pages": s.opts.MaxPages,
			})
			break
		}

		refs, err := s.fetch(ctx, page)
		if err != nil {
			if errors.IsSessionSignal(err) || ctx.Err() != nil {
				return res, err
			}
			res.Interrupted = true
			s.metrics.IncError(string(errors.TypeOf(err)))
			s.logger.WithError(err).WarnWithFields("Listing page keeps failing, scan will resume here next run", map[string]interface{}{
				"page": page,
			})
			break
		}

		records := make([]index.Record, 0, len(refs))
		for _, ref := range refs {
			records = append(records, index.Record{ID: ref.ID, URL: ref.URL, SourcePage: page})
		}
		added, err := s.store.Insert(records...)
		if err != nil {
			return res, err
		}

		res.PagesScanned++
		res.LastPage = page
		res.Discovered += len(added)
		s.metrics.IncPage(s.opts.Dataset)
		s.metrics.AddDiscovered(s.opts.Dataset, len(added))

		// The page the cursor already points at was counted by the previous
		// run; re-reading it only matters if it turned up something new. A
		// tail pass leaves the cursor alone until a page has new ids, so
		// repeated runs over an unchanged collection do not walk it forward.
		reread := first && page == c.LastScannedPage && page >= 1
		first = false
		foundNew := len(added) > 0
		switch {
		case tail && !foundNew:
			tailEmpty++
		case reread && !foundNew:
		default:
			tail = false
			c, err = s.cursor.Advance(page, foundNew)
			if err != nil {
				return res, err
			}
		}
		streak := c.ConsecutiveEmptyPages
		if tail {
			streak = tailEmpty
		}

		fields := map[string]interface{}{
			"page":         page,
			"links":        len(refs),
			"new":          len(added),
			"empty_streak": streak,
		}
		if foundNew {
			fields["ids"] = added
			logger.LogActivity(s.logger, logger.EventDiscovered, "New documents discovered", fields)
		} else {
			logger.LogActivity(s.logger, logger.EventPageScanned, "No new documents on page", fields)
		}

		if streak >= s.opts.EmptyPageThreshold {
			res.Exhausted = true
			break
		}
	}

	s.logger.InfoWithFields("Scan finished", map[string]interface{}{
		"pages":       res.PagesScanned,
		"discovered":  res.Discovered,
		"last_page":   res.LastPage,
		"exhausted":   res.Exhausted,
		"interrupted": res.Interrupted,
	})
	return res, nil
}

// fetch reads one page, paced and retried. A page that no longer exists is
// treated as an empty page.
func (s *Scanner) fetch(ctx context.Context, page int) ([]source.Ref, error) {
	refs, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]source.Ref, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.lister.FetchPage(ctx, page)
	}, s.retry)
	if err != nil {
		if errors.TypeOf(err) == errors.ErrorTypeNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return refs, nil
}
