package mirror

import (
	"context"
	stderrors "errors"
	"fmt"

	"docmirror/internal/downloader"
	"docmirror/pkg/checkpoint"
	"docmirror/pkg/config"
	"docmirror/pkg/cursor"
	"docmirror/pkg/dataset"
	"docmirror/pkg/errors"
	"docmirror/pkg/index"
	"docmirror/pkg/logger"
	"docmirror/pkg/metrics"
	"docmirror/pkg/reconcile"
	"docmirror/pkg/scanner"
	"docmirror/pkg/source"
	"docmirror/pkg/storage"
	"docmirror/pkg/validate"
)

// Notifier tells the human about events that need them
type Notifier interface {
	SendNotification(title, message string)
}

// DatasetObserver is implemented by observers that show which dataset is
// being worked on
type DatasetObserver interface {
	Dataset(name string)
}

// Options tune a run beyond the configuration file
type Options struct {
	// Rescan resets each dataset's cursor so scanning starts at page 1.
	Rescan bool
	// Confirm is asked before a dataset without an index is started.
	// Returning false skips the dataset. Nil proceeds.
	Confirm func(ds dataset.Dataset) bool
	// Observer follows the download stage. If it also implements
	// DatasetObserver it is told when each dataset starts.
	Observer downloader.Observer
	// Notifier, when set, is used for verification and completion notices.
	Notifier Notifier
}

// DatasetReport is the outcome of one dataset
type DatasetReport struct {
	Dataset         int
	Skipped         bool
	PagesScanned    int
	Discovered      int
	ScanExhausted   bool
	ScanInterrupted bool
	Demoted         int
	Adopted         int
	Orphans         int
	Completed       int
	Failed          int
	Bytes           int64
	Exhausted       []string
	Recoveries      int
	Counts          map[index.Status]int
	Err             error
}

// Report is the outcome of a run
type Report struct {
	Mode     string
	Datasets []DatasetReport
}

// Mirror runs the scan, reconcile and download stages over datasets
type Mirror struct {
	cfg     *config.Config
	session source.Session
	opts    Options
	verify  storage.VerifyFunc
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates a mirror. session supplies authenticated access and the
// human in the loop.
func New(cfg *config.Config, session source.Session, opts Options, log logger.Logger, m *metrics.Metrics) *Mirror {
	if log == nil {
		log = logger.NewNopLogger()
	}
	var verify storage.VerifyFunc
	if cfg.Download.ValidatePDF {
		verify = validate.NewPDF(true).Validate
	}
	return &Mirror{
		cfg:     cfg,
		session: session,
		opts:    opts,
		verify:  verify,
		logger:  log,
		metrics: m,
	}
}

// Run processes datasets one at a time in ascending order under the
// configured mode. A dataset whose index or cursor is corrupt is reported
// and skipped; the others still run. All dataset errors are joined into the
// returned error.
func (m *Mirror) Run(ctx context.Context, datasets []dataset.Dataset) (*Report, error) {
	mode := m.cfg.Run.Mode
	if mode == "" {
		mode = config.ModeSync
	}
	rep := &Report{Mode: mode}

	var errs []error
	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		dr := m.runDataset(ctx, mode, ds)
		rep.Datasets = append(rep.Datasets, dr)
		if dr.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ds, dr.Err))
			if errors.TypeOf(dr.Err) == errors.ErrorTypeCorruptState {
				m.logger.WithError(dr.Err).ErrorWithFields("Dataset state is corrupt, skipping; repair or move the file aside", map[string]interface{}{
					"dataset": ds.Number,
				})
				continue
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	if path := m.cfg.Metrics.Textfile; path != "" {
		if err := m.metrics.WriteTextfile(path); err != nil {
			m.logger.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	if m.opts.Notifier != nil && m.cfg.Notifications.Enabled && m.cfg.Notifications.OnComplete {
		m.opts.Notifier.SendNotification("docmirror", summary(rep))
	}
	return rep, stderrors.Join(errs...)
}

func (m *Mirror) runDataset(ctx context.Context, mode string, ds dataset.Dataset) (dr DatasetReport) {
	dr.Dataset = ds.Number
	log := m.logger.WithField("dataset", ds.Number)

	files, err := storage.NewManager(ds.Dir, storage.Options{
		TempSuffix: m.cfg.Download.TempSuffix,
		Extension:  m.cfg.Source.Extension,
	})
	if err != nil {
		dr.Err = err
		return dr
	}

	indexPath := index.PathFor(ds.Dir, ds.Number)
	fresh := !checkpoint.Exists(indexPath)
	store, err := index.Open(indexPath, ds.Number, index.Options{RetryCeiling: m.cfg.Download.RetryCeiling}, log)
	if err != nil {
		dr.Err = err
		return dr
	}
	if fresh && m.opts.Confirm != nil && !m.opts.Confirm(ds) {
		dr.Skipped = true
		log.Info("Dataset skipped")
		return dr
	}
	defer func() {
		dr.Counts = store.Counts()
		m.metrics.SetRecords(ds.Number, statusCounts(dr.Counts))
	}()

	cur := cursor.ForDataset(ds.Dir, ds.Number)
	if m.opts.Rescan {
		if err := cur.Reset(); err != nil {
			dr.Err = err
			return dr
		}
	}

	log.InfoWithFields("Dataset started", map[string]interface{}{
		"mode":    mode,
		"dir":     ds.Dir,
		"records": store.Len(),
	})
	if o, ok := m.opts.Observer.(DatasetObserver); ok {
		o.Dataset(ds.String())
	}

	if mode == config.ModeScan || mode == config.ModeSync {
		err := m.runStage(ctx, ds, &dr, func(ctx context.Context, src source.Source) error {
			sc := scanner.New(store, cur, src, scanner.Options{
				Dataset:            ds.Number,
				EmptyPageThreshold: m.cfg.Scan.EmptyPageThreshold,
				MaxPages:           m.cfg.Scan.MaxPages,
				PageDelay:          m.cfg.Scan.PageDelay,
				FetchAttempts:      m.cfg.Scan.FetchAttempts,
				RetryDelay:         m.cfg.Scan.RetryDelay,
			}, log, m.metrics)
			res, err := sc.Scan(ctx)
			if res != nil {
				dr.PagesScanned += res.PagesScanned
				dr.Discovered += res.Discovered
				dr.ScanExhausted = res.Exhausted
				dr.ScanInterrupted = res.Interrupted
			}
			return err
		})
		if err != nil {
			dr.Err = err
			return dr
		}
	}

	if mode == config.ModeDownload || mode == config.ModeSync {
		rec := reconcile.New(store, files, reconcile.Options{
			Dataset:       ds.Number,
			AdoptExisting: m.cfg.Reconcile.AdoptExisting,
			Verify:        m.verify,
		}, log, m.metrics)
		res, err := rec.Run(ctx)
		if res != nil {
			dr.Demoted = len(res.Demoted)
			dr.Adopted = len(res.Adopted)
			dr.Orphans = len(res.Orphans)
		}
		if err != nil {
			dr.Err = err
			return dr
		}

		err = m.runStage(ctx, ds, &dr, func(ctx context.Context, src source.Source) error {
			eng := downloader.NewEngine(store, files, src, downloader.Options{
				Dataset:    ds.Number,
				Delay:      m.cfg.Download.Delay,
				MaxPerHour: m.cfg.Download.MaxPerHour,
				Timeout:    m.cfg.Download.Timeout,
				Verify:     m.verify,
				Observer:   m.opts.Observer,
			}, log, m.metrics)
			res, err := eng.Run(ctx)
			if res != nil {
				dr.Completed += res.Completed
				dr.Failed += res.Failed
				dr.Bytes += res.Bytes
			}
			return err
		})
		if err != nil {
			dr.Err = err
			return dr
		}
		dr.Exhausted = idsOf(store.Exhausted())
	}

	log.InfoWithFields("Dataset finished", map[string]interface{}{
		"discovered": dr.Discovered,
		"completed":  dr.Completed,
		"failed":     dr.Failed,
		"exhausted":  len(dr.Exhausted),
	})
	return dr
}

// runStage opens a source and runs stage against it. An expired session or
// a pending challenge is handed to the human through the session, then the
// stage runs again from persisted state, up to MaxReauth times.
func (m *Mirror) runStage(ctx context.Context, ds dataset.Dataset, dr *DatasetReport, stage func(context.Context, source.Source) error) error {
	limit := m.cfg.Run.MaxReauth
	for attempt := 0; ; attempt++ {
		err := func() error {
			src, err := m.session.Open(ctx, ds)
			if err != nil {
				return err
			}
			return stage(ctx, src)
		}()
		if err == nil || !errors.IsSessionSignal(err) {
			return err
		}
		if attempt >= limit {
			return fmt.Errorf("session recovery limit (%d) reached: %w", limit, err)
		}
		if err := m.recoverSession(ctx, ds, err); err != nil {
			return err
		}
		dr.Recoveries++
	}
}

func (m *Mirror) recoverSession(ctx context.Context, ds dataset.Dataset, cause error) error {
	fields := map[string]interface{}{"dataset": ds.Number, "cause": cause.Error()}

	if errors.IsChallenge(cause) {
		m.metrics.IncRecovery(string(errors.ErrorTypeChallenge))
		logger.LogActivity(m.logger, logger.EventVerification, "Waiting for human verification", fields)
		if m.opts.Notifier != nil && m.cfg.Notifications.Enabled && m.cfg.Notifications.OnVerification {
			m.opts.Notifier.SendNotification("Verification needed", fmt.Sprintf("%s is waiting for you to clear a verification page", ds))
		}
		return m.session.AwaitHumanVerification(ctx)
	}

	m.metrics.IncRecovery(string(errors.ErrorTypeAuthExpired))
	logger.LogActivity(m.logger, logger.EventReauthorize, "Session expired, reauthorizing", fields)
	if m.opts.Notifier != nil && m.cfg.Notifications.Enabled && m.cfg.Notifications.OnVerification {
		m.opts.Notifier.SendNotification("Sign-in needed", fmt.Sprintf("%s needs the session to be re-established", ds))
	}
	return m.session.Reauthorize(ctx)
}

func statusCounts(counts map[index.Status]int) map[string]int {
	out := make(map[string]int, len(counts))
	for st, n := range counts {
		out[string(st)] = n
	}
	return out
}

func idsOf(recs []index.Record) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

func summary(rep *Report) string {
	var discovered, completed, failed int
	for _, d := range rep.Datasets {
		discovered += d.Discovered
		completed += d.Completed
		failed += d.Failed
	}
	return fmt.Sprintf("%s finished: %d datasets, %d discovered, %d downloaded, %d failed",
		rep.Mode, len(rep.Datasets), discovered, completed, failed)
}
