package index

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"docmirror/pkg/checkpoint"
	"docmirror/pkg/errors"
	"docmirror/pkg/logger"
)

// formatVersion is bumped on incompatible changes to the index document
const formatVersion = 1

// Meta is the header of an index file
type Meta struct {
	Dataset   int       `json:"dataset"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type document struct {
	Meta  Meta               `json:"meta"`
	Files map[string]*Record `json:"files"`
}

// Options tune the store's view of pending work
type Options struct {
	// RetryCeiling excludes failed records once RetryCount reaches it.
	RetryCeiling int
}

// Store is the dataset index: every known record for one dataset, persisted
// as a single JSON document. Every mutating call rewrites the file atomically
// before it returns. A Store is owned by one run.
type Store struct {
	mu      sync.Mutex
	path    string
	opts    Options
	doc     document
	logger  logger.Logger
	nowFunc func() time.Time
}

// FileName is the index file name for a dataset
func FileName(dataset int) string {
	return fmt.Sprintf("index_%d.json", dataset)
}

// PathFor returns the index path inside a dataset directory
func PathFor(dir string, dataset int) string {
	return filepath.Join(dir, FileName(dataset))
}

// Open loads the index at path, or starts an empty one if the file does not
// exist. An unreadable or inconsistent file is reported as corrupt state; it
// is never replaced by an empty index. Records left in "downloading" by an
// interrupted run are moved back to "discovered".
func Open(path string, dataset int, opts Options, log logger.Logger) (*Store, error) {
	if opts.RetryCeiling <= 0 {
		opts.RetryCeiling = 5
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Store{
		path:    path,
		opts:    opts,
		logger:  log.WithField("dataset", dataset),
		nowFunc: time.Now,
	}

	var doc document
	found, err := checkpoint.ReadJSON(path, &doc)
	if err != nil {
		if found {
			return nil, errors.Wrap(errors.ErrorTypeCorruptState, path, err)
		}
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	if !found {
		now := s.nowFunc()
		s.doc = document{
			Meta:  Meta{Dataset: dataset, Version: formatVersion, CreatedAt: now, UpdatedAt: now},
			Files: make(map[string]*Record),
		}
		return s, nil
	}

	if err := checkDocument(&doc, dataset); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeCorruptState, path, err)
	}
	s.doc = doc

	var coerced []string
	for id, rec := range s.doc.Files {
		if rec.Status == StatusDownloading {
			rec.Status = StatusDiscovered
			coerced = append(coerced, id)
		}
	}
	if len(coerced) > 0 {
		sort.Strings(coerced)
		s.logger.WarnWithFields("Interrupted downloads returned to discovered", map[string]interface{}{
			"count": len(coerced),
			"ids":   coerced,
		})
		if err := s.persist(); err != nil {
			return nil, err
		}
	}

	s.logger.DebugWithFields("Index loaded", map[string]interface{}{
		"path":    path,
		"records": len(s.doc.Files),
	})
	return s, nil
}

func checkDocument(doc *document, dataset int) error {
	if doc.Meta.Version > formatVersion {
		return fmt.Errorf("index version %d is newer than supported %d", doc.Meta.Version, formatVersion)
	}
	if doc.Meta.Dataset != 0 && doc.Meta.Dataset != dataset {
		return fmt.Errorf("index belongs to dataset %d", doc.Meta.Dataset)
	}
	doc.Meta.Dataset = dataset
	if doc.Meta.Version == 0 {
		doc.Meta.Version = formatVersion
	}
	if doc.Files == nil {
		doc.Files = make(map[string]*Record)
	}
	for key, rec := range doc.Files {
		if rec == nil {
			return fmt.Errorf("entry %q is null", key)
		}
		if rec.ID == "" {
			rec.ID = key
		}
		if rec.ID != key {
			return fmt.Errorf("entry %q carries id %q", key, rec.ID)
		}
		if err := rec.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the file backing the store
func (s *Store) Path() string {
	return s.path
}

// Meta returns the index header
func (s *Store) Meta() Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Meta
}

// Ceiling returns the configured retry ceiling
func (s *Store) Ceiling() int {
	return s.opts.RetryCeiling
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Files)
}

// Get returns a copy of the record with the given id
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.doc.Files[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Upsert inserts or replaces one record and persists the index.
func (s *Store) Upsert(rec Record) error {
	return s.UpsertMany(rec)
}

// UpsertMany applies all records as one batch with a single persist. An
// existing record keeps its SourcePage and DiscoveredAt. If the write fails
// the in-memory index is rolled back so memory never runs ahead of disk.
func (s *Store) UpsertMany(recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if err := rec.validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make(map[string]*Record, len(recs))
	for _, rec := range recs {
		if _, seen := prev[rec.ID]; !seen {
			prev[rec.ID] = s.doc.Files[rec.ID]
		}
		if old, ok := s.doc.Files[rec.ID]; ok {
			rec.SourcePage = old.SourcePage
			if !old.DiscoveredAt.IsZero() {
				rec.DiscoveredAt = old.DiscoveredAt
			}
		}
		s.doc.Files[rec.ID] = &rec
	}

	if err := s.persist(); err != nil {
		for id, old := range prev {
			if old == nil {
				delete(s.doc.Files, id)
			} else {
				s.doc.Files[id] = old
			}
		}
		return err
	}
	return nil
}

// Insert adds records whose ids are not yet known, as discovered, and
// persists once if anything was added. Known ids are left untouched. It
// returns the ids that were new, in input order.
func (s *Store) Insert(recs ...Record) ([]string, error) {
	s.mu.Lock()
	var fresh []Record
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		if _, ok := s.doc.Files[rec.ID]; ok {
			continue
		}
		rec.Status = StatusDiscovered
		rec.RetryCount = 0
		if rec.DiscoveredAt.IsZero() {
			rec.DiscoveredAt = s.nowFunc()
		}
		fresh = append(fresh, rec)
	}
	s.mu.Unlock()

	if len(fresh) == 0 {
		return nil, nil
	}
	if err := s.UpsertMany(fresh...); err != nil {
		return nil, err
	}
	ids := make([]string, len(fresh))
	for i, rec := range fresh {
		ids[i] = rec.ID
	}
	return ids, nil
}

// AllPending returns records that still need a download attempt: discovered
// ones, and failed ones below the retry ceiling. Ordered by SortKey.
func (s *Store) AllPending() []Record {
	return s.filter(func(r *Record) bool {
		switch r.Status {
		case StatusDiscovered:
			return true
		case StatusFailed:
			return r.RetryCount < s.opts.RetryCeiling
		}
		return false
	})
}

// Exhausted returns failed records that reached the retry ceiling. They are
// excluded from AllPending and need a human decision.
func (s *Store) Exhausted() []Record {
	return s.filter(func(r *Record) bool {
		return r.Status == StatusFailed && r.RetryCount >= s.opts.RetryCeiling
	})
}

// AllByPage returns records first discovered on page
func (s *Store) AllByPage(page int) []Record {
	return s.filter(func(r *Record) bool { return r.SourcePage == page })
}

// WithStatus returns records in the given status
func (s *Store) WithStatus(status Status) []Record {
	return s.filter(func(r *Record) bool { return r.Status == status })
}

// All returns every record
func (s *Store) All() []Record {
	return s.filter(func(*Record) bool { return true })
}

// Counts returns the number of records per status
func (s *Store) Counts() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Status]int)
	for _, rec := range s.doc.Files {
		counts[rec.Status]++
	}
	return counts
}

func (s *Store) filter(keep func(*Record) bool) []Record {
	s.mu.Lock()
	out := make([]Record, 0)
	for _, rec := range s.doc.Files {
		if keep(rec) {
			out = append(out, *rec)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ki, kj := SortKey(out[i].ID), SortKey(out[j].ID)
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// persist must be called with s.mu held
func (s *Store) persist() error {
	s.doc.Meta.UpdatedAt = s.nowFunc()
	if err := checkpoint.WriteJSON(s.path, &s.doc); err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, "persist index", err)
	}
	return nil
}
