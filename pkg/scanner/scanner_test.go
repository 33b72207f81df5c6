package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docmirror/pkg/cursor"
	"docmirror/pkg/errors"
	"docmirror/pkg/index"
	"docmirror/pkg/logger"
	"docmirror/pkg/source"
)

// fakeLister serves pages from a map; pages past the map are empty
type fakeLister struct {
	pages   map[int][]string
	fail    map[int]error
	fetched []int
}

func (f *fakeLister) FetchPage(ctx context.Context, page int) ([]source.Ref, error) {
	f.fetched = append(f.fetched, page)
	if err, ok := f.fail[page]; ok {
		return nil, err
	}
	var refs []source.Ref
	for _, id := range f.pages[page] {
		refs = append(refs, source.Ref{ID: id, URL: "https://example.test/files/" + id, Page: page})
	}
	return refs, nil
}

// growing returns n pages of fresh ids followed by pages that repeat page 1
func growing(n int) map[int][]string {
	pages := make(map[int][]string)
	for p := 1; p <= n; p++ {
		pages[p] = []string{fmt.Sprintf("EFTA%08d.pdf", p*10), fmt.Sprintf("EFTA%08d.pdf", p*10+1)}
	}
	for p := n + 1; p <= n+20; p++ {
		pages[p] = pages[1]
	}
	return pages
}

type fixture struct {
	dir    string
	store  *index.Store
	cursor *cursor.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return reopen(t, dir)
}

func reopen(t *testing.T, dir string) *fixture {
	t.Helper()
	store, err := index.Open(index.PathFor(dir, 1), 1, index.Options{}, nil)
	require.NoError(t, err)
	return &fixture{dir: dir, store: store, cursor: cursor.ForDataset(dir, 1)}
}

func (f *fixture) scanner(lister source.Lister, log logger.Logger) *Scanner {
	return New(f.store, f.cursor, lister, Options{Dataset: 1, EmptyPageThreshold: 3, FetchAttempts: 2, RetryDelay: time.Millisecond}, log, nil)
}

func TestScanStopsAfterEmptyStreak(t *testing.T) {
	f := newFixture(t)
	lister := &fakeLister{pages: growing(10)}

	res, err := f.scanner(lister, nil).Scan(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Exhausted)
	assert.Equal(t, 13, res.LastPage)
	assert.Equal(t, 13, res.PagesScanned)
	assert.Equal(t, 20, res.Discovered)
	assert.Equal(t, 20, f.store.Len())

	c, err := cursor.ForDataset(f.dir, 1).Load()
	require.NoError(t, err)
	assert.Equal(t, cursor.Cursor{LastScannedPage: 13, ConsecutiveEmptyPages: 3}, c)

	rec, ok := f.store.Get("EFTA00000070.pdf")
	require.True(t, ok)
	assert.Equal(t, 7, rec.SourcePage)
	assert.Equal(t, index.StatusDiscovered, rec.Status)
}

func TestScanResumesFromCursor(t *testing.T) {
	f := newFixture(t)
	lister := &fakeLister{pages: growing(10), fail: map[int]error{
		8: errors.FromStatus(401, "page 8"),
	}}

	_, err := f.scanner(lister, nil).Scan(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAuthExpired(err))
	assert.Equal(t, 14, f.store.Len())

	// A fresh process picks up at the last durable page.
	f2 := reopen(t, f.dir)
	lister2 := &fakeLister{pages: growing(10)}
	log := logger.NewTestLogger()
	res, err := f2.scanner(lister2, log).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, res.StartPage)
	assert.Equal(t, 7, lister2.fetched[0])
	assert.NotContains(t, lister2.fetched, 1)
	assert.Equal(t, 6, res.Discovered, "pages 8-10 only")
	assert.Equal(t, 20, f2.store.Len())
	assert.Equal(t, 13, res.LastPage)
	assert.Len(t, log.GetEvents(logger.EventDiscovered), 3)
}

func TestScanIdempotentWhenNothingChanged(t *testing.T) {
	f := newFixture(t)
	_, err := f.scanner(&fakeLister{pages: growing(10)}, nil).Scan(context.Background())
	require.NoError(t, err)

	before := f.store.All()
	lister := &fakeLister{pages: growing(10)}
	res, err := f.scanner(lister, nil).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Discovered)
	assert.True(t, res.Exhausted)
	assert.Equal(t, before, f.store.All())
	assert.Equal(t, []int{13, 14, 15}, lister.fetched, "the tail pass starts at the cursor")

	c, err := f.cursor.Load()
	require.NoError(t, err)
	assert.Equal(t, cursor.Cursor{LastScannedPage: 13, ConsecutiveEmptyPages: 3}, c, "cursor does not drift")

	// A third run walks exactly the same pages.
	lister = &fakeLister{pages: growing(10)}
	_, err = f.scanner(lister, nil).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{13, 14, 15}, lister.fetched)
}

func TestScanPicksUpGrowthAtTail(t *testing.T) {
	f := newFixture(t)
	_, err := f.scanner(&fakeLister{pages: growing(10)}, nil).Scan(context.Background())
	require.NoError(t, err)

	// New documents were published past the last scanned page.
	pages := growing(10)
	pages[14] = []string{"EFTA00000140.pdf", "EFTA00000141.pdf"}
	lister := &fakeLister{pages: pages}
	res, err := f.scanner(lister, nil).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 13, res.StartPage)
	assert.Equal(t, []int{13, 14, 15, 16, 17}, lister.fetched)
	assert.Equal(t, 2, res.Discovered)
	assert.Equal(t, 17, res.LastPage)
	assert.Equal(t, 22, f.store.Len())

	rec, ok := f.store.Get("EFTA00000140.pdf")
	require.True(t, ok)
	assert.Equal(t, 14, rec.SourcePage)

	c, err := f.cursor.Load()
	require.NoError(t, err)
	assert.Equal(t, cursor.Cursor{LastScannedPage: 17, ConsecutiveEmptyPages: 3}, c)
}

func TestScanFinishedCursorNeverGoesBack(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cursor.Set(cursor.Cursor{LastScannedPage: 7, ConsecutiveEmptyPages: 3}))

	pages := growing(10)
	for p := 11; p <= 30; p++ {
		delete(pages, p)
	}
	lister := &fakeLister{pages: pages}
	res, err := f.scanner(lister, nil).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, res.StartPage)
	require.NotEmpty(t, lister.fetched)
	for _, p := range lister.fetched {
		assert.GreaterOrEqual(t, p, 7, "pages below the cursor are never fetched")
	}
	assert.Equal(t, []int{7, 8, 9, 10, 11, 12, 13}, lister.fetched)
	assert.Equal(t, 8, res.Discovered, "pages 7-10")
	assert.True(t, res.Exhausted)
}

func TestScanRereadPageDoesNotDoubleCount(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cursor.Set(cursor.Cursor{LastScannedPage: 11, ConsecutiveEmptyPages: 1}))
	_, err := f.store.Insert(
		index.Record{ID: "EFTA00000010.pdf", SourcePage: 1},
		index.Record{ID: "EFTA00000011.pdf", SourcePage: 1},
	)
	require.NoError(t, err)

	lister := &fakeLister{pages: growing(10)}
	res, err := f.scanner(lister, nil).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{11, 12, 13}, lister.fetched)
	assert.Equal(t, 13, res.LastPage)
}

func TestScanInterruptedByPersistentFailure(t *testing.T) {
	f := newFixture(t)
	lister := &fakeLister{pages: growing(10), fail: map[int]error{
		4: errors.FromStatus(503, "page 4"),
	}}

	res, err := f.scanner(lister, nil).Scan(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 3, res.LastPage)
	assert.Equal(t, []int{1, 2, 3, 4, 4}, lister.fetched)

	c, err := f.cursor.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, c.LastScannedPage)
}

func TestScanTreatsMissingPageAsEmpty(t *testing.T) {
	f := newFixture(t)
	lister := &fakeLister{pages: growing(2), fail: map[int]error{
		3: errors.FromStatus(404, "page 3"),
	}}

	res, err := f.scanner(lister, nil).Scan(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 5, res.LastPage)
}

func TestScanChallengeLeavesCursor(t *testing.T) {
	f := newFixture(t)
	lister := &fakeLister{pages: growing(10), fail: map[int]error{
		1: errors.New(errors.ErrorTypeChallenge, "verify you are human"),
	}}

	_, err := f.scanner(lister, nil).Scan(context.Background())
	assert.True(t, errors.IsChallenge(err))
	assert.Equal(t, []int{1}, lister.fetched, "challenges are not retried")
	assert.NoFileExists(t, filepath.Join(f.dir, cursor.FileName(1)))
}

func TestScanPageCap(t *testing.T) {
	f := newFixture(t)
	s := New(f.store, f.cursor, &fakeLister{pages: growing(10)}, Options{Dataset: 1, MaxPages: 4}, nil, nil)

	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.True(t, res.HitPageCap)
	assert.Equal(t, 4, res.LastPage)
}

func TestScanCorruptCursor(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, writeFile(f.cursor.Path(), "not a cursor"))

	_, err := f.scanner(&fakeLister{}, nil).Scan(context.Background())
	assert.ErrorIs(t, err, errors.ErrCorruptState)
}

func TestScanCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.scanner(&fakeLister{pages: growing(3)}, nil).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
