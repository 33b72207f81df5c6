package listing

import (
	"strings"
	"testing"

	"docmirror/pkg/config"
	"docmirror/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<!DOCTYPE html>
<html><head><title>Data Set 1 Files</title></head>
<body>
  <nav><a href="/">Home</a><a href="#main">skip</a></nav>
  <ul>
    <li><a href="/epstein/files/DataSet%201/EFTA00000003.pdf">EFTA00000003.pdf</a></li>
    <li><a href="https://www.justice.gov/epstein/files/DataSet%201/EFTA00000001.pdf#page=2">EFTA00000001.pdf</a></li>
    <li><a href="/epstein/files/DataSet%201/EFTA00000003.pdf">duplicate</a></li>
    <li><a href="/epstein/files/DataSet%201/summary.pdf">not an EFTA id</a></li>
    <li><a href="/epstein/files/DataSet%201/EFTA00000004.docx">wrong type</a></li>
    <li><a href="/other/EFTA00000005.pdf">outside collection</a></li>
    <li><a href="javascript:void(0)">noop</a></li>
  </ul>
  <a href="?page=2">Next</a>
</body></html>`

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(config.DefaultConfig().Source)
	require.NoError(t, err)
	return e
}

func TestExtract(t *testing.T) {
	e := newExtractor(t)

	refs, err := e.Extract(strings.NewReader(listingHTML), "https://www.justice.gov/epstein/doj-disclosures/data-set-1-files?page=1", 1)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "EFTA00000003.pdf", refs[0].ID)
	assert.Equal(t, "https://www.justice.gov/epstein/files/DataSet%201/EFTA00000003.pdf", refs[0].URL)
	assert.Equal(t, 1, refs[0].Page)

	assert.Equal(t, "EFTA00000001.pdf", refs[1].ID)
	assert.NotContains(t, refs[1].URL, "#")
}

func TestExtractEmptyPage(t *testing.T) {
	e := newExtractor(t)
	refs, err := e.Extract(strings.NewReader(`<html><body><p>No results.</p></body></html>`), "", 40)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestExtractChallenge(t *testing.T) {
	e := newExtractor(t)
	page := `<html><head><title>Just a moment</title></head><body>Please verify you are human to continue.</body></html>`

	_, err := e.Extract(strings.NewReader(page), "", 3)
	require.Error(t, err)
	assert.True(t, errors.IsChallenge(err))
	assert.True(t, e.IsChallengeHTML(strings.NewReader(page)))
	assert.False(t, e.IsChallengeHTML(strings.NewReader(listingHTML)))
}

func TestExtractLinksWinOverMarkers(t *testing.T) {
	e := newExtractor(t)
	page := `<html><body>captcha research notes
<a href="/epstein/files/EFTA00000009.pdf">x</a></body></html>`

	refs, err := e.Extract(strings.NewReader(page), "", 1)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestExtractWithoutIDPattern(t *testing.T) {
	cfg := config.DefaultConfig().Source
	cfg.IDPattern = ""
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	refs, err := e.Extract(strings.NewReader(listingHTML), "", 1)
	require.NoError(t, err)
	assert.Len(t, refs, 3)
}

func TestNewExtractorRejectsBadPattern(t *testing.T) {
	cfg := config.DefaultConfig().Source
	cfg.IDPattern = "(["
	_, err := NewExtractor(cfg)
	assert.Error(t, err)
}
