package cursor

import (
	"os"
	"path/filepath"
	"testing"

	"docmirror/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissing(t *testing.T) {
	m := ForDataset(t.TempDir(), 3)
	c, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, c)
	assert.Equal(t, "resume_3.txt", filepath.Base(m.Path()))
}

func TestAdvance(t *testing.T) {
	dir := t.TempDir()
	m := ForDataset(dir, 1)
	_, err := m.Load()
	require.NoError(t, err)

	c, err := m.Advance(10, true)
	require.NoError(t, err)
	assert.Equal(t, Cursor{LastScannedPage: 10}, c)

	for page := 11; page <= 13; page++ {
		c, err = m.Advance(page, false)
		require.NoError(t, err)
	}
	assert.Equal(t, Cursor{LastScannedPage: 13, ConsecutiveEmptyPages: 3}, c)

	reloaded := ForDataset(dir, 1)
	got, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, c, got)

	data, err := os.ReadFile(m.Path())
	require.NoError(t, err)
	assert.Equal(t, "13 3\n", string(data))
}

func TestAdvanceResetsStreak(t *testing.T) {
	m := ForDataset(t.TempDir(), 1)
	_, err := m.Load()
	require.NoError(t, err)

	_, err = m.Advance(1, false)
	require.NoError(t, err)
	_, err = m.Advance(2, false)
	require.NoError(t, err)
	c, err := m.Advance(3, true)
	require.NoError(t, err)
	assert.Equal(t, 0, c.ConsecutiveEmptyPages)
}

func TestAdvanceRequiresLoad(t *testing.T) {
	m := ForDataset(t.TempDir(), 1)
	_, err := m.Advance(1, true)
	assert.Error(t, err)
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Cursor
		corrupt bool
	}{
		{"current format", "42 2\n", Cursor{LastScannedPage: 42, ConsecutiveEmptyPages: 2}, false},
		{"single page number", "220", Cursor{LastScannedPage: 220}, false},
		{"blank file", "\n\n", Cursor{}, false},
		{"text", "page four", Cursor{}, true},
		{"negative page", "-3 0", Cursor{}, true},
		{"too many fields", "1 2 3", Cursor{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			m := ForDataset(dir, 1)
			require.NoError(t, os.WriteFile(m.Path(), []byte(tt.content), 0644))

			c, err := m.Load()
			if tt.corrupt {
				assert.ErrorIs(t, err, errors.ErrCorruptState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestResetAndSet(t *testing.T) {
	m := ForDataset(t.TempDir(), 2)
	require.NoError(t, m.Set(Cursor{LastScannedPage: 8, ConsecutiveEmptyPages: 3}))

	c, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, c.LastScannedPage)

	require.NoError(t, m.Reset())
	c, err = m.Load()
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, c)
}
