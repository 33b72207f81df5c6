// Package cursor persists how far pagination scanning has progressed for a
// dataset, so an interrupted scan resumes where it stopped.
package cursor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"docmirror/pkg/checkpoint"
	"docmirror/pkg/errors"
)

// Cursor is the scan position of one dataset
type Cursor struct {
	// LastScannedPage is the last page whose discoveries are durable.
	LastScannedPage int
	// ConsecutiveEmptyPages counts trailing pages that produced no new id.
	ConsecutiveEmptyPages int
}

// String renders the on-disk form "<page> <empty>"
func (c Cursor) String() string {
	return fmt.Sprintf("%d %d", c.LastScannedPage, c.ConsecutiveEmptyPages)
}

// Manager reads and advances the cursor file of a dataset
type Manager struct {
	mu      sync.Mutex
	path    string
	current Cursor
	loaded  bool
}

// FileName is the cursor file name for a dataset
func FileName(dataset int) string {
	return fmt.Sprintf("resume_%d.txt", dataset)
}

// NewManager creates a cursor manager for the file at path
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// ForDataset creates a cursor manager inside a dataset directory
func ForDataset(dir string, dataset int) *Manager {
	return NewManager(filepath.Join(dir, FileName(dataset)))
}

// Path returns the cursor file path
func (m *Manager) Path() string {
	return m.path
}

// Load reads the cursor. A missing file yields the zero cursor. A file holding
// a single page number (the older format) loads with an empty streak.
func (m *Manager) Load() (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.current, m.loaded = Cursor{}, true
			return m.current, nil
		}
		return Cursor{}, fmt.Errorf("failed to read cursor: %w", err)
	}

	c, err := parse(string(data))
	if err != nil {
		return Cursor{}, errors.Wrap(errors.ErrorTypeCorruptState, m.path, err)
	}
	m.current, m.loaded = c, true
	return c, nil
}

func parse(content string) (Cursor, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	var line string
	for scanner.Scan() {
		if line = strings.TrimSpace(scanner.Text()); line != "" {
			break
		}
	}
	if line == "" {
		return Cursor{}, nil
	}

	parts := strings.Fields(line)
	if len(parts) > 2 {
		return Cursor{}, fmt.Errorf("unexpected cursor content %q", line)
	}

	page, err := strconv.Atoi(parts[0])
	if err != nil || page < 0 {
		return Cursor{}, fmt.Errorf("invalid page %q", parts[0])
	}
	c := Cursor{LastScannedPage: page}

	if len(parts) == 2 {
		empty, err := strconv.Atoi(parts[1])
		if err != nil || empty < 0 {
			return Cursor{}, fmt.Errorf("invalid empty-page count %q", parts[1])
		}
		c.ConsecutiveEmptyPages = empty
	}
	return c, nil
}

// Advance records that page has been scanned. A page that produced a new id
// resets the empty streak; any other page extends it. The new cursor is
// written atomically before it is returned.
func (m *Manager) Advance(page int, foundNew bool) (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return Cursor{}, fmt.Errorf("cursor %s advanced before load", m.path)
	}

	next := Cursor{LastScannedPage: page}
	if !foundNew {
		next.ConsecutiveEmptyPages = m.current.ConsecutiveEmptyPages + 1
	}
	if err := m.write(next); err != nil {
		return m.current, err
	}
	m.current = next
	return next, nil
}

// Set overwrites the cursor
func (m *Manager) Set(c Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(c); err != nil {
		return err
	}
	m.current, m.loaded = c, true
	return nil
}

// Reset removes the cursor so the next scan starts from the first page
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkpoint.Remove(m.path); err != nil {
		return err
	}
	m.current, m.loaded = Cursor{}, true
	return nil
}

func (m *Manager) write(c Cursor) error {
	err := checkpoint.WriteFile(m.path, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, c.String())
		return err
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, "persist cursor", err)
	}
	return nil
}
