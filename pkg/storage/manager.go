package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docmirror/pkg/errors"
)

// Options configure file naming inside a dataset directory
type Options struct {
	// TempSuffix is appended to the final name while a download is in flight.
	TempSuffix string
	// Extension limits ListDocuments to files of this type. Empty lists all.
	Extension string
}

// Manager owns the files of one dataset directory. A document is written to
// "<id><TempSuffix>" and only renamed to "<id>" once fully written and
// verified, so a file under its final name is always complete.
type Manager struct {
	outputDir string
	opts      Options
}

// WriteResult describes a stored document
type WriteResult struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// VerifyFunc inspects a fully written temp file before it is promoted
type VerifyFunc func(path string) error

// NewManager creates a new storage manager
func NewManager(outputDir string, opts Options) (*Manager, error) {
	if opts.TempSuffix == "" {
		opts.TempSuffix = ".part"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, "create output directory", err)
	}
	return &Manager{outputDir: outputDir, opts: opts}, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// TempSuffix returns the reserved in-flight suffix
func (m *Manager) TempSuffix() string {
	return m.opts.TempSuffix
}

// FinalPath returns the path of a completed document
func (m *Manager) FinalPath(id string) string {
	return filepath.Join(m.outputDir, id)
}

// TempPath returns the path a document is staged at
func (m *Manager) TempPath(id string) string {
	return m.FinalPath(id) + m.opts.TempSuffix
}

// checkID rejects ids that would escape the directory or collide with temps
func (m *Manager) checkID(id string) error {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id || strings.ContainsAny(id, `/\`) {
		return errors.New(errors.ErrorTypeStorage, fmt.Sprintf("unsafe document id %q", id))
	}
	if strings.HasSuffix(id, m.opts.TempSuffix) {
		return errors.New(errors.ErrorTypeStorage, fmt.Sprintf("document id %q ends with the temp suffix", id))
	}
	return nil
}

// Save streams r to the temp path, checks the byte count against
// expectedSize (when positive), runs verify, and renames to the final path.
// On any failure the temp file is removed and the final path is untouched.
func (m *Manager) Save(ctx context.Context, id string, r io.Reader, expectedSize int64, verify VerifyFunc) (*WriteResult, error) {
	if err := m.checkID(id); err != nil {
		return nil, err
	}

	finalPath := m.FinalPath(id)
	tempPath := m.TempPath(id)

	out, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, "create temporary file", err)
	}

	hasher := sha256.New()
	src := &trackingReader{ctx: ctx, r: r}
	written, copyErr := io.Copy(io.MultiWriter(out, hasher), src)

	var syncErr error
	if copyErr == nil {
		syncErr = out.Sync()
	}
	closeErr := out.Close()

	fail := func(err error) (*WriteResult, error) {
		os.Remove(tempPath)
		return nil, err
	}

	switch {
	case copyErr != nil && src.err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		return fail(errors.Wrap(errors.TypeOf(src.err), "read document body", src.err))
	case copyErr != nil:
		return fail(errors.Wrap(errors.ErrorTypeStorage, "write document data", copyErr))
	case syncErr != nil:
		return fail(errors.Wrap(errors.ErrorTypeStorage, "sync document data", syncErr))
	case closeErr != nil:
		return fail(errors.Wrap(errors.ErrorTypeStorage, "close document file", closeErr))
	}

	if written == 0 {
		return fail(errors.New(errors.ErrorTypeIntegrity, "empty document body"))
	}
	if expectedSize > 0 && written != expectedSize {
		return fail(errors.New(errors.ErrorTypeNetwork,
			fmt.Sprintf("truncated document: got %d of %d bytes", written, expectedSize)))
	}

	if verify != nil {
		if err := verify(tempPath); err != nil {
			if errors.TypeOf(err) == errors.ErrorTypeUnknown {
				err = errors.Wrap(errors.ErrorTypeIntegrity, "verify document", err)
			}
			return fail(err)
		}
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		return fail(errors.Wrap(errors.ErrorTypeStorage, "rename temporary file", err))
	}

	return &WriteResult{
		Path:   finalPath,
		Bytes:  written,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// trackingReader remembers read-side failures so they are not mistaken for
// disk errors, and stops early when ctx is cancelled.
type trackingReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		t.err = err
		return 0, err
	}
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// Size returns the size of a completed document. exists is false when the
// final file is missing.
func (m *Manager) Size(id string) (size int64, exists bool, err error) {
	if err := m.checkID(id); err != nil {
		return 0, false, err
	}
	info, err := os.Stat(m.FinalPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(errors.ErrorTypeStorage, "stat document", err)
	}
	if info.IsDir() {
		return 0, false, nil
	}
	return info.Size(), true, nil
}

// HasComplete reports whether a non-empty final file exists for id
func (m *Manager) HasComplete(id string) bool {
	size, exists, err := m.Size(id)
	return err == nil && exists && size > 0
}

// ListDocuments returns the names of final documents in the directory, sorted.
// Temp files and state files are excluded.
func (m *Manager) ListDocuments() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, "read directory", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, m.opts.TempSuffix) {
			continue
		}
		if m.opts.Extension != "" && !strings.EqualFold(filepath.Ext(name), m.opts.Extension) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SweepTemp deletes leftover temp files from interrupted downloads. Only
// names carrying the reserved suffix are touched.
func (m *Manager) SweepTemp() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, "read directory", err)
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), m.opts.TempSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(m.outputDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, errors.Wrap(errors.ErrorTypeStorage, "remove stale temp file", err)
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

// Checksum hashes a completed document in place
func (m *Manager) Checksum(id string) (*WriteResult, error) {
	if err := m.checkID(id); err != nil {
		return nil, err
	}
	path := m.FinalPath(id)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, "open document", err)
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, "read document", err)
	}
	return &WriteResult{Path: path, Bytes: n, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}
