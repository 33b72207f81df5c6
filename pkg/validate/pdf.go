// Package validate checks downloaded documents before they are promoted to
// their final name.
package validate

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"docmirror/pkg/errors"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const probeSize = 1024

var (
	pdfHeader = []byte("%PDF-")
	pdfEOF    = []byte("%%EOF")
)

func init() {
	// keep pdfcpu from creating a config directory under $HOME
	model.ConfigPath = "disable"
}

// PDF validates files as PDF documents
type PDF struct {
	conf *model.Configuration
	// Structural runs the full pdfcpu cross-reference validation after the
	// cheap header/trailer probe.
	Structural bool
}

// NewPDF returns a PDF validator. Relaxed validation tolerates the minor
// spec violations common in scanned-document PDFs.
func NewPDF(structural bool) *PDF {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDF{conf: conf, Structural: structural}
}

// Validate returns an integrity error if path is not a complete PDF. HTML
// error pages and truncated transfers are caught by the probe; damaged
// object structure by pdfcpu.
func (v *PDF) Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, "open document", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, "stat document", err)
	}
	if info.Size() < int64(len(pdfHeader)+len(pdfEOF)) {
		return errors.New(errors.ErrorTypeIntegrity, fmt.Sprintf("document too small (%d bytes)", info.Size()))
	}

	head := make([]byte, min(probeSize, info.Size()))
	if _, err := io.ReadFull(f, head); err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, "read document header", err)
	}
	if !bytes.Contains(head, pdfHeader) {
		return errors.New(errors.ErrorTypeIntegrity, "missing PDF header")
	}

	tailLen := min(probeSize, info.Size())
	tail := make([]byte, tailLen)
	if _, err := f.ReadAt(tail, info.Size()-tailLen); err != nil && err != io.EOF {
		return errors.Wrap(errors.ErrorTypeStorage, "read document trailer", err)
	}
	if !bytes.Contains(tail, pdfEOF) {
		return errors.New(errors.ErrorTypeIntegrity, "missing %%EOF marker, document truncated")
	}

	if !v.Structural {
		return nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, "rewind document", err)
	}
	if err := api.Validate(f, v.conf); err != nil {
		return errors.Wrap(errors.ErrorTypeIntegrity, "pdf structure", err)
	}
	return nil
}
