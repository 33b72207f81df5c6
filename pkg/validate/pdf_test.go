package validate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"docmirror/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a one-page PDF with a correct cross-reference table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf.part")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestValidateAcceptsPDF(t *testing.T) {
	path := writeTemp(t, minimalPDF())
	assert.NoError(t, NewPDF(false).Validate(path))
	assert.NoError(t, NewPDF(true).Validate(path))
}

func TestValidateRejects(t *testing.T) {
	full := minimalPDF()
	tests := map[string][]byte{
		"html error page": []byte("<!DOCTYPE html><html><body>Please verify you are human</body></html>"),
		"tiny":            []byte("%PDF"),
		"truncated":       full[:len(full)/2],
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			err := NewPDF(false).Validate(writeTemp(t, data))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrIntegrity)
		})
	}
}

func TestStructuralValidationCatchesGarbageBody(t *testing.T) {
	data := []byte("%PDF-1.4\nthis is not an object graph at all\n%%EOF\n")
	path := writeTemp(t, data)

	assert.NoError(t, NewPDF(false).Validate(path), "probe only looks at the envelope")

	err := NewPDF(true).Validate(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeIntegrity, errors.TypeOf(err))
}

func TestValidateMissingFile(t *testing.T) {
	err := NewPDF(true).Validate(filepath.Join(t.TempDir(), "gone.pdf"))
	assert.Equal(t, errors.ErrorTypeStorage, errors.TypeOf(err))
}
