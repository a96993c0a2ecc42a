// Package pdf extracts plain text from uploaded report PDFs by shelling
// out to poppler's pdftotext.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hemolens/hemolens/internal/core/domain"
	"github.com/hemolens/hemolens/internal/core/ports"
)

// Reader implements ports.DocumentReader via pdftotext.
type Reader struct {
	binary string
}

var _ ports.DocumentReader = (*Reader)(nil)

// NewReader creates a Reader. binary may be a name resolved on PATH or an
// absolute path; empty means "pdftotext".
func NewReader(binary string) *Reader {
	if binary == "" {
		binary = "pdftotext"
	}
	return &Reader{binary: binary}
}

// Read extracts normalized text from the PDF at path. Any failure (missing
// file, corrupt document, extraction error, empty output) wraps
// domain.ErrDocumentUnreadable.
func (r *Reader) Read(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDocumentUnreadable, err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	cmd := exec.CommandContext(ctx, r.binary, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%w: pdftotext failed for %s: %s", domain.ErrDocumentUnreadable, path, msg)
	}

	text := normalize(stdout.String())
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text extracted from %s", domain.ErrDocumentUnreadable, path)
	}
	return text, nil
}

// normalize collapses redundant blank lines so keyword matching and prompt
// construction see compact text.
func normalize(text string) string {
	for strings.Contains(text, "\n\n") {
		text = strings.ReplaceAll(text, "\n\n", "\n")
	}
	return strings.ReplaceAll(text, "\f", "\n")
}
