package convert

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads the text layer and falls back to printable bytes for
// documents the parser rejects.
func extractPDF(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		if reader, err := r.GetPlainText(); err == nil {
			if out, err := io.ReadAll(reader); err == nil && len(bytes.TrimSpace(out)) > 0 {
				return string(out), nil
			}
		}
	}
	return collapseRuns(printableText(data)), nil
}
