// Package convert extracts plain text from uploaded files. The file
// extension selects the extractor.
package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"qahub/internal/domain"
)

// Extractor turns raw file bytes into text.
type Extractor func(data []byte) (string, error)

// Registry maps lower-case extensions (with the leading dot) to extractors.
type Registry struct {
	extractors map[string]Extractor
}

var _ domain.Converter = (*Registry)(nil)

// NewRegistry returns a registry with every built-in format registered.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	for _, ext := range []string{".txt", ".md", ".markdown", ".csv", ".json"} {
		r.Register(ext, extractPlain)
	}
	r.Register(".pdf", extractPDF)
	r.Register(".docx", extractDOCX)
	r.Register(".doc", extractDOC)
	r.Register(".xlsx", extractXLSX)
	r.Register(".xls", extractXLS)
	return r
}

// Register adds or replaces the extractor for ext.
func (r *Registry) Register(ext string, fn Extractor) {
	r.extractors[strings.ToLower(ext)] = fn
}

// Supports reports whether name has a registered extension.
func (r *Registry) Supports(name string) bool {
	_, ok := r.extractors[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Convert extracts the text of one file.
func (r *Registry) Convert(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := r.extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	text, err := fn(data)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrEmptyDocument
	}
	return text, nil
}

// Result is one successfully converted file.
type Result struct {
	Name string
	Text string
}

// ConvertAll converts files one by one. A file above maxBytes or one that
// fails to convert is reported in the returned errors and skipped; the rest
// of the batch still converts. Non-positive maxBytes disables the size check.
func ConvertAll(ctx context.Context, conv domain.Converter, files []domain.File, maxBytes int64) ([]Result, []domain.FileError) {
	var (
		results []Result
		failed  []domain.FileError
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			failed = append(failed, domain.FileError{Name: f.Name, Err: err})
			continue
		}
		if maxBytes > 0 && int64(len(f.Data)) > maxBytes {
			failed = append(failed, domain.FileError{Name: f.Name, Err: domain.ErrFileTooLarge})
			continue
		}
		text, err := conv.Convert(ctx, f.Name, f.Data)
		if err != nil {
			failed = append(failed, domain.FileError{Name: f.Name, Err: err})
			continue
		}
		results = append(results, Result{Name: f.Name, Text: text})
	}
	return results, failed
}
