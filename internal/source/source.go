// Package source reads ingestion batches from local paths or any storage
// URL understood by afs.
package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"qahub/internal/domain"
)

var fingerprintKey = []byte("qahub-ingest-fingerprint-key-32b")

// Loader lists and downloads files through an afs service.
type Loader struct {
	fs afs.Service
	// Accept filters files by name. Nil accepts everything.
	Accept func(name string) bool
}

func NewLoader(accept func(name string) bool) *Loader {
	return &Loader{fs: afs.New(), Accept: accept}
}

// Load returns the accepted files at location, sorted by name. A directory
// is read non-recursively; a file location yields that single file.
func (l *Loader) Load(ctx context.Context, location string) ([]domain.File, error) {
	norm, err := Normalize(location)
	if err != nil {
		return nil, err
	}
	objects, err := l.fs.List(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", location, err)
	}
	var files []domain.File
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		name := object.Name()
		if l.Accept != nil && !l.Accept(name) {
			continue
		}
		data, err := l.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", object.URL(), err)
		}
		files = append(files, domain.File{Name: name, Data: data})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// LoadAll concatenates Load over every location.
func (l *Loader) LoadAll(ctx context.Context, locations []string) ([]domain.File, error) {
	var out []domain.File
	for _, loc := range locations {
		files, err := l.Load(ctx, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

// Normalize turns relative and absolute OS paths into file:// URLs and
// leaves URLs with a scheme untouched.
func Normalize(location string) (string, error) {
	norm := location
	if url.Scheme(norm, "") == "" && url.IsRelative(norm) {
		abs, err := filepath.Abs(norm)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path for %s: %w", location, err)
		}
		norm = abs
	}
	if url.Scheme(norm, "") == "" && !url.IsRelative(norm) {
		norm = url.ToFileURL(norm)
	}
	return norm, nil
}

// Fingerprint hashes file names and contents in order. Equal batches give
// equal fingerprints.
func Fingerprint(files []domain.File) (uint64, error) {
	h, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return 0, err
	}
	var size [8]byte
	for _, f := range files {
		binary.LittleEndian.PutUint64(size[:], uint64(len(f.Name)))
		_, _ = h.Write(size[:])
		_, _ = h.Write([]byte(f.Name))
		binary.LittleEndian.PutUint64(size[:], uint64(len(f.Data)))
		_, _ = h.Write(size[:])
		_, _ = h.Write(f.Data)
	}
	return h.Sum64(), nil
}
