// Package session owns the state of one running instance: the active index,
// the documents it was built from and the question history.
package session

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"qahub/internal/answer"
	"qahub/internal/convert"
	"qahub/internal/domain"
	"qahub/internal/log"
)

const (
	DefaultMaxFiles     = 5
	DefaultMaxFileBytes = 10 << 20
)

// IndexFactory builds an empty index. Each ingestion gets a fresh one.
type IndexFactory func() (domain.Index, error)

// Limits bounds one ingestion batch.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
}

// IngestReport summarises one ingestion.
type IngestReport struct {
	Documents []domain.Document
	Failed    []domain.FileError
}

// snapshot is swapped as a unit so readers always see an index together
// with the documents it holds. users is read-held while a question runs
// against index; retiring takes it exclusively before closing.
type snapshot struct {
	index  domain.Index
	docs   []domain.Document
	users  sync.RWMutex
	closed bool
}

type Session struct {
	answerer  *answer.Answerer
	converter domain.Converter
	newIndex  IndexFactory
	limits    Limits
	logger    *log.Logger

	writeMu sync.Mutex
	current atomic.Pointer[snapshot]

	histMu  sync.Mutex
	history []string
}

// Option customises a Session.
type Option func(*Session)

func WithLimits(l Limits) Option { return func(s *Session) { s.limits = l } }

func WithLogger(l *log.Logger) Option { return func(s *Session) { s.logger = l } }

func WithConverter(c domain.Converter) Option { return func(s *Session) { s.converter = c } }

func New(answerer *answer.Answerer, newIndex IndexFactory, opts ...Option) *Session {
	s := &Session{
		answerer:  answerer,
		converter: convert.NewRegistry(),
		newIndex:  newIndex,
		limits:    Limits{MaxFiles: DefaultMaxFiles, MaxFileBytes: DefaultMaxFileBytes},
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limits.MaxFiles <= 0 {
		s.limits.MaxFiles = DefaultMaxFiles
	}
	if s.limits.MaxFileBytes <= 0 {
		s.limits.MaxFileBytes = DefaultMaxFileBytes
	}
	return s
}

// Limits returns the effective ingestion limits.
func (s *Session) Limits() Limits { return s.limits }

// Ingest converts files and replaces the index with one built from every
// file that converted. A batch above MaxFiles is rejected before anything
// changes. Conversion failures are reported per file; index failures are
// returned and leave the previous index active.
func (s *Session) Ingest(ctx context.Context, files []domain.File) (IngestReport, error) {
	if len(files) > s.limits.MaxFiles {
		return IngestReport{}, fmt.Errorf("%w: %d files, limit is %d", domain.ErrTooManyFiles, len(files), s.limits.MaxFiles)
	}
	results, failed := convert.ConvertAll(ctx, s.converter, files, s.limits.MaxFileBytes)
	for _, f := range failed {
		s.logger.Warn("could not convert file", "file", f.Name, "error", f.Err)
	}
	docs := make([]domain.Document, len(results))
	for i, r := range results {
		docs[i] = domain.Document{ID: docID(i), Name: r.Name, Text: r.Text}
	}
	if err := s.rebuild(ctx, docs); err != nil {
		return IngestReport{Failed: failed}, err
	}
	return IngestReport{Documents: docs, Failed: failed}, nil
}

// IngestTexts replaces the index with already-extracted texts.
func (s *Session) IngestTexts(ctx context.Context, texts []string) ([]domain.Document, error) {
	docs := make([]domain.Document, len(texts))
	for i, t := range texts {
		docs[i] = domain.Document{ID: docID(i), Name: docID(i), Text: t}
	}
	if err := s.rebuild(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Seed replaces the index with the built-in fact set.
func (s *Session) Seed(ctx context.Context) ([]domain.Document, error) {
	return s.IngestTexts(ctx, SeedFacts)
}

func (s *Session) rebuild(ctx context.Context, docs []domain.Document) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if len(docs) == 0 {
		s.swap(nil)
		s.logger.Info("index cleared", "reason", "no documents")
		return nil
	}
	idx, err := s.newIndex()
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := idx.ReplaceAll(ctx, docs); err != nil {
		closeIndex(idx)
		return fmt.Errorf("build index: %w", err)
	}
	s.swap(&snapshot{index: idx, docs: docs})
	s.logger.Info("index rebuilt", "documents", len(docs))
	return nil
}

// swap installs next and closes the previous index once in-flight questions
// against it have finished. Callers hold writeMu.
func (s *Session) swap(next *snapshot) {
	prev := s.current.Swap(next)
	if prev == nil {
		return
	}
	prev.users.Lock()
	prev.closed = true
	prev.users.Unlock()
	closeIndex(prev.index)
}

// acquire read-locks the current snapshot, skipping one retired under us.
func (s *Session) acquire() *snapshot {
	for {
		snap := s.current.Load()
		if snap == nil {
			return nil
		}
		snap.users.RLock()
		if !snap.closed {
			return snap
		}
		snap.users.RUnlock()
	}
}

func closeIndex(idx domain.Index) {
	if c, ok := idx.(io.Closer); ok {
		_ = c.Close()
	}
}

// Ask answers question against the current index and records it in the
// history once an answer (refusals included) was produced.
func (s *Session) Ask(ctx context.Context, question string) (domain.Answer, error) {
	var idx domain.Index
	if snap := s.acquire(); snap != nil {
		defer snap.users.RUnlock()
		idx = snap.index
	}
	ans, err := s.answerer.Ask(ctx, idx, question)
	if err != nil {
		return domain.Answer{}, err
	}
	s.histMu.Lock()
	s.history = append(s.history, question)
	s.histMu.Unlock()
	s.logger.Debug("question answered", "refused", ans.Refused, "sources", len(ans.Sources))
	return ans, nil
}

// Documents returns the documents behind the current index.
func (s *Session) Documents() []domain.Document {
	snap := s.current.Load()
	if snap == nil {
		return []domain.Document{}
	}
	out := make([]domain.Document, len(snap.docs))
	copy(out, snap.docs)
	return out
}

// History returns the questions asked so far, oldest first.
func (s *Session) History() []string {
	s.histMu.Lock()
	defer s.histMu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// Clear drops the index, the documents and the history.
func (s *Session) Clear() {
	s.writeMu.Lock()
	s.swap(nil)
	s.writeMu.Unlock()

	s.histMu.Lock()
	s.history = nil
	s.histMu.Unlock()
	s.logger.Info("session cleared")
}

// ExportHistory writes the history as "Q1: ...\nQ2: ...\n".
func (s *Session) ExportHistory(w io.Writer) error {
	for i, q := range s.History() {
		if _, err := io.WriteString(w, "Q"+strconv.Itoa(i+1)+": "+q+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the current index.
func (s *Session) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.swap(nil)
	return nil
}

func docID(i int) string { return "doc" + strconv.Itoa(i+1) }
