package domain

import "context"

// Document is a unit of indexed text.
type Document struct {
	ID   string
	Name string
	Text string
}

// Match is a document returned by a similarity query together with its
// dissimilarity score. Lower distances mean closer matches.
type Match struct {
	Document Document
	Distance float64
}

// Answer is the outcome of a single question.
type Answer struct {
	Text    string
	Sources []string
	Refused bool
}

// File is a raw upload waiting for conversion.
type File struct {
	Name string
	Data []byte
}

// FileError reports a single file that could not be ingested.
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string { return e.Name + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index stores documents and answers nearest-neighbour queries by text.
type Index interface {
	// ReplaceAll discards the current contents and indexes docs.
	ReplaceAll(ctx context.Context, docs []Document) error
	// Query returns up to k matches, most similar first.
	Query(ctx context.Context, text string, k int) ([]Match, error)
	Len() int
}

// Generator produces a free-text answer from a prompt. The output length cap
// is enforced by the implementation.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Converter extracts plain text from a file. The name's extension is the
// format hint.
type Converter interface {
	Convert(ctx context.Context, name string, data []byte) (string, error)
}
