package domain

import "errors"

var (
	// ErrEmptyQuestion indicates a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrUnsupportedFormat indicates a file type no converter handles.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrFileTooLarge indicates an upload above the per-file size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrTooManyFiles indicates an ingestion batch above the file count limit.
	ErrTooManyFiles = errors.New("too many files")

	// ErrEmptyDocument indicates a conversion that produced no text.
	ErrEmptyDocument = errors.New("no text extracted")

	// ErrDuplicateID indicates two documents sharing an ID in one ReplaceAll call.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrInvalidID indicates a document without an ID.
	ErrInvalidID = errors.New("invalid document id")

	// ErrNoDocuments indicates an operation that needs at least one document.
	ErrNoDocuments = errors.New("no documents")
)
