package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("store: record not found")
	ErrValidation = errors.New("store: validation failed")
	ErrStorage    = errors.New("store: storage failure")
)

// RecordStore is the durable collaborator behind the retrieval engine. It
// persists whole logical files of records; the engine never sees paths or locks.
type RecordStore interface {
	// ListFiles returns the names of all logical files (e.g. "global",
	// "conversation-<id>").
	ListFiles(ctx context.Context) ([]string, error)
	// ReadAll returns every record stored in file. A missing file yields no records.
	ReadAll(ctx context.Context, file string) ([]Record, error)
	// WriteAll replaces the contents of file. An empty slice removes the file.
	WriteAll(ctx context.Context, file string, records []Record) error
	Close() error
}
