// Package source defines the pull-based record source contract and the
// format registry that picks a concrete source for an input file.
package source

import (
	"context"

	"github.com/finvolt/payengine/internal/domain"
)

// Source produces transaction records lazily, one per Next call, in input
// order. Next returns io.EOF when the stream is exhausted; any other error
// is a fatal ingestion failure (unreadable input, malformed row,
// unparsable field) and the run must abort. Sources are finite and not
// restartable mid-stream.
type Source interface {
	// Next returns the next record, or io.EOF at end of stream.
	Next() (domain.Record, error)

	// Close releases underlying resources.
	Close() error
}

// Format is the strategy interface for input file formats.
type Format interface {
	// Name returns the format identifier (e.g. "csv", "ofx", "sqlite").
	Name() string

	// CanParse checks whether this format should handle the file, based
	// on its path and the first bytes of content.
	CanParse(path string, header []byte) bool

	// Open prepares a Source for the file.
	Open(ctx context.Context, path string) (Source, error)
}
