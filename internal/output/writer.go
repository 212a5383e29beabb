// Package output serializes account snapshots to CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/finvolt/payengine/internal/domain"
)

// WriteOptions configures where the summary is written.
type WriteOptions struct {
	FilePath string // Output path (empty = stdout)
}

// header is the fixed output column set.
var header = []string{"client", "available", "held", "total", "locked"}

// WriteSnapshots serializes the snapshots as CSV with amounts at exactly
// four decimal places and locked as a boolean literal.
func WriteSnapshots(snapshots []domain.Snapshot, w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, s := range snapshots {
		row := []string{
			strconv.FormatUint(uint64(s.Client), 10),
			s.Available.String(),
			s.Held.String(),
			s.Total.String(),
			strconv.FormatBool(s.Locked),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for client %d: %w", s.Client, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// WriteSnapshotsToFile writes to the configured file, or stdout when no
// path is set.
func WriteSnapshotsToFile(snapshots []domain.Snapshot, opts WriteOptions) (err error) {
	if opts.FilePath == "" {
		return WriteSnapshots(snapshots, os.Stdout)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteSnapshots(snapshots, f); err != nil {
		return fmt.Errorf("failed to write summary to %s: %w", opts.FilePath, err)
	}
	return nil
}
