// Package csv implements the primary CSV record source. Rows stream one
// at a time; the full input is never buffered.
package csv

import (
	"context"
	enccsv "encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/finvolt/payengine/internal/domain"
	"github.com/finvolt/payengine/internal/money"
	"github.com/finvolt/payengine/internal/source"
)

// Format detects and opens CSV transaction logs. Stateless; safe for
// concurrent use.
type Format struct{}

var formatInstance = &Format{}

// NewFormat returns the shared CSV format instance.
func NewFormat() *Format {
	return formatInstance
}

// Name returns the format identifier.
func (f *Format) Name() string {
	return "csv"
}

// CanParse checks the extension and the header row. The header must name
// the type, client, and tx columns.
func (f *Format) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		return false
	}

	r := enccsv.NewReader(strings.NewReader(string(header)))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	row, err := r.Read()
	if err != nil {
		return false
	}

	cols := make(map[string]bool, len(row))
	for _, field := range row {
		cols[strings.ToLower(strings.TrimSpace(field))] = true
	}
	return cols["type"] && cols["client"] && cols["tx"]
}

// Open validates the header row and returns a streaming source.
func (f *Format) Open(ctx context.Context, path string) (source.Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	r := enccsv.NewReader(file)
	r.TrimLeadingSpace = true
	// Rows have 4 fields for deposits/withdrawals but dispute-family rows
	// may omit the trailing amount entirely.
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read CSV header from %s: %w", path, err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("invalid CSV header in %s: %w", path, err)
	}

	return &csvSource{path: path, file: file, reader: r, cols: cols, row: 1}, nil
}

// columns holds the header positions of the required and optional fields.
type columns struct {
	typ    int
	client int
	tx     int
	amount int // -1 when the column is absent
}

func mapColumns(header []string) (columns, error) {
	cols := columns{typ: -1, client: -1, tx: -1, amount: -1}
	for i, field := range header {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "type":
			cols.typ = i
		case "client":
			cols.client = i
		case "tx":
			cols.tx = i
		case "amount":
			cols.amount = i
		default:
			return cols, fmt.Errorf("unexpected column %q", field)
		}
	}
	if cols.typ < 0 || cols.client < 0 || cols.tx < 0 {
		return cols, fmt.Errorf("header must name type, client, and tx columns, got %v", header)
	}
	return cols, nil
}

type csvSource struct {
	path   string
	file   *os.File
	reader *enccsv.Reader
	cols   columns
	row    int
}

// Next reads and validates one row. Every parse failure here is fatal:
// a corrupted input stream cannot produce a trustworthy ledger.
func (s *csvSource) Next() (domain.Record, error) {
	fields, err := s.reader.Read()
	if err == io.EOF {
		return domain.Record{}, io.EOF
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("%s row %d: %w", s.path, s.row+1, err)
	}
	s.row++

	rec, err := s.parseRow(fields)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%s row %d: %w", s.path, s.row, err)
	}
	return rec, nil
}

func (s *csvSource) parseRow(fields []string) (domain.Record, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	txType, err := domain.ParseTxType(field(s.cols.typ))
	if err != nil {
		return domain.Record{}, err
	}

	client64, err := strconv.ParseUint(field(s.cols.client), 10, 16)
	if err != nil {
		return domain.Record{}, fmt.Errorf("invalid client id %q: %w", field(s.cols.client), err)
	}

	tx64, err := strconv.ParseUint(field(s.cols.tx), 10, 32)
	if err != nil {
		return domain.Record{}, fmt.Errorf("invalid transaction id %q: %w", field(s.cols.tx), err)
	}

	var amount *money.Money
	rawAmount := field(s.cols.amount)
	if txType.HasAmount() {
		if rawAmount == "" {
			return domain.Record{}, fmt.Errorf("%s row is missing an amount", txType)
		}
		m, err := money.Parse(rawAmount)
		if err != nil {
			return domain.Record{}, err
		}
		amount = &m
	} else if rawAmount != "" {
		return domain.Record{}, fmt.Errorf("%s row must not carry an amount, got %q", txType, rawAmount)
	}

	return domain.NewRecord(txType, uint16(client64), uint32(tx64), amount)
}

func (s *csvSource) Close() error {
	return s.file.Close()
}
