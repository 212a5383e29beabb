// Package sqlite implements a record source over a SQLite database, so
// batch exports can be replayed without converting them to CSV first. It
// reads a transactions table in rowid order, which preserves insertion
// order; the stream contract requires input order to be authoritative.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "modernc.org/sqlite"

	"github.com/finvolt/payengine/internal/domain"
	"github.com/finvolt/payengine/internal/money"
	"github.com/finvolt/payengine/internal/source"
)

// sqliteMagic is the 16-byte header every SQLite 3 database starts with.
var sqliteMagic = []byte("SQLite format 3\x00")

// Format detects and opens SQLite transaction databases.
type Format struct{}

var formatInstance = &Format{}

// NewFormat returns the shared SQLite format instance.
func NewFormat() *Format {
	return formatInstance
}

// Name returns the format identifier.
func (f *Format) Name() string {
	return "sqlite"
}

// CanParse checks for the SQLite magic header; the extension is
// irrelevant since the magic is definitive.
func (f *Format) CanParse(path string, header []byte) bool {
	return bytes.HasPrefix(header, sqliteMagic)
}

// Open starts a streaming query over the transactions table. Expected
// schema: transactions(type TEXT, client INTEGER, tx INTEGER, amount TEXT),
// with amount NULL or empty for dispute-family rows.
func (f *Format) Open(ctx context.Context, path string) (source.Source, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT type, client, tx, amount FROM transactions ORDER BY rowid`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query transactions from %s: %w", path, err)
	}

	return &sqliteSource{path: path, db: db, rows: rows}, nil
}

type sqliteSource struct {
	path string
	db   *sql.DB
	rows *sql.Rows
	row  int
}

// Next scans one row. Scan and validation failures are fatal, matching
// the schema-error tier: a corrupted table invalidates the whole run.
func (s *sqliteSource) Next() (domain.Record, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return domain.Record{}, fmt.Errorf("%s: row iteration failed: %w", s.path, err)
		}
		return domain.Record{}, io.EOF
	}
	s.row++

	var (
		rawType   string
		client    int64
		tx        int64
		rawAmount sql.NullString
	)
	if err := s.rows.Scan(&rawType, &client, &tx, &rawAmount); err != nil {
		return domain.Record{}, fmt.Errorf("%s row %d: %w", s.path, s.row, err)
	}

	rec, err := buildRecord(rawType, client, tx, rawAmount)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%s row %d: %w", s.path, s.row, err)
	}
	return rec, nil
}

func buildRecord(rawType string, client, tx int64, rawAmount sql.NullString) (domain.Record, error) {
	txType, err := domain.ParseTxType(rawType)
	if err != nil {
		return domain.Record{}, err
	}

	if client < 0 || client > 0xFFFF {
		return domain.Record{}, fmt.Errorf("client id %d outside uint16 range", client)
	}
	if tx < 0 || tx > 0xFFFFFFFF {
		return domain.Record{}, fmt.Errorf("transaction id %d outside uint32 range", tx)
	}

	var amount *money.Money
	hasAmount := rawAmount.Valid && rawAmount.String != ""
	if txType.HasAmount() {
		if !hasAmount {
			return domain.Record{}, fmt.Errorf("%s row is missing an amount", txType)
		}
		m, err := money.Parse(rawAmount.String)
		if err != nil {
			return domain.Record{}, err
		}
		amount = &m
	} else if hasAmount {
		return domain.Record{}, fmt.Errorf("%s row must not carry an amount, got %q", txType, rawAmount.String)
	}

	return domain.NewRecord(txType, uint16(client), uint32(tx), amount)
}

func (s *sqliteSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return rowsErr
}
