// Package ofx implements an OFX/QFX record source. Bank and credit-card
// statements carry plain credits and debits, which map to deposits and
// withdrawals; OFX has no dispute vocabulary, so dispute-family records
// never originate here.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/finvolt/payengine/internal/domain"
	"github.com/finvolt/payengine/internal/money"
	"github.com/finvolt/payengine/internal/source"
)

// Format detects and opens OFX/QFX statements. Stateless; safe for
// concurrent use.
type Format struct{}

var formatInstance = &Format{}

// NewFormat returns the shared OFX format instance.
func NewFormat() *Format {
	return formatInstance
}

// Name returns the format identifier.
func (f *Format) Name() string {
	return "ofx"
}

// CanParse checks the extension and looks for OFX header markers in both
// the v1 SGML and v2 XML flavors.
func (f *Format) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Open parses the document and returns a source over its transactions.
// ofxgo offers no streaming API, so the statement is decoded up front and
// records are handed out one per Next; the pull contract toward the
// ledger is unchanged.
func (f *Format) Open(ctx context.Context, path string) (source.Source, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file %s (%d bytes): %w", path, len(content), err)
	}

	records, err := extractRecords(response)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ofxSource{records: records}, nil
}

func extractRecords(resp *ofxgo.Response) ([]domain.Record, error) {
	if len(resp.CreditCard) > 0 {
		ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
		}
		if ccStmt.BankTranList == nil {
			return nil, fmt.Errorf("credit card statement has no transaction list")
		}
		return convertTransactions(ccStmt.CCAcctFrom.AcctID.String(), ccStmt.BankTranList)
	}

	if len(resp.Bank) > 0 {
		bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
		}
		if bankStmt.BankTranList == nil {
			return nil, fmt.Errorf("bank statement has no transaction list")
		}
		return convertTransactions(bankStmt.BankAcctFrom.AcctID.String(), bankStmt.BankTranList)
	}

	return nil, fmt.Errorf("no bank or credit card statement found (creditcard: %d, bank: %d, investment: %d)",
		len(resp.CreditCard), len(resp.Bank), len(resp.InvStmt))
}

func convertTransactions(accountID string, tranList *ofxgo.TransactionList) ([]domain.Record, error) {
	if accountID == "" {
		return nil, fmt.Errorf("statement is missing an account id")
	}
	client := clientID(accountID)

	records := make([]domain.Record, 0, len(tranList.Transactions))
	for i, txn := range tranList.Transactions {
		rec, err := convertTransaction(client, txn)
		if err != nil {
			return nil, fmt.Errorf("transaction at index %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func convertTransaction(client uint16, txn ofxgo.Transaction) (domain.Record, error) {
	fitID := txn.FiTID.String()
	if fitID == "" {
		return domain.Record{}, fmt.Errorf("transaction is missing the FITID field")
	}

	// TrnAmt wraps big.Rat; FloatString(4) renders it at exactly the
	// ledger's fixed-point precision without a float64 round trip.
	amount, err := money.Parse(txn.TrnAmt.FloatString(money.Places))
	if err != nil {
		return domain.Record{}, fmt.Errorf("transaction %s: %w", fitID, err)
	}
	if amount.Equal(money.Zero) {
		return domain.Record{}, fmt.Errorf("transaction %s has a zero amount", fitID)
	}

	// Positive amounts are credits (deposits), negative are debits
	// (withdrawals by their unsigned magnitude).
	txType := domain.TxDeposit
	if amount.IsNegative() {
		txType = domain.TxWithdrawal
		amount = money.Zero.Sub(amount)
	}

	return domain.NewRecord(txType, client, txID(fitID), &amount)
}

// clientID derives a stable uint16 client id from the statement's account
// id; OFX account ids are free-form strings while the ledger keys clients
// numerically.
func clientID(accountID string) uint16 {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return uint16(h.Sum32())
}

// txID derives a stable uint32 transaction id from the FITID.
func txID(fitID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(fitID))
	return h.Sum32()
}

type ofxSource struct {
	records []domain.Record
	pos     int
}

func (s *ofxSource) Next() (domain.Record, error) {
	if s.pos >= len(s.records) {
		return domain.Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *ofxSource) Close() error {
	return nil
}
