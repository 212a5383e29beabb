// Package ledger implements the account-state engine: it owns the
// client → account and transaction → disputable-record mappings, applies
// input records strictly in stream order, and produces the final account
// snapshots. It is single-threaded by contract; the run loop is the only
// mutator.
package ledger

import (
	"fmt"
	"sort"

	"github.com/finvolt/payengine/internal/domain"
	"github.com/finvolt/payengine/internal/money"
)

// RuleError is a transaction-level rule violation: insufficient funds,
// unknown or mismatched ids, duplicate transaction ids, illegal dispute
// transitions, or writes against a locked account. The run loop discards
// these and keeps processing; they are not fatal by design, because one
// bad record must not halt the ledger for other clients.
type RuleError struct {
	Tx     uint32
	Client uint16
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("transaction %d (client %d) rejected: %s", e.Tx, e.Client, e.Reason)
}

func ruleErrf(tx uint32, client uint16, format string, args ...any) error {
	return &RuleError{Tx: tx, Client: client, Reason: fmt.Sprintf(format, args...)}
}

// account is the mutable per-client state. Total is never stored; it is
// derived as available + held at snapshot time.
type account struct {
	available money.Money
	held      money.Money
	locked    bool
}

// txRecord is the disputable-transaction metadata kept for every accepted
// deposit and withdrawal. Records are never deleted: terminal dispute
// states must stay visible so a transaction id cannot re-enter the
// dispute lifecycle.
type txRecord struct {
	client uint16
	amount money.Money
	state  domain.DisputeState
}

// Ledger owns all account and transaction state. Neither map escapes by
// reference; callers only see value snapshots.
type Ledger struct {
	accounts map[uint16]*account
	txs      map[uint32]*txRecord
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		accounts: make(map[uint16]*account),
		txs:      make(map[uint32]*txRecord),
	}
}

// Apply processes one record. A returned *RuleError means the record was
// rejected and the ledger is unchanged; any other error is an engine bug.
func (l *Ledger) Apply(rec domain.Record) error {
	switch rec.Type {
	case domain.TxDeposit:
		return l.deposit(rec.Client, rec.Tx, *rec.Amount)
	case domain.TxWithdrawal:
		return l.withdraw(rec.Client, rec.Tx, *rec.Amount)
	case domain.TxDispute:
		return l.dispute(rec.Client, rec.Tx)
	case domain.TxResolve:
		return l.resolve(rec.Client, rec.Tx)
	case domain.TxChargeback:
		return l.chargeback(rec.Client, rec.Tx)
	}
	// Sources validate the type tag before constructing a Record, so an
	// unhandled type here means a source bug, not bad input.
	return fmt.Errorf("unhandled transaction type %q (source bug)", rec.Type)
}

// getOrCreate materializes the account on first reference. Only deposits
// and withdrawals call this; dispute-family records resolve the owning
// account through the transaction record instead, so a dispute against an
// unknown id never creates an empty account.
func (l *Ledger) getOrCreate(client uint16) *account {
	acct, ok := l.accounts[client]
	if !ok {
		acct = &account{}
		l.accounts[client] = acct
	}
	return acct
}

func (l *Ledger) deposit(client uint16, tx uint32, amount money.Money) error {
	acct := l.getOrCreate(client)
	if acct.locked {
		return ruleErrf(tx, client, "account is locked")
	}
	if _, exists := l.txs[tx]; exists {
		return ruleErrf(tx, client, "duplicate transaction id")
	}
	if !amount.IsPositive() {
		return ruleErrf(tx, client, "amount must be positive, got %s", amount)
	}

	acct.available = acct.available.Add(amount)
	l.txs[tx] = &txRecord{client: client, amount: amount, state: domain.StateUndisputed}
	return nil
}

func (l *Ledger) withdraw(client uint16, tx uint32, amount money.Money) error {
	acct := l.getOrCreate(client)
	if acct.locked {
		return ruleErrf(tx, client, "account is locked")
	}
	if _, exists := l.txs[tx]; exists {
		return ruleErrf(tx, client, "duplicate transaction id")
	}
	if !amount.IsPositive() {
		return ruleErrf(tx, client, "amount must be positive, got %s", amount)
	}
	if acct.available.LessThan(amount) {
		return ruleErrf(tx, client, "insufficient funds: available %s, requested %s", acct.available, amount)
	}

	acct.available = acct.available.Sub(amount)
	l.txs[tx] = &txRecord{client: client, amount: amount, state: domain.StateUndisputed}
	return nil
}

// dispute moves the disputed amount from available to held. The move
// direction is always available → held, whether the original transaction
// was a deposit or a withdrawal; the held amount equals the record's
// unsigned magnitude. Locked accounts still process disputes.
func (l *Ledger) dispute(client uint16, tx uint32) error {
	rec, err := l.lookup(client, tx)
	if err != nil {
		return err
	}
	if !domain.CanTransition(rec.state, domain.StateDisputed) {
		return ruleErrf(tx, client, "cannot dispute transaction in state %s", rec.state)
	}

	acct := l.accounts[rec.client]
	// Holding more than is available would drive available negative,
	// violating the non-negative balance invariant.
	if acct.available.LessThan(rec.amount) {
		return ruleErrf(tx, client, "insufficient available funds to hold: available %s, disputed %s", acct.available, rec.amount)
	}

	acct.available = acct.available.Sub(rec.amount)
	acct.held = acct.held.Add(rec.amount)
	rec.state = domain.StateDisputed
	return nil
}

// resolve reverses the dispute move, restoring funds to their pre-dispute
// location. Resolved is terminal: the transaction can never be disputed
// again.
func (l *Ledger) resolve(client uint16, tx uint32) error {
	rec, err := l.lookup(client, tx)
	if err != nil {
		return err
	}
	if !domain.CanTransition(rec.state, domain.StateResolved) {
		return ruleErrf(tx, client, "cannot resolve transaction in state %s", rec.state)
	}

	acct := l.accounts[rec.client]
	acct.held = acct.held.Sub(rec.amount)
	acct.available = acct.available.Add(rec.amount)
	rec.state = domain.StateResolved
	return nil
}

// chargeback withdraws the held amount and permanently locks the account.
// It is legal directly from Disputed; a prior resolve is not required.
func (l *Ledger) chargeback(client uint16, tx uint32) error {
	rec, err := l.lookup(client, tx)
	if err != nil {
		return err
	}
	if !domain.CanTransition(rec.state, domain.StateChargedBack) {
		return ruleErrf(tx, client, "cannot charge back transaction in state %s", rec.state)
	}

	acct := l.accounts[rec.client]
	acct.held = acct.held.Sub(rec.amount)
	acct.locked = true
	rec.state = domain.StateChargedBack
	return nil
}

// lookup resolves a dispute-family reference. Unknown ids and client
// mismatches are rule violations; neither materializes an account.
func (l *Ledger) lookup(client uint16, tx uint32) (*txRecord, error) {
	rec, ok := l.txs[tx]
	if !ok {
		return nil, ruleErrf(tx, client, "no such transaction")
	}
	if rec.client != client {
		return nil, ruleErrf(tx, client, "transaction belongs to client %d", rec.client)
	}
	return rec, nil
}

// Snapshots returns one snapshot per account in ascending client-id order.
// Sorted output keeps runs diff-friendly; the output contract itself does
// not require an order.
func (l *Ledger) Snapshots() []domain.Snapshot {
	clients := make([]uint16, 0, len(l.accounts))
	for client := range l.accounts {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })

	snapshots := make([]domain.Snapshot, 0, len(clients))
	for _, client := range clients {
		acct := l.accounts[client]
		snapshots = append(snapshots, domain.NewSnapshot(client, acct.available, acct.held, acct.locked))
	}
	return snapshots
}

// AccountCount returns the number of materialized accounts.
func (l *Ledger) AccountCount() int {
	return len(l.accounts)
}
