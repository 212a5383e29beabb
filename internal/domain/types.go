// Package domain defines the transaction record vocabulary shared by the
// record sources, the ledger, and the output writer.
package domain

import (
	"fmt"

	"github.com/finvolt/payengine/internal/money"
)

// TxType is the closed set of transaction record types. Anything outside
// this set is a schema violation at ingestion, never a dispatch concern.
type TxType string

const (
	TxDeposit    TxType = "deposit"
	TxWithdrawal TxType = "withdrawal"
	TxDispute    TxType = "dispute"
	TxResolve    TxType = "resolve"
	TxChargeback TxType = "chargeback"
)

// ParseTxType validates a raw type tag from an input row.
func ParseTxType(s string) (TxType, error) {
	switch TxType(s) {
	case TxDeposit, TxWithdrawal, TxDispute, TxResolve, TxChargeback:
		return TxType(s), nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// HasAmount reports whether records of this type carry an amount column.
func (t TxType) HasAmount() bool {
	return t == TxDeposit || t == TxWithdrawal
}

// Record is one transaction from the input stream. Amount is non-nil
// exactly when the type is deposit or withdrawal.
type Record struct {
	Type   TxType
	Client uint16
	Tx     uint32
	Amount *money.Money
}

// NewRecord creates a validated record. Amount presence must match the
// record type; a mismatch is a schema violation the sources surface as a
// fatal ingestion error.
func NewRecord(txType TxType, client uint16, tx uint32, amount *money.Money) (Record, error) {
	if txType.HasAmount() && amount == nil {
		return Record{}, fmt.Errorf("%s record tx=%d is missing an amount", txType, tx)
	}
	if !txType.HasAmount() && amount != nil {
		return Record{}, fmt.Errorf("%s record tx=%d must not carry an amount", txType, tx)
	}
	return Record{Type: txType, Client: client, Tx: tx, Amount: amount}, nil
}

// DisputeState tracks where a disputable transaction sits in its dispute
// lifecycle.
type DisputeState string

const (
	StateUndisputed  DisputeState = "UNDISPUTED"
	StateDisputed    DisputeState = "DISPUTED"
	StateResolved    DisputeState = "RESOLVED"
	StateChargedBack DisputeState = "CHARGED_BACK"
)

// AllowedTransitions defines the dispute state machine. Resolved and
// ChargedBack are terminal. Chargeback is legal directly from Disputed;
// resolution is not a prerequisite.
func AllowedTransitions() map[DisputeState][]DisputeState {
	return map[DisputeState][]DisputeState{
		StateUndisputed:  {StateDisputed},
		StateDisputed:    {StateResolved, StateChargedBack},
		StateResolved:    {},
		StateChargedBack: {},
	}
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to DisputeState) bool {
	for _, next := range AllowedTransitions()[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Snapshot is the final per-client account summary emitted after the
// stream is exhausted.
type Snapshot struct {
	Client    uint16
	Available money.Money
	Held      money.Money
	Total     money.Money
	Locked    bool
}

// NewSnapshot derives Total from Available and Held so the invariant
// total == available + held cannot be violated by construction.
func NewSnapshot(client uint16, available, held money.Money, locked bool) Snapshot {
	return Snapshot{
		Client:    client,
		Available: available,
		Held:      held,
		Total:     available.Add(held),
		Locked:    locked,
	}
}
