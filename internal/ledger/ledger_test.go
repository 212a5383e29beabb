package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvolt/payengine/internal/domain"
	"github.com/finvolt/payengine/internal/money"
)

func deposit(t *testing.T, client uint16, tx uint32, amount string) domain.Record {
	t.Helper()
	m := money.MustParse(amount)
	rec, err := domain.NewRecord(domain.TxDeposit, client, tx, &m)
	require.NoError(t, err)
	return rec
}

func withdrawal(t *testing.T, client uint16, tx uint32, amount string) domain.Record {
	t.Helper()
	m := money.MustParse(amount)
	rec, err := domain.NewRecord(domain.TxWithdrawal, client, tx, &m)
	require.NoError(t, err)
	return rec
}

func dispute(t *testing.T, client uint16, tx uint32) domain.Record {
	t.Helper()
	rec, err := domain.NewRecord(domain.TxDispute, client, tx, nil)
	require.NoError(t, err)
	return rec
}

func resolve(t *testing.T, client uint16, tx uint32) domain.Record {
	t.Helper()
	rec, err := domain.NewRecord(domain.TxResolve, client, tx, nil)
	require.NoError(t, err)
	return rec
}

func chargeback(t *testing.T, client uint16, tx uint32) domain.Record {
	t.Helper()
	rec, err := domain.NewRecord(domain.TxChargeback, client, tx, nil)
	require.NoError(t, err)
	return rec
}

// snapshot fetches the single snapshot for a client, failing if absent.
func snapshot(t *testing.T, l *Ledger, client uint16) domain.Snapshot {
	t.Helper()
	for _, s := range l.Snapshots() {
		if s.Client == client {
			return s
		}
	}
	t.Fatalf("no snapshot for client %d", client)
	return domain.Snapshot{}
}

func assertBalances(t *testing.T, s domain.Snapshot, available, held string, locked bool) {
	t.Helper()
	assert.Equal(t, available, s.Available.String(), "available")
	assert.Equal(t, held, s.Held.String(), "held")
	assert.Equal(t, s.Available.Add(s.Held).String(), s.Total.String(), "total must equal available + held")
	assert.Equal(t, locked, s.Locked, "locked")
}

func TestDepositAndWithdrawal(t *testing.T) {
	l := New()

	require.NoError(t, l.Apply(deposit(t, 1, 1, "5.0")))
	require.NoError(t, l.Apply(deposit(t, 1, 2, "3.0")))
	require.NoError(t, l.Apply(withdrawal(t, 1, 3, "2.0")))

	assertBalances(t, snapshot(t, l, 1), "6.0000", "0.0000", false)
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "1.0")))

	err := l.Apply(withdrawal(t, 1, 2, "1.0001"))
	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, uint32(2), ruleErr.Tx)

	// Balances unchanged, and the rejected withdrawal left no disputable
	// record behind.
	assertBalances(t, snapshot(t, l, 1), "1.0000", "0.0000", false)
	assert.IsType(t, &RuleError{}, l.Apply(dispute(t, 1, 2)))
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	l := New()

	assert.IsType(t, &RuleError{}, l.Apply(deposit(t, 1, 1, "0")))
	assert.IsType(t, &RuleError{}, l.Apply(deposit(t, 1, 2, "-5.0")))
	// Rounds to 0.0000 at four places, so it is non-positive.
	assert.IsType(t, &RuleError{}, l.Apply(deposit(t, 1, 3, "0.00001")))

	assertBalances(t, snapshot(t, l, 1), "0.0000", "0.0000", false)
}

func TestDuplicateTransactionID(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 7, "5.0")))

	// Same id, same client.
	assert.IsType(t, &RuleError{}, l.Apply(deposit(t, 1, 7, "5.0")))
	// Transaction ids are global: another client cannot reuse the id.
	assert.IsType(t, &RuleError{}, l.Apply(deposit(t, 2, 7, "9.0")))
	assert.IsType(t, &RuleError{}, l.Apply(withdrawal(t, 1, 7, "1.0")))

	assertBalances(t, snapshot(t, l, 1), "5.0000", "0.0000", false)
	// The failed deposit still materialized client 2's account with zero
	// balances (accounts are created on first deposit/withdrawal reference).
	assertBalances(t, snapshot(t, l, 2), "0.0000", "0.0000", false)
}

func TestDisputeHoldsFunds(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "5.0")))
	require.NoError(t, l.Apply(deposit(t, 1, 2, "3.0")))
	require.NoError(t, l.Apply(withdrawal(t, 1, 3, "2.0")))

	require.NoError(t, l.Apply(dispute(t, 1, 1)))
	assertBalances(t, snapshot(t, l, 1), "1.0000", "5.0000", false)
}

func TestDisputeWithdrawalHoldsMagnitude(t *testing.T) {
	// Disputing a withdrawal moves available → held just like a deposit;
	// the held amount is the record's unsigned magnitude.
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "10.0")))
	require.NoError(t, l.Apply(withdrawal(t, 1, 2, "4.0")))

	require.NoError(t, l.Apply(dispute(t, 1, 2)))
	assertBalances(t, snapshot(t, l, 1), "2.0000", "4.0000", false)
}

func TestDisputeInsufficientAvailableIsNoOp(t *testing.T) {
	// Holding more than available would drive the balance negative, so
	// the dispute is rejected and the record stays undisputed.
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "10.0")))
	require.NoError(t, l.Apply(withdrawal(t, 1, 2, "10.0")))

	assert.IsType(t, &RuleError{}, l.Apply(dispute(t, 1, 2)))
	assertBalances(t, snapshot(t, l, 1), "0.0000", "0.0000", false)

	// Funds return, then the same dispute succeeds: the failed attempt
	// did not consume the Undisputed state.
	require.NoError(t, l.Apply(deposit(t, 1, 3, "10.0")))
	require.NoError(t, l.Apply(dispute(t, 1, 2)))
	assertBalances(t, snapshot(t, l, 1), "0.0000", "10.0000", false)
}

func TestDisputeUnknownOrMismatched(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "5.0")))

	assert.IsType(t, &RuleError{}, l.Apply(dispute(t, 1, 999)))
	assert.IsType(t, &RuleError{}, l.Apply(dispute(t, 2, 1)), "client mismatch")
	assert.IsType(t, &RuleError{}, l.Apply(resolve(t, 2, 1)))
	assert.IsType(t, &RuleError{}, l.Apply(chargeback(t, 2, 1)))

	assertBalances(t, snapshot(t, l, 1), "5.0000", "0.0000", false)
	// A dispute-family reference must not materialize an account.
	assert.Equal(t, 1, l.AccountCount())
}

func TestResolveRoundTrip(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "5.0")))
	require.NoError(t, l.Apply(deposit(t, 1, 2, "3.0")))

	before := snapshot(t, l, 1)
	require.NoError(t, l.Apply(dispute(t, 1, 1)))
	require.NoError(t, l.Apply(resolve(t, 1, 1)))
	after := snapshot(t, l, 1)

	// Dispute then resolve restores available/held exactly.
	assert.Equal(t, before.Available.String(), after.Available.String())
	assert.Equal(t, before.Held.String(), after.Held.String())

	// Resolved is terminal: no re-dispute, no resolve, no chargeback.
	assert.IsType(t, &RuleError{}, l.Apply(dispute(t, 1, 1)))
	assert.IsType(t, &RuleError{}, l.Apply(resolve(t, 1, 1)))
	assert.IsType(t, &RuleError{}, l.Apply(chargeback(t, 1, 1)))
}

func TestResolveRequiresDisputed(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "5.0")))

	assert.IsType(t, &RuleError{}, l.Apply(resolve(t, 1, 1)))
	assert.IsType(t, &RuleError{}, l.Apply(chargeback(t, 1, 1)))
	assertBalances(t, snapshot(t, l, 1), "5.0000", "0.0000", false)
}

func TestChargebackLocksAccount(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "5.0")))
	require.NoError(t, l.Apply(deposit(t, 1, 2, "3.0")))
	require.NoError(t, l.Apply(withdrawal(t, 1, 3, "2.0")))
	require.NoError(t, l.Apply(dispute(t, 1, 1)))

	require.NoError(t, l.Apply(chargeback(t, 1, 1)))
	assertBalances(t, snapshot(t, l, 1), "1.0000", "0.0000", true)

	// Deposits and withdrawals against a locked account are no-ops.
	assert.IsType(t, &RuleError{}, l.Apply(deposit(t, 1, 4, "100")))
	assert.IsType(t, &RuleError{}, l.Apply(withdrawal(t, 1, 5, "0.5")))
	assertBalances(t, snapshot(t, l, 1), "1.0000", "0.0000", true)

	// ChargedBack is terminal.
	assert.IsType(t, &RuleError{}, l.Apply(dispute(t, 1, 1)))
	assert.IsType(t, &RuleError{}, l.Apply(chargeback(t, 1, 1)))
}

func TestLockedAccountStillProcessesDisputes(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "5.0")))
	require.NoError(t, l.Apply(deposit(t, 1, 2, "3.0")))
	require.NoError(t, l.Apply(dispute(t, 1, 1)))
	require.NoError(t, l.Apply(dispute(t, 1, 2)))
	require.NoError(t, l.Apply(chargeback(t, 1, 1)))
	assertBalances(t, snapshot(t, l, 1), "0.0000", "3.0000", true)

	// The other dispute can still be resolved after the lock.
	require.NoError(t, l.Apply(resolve(t, 1, 2)))
	assertBalances(t, snapshot(t, l, 1), "3.0000", "0.0000", true)
}

func TestChargebackDirectFromDisputed(t *testing.T) {
	// Chargeback does not require a prior resolve.
	l := New()
	require.NoError(t, l.Apply(deposit(t, 1, 1, "2.0")))
	require.NoError(t, l.Apply(dispute(t, 1, 1)))
	require.NoError(t, l.Apply(chargeback(t, 1, 1)))

	assertBalances(t, snapshot(t, l, 1), "0.0000", "0.0000", true)
}

func TestFullLifecycleSequence(t *testing.T) {
	l := New()

	require.NoError(t, l.Apply(deposit(t, 1, 1, "5.0")))
	require.NoError(t, l.Apply(deposit(t, 1, 2, "3.0")))
	require.NoError(t, l.Apply(withdrawal(t, 1, 3, "2.0")))
	assertBalances(t, snapshot(t, l, 1), "6.0000", "0.0000", false)

	require.NoError(t, l.Apply(dispute(t, 1, 1)))
	assertBalances(t, snapshot(t, l, 1), "1.0000", "5.0000", false)

	require.NoError(t, l.Apply(chargeback(t, 1, 1)))
	assertBalances(t, snapshot(t, l, 1), "1.0000", "0.0000", true)

	assert.IsType(t, &RuleError{}, l.Apply(deposit(t, 1, 4, "100")))
	assertBalances(t, snapshot(t, l, 1), "1.0000", "0.0000", true)
}

func TestNoAccountMaterializationFromBadDispute(t *testing.T) {
	l := New()

	// tx 999 was never created: no account may appear for client 2.
	assert.IsType(t, &RuleError{}, l.Apply(dispute(t, 2, 999)))
	assert.Zero(t, l.AccountCount())
	assert.Empty(t, l.Snapshots())
}

func TestSnapshotsSortedByClient(t *testing.T) {
	l := New()
	require.NoError(t, l.Apply(deposit(t, 42, 1, "1.0")))
	require.NoError(t, l.Apply(deposit(t, 7, 2, "2.0")))
	require.NoError(t, l.Apply(deposit(t, 1000, 3, "3.0")))

	snaps := l.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, uint16(7), snaps[0].Client)
	assert.Equal(t, uint16(42), snaps[1].Client)
	assert.Equal(t, uint16(1000), snaps[2].Client)
}

func TestBalancesNeverNegative(t *testing.T) {
	// Adversarial interleaving: every rejected record leaves balances
	// untouched and non-negative throughout.
	l := New()
	records := []domain.Record{
		deposit(t, 1, 1, "1.5"),
		withdrawal(t, 1, 2, "2.0"), // insufficient
		withdrawal(t, 1, 3, "1.5"),
		dispute(t, 1, 3), // would need 0 available vs 1.5 held
		deposit(t, 1, 4, "0.7"),
		dispute(t, 1, 1), // needs 1.5 available, only 0.7
		dispute(t, 1, 4),
		chargeback(t, 1, 4),
		deposit(t, 1, 5, "9.9"), // locked
	}

	for _, rec := range records {
		err := l.Apply(rec)
		if err != nil {
			var ruleErr *RuleError
			require.ErrorAs(t, err, &ruleErr, "only rule violations may surface")
		}
		for _, s := range l.Snapshots() {
			assert.False(t, s.Available.IsNegative(), "available negative after tx %d", rec.Tx)
			assert.False(t, s.Held.IsNegative(), "held negative after tx %d", rec.Tx)
			assert.Equal(t, s.Available.Add(s.Held).String(), s.Total.String())
		}
	}

	assertBalances(t, snapshot(t, l, 1), "0.0000", "0.0000", true)
}
