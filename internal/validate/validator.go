// Package validate checks engine invariants over the final snapshots
// before anything is written. A violation here means an engine bug, not
// bad input: the ledger's handlers are supposed to make these states
// unrepresentable.
package validate

import (
	"fmt"

	"github.com/finvolt/payengine/internal/domain"
)

// Violation describes one broken invariant on one account.
type Violation struct {
	Client  uint16
	Field   string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("client %d [%s]: %s", v.Client, v.Field, v.Message)
}

// Result collects all violations found in a snapshot set.
type Result struct {
	Violations []Violation
}

// OK reports whether the snapshots passed every check.
func (r *Result) OK() bool {
	return len(r.Violations) == 0
}

// Err converts the result into an error, nil when clean.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%d account invariant violation(s), first: %s", len(r.Violations), r.Violations[0])
}

// CheckSnapshots verifies that every account satisfies the balance
// invariants: non-negative available and held funds, and total exactly
// equal to available + held. Duplicate client ids are also flagged.
func CheckSnapshots(snapshots []domain.Snapshot) *Result {
	result := &Result{}
	seen := make(map[uint16]bool, len(snapshots))

	for _, s := range snapshots {
		if seen[s.Client] {
			result.Violations = append(result.Violations, Violation{
				Client:  s.Client,
				Field:   "client",
				Message: "duplicate client id in snapshot set",
			})
		}
		seen[s.Client] = true

		if s.Available.IsNegative() {
			result.Violations = append(result.Violations, Violation{
				Client:  s.Client,
				Field:   "available",
				Message: fmt.Sprintf("negative available balance %s", s.Available),
			})
		}
		if s.Held.IsNegative() {
			result.Violations = append(result.Violations, Violation{
				Client:  s.Client,
				Field:   "held",
				Message: fmt.Sprintf("negative held balance %s", s.Held),
			})
		}
		if !s.Total.Equal(s.Available.Add(s.Held)) {
			result.Violations = append(result.Violations, Violation{
				Client:  s.Client,
				Field:   "total",
				Message: fmt.Sprintf("total %s != available %s + held %s", s.Total, s.Available, s.Held),
			})
		}
	}

	return result
}
