/*
ledger.go - Balance movement ledger

PURPOSE:
  Every change to an employee's leave balance is paired with an append-only
  BalanceMovement row: the live balance on the Employee record is the fast
  read, the movement ledger is the auditable truth. At all times

      balance == opening grant + sum(movement days)

  Movements are written in the same store transaction as the balance change
  and carry an idempotency key so a retried approval cannot deduct twice.

MOVEMENT KINDS:
  grant       initial or annual entitlement credit
  deduction   approved leave (negative days)
  restore     cancellation of approved leave (positive days)
  carryover   days re-credited within the cap at the year-end close
  expire      closing-year balance cleared at rollover (negative days)
  adjustment  manual admin correction (either sign)

SEE ALSO:
  - request.go: Writes deduction/restore movements
  - accrual.go: Produces rollover movement plans
  - store.go: AppendMovement contract
*/
package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// BALANCE MOVEMENT
// =============================================================================

type MovementID string

type MovementKind string

const (
	MovementGrant      MovementKind = "grant"
	MovementDeduction  MovementKind = "deduction"
	MovementRestore    MovementKind = "restore"
	MovementCarryover  MovementKind = "carryover"
	MovementExpire     MovementKind = "expire"
	MovementAdjustment MovementKind = "adjustment"
)

type BalanceMovement struct {
	ID         MovementID
	EmployeeID EmployeeID

	// Days is signed: deductions and expiries are negative.
	Days int
	Kind MovementKind

	// ReferenceID links back to the causing record (request id, rollover run).
	ReferenceID string
	Reason      string

	// IdempotencyKey makes retried writes a no-op at the store level.
	IdempotencyKey string

	ActorID     EmployeeID
	EffectiveAt Date
	CreatedAt   time.Time
}

// =============================================================================
// FOLD HELPERS
// =============================================================================

// BalanceFromMovements replays movements over an opening balance.
func BalanceFromMovements(opening int, movements []BalanceMovement) int {
	balance := opening
	for _, m := range movements {
		balance += m.Days
	}
	return balance
}

// VerifyLedger checks the ledger invariant for one employee: the live
// balance must equal the replay of all movements from zero. Returns nil
// when they agree.
func VerifyLedger(emp Employee, movements []BalanceMovement) error {
	replayed := BalanceFromMovements(0, movements)
	if replayed != emp.LeaveBalance {
		return fmt.Errorf("ledger drift for %s: movements replay to %d, balance is %d",
			emp.ID, replayed, emp.LeaveBalance)
	}
	return nil
}
