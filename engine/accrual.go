/*
accrual.go - Annual entitlement and year-end rollover

PURPOSE:
  Computes how many leave days an employee is entitled to for a calendar
  year and plans the ledger movements for the year boundary. Entitlement
  is policy-driven: a flat annual amount, optionally raised by tenure
  tiers and prorated for the hire year.

YEAR-END CLOSE:
  Rollover closes the old year and opens the new one as three movements:

    expire     -balance          clear the closing year
    carryover  +min(balance,cap) re-credit days kept within the cap
    grant      +entitlement      next year's annual grant

  The rows sum to the new balance, so the ledger invariant holds and the
  audit trail shows exactly how many days were kept vs forfeited. The
  rows share idempotency keys derived from (employee, year), so a
  repeated run is rejected by the store and skipped.

PRORATION:
  First-year proration counts full months remaining including the hire
  month: hired June with 30 days/year earns 30 * 7/12 = 18 days
  (rounded to the nearest whole day).

SEE ALSO:
  - ledger.go: BalanceMovement kinds and fold helpers
  - request.go: LeaveService owning balance mutations
  - factory: JSON rule presets that bundle an EntitlementPolicy
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENTITLEMENT POLICY
// =============================================================================

// TenureTier raises the annual entitlement after N full years of service.
type TenureTier struct {
	AfterYears int
	AnnualDays int
}

type EntitlementPolicy struct {
	AnnualDays int

	// CarryoverCap limits days kept across the year boundary.
	// Negative means unlimited.
	CarryoverCap int

	// ProrateFirstYear prorates the hire-year grant by remaining months.
	ProrateFirstYear bool

	// Tiers override AnnualDays by seniority, evaluated at January 1.
	Tiers []TenureTier
}

// DefaultEntitlementPolicy grants the configured annual balance flat, with
// a small carryover allowance and no proration.
func DefaultEntitlementPolicy(cfg Config) EntitlementPolicy {
	return EntitlementPolicy{
		AnnualDays:   cfg.AnnualLeaveDefaultBalance,
		CarryoverCap: 5,
	}
}

// annualDaysFor resolves tenure tiers for the given year. Tiers are matched
// on completed years of service at the start of the year.
func (p EntitlementPolicy) annualDaysFor(emp Employee, year int) int {
	days := p.AnnualDays
	if emp.HireDate.IsZero() {
		return days
	}
	tenure := year - emp.HireDate.Year()
	for _, tier := range p.Tiers {
		if tenure >= tier.AfterYears && tier.AnnualDays > days {
			days = tier.AnnualDays
		}
	}
	return days
}

// EntitlementFor returns the whole-day entitlement for a calendar year,
// prorated for the hire year when the policy says so.
func (p EntitlementPolicy) EntitlementFor(emp Employee, year int) int {
	if !emp.HireDate.IsZero() && emp.HireDate.Year() > year {
		return 0
	}
	annual := p.annualDaysFor(emp, year)
	if !p.ProrateFirstYear || emp.HireDate.IsZero() || emp.HireDate.Year() != year {
		return annual
	}
	monthsRemaining := 12 - int(emp.HireDate.Month()) + 1
	return (annual*monthsRemaining + 6) / 12
}

// OpeningGrant is the first ledger row for a new employee: the hire-year
// entitlement, effective on the hire date.
func OpeningGrant(emp Employee, policy EntitlementPolicy, actor Actor) BalanceMovement {
	year := emp.HireDate.Year()
	if emp.HireDate.IsZero() {
		year = Today().Year()
	}
	return BalanceMovement{
		ID:             MovementID(uuid.NewString()),
		EmployeeID:     emp.ID,
		Days:           policy.EntitlementFor(emp, year),
		Kind:           MovementGrant,
		ReferenceID:    fmt.Sprintf("opening-%d", year),
		Reason:         fmt.Sprintf("opening entitlement %d", year),
		IdempotencyKey: fmt.Sprintf("opening-%s", emp.ID),
		ActorID:        actor.ID,
		EffectiveAt:    emp.HireDate,
		CreatedAt:      time.Now().UTC(),
	}
}

// =============================================================================
// YEAR-END ROLLOVER
// =============================================================================

// PlanRollover produces the close-out movements for one employee at the
// end of fromYear. A non-positive balance skips the close-out rows and
// carries implicitly; the grant row is always planned.
func PlanRollover(emp Employee, policy EntitlementPolicy, fromYear int, actor Actor) []BalanceMovement {
	effective := NewDate(fromYear+1, time.January, 1)
	reference := fmt.Sprintf("rollover-%d", fromYear)
	now := time.Now().UTC()

	var plan []BalanceMovement
	if balance := emp.LeaveBalance; balance > 0 {
		carried := balance
		if policy.CarryoverCap >= 0 && carried > policy.CarryoverCap {
			carried = policy.CarryoverCap
		}
		plan = append(plan, BalanceMovement{
			ID:             MovementID(uuid.NewString()),
			EmployeeID:     emp.ID,
			Days:           -balance,
			Kind:           MovementExpire,
			ReferenceID:    reference,
			Reason:         fmt.Sprintf("close %d balance", fromYear),
			IdempotencyKey: fmt.Sprintf("%s-%s-close", reference, emp.ID),
			ActorID:        actor.ID,
			EffectiveAt:    effective,
			CreatedAt:      now,
		})
		if carried > 0 {
			plan = append(plan, BalanceMovement{
				ID:             MovementID(uuid.NewString()),
				EmployeeID:     emp.ID,
				Days:           carried,
				Kind:           MovementCarryover,
				ReferenceID:    reference,
				Reason:         fmt.Sprintf("carryover into %d", fromYear+1),
				IdempotencyKey: fmt.Sprintf("%s-%s-carry", reference, emp.ID),
				ActorID:        actor.ID,
				EffectiveAt:    effective,
				CreatedAt:      now,
			})
		}
	}
	if grant := policy.EntitlementFor(emp, fromYear+1); grant > 0 {
		plan = append(plan, BalanceMovement{
			ID:             MovementID(uuid.NewString()),
			EmployeeID:     emp.ID,
			Days:           grant,
			Kind:           MovementGrant,
			ReferenceID:    reference,
			Reason:         fmt.Sprintf("annual entitlement %d", fromYear+1),
			IdempotencyKey: fmt.Sprintf("%s-%s-grant", reference, emp.ID),
			ActorID:        actor.ID,
			EffectiveAt:    effective,
			CreatedAt:      now,
		})
	}
	return plan
}

// RolloverReport summarizes one rollover run.
type RolloverReport struct {
	Year      int
	Processed int
	Skipped   int
}

// PolicyResolver returns the entitlement policy that applies to an
// employee.
type PolicyResolver func(Employee) EntitlementPolicy

// FixedPolicy adapts a single policy for deployments without per-employee
// rulesets.
func FixedPolicy(p EntitlementPolicy) PolicyResolver {
	return func(Employee) EntitlementPolicy { return p }
}

// RunRollover applies the year-end close to every enabled employee, one
// transaction each. Employees whose close-out rows already exist (the
// idempotency keys collide) are skipped, so the run can be retried after
// a partial failure.
func (s *LeaveService) RunRollover(ctx context.Context, resolve PolicyResolver, fromYear int) (RolloverReport, error) {
	report := RolloverReport{Year: fromYear}

	employees, err := s.Store.ListEmployees(ctx, false)
	if err != nil {
		return report, err
	}

	for _, emp := range employees {
		err := s.Store.WithTx(ctx, func(tx Store) error {
			current, err := tx.GetEmployee(ctx, emp.ID)
			if err != nil {
				return err
			}
			plan := PlanRollover(*current, resolve(*current), fromYear, SystemActor)
			for _, movement := range plan {
				if err := tx.AppendMovement(ctx, movement); err != nil {
					return err
				}
			}
			current.LeaveBalance = BalanceFromMovements(current.LeaveBalance, plan)
			current.UpdatedAt = time.Now().UTC()
			return tx.SaveEmployee(ctx, *current)
		})
		switch {
		case err == nil:
			report.Processed++
		case errors.Is(err, ErrDuplicateIdempotencyKey):
			report.Skipped++
		default:
			return report, fmt.Errorf("rollover %d for %s: %w", fromYear, emp.ID, err)
		}
	}

	s.Logger.LogAttrs(ctx, slog.LevelInfo, "rollover complete",
		slog.Int("year", report.Year),
		slog.Int("processed", report.Processed),
		slog.Int("skipped", report.Skipped))
	return report, nil
}
