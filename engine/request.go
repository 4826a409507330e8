/*
request.go - Leave request lifecycle

PURPOSE:
  Drives a leave request from PENDING through APPROVED / REJECTED /
  CANCELLED and keeps the leave balance honest while doing it. Every
  transition is transactional: the status change, the balance change, and
  its ledger movement commit together or not at all.

STATE MACHINE:
  PENDING  -> APPROVED    approval authority; deducts the day-count
  PENDING  -> REJECTED    approval authority; reason recorded, no balance
  PENDING  -> CANCELLED   requester or authority; no balance change
  APPROVED -> CANCELLED   restores exactly the deducted day-count
  anything else           InvalidTransitionError

BALANCE RULES:
  - Sufficiency is checked at approval time, inside the transaction, not
    at submission; the balance may have changed in between.
  - The deducted count is stored on the request (DeductedDays), so a later
    cancellation restores that exact number even if the working-day
    calendar has changed.
  - A non-deducting leave type records DeductedDays = 0.

NOTIFICATIONS:
  Each successful transition dispatches one tagged event after commit.
  Dispatch failures are logged and never roll anything back.

SEE ALSO:
  - balance.go: Day counting and the pending-aware balance view
  - ledger.go: The movement rows written here
  - notify.go: Event tags and dispatcher contract
*/
package engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEAVE SERVICE
// =============================================================================

type LeaveService struct {
	Store  TxStore
	Config Config

	// Rules, when set, resolves the config per employee (ruleset lookup).
	// Nil means every employee validates against Config.
	Rules func(Employee) Config

	// Calendar controls day counting: nil means calendar-inclusive days,
	// a configured calendar excludes weekends and holidays.
	Calendar HolidayCalendar

	Dispatcher Dispatcher
	Logger     *slog.Logger
}

func NewLeaveService(store TxStore, cfg Config, cal HolidayCalendar, dispatcher Dispatcher, logger *slog.Logger) *LeaveService {
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaveService{Store: store, Config: cfg, Calendar: cal, Dispatcher: dispatcher, Logger: logger}
}

func (s *LeaveService) configFor(emp Employee) Config {
	if s.Rules != nil {
		return s.Rules(emp)
	}
	return s.Config
}

// =============================================================================
// SUBMIT - Creates a PENDING request
// =============================================================================

func (s *LeaveService) Submit(ctx context.Context, actor Actor, employeeID EmployeeID, leaveType string, period Period, substituteID *EmployeeID, notes string) (*LeaveRequest, error) {
	if period.End.Before(period.Start) {
		return nil, &InvalidInputError{Field: "end_date", Reason: "must not be before start date"}
	}

	var req LeaveRequest
	var emp Employee
	var manager, substitute *Employee

	err := s.Store.WithTx(ctx, func(tx Store) error {
		empPtr, err := tx.GetEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		if empPtr.Disabled {
			return ErrEmployeeDisabled
		}
		if actor.ID != empPtr.ID && !actor.HasApprovalAuthority(*empPtr) {
			return ErrNotAuthorized
		}
		if _, ok := s.configFor(*empPtr).LeaveType(leaveType); !ok {
			return &InvalidInputError{Field: "type", Reason: "unknown leave type " + leaveType}
		}
		emp = *empPtr

		if substituteID != nil {
			if *substituteID == employeeID {
				return &InvalidInputError{Field: "substitute_id", Reason: "employee cannot be their own substitute"}
			}
			if _, err := tx.GetEmployee(ctx, *substituteID); err != nil {
				return err
			}
		}

		now := time.Now()
		req = LeaveRequest{
			ID:           RequestID(uuid.NewString()),
			EmployeeID:   employeeID,
			Type:         leaveType,
			Start:        period.Start,
			End:          period.End,
			Status:       StatusPending,
			SubstituteID: substituteID,
			Notes:        notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.SaveRequest(ctx, req); err != nil {
			return err
		}

		manager, substitute = s.resolveParties(ctx, tx, emp, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchLeave(ctx, EventLeaveRequestCreated, actor, emp, manager, substitute, req)
	return &req, nil
}

// =============================================================================
// APPROVE - The balance-bearing transition
// =============================================================================

func (s *LeaveService) Approve(ctx context.Context, actor Actor, id RequestID) (*LeaveRequest, error) {
	var req LeaveRequest
	var emp Employee
	var manager, substitute *Employee

	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return &InvalidTransitionError{RequestID: id, From: current.Status, To: StatusApproved}
		}

		empPtr, err := tx.GetEmployee(ctx, current.EmployeeID)
		if err != nil {
			return err
		}
		if empPtr.Disabled {
			return ErrEmployeeDisabled
		}
		if !actor.HasApprovalAuthority(*empPtr) {
			return ErrNotAuthorized
		}

		days := RequestDays(current.Period(), s.Calendar)
		deducted := 0
		if lt, ok := s.configFor(*empPtr).LeaveType(current.Type); ok && lt.DeductsBalance {
			if days > empPtr.LeaveBalance {
				return &InsufficientBalanceError{
					EmployeeID: empPtr.ID,
					Available:  empPtr.LeaveBalance,
					Requested:  days,
					Shortfall:  days - empPtr.LeaveBalance,
				}
			}
			deducted = days
		}

		now := time.Now()
		if deducted > 0 {
			empPtr.LeaveBalance -= deducted
			empPtr.UpdatedAt = now
			if err := tx.SaveEmployee(ctx, *empPtr); err != nil {
				return err
			}
			mv := BalanceMovement{
				ID:             MovementID(uuid.NewString()),
				EmployeeID:     empPtr.ID,
				Days:           -deducted,
				Kind:           MovementDeduction,
				ReferenceID:    string(current.ID),
				Reason:         "leave approved: " + current.Period().String(),
				IdempotencyKey: "approve-" + string(current.ID),
				ActorID:        actor.ID,
				EffectiveAt:    current.Start,
				CreatedAt:      now,
			}
			if err := tx.AppendMovement(ctx, mv); err != nil {
				return err
			}
		}

		current.Status = StatusApproved
		current.ApprovedBy = &actor.ID
		current.ApprovedAt = &now
		current.DeductedDays = &deducted
		current.UpdatedAt = now
		if err := tx.SaveRequest(ctx, *current); err != nil {
			return err
		}

		req = *current
		emp = *empPtr
		manager, substitute = s.resolveParties(ctx, tx, emp, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchLeave(ctx, EventLeaveRequestApproved, actor, emp, manager, substitute, req)
	return &req, nil
}

// =============================================================================
// REJECT
// =============================================================================

// Reject denies a pending request. The reason may be empty but is always
// recorded.
func (s *LeaveService) Reject(ctx context.Context, actor Actor, id RequestID, reason string) (*LeaveRequest, error) {
	var req LeaveRequest
	var emp Employee
	var manager, substitute *Employee

	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return &InvalidTransitionError{RequestID: id, From: current.Status, To: StatusRejected}
		}

		empPtr, err := tx.GetEmployee(ctx, current.EmployeeID)
		if err != nil {
			return err
		}
		if !actor.HasApprovalAuthority(*empPtr) {
			return ErrNotAuthorized
		}

		now := time.Now()
		current.Status = StatusRejected
		current.RejectionReason = &reason
		current.UpdatedAt = now
		if err := tx.SaveRequest(ctx, *current); err != nil {
			return err
		}

		req = *current
		emp = *empPtr
		manager, substitute = s.resolveParties(ctx, tx, emp, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchLeave(ctx, EventLeaveRequestDenied, actor, emp, manager, substitute, req)
	return &req, nil
}

// =============================================================================
// CANCEL - From PENDING (no balance) or APPROVED (restores balance)
// =============================================================================

func (s *LeaveService) Cancel(ctx context.Context, actor Actor, id RequestID, reason string) (*LeaveRequest, error) {
	var req LeaveRequest
	var emp Employee
	var manager, substitute *Employee

	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPending && current.Status != StatusApproved {
			return &InvalidTransitionError{RequestID: id, From: current.Status, To: StatusCancelled}
		}

		empPtr, err := tx.GetEmployee(ctx, current.EmployeeID)
		if err != nil {
			return err
		}
		if actor.ID != empPtr.ID && !actor.HasApprovalAuthority(*empPtr) {
			return ErrNotAuthorized
		}

		now := time.Now()

		// Cancelling approved leave gives back exactly what approval took.
		if current.Status == StatusApproved && current.DeductedDays != nil && *current.DeductedDays > 0 {
			restored := *current.DeductedDays
			empPtr.LeaveBalance += restored
			empPtr.UpdatedAt = now
			if err := tx.SaveEmployee(ctx, *empPtr); err != nil {
				return err
			}
			mv := BalanceMovement{
				ID:             MovementID(uuid.NewString()),
				EmployeeID:     empPtr.ID,
				Days:           restored,
				Kind:           MovementRestore,
				ReferenceID:    string(current.ID),
				Reason:         "approved leave cancelled: " + strings.TrimSpace(reason),
				IdempotencyKey: "cancel-" + string(current.ID),
				ActorID:        actor.ID,
				EffectiveAt:    Today(),
				CreatedAt:      now,
			}
			if err := tx.AppendMovement(ctx, mv); err != nil {
				return err
			}
		}

		current.Status = StatusCancelled
		current.CancelledBy = &actor.ID
		current.CancelledAt = &now
		current.UpdatedAt = now
		if err := tx.SaveRequest(ctx, *current); err != nil {
			return err
		}

		req = *current
		emp = *empPtr
		manager, substitute = s.resolveParties(ctx, tx, emp, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchLeave(ctx, EventLeaveRequestCancelled, actor, emp, manager, substitute, req)
	return &req, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveParties loads the manager and substitute records for notification
// payloads. Lookups are best-effort; a missing reference just stays nil.
func (s *LeaveService) resolveParties(ctx context.Context, tx Store, emp Employee, req LeaveRequest) (manager, substitute *Employee) {
	if emp.ManagerID != nil {
		if m, err := tx.GetEmployee(ctx, *emp.ManagerID); err == nil {
			manager = m
		}
	}
	if req.SubstituteID != nil {
		if sub, err := tx.GetEmployee(ctx, *req.SubstituteID); err == nil {
			substitute = sub
		}
	}
	return manager, substitute
}

func (s *LeaveService) dispatchLeave(ctx context.Context, typ EventType, actor Actor, emp Employee, manager, substitute *Employee, req LeaveRequest) {
	ev := Event{
		Type:       typ,
		At:         time.Now(),
		Actor:      actor,
		Employee:   emp,
		Manager:    manager,
		Substitute: substitute,
		Request:    &req,
	}
	if err := s.Dispatcher.Dispatch(ctx, ev); err != nil {
		s.Logger.Warn("notification dispatch failed",
			slog.String("event", string(typ)),
			slog.String("request", string(req.ID)),
			slog.String("error", err.Error()))
	}
}
