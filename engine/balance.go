package engine

import "context"

// =============================================================================
// DAY COUNTING
// =============================================================================

// RequestDays is the day-count a leave period represents: calendar-inclusive
// when no calendar is configured, working days (weekends and holidays
// excluded) when one is.
func RequestDays(p Period, cal HolidayCalendar) int {
	if cal == nil {
		return p.Days()
	}
	return p.WorkingDays(cal)
}

// =============================================================================
// BALANCE VIEW - Current balance with pending requests projected
// =============================================================================

// BalanceView is what an employee (or their manager) sees: the live balance,
// how many days sit in pending requests, and what would remain if all of
// them were approved today.
type BalanceView struct {
	EmployeeID      EmployeeID
	Balance         int
	PendingDays     int
	AfterPending    int
	PendingRequests int
}

// ComputeBalanceView folds pending requests over the live balance. Pure;
// non-deducting leave types contribute zero pending days.
func ComputeBalanceView(emp Employee, pending []LeaveRequest, cfg Config, cal HolidayCalendar) BalanceView {
	view := BalanceView{EmployeeID: emp.ID, Balance: emp.LeaveBalance}
	for _, req := range pending {
		if req.Status != StatusPending {
			continue
		}
		view.PendingRequests++
		if lt, ok := cfg.LeaveType(req.Type); ok && lt.DeductsBalance {
			view.PendingDays += RequestDays(req.Period(), cal)
		}
	}
	view.AfterPending = view.Balance - view.PendingDays
	return view
}

// BalanceView loads the employee and their pending requests and computes
// the view.
func (s *LeaveService) BalanceView(ctx context.Context, employeeID EmployeeID) (*BalanceView, error) {
	emp, err := s.Store.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	status := StatusPending
	pending, err := s.Store.ListRequests(ctx, RequestFilter{EmployeeID: &employeeID, Status: &status})
	if err != nil {
		return nil, err
	}
	view := ComputeBalanceView(*emp, pending, s.configFor(*emp), s.Calendar)
	return &view, nil
}
