// Package store provides the in-memory Store implementation used by tests,
// demos, and the dev server.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/timekeep/engine"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	employees   map[engine.EmployeeID]engine.Employee
	entries     map[engine.EntryID]engine.TimeEntry
	requests    map[engine.RequestID]engine.LeaveRequest
	movements   map[engine.EmployeeID][]engine.BalanceMovement
	holidays    map[string]engine.Holiday
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		employees:   make(map[engine.EmployeeID]engine.Employee),
		entries:     make(map[engine.EntryID]engine.TimeEntry),
		requests:    make(map[engine.RequestID]engine.LeaveRequest),
		movements:   make(map[engine.EmployeeID][]engine.BalanceMovement),
		holidays:    make(map[string]engine.Holiday),
		idempotency: make(map[string]bool),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp engine.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEmployeeLocked(emp)
}

func (m *Memory) saveEmployeeLocked(emp engine.Employee) error {
	// Email uniqueness is case-insensitive, matching the SQL stores.
	email := strings.ToLower(emp.Email)
	for id, existing := range m.employees {
		if id != emp.ID && strings.ToLower(existing.Email) == email {
			return engine.ErrDuplicateEmail
		}
	}
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEmployeeLocked(id)
}

func (m *Memory) getEmployeeLocked(id engine.EmployeeID) (*engine.Employee, error) {
	emp, ok := m.employees[id]
	if !ok {
		return nil, engine.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (m *Memory) ListEmployees(_ context.Context, includeDisabled bool) ([]engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEmployeesLocked(includeDisabled)
}

func (m *Memory) listEmployeesLocked(includeDisabled bool) ([]engine.Employee, error) {
	result := make([]engine.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		if emp.Disabled && !includeDisabled {
			continue
		}
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

func (m *Memory) SaveEntry(_ context.Context, entry engine.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEntryLocked(entry)
}

func (m *Memory) saveEntryLocked(entry engine.TimeEntry) error {
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntryLocked(id)
}

func (m *Memory) getEntryLocked(id engine.EntryID) (*engine.TimeEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, engine.ErrEntryNotFound
	}
	return &entry, nil
}

func (m *Memory) DeleteEntry(_ context.Context, id engine.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEntryLocked(id)
}

func (m *Memory) deleteEntryLocked(id engine.EntryID) error {
	if _, ok := m.entries[id]; !ok {
		return engine.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *Memory) EntriesForDate(_ context.Context, employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesForDateLocked(employeeID, date)
}

func (m *Memory) entriesForDateLocked(employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	var result []engine.TimeEntry
	for _, entry := range m.entries {
		if entry.EmployeeID == employeeID && entry.Date.Equal(date) {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, nil
}

func (m *Memory) EntriesInRange(_ context.Context, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesInRangeLocked(employeeID, from, to)
}

func (m *Memory) entriesInRangeLocked(employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	var result []engine.TimeEntry
	for _, entry := range m.entries {
		if entry.EmployeeID != employeeID {
			continue
		}
		if entry.Date.AfterOrEqual(from) && entry.Date.BeforeOrEqual(to) {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Start.Before(result[j].Start)
	})
	return result, nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, req engine.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRequestLocked(req)
}

func (m *Memory) saveRequestLocked(req engine.LeaveRequest) error {
	m.requests[req.ID] = req
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id engine.RequestID) (*engine.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id)
}

func (m *Memory) getRequestLocked(id engine.RequestID) (*engine.LeaveRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, engine.ErrRequestNotFound
	}
	return &req, nil
}

func (m *Memory) ListRequests(_ context.Context, filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(filter)
}

func (m *Memory) listRequestsLocked(filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	var result []engine.LeaveRequest
	for _, req := range m.requests {
		if filter.EmployeeID != nil && req.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		if filter.Overlapping != nil && !filter.Overlapping.Overlaps(req.Period()) {
			continue
		}
		result = append(result, req)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// BALANCE MOVEMENTS
// =============================================================================

func (m *Memory) AppendMovement(_ context.Context, mv engine.BalanceMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendMovementLocked(mv)
}

func (m *Memory) appendMovementLocked(mv engine.BalanceMovement) error {
	if mv.IdempotencyKey != "" && m.idempotency[mv.IdempotencyKey] {
		return engine.ErrDuplicateIdempotencyKey
	}
	m.movements[mv.EmployeeID] = append(m.movements[mv.EmployeeID], mv)
	if mv.IdempotencyKey != "" {
		m.idempotency[mv.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) MovementsForEmployee(_ context.Context, employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.movementsForEmployeeLocked(employeeID)
}

func (m *Memory) movementsForEmployeeLocked(employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	result := make([]engine.BalanceMovement, len(m.movements[employeeID]))
	copy(result, m.movements[employeeID])
	return result, nil
}

// =============================================================================
// HOLIDAYS (engine.HolidayStore + engine.HolidayCalendar)
// =============================================================================

func (m *Memory) SaveHoliday(_ context.Context, h engine.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holidays, id)
	return nil
}

// ListHolidays returns holidays for a year; year 0 returns everything.
func (m *Memory) ListHolidays(_ context.Context, year int) ([]engine.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if year == 0 {
		result := make([]engine.Holiday, 0, len(m.holidays))
		for _, h := range m.holidays {
			result = append(result, h)
		}
		sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
		return result, nil
	}
	return m.holidaySetLocked().Holidays(year), nil
}

func (m *Memory) IsHoliday(date engine.Date) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.holidaySetLocked().IsHoliday(date)
}

func (m *Memory) Holidays(year int) []engine.Holiday {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.holidaySetLocked().Holidays(year)
}

func (m *Memory) holidaySetLocked() *engine.HolidaySet {
	set := engine.NewHolidaySet()
	for _, h := range m.holidays {
		set.Add(h)
	}
	return set
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot taken before fn runs and restored if fn fails.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(_ context.Context, fn func(engine.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	employees   map[engine.EmployeeID]engine.Employee
	entries     map[engine.EntryID]engine.TimeEntry
	requests    map[engine.RequestID]engine.LeaveRequest
	movements   map[engine.EmployeeID][]engine.BalanceMovement
	holidays    map[string]engine.Holiday
	idempotency map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		employees:   make(map[engine.EmployeeID]engine.Employee, len(tm.employees)),
		entries:     make(map[engine.EntryID]engine.TimeEntry, len(tm.entries)),
		requests:    make(map[engine.RequestID]engine.LeaveRequest, len(tm.requests)),
		movements:   make(map[engine.EmployeeID][]engine.BalanceMovement, len(tm.movements)),
		holidays:    make(map[string]engine.Holiday, len(tm.holidays)),
		idempotency: make(map[string]bool, len(tm.idempotency)),
	}
	for k, v := range tm.employees {
		s.employees[k] = v
	}
	for k, v := range tm.entries {
		s.entries[k] = v
	}
	for k, v := range tm.requests {
		s.requests[k] = v
	}
	for k, v := range tm.movements {
		s.movements[k] = append([]engine.BalanceMovement{}, v...)
	}
	for k, v := range tm.holidays {
		s.holidays[k] = v
	}
	for k, v := range tm.idempotency {
		s.idempotency[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.employees = s.employees
	tm.entries = s.entries
	tm.requests = s.requests
	tm.movements = s.movements
	tm.holidays = s.holidays
	tm.idempotency = s.idempotency
}

// txMemoryView routes Store calls to the locked parent. WithTx already
// holds the write lock, so the view calls the *Locked methods directly.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveEmployee(_ context.Context, emp engine.Employee) error {
	return tv.parent.saveEmployeeLocked(emp)
}

func (tv *txMemoryView) GetEmployee(_ context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	return tv.parent.getEmployeeLocked(id)
}

func (tv *txMemoryView) ListEmployees(_ context.Context, includeDisabled bool) ([]engine.Employee, error) {
	return tv.parent.listEmployeesLocked(includeDisabled)
}

func (tv *txMemoryView) SaveEntry(_ context.Context, entry engine.TimeEntry) error {
	return tv.parent.saveEntryLocked(entry)
}

func (tv *txMemoryView) GetEntry(_ context.Context, id engine.EntryID) (*engine.TimeEntry, error) {
	return tv.parent.getEntryLocked(id)
}

func (tv *txMemoryView) DeleteEntry(_ context.Context, id engine.EntryID) error {
	return tv.parent.deleteEntryLocked(id)
}

func (tv *txMemoryView) EntriesForDate(_ context.Context, employeeID engine.EmployeeID, date engine.Date) ([]engine.TimeEntry, error) {
	return tv.parent.entriesForDateLocked(employeeID, date)
}

func (tv *txMemoryView) EntriesInRange(_ context.Context, employeeID engine.EmployeeID, from, to engine.Date) ([]engine.TimeEntry, error) {
	return tv.parent.entriesInRangeLocked(employeeID, from, to)
}

func (tv *txMemoryView) SaveRequest(_ context.Context, req engine.LeaveRequest) error {
	return tv.parent.saveRequestLocked(req)
}

func (tv *txMemoryView) GetRequest(_ context.Context, id engine.RequestID) (*engine.LeaveRequest, error) {
	return tv.parent.getRequestLocked(id)
}

func (tv *txMemoryView) ListRequests(_ context.Context, filter engine.RequestFilter) ([]engine.LeaveRequest, error) {
	return tv.parent.listRequestsLocked(filter)
}

func (tv *txMemoryView) AppendMovement(_ context.Context, mv engine.BalanceMovement) error {
	return tv.parent.appendMovementLocked(mv)
}

func (tv *txMemoryView) MovementsForEmployee(_ context.Context, employeeID engine.EmployeeID) ([]engine.BalanceMovement, error) {
	return tv.parent.movementsForEmployeeLocked(employeeID)
}
