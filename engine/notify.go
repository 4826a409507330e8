package engine

import (
	"context"
	"log/slog"
	"time"
)

// =============================================================================
// EVENTS - Fixed, enumerated set of transition notifications
// =============================================================================

// EventType enumerates every notification the engine can emit. The set is
// closed: side effects of a transition are statically known, there is no
// runtime listener registration.
type EventType string

const (
	EventTimeEntryCreated EventType = "timeEntryCreated"
	EventTimeEntryUpdated EventType = "timeEntryUpdated"
	EventTimeEntryDeleted EventType = "timeEntryDeleted"

	EventLeaveRequestCreated   EventType = "leaveRequestCreated"
	EventLeaveRequestApproved  EventType = "leaveRequestApproved"
	EventLeaveRequestDenied    EventType = "leaveRequestDenied"
	EventLeaveRequestCancelled EventType = "leaveRequestCancelled"
)

// Event carries the records a delivery channel needs to render a message.
// Manager and Substitute are resolved where the employee has them.
type Event struct {
	Type  EventType
	At    time.Time
	Actor Actor

	Employee   Employee
	Manager    *Employee
	Substitute *Employee

	Entry   *TimeEntry
	Request *LeaveRequest
}

// =============================================================================
// DISPATCHER - External collaborator, best-effort delivery
// =============================================================================

// Dispatcher is invoked synchronously at the point of a state transition.
// Delivery itself may be asynchronous and is allowed to fail; callers log
// dispatch errors and never roll back the transition.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// NopDispatcher swallows all events.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) error { return nil }

// SlogDispatcher logs each event. It stands in for real delivery channels
// (mail, chat webhooks) in the server and in demos.
type SlogDispatcher struct {
	Logger *slog.Logger
}

func NewSlogDispatcher(logger *slog.Logger) *SlogDispatcher {
	return &SlogDispatcher{Logger: logger}
}

func (d *SlogDispatcher) Dispatch(ctx context.Context, ev Event) error {
	attrs := []slog.Attr{
		slog.String("event", string(ev.Type)),
		slog.String("employee", string(ev.Employee.ID)),
		slog.String("actor", string(ev.Actor.ID)),
	}
	if ev.Request != nil {
		attrs = append(attrs,
			slog.String("request", string(ev.Request.ID)),
			slog.String("period", ev.Request.Period().String()),
		)
	}
	if ev.Entry != nil {
		attrs = append(attrs, slog.String("entry", string(ev.Entry.ID)))
	}
	d.Logger.LogAttrs(ctx, slog.LevelInfo, "notification", attrs...)
	return nil
}

// MultiDispatcher fans an event out to every wrapped dispatcher. All of
// them run; the first error is returned.
type MultiDispatcher []Dispatcher

func (m MultiDispatcher) Dispatch(ctx context.Context, ev Event) error {
	var first error
	for _, d := range m {
		if err := d.Dispatch(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
