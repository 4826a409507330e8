/*
scheduler.go - Automated year-end rollover scheduler

PURPOSE:
  Periodically runs the year-end leave rollover (expire, carryover, next
  year's grant) so balances close without an operator calling the admin
  endpoint every January.

DESIGN:
  - A single background goroutine wakes on a ticker
  - Every wake-up re-runs the close for the previous calendar year
  - The ledger's idempotency keys make re-runs no-ops, so checking often
    is safe; employees already closed show up as skipped

CONFIGURATION:
  - CheckInterval: time between close attempts (hourly by default)
  - Enabled: set false to keep the goroutine from starting at all

USAGE:
  scheduler := NewRolloverScheduler(leave, rulesets, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRollover endpoint (manual close)
  - ../engine/accrual.go: PlanRollover and RunRollover
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/timekeep/engine"
	"github.com/warp/timekeep/factory"
)

// RolloverScheduler handles the automated year-end close.
type RolloverScheduler struct {
	Leave         *engine.LeaveService
	Rulesets      *factory.Library
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRolloverScheduler builds a scheduler with the hourly default interval.
func NewRolloverScheduler(leave *engine.LeaveService, rulesets *factory.Library, logger *slog.Logger) *RolloverScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RolloverScheduler{
		Leave:         leave,
		Rulesets:      rulesets,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start launches the background loop unless the scheduler is disabled.
func (rs *RolloverScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("rollover scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.Logger.Info("rollover scheduler started", "check_interval", rs.CheckInterval)
}

// Stop halts the ticker and waits for the loop to drain.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Logger.Info("rollover scheduler stopped")
	}
}

func (rs *RolloverScheduler) run() {
	defer rs.wg.Done()

	// The first close runs right away; the ticker covers the rest.
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RolloverScheduler) checkAndProcess() {
	ctx := context.Background()
	fromYear := engine.Today().Year() - 1

	report, err := rs.Leave.RunRollover(ctx, func(emp engine.Employee) engine.EntitlementPolicy {
		return rs.Rulesets.ForEmployee(emp).Entitlement
	}, fromYear)
	if err != nil {
		rs.Logger.Error("rollover check failed", "year", fromYear, "error", err)
		return
	}

	if report.Processed > 0 {
		rs.Logger.Info("rollover completed",
			"year", report.Year,
			"processed", report.Processed,
			"skipped", report.Skipped)
	}
}

// RunNow forces a close attempt outside the schedule.
func (rs *RolloverScheduler) RunNow() {
	rs.checkAndProcess()
}

// NextRunTime reports when the next scheduled attempt is due.
func (rs *RolloverScheduler) NextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
