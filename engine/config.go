/*
config.go - Engine rule configuration

PURPOSE:
  One explicit value holding every rule knob the engine recognizes. The
  config travels as a plain struct into each service and validator, never
  a process-wide singleton, so every validation is reproducible in
  isolation.

RECOGNIZED OPTIONS:
  MaxDailyHours              regulatory ceiling on worked time per day (8)
  MaxWeeklyHours             regulatory ceiling on worked time per week (40)
  BreakDurationMinutes       standard break applied by auto-deduction (30)
  MinimumBreakThresholdHours span at which a break becomes mandatory (6)
  AutomaticBreakDeduction    derive a break when the entry omits one (true)
  RoundingMinutes            rounding step for start/end timestamps (15)
  RoundingMethod             nearest | up | down (nearest)
  DefaultProjectCode         project assigned when none is given (INTERNAL)
  AnnualLeaveDefaultBalance  leave days granted to a new employee (30)

SEE ALSO:
  - entry.go: Consumes the break/rounding/ceiling options
  - request.go: Consumes leave types and balance defaults
  - factory/: Named presets that produce Config values
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TYPES - Closed set, extensible by configuration
// =============================================================================

type LeaveType struct {
	Code           string
	Label          string
	DeductsBalance bool
}

const (
	LeaveVacation = "vacation"
	LeaveSick     = "sick"
	LeaveSpecial  = "special"
)

func DefaultLeaveTypes() []LeaveType {
	return []LeaveType{
		{Code: LeaveVacation, Label: "Vacation", DeductsBalance: true},
		{Code: LeaveSick, Label: "Sick leave", DeductsBalance: true},
		{Code: LeaveSpecial, Label: "Special leave", DeductsBalance: true},
	}
}

// =============================================================================
// CONFIG
// =============================================================================

type Config struct {
	MaxDailyHours              decimal.Decimal
	MaxWeeklyHours             decimal.Decimal
	BreakDurationMinutes       int
	MinimumBreakThresholdHours decimal.Decimal
	AutomaticBreakDeduction    bool
	RoundingMinutes            int
	RoundingMethod             RoundingMethod
	DefaultProjectCode         string
	AnnualLeaveDefaultBalance  int

	// LeaveTypes is the recognized set of leave type codes. Unknown codes
	// are rejected at submission.
	LeaveTypes []LeaveType
}

func DefaultConfig() Config {
	return Config{
		MaxDailyHours:              decimal.NewFromInt(8),
		MaxWeeklyHours:             decimal.NewFromInt(40),
		BreakDurationMinutes:       30,
		MinimumBreakThresholdHours: decimal.NewFromInt(6),
		AutomaticBreakDeduction:    true,
		RoundingMinutes:            15,
		RoundingMethod:             RoundNearest,
		DefaultProjectCode:         "INTERNAL",
		AnnualLeaveDefaultBalance:  30,
		LeaveTypes:                 DefaultLeaveTypes(),
	}
}

func (c Config) Validate() error {
	if !c.MaxDailyHours.IsPositive() {
		return fmt.Errorf("maxDailyHours must be positive, got %s", c.MaxDailyHours)
	}
	if !c.MaxWeeklyHours.IsPositive() {
		return fmt.Errorf("maxWeeklyHours must be positive, got %s", c.MaxWeeklyHours)
	}
	if c.MaxWeeklyHours.LessThan(c.MaxDailyHours) {
		return fmt.Errorf("maxWeeklyHours %s below maxDailyHours %s", c.MaxWeeklyHours, c.MaxDailyHours)
	}
	if c.BreakDurationMinutes < 0 {
		return fmt.Errorf("breakDurationMinutes must not be negative, got %d", c.BreakDurationMinutes)
	}
	if c.MinimumBreakThresholdHours.IsNegative() {
		return fmt.Errorf("minimumBreakThresholdHours must not be negative, got %s", c.MinimumBreakThresholdHours)
	}
	if c.RoundingMinutes < 0 {
		return fmt.Errorf("roundingMinutes must not be negative, got %d", c.RoundingMinutes)
	}
	if !c.RoundingMethod.Valid() {
		return fmt.Errorf("unknown rounding method %q", c.RoundingMethod)
	}
	if c.DefaultProjectCode == "" {
		return fmt.Errorf("defaultProjectCode must not be empty")
	}
	if c.AnnualLeaveDefaultBalance < 0 {
		return fmt.Errorf("annualLeaveDefaultBalance must not be negative, got %d", c.AnnualLeaveDefaultBalance)
	}
	if len(c.LeaveTypes) == 0 {
		return fmt.Errorf("at least one leave type is required")
	}
	seen := make(map[string]bool, len(c.LeaveTypes))
	for _, lt := range c.LeaveTypes {
		if lt.Code == "" {
			return fmt.Errorf("leave type with empty code")
		}
		if seen[lt.Code] {
			return fmt.Errorf("duplicate leave type %q", lt.Code)
		}
		seen[lt.Code] = true
	}
	return nil
}

// LeaveType looks up a configured leave type by code.
func (c Config) LeaveType(code string) (LeaveType, bool) {
	for _, lt := range c.LeaveTypes {
		if lt.Code == code {
			return lt, true
		}
	}
	return LeaveType{}, false
}

// maxDailyMinutes converts the daily ceiling to whole minutes.
func (c Config) maxDailyMinutes() int {
	return int(c.MaxDailyHours.Mul(decimal.NewFromInt(60)).IntPart())
}

// minimumBreakThresholdMinutes converts the break threshold to whole minutes.
func (c Config) minimumBreakThresholdMinutes() int {
	return int(c.MinimumBreakThresholdHours.Mul(decimal.NewFromInt(60)).IntPart())
}
