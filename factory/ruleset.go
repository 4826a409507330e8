/*
Package factory provides JSON to Go ruleset conversion.

PURPOSE:
  Converts JSON ruleset definitions into engine.Config and
  engine.EntitlementPolicy values. This enables working-time rules to be
  configured without code changes - HR can define rulesets in JSON, and
  the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify rules
  - Easy integration with admin UI
  - Version control for rule definitions
  - Database storage of ruleset configs

JSON SCHEMA:
  {
    "id": "fulltime-standard",
    "name": "Standard Full Time",
    "max_daily_hours": 8,
    "max_weekly_hours": 40,
    "break": {
      "duration_minutes": 30,
      "threshold_hours": 6,
      "automatic": true
    },
    "rounding": {"minutes": 15, "method": "nearest"},
    "default_project": "INTERNAL",
    "leave_types": [
      {"code": "vacation", "label": "Vacation", "deducts_balance": true}
    ],
    "entitlement": {
      "annual_days": 30,
      "carryover_cap": 5,
      "prorate_first_year": true,
      "tiers": [{"after_years": 5, "annual_days": 32}]
    }
  }

KEY FEATURES:
  - Validates the resulting configuration
  - Omitted fields fall back to engine.DefaultConfig values
  - Builds a matching EntitlementPolicy
  - Library type resolves an employee's ruleset_id to its rules

USAGE:
  factory := NewRulesetFactory()

  // From JSON string
  ruleset, err := factory.ParseRuleset(jsonString)

  // From a preset (recommended)
  ruleset, err := factory.ParseRuleset(PartTimeJSON("parttime-20h", "Part Time 20h", 4, 20))

  // Resolve per employee
  library := DefaultLibrary()
  rules := library.ForEmployee(emp)

SEE ALSO:
  - engine/config.go: Config type definition
  - engine/accrual.go: EntitlementPolicy and rollover planning
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/timekeep/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesetJSON is the JSON representation of a ruleset.
type RulesetJSON struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	MaxDailyHours  float64          `json:"max_daily_hours,omitempty"`
	MaxWeeklyHours float64          `json:"max_weekly_hours,omitempty"`
	Break          *BreakJSON       `json:"break,omitempty"`
	Rounding       *RoundingJSON    `json:"rounding,omitempty"`
	DefaultProject string           `json:"default_project,omitempty"`
	LeaveTypes     []LeaveTypeJSON  `json:"leave_types,omitempty"`
	Entitlement    *EntitlementJSON `json:"entitlement,omitempty"`
}

// BreakJSON represents break derivation rules.
type BreakJSON struct {
	DurationMinutes int     `json:"duration_minutes"`
	ThresholdHours  float64 `json:"threshold_hours"`
	Automatic       *bool   `json:"automatic,omitempty"` // Default true
}

// RoundingJSON represents rounding configuration.
type RoundingJSON struct {
	Minutes int    `json:"minutes"`
	Method  string `json:"method"` // nearest, up, down
}

// LeaveTypeJSON represents a configurable leave category.
type LeaveTypeJSON struct {
	Code           string `json:"code"`
	Label          string `json:"label"`
	DeductsBalance bool   `json:"deducts_balance"`
}

// EntitlementJSON represents annual leave entitlement configuration.
type EntitlementJSON struct {
	AnnualDays       int        `json:"annual_days"`
	CarryoverCap     *int       `json:"carryover_cap,omitempty"` // Negative = unlimited
	ProrateFirstYear bool       `json:"prorate_first_year,omitempty"`
	Tiers            []TierJSON `json:"tiers,omitempty"`
}

// TierJSON represents a tenure-based entitlement tier.
type TierJSON struct {
	AfterYears int `json:"after_years"`
	AnnualDays int `json:"annual_days"`
}

// =============================================================================
// RULESET
// =============================================================================

// Ruleset bundles the validation rules and leave entitlement that apply to
// a group of employees. Employees reference one by its ID.
type Ruleset struct {
	ID          string
	Name        string
	Config      engine.Config
	Entitlement engine.EntitlementPolicy
}

// =============================================================================
// RULESET FACTORY
// =============================================================================

// RulesetFactory converts JSON rulesets to Go structs.
type RulesetFactory struct{}

// NewRulesetFactory creates a new ruleset factory.
func NewRulesetFactory() *RulesetFactory {
	return &RulesetFactory{}
}

// ParseRuleset parses a JSON string into a Ruleset.
func (f *RulesetFactory) ParseRuleset(jsonStr string) (*Ruleset, error) {
	var rj RulesetJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset JSON: %w", err)
	}

	return f.FromJSON(rj)
}

// FromJSON converts RulesetJSON to a Ruleset. Omitted fields keep the
// engine defaults so a minimal ruleset only states what it changes.
func (f *RulesetFactory) FromJSON(rj RulesetJSON) (*Ruleset, error) {
	if rj.ID == "" {
		return nil, fmt.Errorf("ruleset requires an id")
	}

	cfg := engine.DefaultConfig()

	if rj.MaxDailyHours > 0 {
		cfg.MaxDailyHours = decimal.NewFromFloat(rj.MaxDailyHours)
	}
	if rj.MaxWeeklyHours > 0 {
		cfg.MaxWeeklyHours = decimal.NewFromFloat(rj.MaxWeeklyHours)
	}
	if rj.Break != nil {
		if rj.Break.DurationMinutes > 0 {
			cfg.BreakDurationMinutes = rj.Break.DurationMinutes
		}
		if rj.Break.ThresholdHours > 0 {
			cfg.MinimumBreakThresholdHours = decimal.NewFromFloat(rj.Break.ThresholdHours)
		}
		if rj.Break.Automatic != nil {
			cfg.AutomaticBreakDeduction = *rj.Break.Automatic
		}
	}
	if rj.Rounding != nil {
		if rj.Rounding.Minutes > 0 {
			cfg.RoundingMinutes = rj.Rounding.Minutes
		}
		if rj.Rounding.Method != "" {
			cfg.RoundingMethod = parseRoundingMethod(rj.Rounding.Method)
		}
	}
	if rj.DefaultProject != "" {
		cfg.DefaultProjectCode = rj.DefaultProject
	}
	if len(rj.LeaveTypes) > 0 {
		cfg.LeaveTypes = nil
		for _, lt := range rj.LeaveTypes {
			cfg.LeaveTypes = append(cfg.LeaveTypes, engine.LeaveType{
				Code:           lt.Code,
				Label:          lt.Label,
				DeductsBalance: lt.DeductsBalance,
			})
		}
	}

	// A present entitlement block states annual_days explicitly, zero
	// included; omit the block entirely to keep the default.
	entitlement := engine.DefaultEntitlementPolicy(cfg)
	if rj.Entitlement != nil {
		entitlement.AnnualDays = rj.Entitlement.AnnualDays
		cfg.AnnualLeaveDefaultBalance = rj.Entitlement.AnnualDays
		if rj.Entitlement.CarryoverCap != nil {
			entitlement.CarryoverCap = *rj.Entitlement.CarryoverCap
		}
		entitlement.ProrateFirstYear = rj.Entitlement.ProrateFirstYear
		for _, t := range rj.Entitlement.Tiers {
			entitlement.Tiers = append(entitlement.Tiers, engine.TenureTier{
				AfterYears: t.AfterYears,
				AnnualDays: t.AnnualDays,
			})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ruleset %q: %w", rj.ID, err)
	}

	return &Ruleset{
		ID:          rj.ID,
		Name:        rj.Name,
		Config:      cfg,
		Entitlement: entitlement,
	}, nil
}

// ToJSON converts a Ruleset back to its JSON representation.
func (f *RulesetFactory) ToJSON(rs *Ruleset) RulesetJSON {
	daily, _ := rs.Config.MaxDailyHours.Float64()
	weekly, _ := rs.Config.MaxWeeklyHours.Float64()
	threshold, _ := rs.Config.MinimumBreakThresholdHours.Float64()
	automatic := rs.Config.AutomaticBreakDeduction
	carryCap := rs.Entitlement.CarryoverCap

	rj := RulesetJSON{
		ID:             rs.ID,
		Name:           rs.Name,
		MaxDailyHours:  daily,
		MaxWeeklyHours: weekly,
		Break: &BreakJSON{
			DurationMinutes: rs.Config.BreakDurationMinutes,
			ThresholdHours:  threshold,
			Automatic:       &automatic,
		},
		Rounding: &RoundingJSON{
			Minutes: rs.Config.RoundingMinutes,
			Method:  string(rs.Config.RoundingMethod),
		},
		DefaultProject: rs.Config.DefaultProjectCode,
		Entitlement: &EntitlementJSON{
			AnnualDays:       rs.Entitlement.AnnualDays,
			CarryoverCap:     &carryCap,
			ProrateFirstYear: rs.Entitlement.ProrateFirstYear,
		},
	}

	for _, lt := range rs.Config.LeaveTypes {
		rj.LeaveTypes = append(rj.LeaveTypes, LeaveTypeJSON{
			Code:           lt.Code,
			Label:          lt.Label,
			DeductsBalance: lt.DeductsBalance,
		})
	}
	for _, t := range rs.Entitlement.Tiers {
		rj.Entitlement.Tiers = append(rj.Entitlement.Tiers, TierJSON{
			AfterYears: t.AfterYears,
			AnnualDays: t.AnnualDays,
		})
	}

	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRoundingMethod(s string) engine.RoundingMethod {
	switch s {
	case "up":
		return engine.RoundUp
	case "down":
		return engine.RoundDown
	default:
		return engine.RoundNearest
	}
}

// =============================================================================
// LIBRARY
// =============================================================================

// Library holds the known rulesets and resolves employees to theirs.
// The first ruleset passed to NewLibrary is the default.
type Library struct {
	order    []string
	rulesets map[string]*Ruleset
}

// NewLibrary creates a library from the given rulesets.
func NewLibrary(rulesets ...*Ruleset) *Library {
	lib := &Library{rulesets: make(map[string]*Ruleset)}
	for _, rs := range rulesets {
		if _, exists := lib.rulesets[rs.ID]; !exists {
			lib.order = append(lib.order, rs.ID)
		}
		lib.rulesets[rs.ID] = rs
	}
	return lib
}

// Get returns the ruleset with the given ID.
func (l *Library) Get(id string) (*Ruleset, bool) {
	rs, ok := l.rulesets[id]
	return rs, ok
}

// Default returns the library's default ruleset.
func (l *Library) Default() *Ruleset {
	if len(l.order) == 0 {
		return nil
	}
	return l.rulesets[l.order[0]]
}

// ForEmployee resolves an employee's ruleset, falling back to the default
// when the employee names none or names an unknown one.
func (l *Library) ForEmployee(emp engine.Employee) *Ruleset {
	if emp.RulesetID != "" {
		if rs, ok := l.rulesets[emp.RulesetID]; ok {
			return rs
		}
	}
	return l.Default()
}

// IDs returns the ruleset IDs in registration order.
func (l *Library) IDs() []string {
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	return ids
}

// =============================================================================
// PRESET RULESETS
// =============================================================================

// StandardFullTimeJSON returns JSON for the standard full-time ruleset:
// 8h days, 40h weeks, automatic 30 minute break above 6 hours.
func StandardFullTimeJSON(id, name string, annualDays int) string {
	rj := map[string]interface{}{
		"id":               id,
		"name":             name,
		"max_daily_hours":  8,
		"max_weekly_hours": 40,
		"break": map[string]interface{}{
			"duration_minutes": 30,
			"threshold_hours":  6,
			"automatic":        true,
		},
		"rounding":        map[string]interface{}{"minutes": 15, "method": "nearest"},
		"default_project": "INTERNAL",
		"entitlement": map[string]interface{}{
			"annual_days":        annualDays,
			"carryover_cap":      5,
			"prorate_first_year": true,
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// PartTimeJSON returns JSON for a part-time ruleset with reduced ceilings.
func PartTimeJSON(id, name string, dailyHours, weeklyHours float64) string {
	rj := map[string]interface{}{
		"id":               id,
		"name":             name,
		"max_daily_hours":  dailyHours,
		"max_weekly_hours": weeklyHours,
		"break": map[string]interface{}{
			"duration_minutes": 30,
			"threshold_hours":  6,
			"automatic":        true,
		},
		"rounding":        map[string]interface{}{"minutes": 15, "method": "nearest"},
		"default_project": "INTERNAL",
		"entitlement": map[string]interface{}{
			"annual_days":        20,
			"carryover_cap":      5,
			"prorate_first_year": true,
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// ContractorJSON returns JSON for a contractor ruleset: longer daily ceiling,
// no automatic break, minute-exact recording, no paid leave deduction.
func ContractorJSON(id, name string) string {
	rj := map[string]interface{}{
		"id":               id,
		"name":             name,
		"max_daily_hours":  10,
		"max_weekly_hours": 50,
		"break": map[string]interface{}{
			"duration_minutes": 30,
			"threshold_hours":  6,
			"automatic":        false,
		},
		"rounding":        map[string]interface{}{"minutes": 1, "method": "nearest"},
		"default_project": "CLIENT",
		"leave_types": []map[string]interface{}{
			{"code": "vacation", "label": "Unpaid Leave", "deducts_balance": false},
			{"code": "sick", "label": "Sick Leave", "deducts_balance": false},
		},
		"entitlement": map[string]interface{}{
			"annual_days":   0,
			"carryover_cap": 0,
		},
	}
	b, _ := json.MarshalIndent(rj, "", "  ")
	return string(b)
}

// DefaultLibrary builds the library of preset rulesets. The standard
// full-time ruleset is the default.
func DefaultLibrary() *Library {
	factory := NewRulesetFactory()
	presets := []string{
		StandardFullTimeJSON("fulltime-standard", "Standard Full Time", 30),
		PartTimeJSON("parttime-20h", "Part Time 20h", 4, 20),
		ContractorJSON("contractor", "External Contractor"),
	}

	var rulesets []*Ruleset
	for _, preset := range presets {
		rs, err := factory.ParseRuleset(preset)
		if err != nil {
			// Presets are compiled in; a parse failure is a programming error.
			panic(fmt.Sprintf("invalid preset ruleset: %v", err))
		}
		rulesets = append(rulesets, rs)
	}
	return NewLibrary(rulesets...)
}
