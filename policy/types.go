/*
Package policy defines the social-insurance policy rule domain model.

PURPOSE:
  A policy rule is a versioned set of contribution parameters ("five
  insurances and one housing fund") scoped to a city and a half-year
  period. This file defines the record itself, the five insurance
  categories, and the spreadsheet/database column vocabulary shared by
  the ingest pipeline, the store, and the API.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rule:     The persisted policy record
  - Category: One of the five insurance categories
  - Figures:  Base floor/cap and staff/enterprise rates for a category

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every monetary amount and rate,
     never float64 (rates like 0.0032 must compare exactly)
  2. Stable vocabulary: column names are derived from Category constants
     so the sheet header, SQL schema, and JSON payloads cannot drift
  3. Immutability: a Rule is never mutated once validated; corrections
     happen by deleting and re-importing

SEE ALSO:
  - period.go: H1/H2 periods and effective date ranges
  - identity.go: deterministic id derivation
  - store.go: persistence interfaces
*/
package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORIES - The five insurance categories
// =============================================================================

// Category identifies one insurance category. The string value is the
// column-name prefix used in spreadsheets and the database.
type Category string

const (
	Pension      Category = "pension"
	Medical      Category = "medical"
	Unemployment Category = "unemployment"
	Injury       Category = "injury"
	HousingFund  Category = "hf"
)

// Categories returns all categories in canonical order. Validation errors
// and column layouts follow this order.
func Categories() []Category {
	return []Category{Pension, Medical, Unemployment, Injury, HousingFund}
}

// =============================================================================
// COLUMN VOCABULARY
// =============================================================================

// Required non-numeric columns.
const (
	ColName   = "name"
	ColCity   = "city"
	ColYear   = "year"
	ColPeriod = "period"
)

// Per-category column suffixes.
const (
	PartBaseFloor      = "base_floor"
	PartBaseCap        = "base_cap"
	PartRateStaff      = "rate_staff"
	PartRateEnterprise = "rate_enterprise"
)

// Parts returns the per-category column suffixes in canonical order.
func Parts() []string {
	return []string{PartBaseFloor, PartBaseCap, PartRateStaff, PartRateEnterprise}
}

// Column returns the full column name for a category figure,
// e.g. Column(Pension, PartBaseFloor) == "pension_base_floor".
func Column(c Category, part string) string {
	return string(c) + "_" + part
}

// NumericColumns returns all twenty figure columns in canonical order.
func NumericColumns() []string {
	cols := make([]string, 0, len(Categories())*len(Parts()))
	for _, c := range Categories() {
		for _, p := range Parts() {
			cols = append(cols, Column(c, p))
		}
	}
	return cols
}

// SystemColumns are managed by the system and never accepted from user
// input, even when present in an uploaded sheet.
func SystemColumns() []string {
	return []string{"id", "effective_start", "effective_end", "created_at", "updated_at", "note"}
}

// =============================================================================
// DOMAIN CONSTRAINTS
// =============================================================================

const (
	// YearMin and YearMax bound the year field of a valid rule.
	YearMin = 2000
	YearMax = 2050
)

// DefaultBaseCap is the sentinel ceiling applied when a sheet or a create
// request omits a base cap. Matches the default used for hand-created rules.
var DefaultBaseCap = decimal.NewFromInt(999999)

// MaxRate is the upper bound of the closed interval for rate fields.
var MaxRate = decimal.NewFromInt(1)

// =============================================================================
// FIGURES - Contribution parameters for one category
// =============================================================================

// Figures holds the four numeric parameters of one insurance category.
type Figures struct {
	BaseFloor      decimal.Decimal
	BaseCap        decimal.Decimal
	RateStaff      decimal.Decimal
	RateEnterprise decimal.Decimal
}

// =============================================================================
// RULE - The persisted policy record
// =============================================================================

// Rule is one versioned policy: contribution parameters for all five
// categories, scoped to (city, year, period). The ID and the effective
// date range are derived, never user-supplied.
type Rule struct {
	ID     string
	Name   string
	City   string
	Year   int
	Period Period

	EffectiveStart time.Time
	EffectiveEnd   time.Time

	Figures map[Category]Figures

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Figure returns the named figure column value, and false for an unknown
// column. Used by the store and DTO layers to flatten the record.
func (r Rule) Figure(column string) (decimal.Decimal, bool) {
	for _, c := range Categories() {
		f, ok := r.Figures[c]
		if !ok {
			continue
		}
		switch column {
		case Column(c, PartBaseFloor):
			return f.BaseFloor, true
		case Column(c, PartBaseCap):
			return f.BaseCap, true
		case Column(c, PartRateStaff):
			return f.RateStaff, true
		case Column(c, PartRateEnterprise):
			return f.RateEnterprise, true
		}
	}
	return decimal.Decimal{}, false
}
