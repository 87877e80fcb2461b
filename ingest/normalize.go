/*
normalize.go - Row normalizer: raw cells to a typed candidate record

PURPOSE:
  Converts one spreadsheet data row (parallel to the header row) into a
  Candidate: the sparse, typed record the validator runs against.

CONTRACT:
  - Column-to-field correspondence is by header text; headers matching a
    system-managed column (id, effective dates, audit timestamps, note)
    are dropped and never accepted from user input
  - String-encoded numbers are coerced (thousands separators stripped);
    a failed parse keeps the raw text so validation can name it
  - A row whose every cell is blank produces no candidate and no error,
    which tolerates trailing blank rows without polluting the report

SEE ALSO:
  - cell.go: the coercion result type
  - validate.go: the rules a Candidate must satisfy
*/
package ingest

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shebao/policy-engine/policy"
)

// =============================================================================
// CANDIDATE - One row's transient record
// =============================================================================

// Candidate is the typed record built from one non-blank data row. Only
// supplied columns are Present; defaults are the validator's concern.
// A candidate lives for the duration of one row's classification and is
// never mutated after validation.
type Candidate struct {
	Row int // 1-indexed spreadsheet row; the header is row 1

	Name   Cell
	City   Cell
	Year   Cell
	Period Cell

	// Figures holds the twenty numeric columns, keyed by column name.
	Figures map[string]Cell
}

// YearValue returns the candidate's year as an int, or 0 when the cell
// is absent or not a whole number.
func (c *Candidate) YearValue() int {
	if !c.Year.Numeric || !c.Year.Number.IsInteger() {
		return 0
	}
	return int(c.Year.Number.IntPart())
}

// PeriodValue returns the period used for identity derivation. An absent
// cell derives as H1 so the id stays well-formed; validation still fails
// the row.
func (c *Candidate) PeriodValue() policy.Period {
	if !c.Period.Present {
		return policy.PeriodH1
	}
	return policy.Period(c.Period.Raw)
}

// Identity derives the deterministic id and effective dates from the
// candidate's (city, year, period). Total: invalid cells derive a
// syntactically well-formed (if meaningless) identity.
func (c *Candidate) Identity() policy.Identity {
	return policy.Derive(c.City.Raw, c.YearValue(), c.PeriodValue())
}

// Rule materializes the full record from a candidate that passed
// validation, applying defaults for absent figures: 0 for floors and
// rates, the sentinel ceiling for caps.
func (c *Candidate) Rule() policy.Rule {
	identity := c.Identity()
	period, _ := policy.ParsePeriod(c.Period.Raw)

	figures := make(map[policy.Category]policy.Figures, len(policy.Categories()))
	for _, cat := range policy.Categories() {
		figures[cat] = policy.Figures{
			BaseFloor:      c.figure(policy.Column(cat, policy.PartBaseFloor)),
			BaseCap:        c.figureOr(policy.Column(cat, policy.PartBaseCap), policy.DefaultBaseCap),
			RateStaff:      c.figure(policy.Column(cat, policy.PartRateStaff)),
			RateEnterprise: c.figure(policy.Column(cat, policy.PartRateEnterprise)),
		}
	}

	return policy.Rule{
		ID:             identity.ID,
		Name:           c.Name.Raw,
		City:           c.City.Raw,
		Year:           c.YearValue(),
		Period:         period,
		EffectiveStart: identity.EffectiveStart,
		EffectiveEnd:   identity.EffectiveEnd,
		Figures:        figures,
	}
}

func (c *Candidate) figure(column string) decimal.Decimal {
	return c.figureOr(column, decimal.Zero)
}

func (c *Candidate) figureOr(column string, fallback decimal.Decimal) decimal.Decimal {
	if cell, ok := c.Figures[column]; ok && cell.Numeric {
		return cell.Number
	}
	return fallback
}

// =============================================================================
// HEADER MAPPING
// =============================================================================

// mapHeaders resolves each header cell to a known column name. System
// columns and unrecognized headers map to nothing and their cells are
// ignored for the whole sheet.
func mapHeaders(header []string) map[int]string {
	known := make(map[string]bool, 4+len(policy.NumericColumns()))
	for _, col := range []string{policy.ColName, policy.ColCity, policy.ColYear, policy.ColPeriod} {
		known[col] = true
	}
	for _, col := range policy.NumericColumns() {
		known[col] = true
	}
	for _, col := range policy.SystemColumns() {
		delete(known, col) // system columns never overlap, but be explicit
	}

	cols := make(map[int]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if known[name] {
			cols[i] = name
		}
	}
	return cols
}

// normalizeRow builds a candidate from one data row. Returns (nil, false)
// for a fully blank row.
func normalizeRow(cols map[int]string, row []string, rowNum int) (*Candidate, bool) {
	blank := true
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			blank = false
			break
		}
	}
	if blank {
		return nil, false
	}

	cand := &Candidate{Row: rowNum, Figures: make(map[string]Cell)}
	for i, name := range cols {
		var raw string
		if i < len(row) {
			raw = row[i] // trailing cells may be absent entirely
		}
		cell := parseCell(raw)
		if !cell.Present {
			continue
		}

		switch name {
		case policy.ColName:
			cand.Name = cell
		case policy.ColCity:
			cand.City = cell
		case policy.ColYear:
			cand.Year = cell
		case policy.ColPeriod:
			cand.Period = cell
		default:
			cand.Figures[name] = cell
		}
	}
	return cand, true
}
