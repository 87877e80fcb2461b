/*
validate.go - Business-rule validation for candidate records

PURPOSE:
  Applies every field-level and cross-field rule to one candidate and
  returns the complete ordered list of violations. Pure: no I/O, no
  mutation of the candidate, no auto-correction.

RULES:
  - name, city: required non-empty
  - year: whole number in [2000, 2050]
  - period: exactly H1 or H2
  - per category: floor >= 0, cap > 0, floor <= cap (reported on the cap
    field, naming both bounds so the operator can fix the sheet)
  - all ten rates: within the closed interval [0, 1]; a rate entered as a
    whole-number percentage (8 instead of 0.08) is the classic failure
    mode this catches

ERROR COMPLETENESS:
  Checks run independently: a missing name does not suppress a missing
  city, and a row violating several rules reports all of them, so the
  operator can correct the source file in one pass.

SEE ALSO:
  - normalize.go: what a Candidate holds
  - policy/types.go: bounds and defaults
*/
package ingest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shebao/policy-engine/policy"
)

// FieldError is one business-rule violation on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// Validate returns every rule violation for the candidate, in field
// order. An empty slice means the record is valid.
func Validate(c *Candidate) []FieldError {
	var errs []FieldError

	// Required fields, checked independently.
	if !c.Name.Present {
		errs = append(errs, FieldError{policy.ColName, "name must not be empty", c.Name.Value()})
	}
	if !c.City.Present {
		errs = append(errs, FieldError{policy.ColCity, "city must not be empty", c.City.Value()})
	}

	year := c.YearValue()
	if year < policy.YearMin || year > policy.YearMax {
		errs = append(errs, FieldError{
			policy.ColYear,
			fmt.Sprintf("year must be a whole number between %d and %d", policy.YearMin, policy.YearMax),
			c.Year.Value(),
		})
	}

	if _, ok := policy.ParsePeriod(c.Period.Raw); !ok {
		errs = append(errs, FieldError{policy.ColPeriod, "period must be H1 or H2", c.Period.Value()})
	}

	for _, cat := range policy.Categories() {
		errs = append(errs, validateBases(c, cat)...)
		errs = append(errs, validateRates(c, cat)...)
	}
	return errs
}

// validateBases checks floor >= 0, cap > 0, and floor <= cap for one
// category. A cell that fails numeric coercion gets a type-mismatch
// error and is excluded from the range checks it would poison.
func validateBases(c *Candidate, cat policy.Category) []FieldError {
	var errs []FieldError

	floorCol := policy.Column(cat, policy.PartBaseFloor)
	capCol := policy.Column(cat, policy.PartBaseCap)

	floor, floorOK := numericOrDefault(c, floorCol, decimal.Zero, &errs)
	ceiling, capOK := numericOrDefault(c, capCol, policy.DefaultBaseCap, &errs)

	if floorOK && floor.IsNegative() {
		errs = append(errs, FieldError{floorCol, fmt.Sprintf("%s base floor must be non-negative", cat), c.Figures[floorCol].Value()})
	}
	if capOK && !ceiling.IsPositive() {
		errs = append(errs, FieldError{capCol, fmt.Sprintf("%s base cap must be positive", cat), c.Figures[capCol].Value()})
	}
	if floorOK && capOK && floor.GreaterThan(ceiling) {
		errs = append(errs, FieldError{
			capCol,
			fmt.Sprintf("%s base floor exceeds cap", cat),
			fmt.Sprintf("floor: %s, cap: %s", floor, ceiling),
		})
	}
	return errs
}

// validateRates checks both rate fields of one category against [0, 1].
func validateRates(c *Candidate, cat policy.Category) []FieldError {
	var errs []FieldError

	for _, part := range []string{policy.PartRateStaff, policy.PartRateEnterprise} {
		col := policy.Column(cat, part)
		rate, ok := numericOrDefault(c, col, decimal.Zero, &errs)
		if !ok {
			continue
		}
		if rate.IsNegative() || rate.GreaterThan(policy.MaxRate) {
			errs = append(errs, FieldError{col, fmt.Sprintf("%s must be a decimal between 0 and 1", col), c.Figures[col].Value()})
		}
	}
	return errs
}

// numericOrDefault resolves a figure cell to its numeric value, applying
// the default for an absent cell. A present-but-unparseable cell appends
// a type-mismatch error and reports not-ok.
func numericOrDefault(c *Candidate, column string, fallback decimal.Decimal, errs *[]FieldError) (decimal.Decimal, bool) {
	cell, ok := c.Figures[column]
	if !ok || !cell.Present {
		return fallback, true
	}
	if !cell.Numeric {
		*errs = append(*errs, FieldError{column, fmt.Sprintf("%s must be a number", column), cell.Raw})
		return decimal.Decimal{}, false
	}
	return cell.Number, true
}
