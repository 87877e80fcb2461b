/*
errors.go - Centralized error types for the policy domain

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  The error taxonomy mirrors the two result channels of the import
  pipeline: structural errors abort a whole import and are returned as Go
  errors; row-level failures (validation, duplicates, store rejections)
  are values accumulated in the import report and never returned as
  errors.

ERROR CATEGORIES:
  1. Structural errors - Whole-file failures (unreadable workbook, no data)
  2. Store errors      - Database-level failures surfaced per row
  3. Lookup errors     - Missing records in the API layer

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, policy.ErrNoDataRows) {
        // 400, not 500
    }

SEE ALSO:
  - ingest/report.go: the row-level error values
  - store.go: interfaces returning these errors
*/
package policy

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnreadableWorkbook is returned when the uploaded bytes cannot be
	// decoded as a spreadsheet workbook at all.
	ErrUnreadableWorkbook = errors.New("unreadable workbook")

	// ErrNoDataRows is returned for a workbook with fewer than two rows:
	// a header row alone (or an empty sheet) is a structural failure, not
	// a zero-row success.
	ErrNoDataRows = errors.New("workbook must have a header row and at least one data row")

	// ErrRuleExists is returned when inserting a rule whose
	// (city, year, period) triple is already persisted.
	ErrRuleExists = errors.New("policy rule already exists")

	// ErrRuleNotFound is returned when a referenced rule doesn't exist.
	ErrRuleNotFound = errors.New("policy rule not found")
)

// =============================================================================
// STRUCTURAL ERROR - Carries context for whole-file failures
// =============================================================================

// StructuralError wraps a whole-file import failure with the underlying
// cause. Row-level reporting is never produced alongside one of these.
type StructuralError struct {
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}
