/*
report.go - The four outcome buckets of one import call

PURPOSE:
  Every non-blank data row lands in exactly one bucket: imported,
  validation error, batch duplicate, or store failure. The summary's
  counters are per-row and always satisfy

    SuccessCount + ErrorCount + DuplicateCount == TotalRows

  so the operator gets an exact accounting with no silently-dropped rows.
  ErrorCount folds store-failure rows in with validation-error rows; a
  row with several field errors still counts once.

SEE ALSO:
  - importer.go: fills the report
  - validate.go: FieldError, the per-field detail of a validation error
*/
package ingest

import "github.com/shebao/policy-engine/policy"

// RowError is one field violation attributed to a spreadsheet row.
// Row numbers are 1-indexed against the original sheet; the first data
// row is row 2.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// Duplicate is a valid row whose derived id already appeared earlier in
// the same batch. First occurrence wins; this row was excluded.
type Duplicate struct {
	Row     int    `json:"row"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// StoreFailure is a valid, batch-unique row the store rejected: the
// triple already exists there, or the storage layer itself failed.
type StoreFailure struct {
	PolicyID string `json:"policy_id"`
	Message  string `json:"message"`
}

// Summary mirrors the buckets as row counters.
type Summary struct {
	TotalRows      int `json:"total_rows"`
	SuccessCount   int `json:"success_count"`
	ErrorCount     int `json:"error_count"`
	DuplicateCount int `json:"duplicate_count"`
}

// Report is the complete result of one import call.
type Report struct {
	Imported         []policy.Rule  `json:"imported"`
	ValidationErrors []RowError     `json:"validation_errors"`
	Duplicates       []Duplicate    `json:"batch_duplicates"`
	StoreFailures    []StoreFailure `json:"persistence_errors"`
	Summary          Summary        `json:"summary"`
}

func newReport() *Report {
	return &Report{
		Imported:         []policy.Rule{},
		ValidationErrors: []RowError{},
		Duplicates:       []Duplicate{},
		StoreFailures:    []StoreFailure{},
	}
}

// finalize fills the summary. errorRows is the number of rows that
// failed (validation or store), counted once per row.
func (r *Report) finalize(totalRows, errorRows int) {
	r.Summary = Summary{
		TotalRows:      totalRows,
		SuccessCount:   len(r.Imported),
		ErrorCount:     errorRows,
		DuplicateCount: len(r.Duplicates),
	}
}
