/*
importer.go - Import orchestrator for policy-rule workbooks

PURPOSE:
  Drives the full pipeline over an uploaded workbook: decode, then per
  row normalize -> derive identity -> validate -> batch-deduplicate ->
  reconcile against the store, accumulating the four outcome buckets.

CONTROL FLOW:
  Rows are processed strictly in sheet order, one at a time. Row-level
  failures never abort sibling rows; only structural failures (workbook
  unreadable, no data rows) abort, as the single error return.

IDEMPOTENCY:
  Ids are deterministic and the reconciler treats an existing triple as
  an error rather than an overwrite, so re-running the same import
  against an unmodified store reclassifies previously-imported rows as
  store failures and touches nothing. Re-submission after correcting
  the sheet is therefore always safe.

CONCURRENCY:
  Single-threaded per call. The duplicate id-set is allocated per call
  and discarded with it; concurrent imports from different callers are
  isolated up to the store's own constraint layer.

SEE ALSO:
  - normalize.go, validate.go, report.go: the pipeline stages
  - policy/store.go: the store the reconciler runs against
*/
package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/shebao/policy-engine/policy"
)

// Importer runs spreadsheet imports against a store.
type Importer struct {
	store policy.Store
	log   zerolog.Logger
}

// NewImporter creates an importer. The logger may be zerolog.Nop().
func NewImporter(store policy.Store, log zerolog.Logger) *Importer {
	return &Importer{store: store, log: log}
}

// Import decodes the raw workbook bytes (first sheet only, first row as
// header) and processes every data row. The returned error is non-nil
// only for structural failures; everything row-level is in the report.
func (imp *Importer) Import(ctx context.Context, data []byte) (*Report, error) {
	rows, err := decodeWorkbook(data)
	if err != nil {
		return nil, &policy.StructuralError{Reason: "cannot read workbook", Err: err}
	}
	if len(rows) < 2 {
		return nil, &policy.StructuralError{Reason: "nothing to import", Err: policy.ErrNoDataRows}
	}
	return imp.ImportRows(ctx, rows[0], rows[1:])
}

// ImportRows runs the pipeline over already-decoded rows. Exposed so the
// pipeline can be driven without workbook bytes (tests, future CSV path).
func (imp *Importer) ImportRows(ctx context.Context, header []string, rows [][]string) (*Report, error) {
	if len(rows) == 0 {
		return nil, &policy.StructuralError{Reason: "nothing to import", Err: policy.ErrNoDataRows}
	}

	cols := mapHeaders(header)
	report := newReport()

	// Batch-local duplicate state: id -> first row it appeared on.
	seen := make(map[string]int)

	totalRows := 0
	errorRows := 0

	for i, row := range rows {
		rowNum := i + 2 // sheet rows are 1-indexed and row 1 is the header

		cand, ok := normalizeRow(cols, row, rowNum)
		if !ok {
			continue // fully blank row, not counted
		}
		totalRows++

		if errs := Validate(cand); len(errs) > 0 {
			for _, e := range errs {
				report.ValidationErrors = append(report.ValidationErrors, RowError{
					Row: rowNum, Field: e.Field, Message: e.Message, Value: e.Value,
				})
			}
			errorRows++
			continue
		}

		id := cand.Identity().ID
		if first, dup := seen[id]; dup {
			report.Duplicates = append(report.Duplicates, Duplicate{
				Row:     rowNum,
				ID:      id,
				Message: fmt.Sprintf("duplicate policy id %q, first seen at row %d", id, first),
			})
			continue
		}
		seen[id] = rowNum

		stored, failure := imp.persist(ctx, cand.Rule())
		if failure != nil {
			report.StoreFailures = append(report.StoreFailures, *failure)
			errorRows++
			continue
		}
		report.Imported = append(report.Imported, *stored)
	}

	report.finalize(totalRows, errorRows)

	imp.log.Info().
		Int("total_rows", report.Summary.TotalRows).
		Int("imported", report.Summary.SuccessCount).
		Int("error_rows", report.Summary.ErrorCount).
		Int("duplicates", report.Summary.DuplicateCount).
		Msg("policy import finished")

	return report, nil
}

// persist reconciles one valid, batch-unique rule against the store:
// one existence probe, then one insert. The existing record is never
// overwritten.
func (imp *Importer) persist(ctx context.Context, rule policy.Rule) (*policy.Rule, *StoreFailure) {
	existing, err := imp.store.FindRule(ctx, rule.City, rule.Year, rule.Period)
	if err != nil {
		return nil, &StoreFailure{PolicyID: rule.ID, Message: "existence check failed: " + err.Error()}
	}
	if existing != nil {
		return nil, &StoreFailure{
			PolicyID: rule.ID,
			Message:  fmt.Sprintf("policy already exists: %s-%d-%s", rule.City, rule.Year, rule.Period),
		}
	}

	stored, err := imp.store.InsertRule(ctx, rule)
	if err != nil {
		return nil, &StoreFailure{PolicyID: rule.ID, Message: "insert failed: " + err.Error()}
	}
	return stored, nil
}

// decodeWorkbook reads the first sheet of an xlsx workbook into rows of
// raw cell text.
func decodeWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrUnreadableWorkbook, err)
	}
	return rows, nil
}
