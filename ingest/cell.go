package ingest

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CELL - Result of coercing one raw spreadsheet cell
// =============================================================================

// Cell is the outcome of numeric coercion for a single cell. Rather than
// silently falling back to a string, coercion keeps both the original
// text and whether it parsed, so the validator can flag type mismatches
// with the offending value intact.
type Cell struct {
	Present bool            // the column was supplied with a non-blank value
	Raw     string          // original cell text, trimmed
	Numeric bool            // Raw parsed as a number
	Number  decimal.Decimal // parsed value, zero unless Numeric
}

// parseCell coerces one raw cell. Thousands separators are stripped
// before the numeric parse, a common artifact of formatted sheets.
func parseCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Cell{}
	}

	cell := Cell{Present: true, Raw: trimmed}
	if d, err := decimal.NewFromString(strings.ReplaceAll(trimmed, ",", "")); err == nil {
		cell.Numeric = true
		cell.Number = d
	}
	return cell
}

// Value returns what the cell holds for error reporting: the raw text
// when present, nil for an absent cell.
func (c Cell) Value() any {
	if !c.Present {
		return nil
	}
	return c.Raw
}
