package policy

import "time"

// =============================================================================
// PERIOD - The half-year granularity at which policies are versioned
// =============================================================================

// Period is the half of a calendar year a rule applies to. The broader
// payroll domain also knows quarterly and full-year periods; the rule
// pipeline recognizes only H1/H2, and new period kinds would be added
// here as constants with their own date ranges.
type Period string

const (
	PeriodH1 Period = "H1" // January 1 - June 30
	PeriodH2 Period = "H2" // July 1 - December 31
)

// ParsePeriod returns the period for a raw cell or request value.
// Only the exact tokens "H1" and "H2" are recognized.
func ParsePeriod(s string) (Period, bool) {
	switch Period(s) {
	case PeriodH1:
		return PeriodH1, true
	case PeriodH2:
		return PeriodH2, true
	}
	return "", false
}

// Valid reports whether p is a recognized period.
func (p Period) Valid() bool {
	return p == PeriodH1 || p == PeriodH2
}

// EffectiveRange returns the date range a rule with this period covers.
// Anything other than H1 maps to the second half; callers that care about
// unknown period tokens validate separately, this function is total.
func (p Period) EffectiveRange(year int) (start, end time.Time) {
	if p == PeriodH1 {
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
