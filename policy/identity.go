package policy

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// IDENTITY - Deterministic id and effective dates for a rule
// =============================================================================

// Identity is everything derived from (city, year, period): the rule id
// and the effective date range.
type Identity struct {
	ID             string
	EffectiveStart time.Time
	EffectiveEnd   time.Time
}

// DeriveID builds the deterministic rule id: the normalized city token,
// the literal year, and the period, concatenated with no separator.
// ("Foshan", 2023, H1) -> "foshan2023H1".
//
// The function is total: an empty city or zero year still yields a
// syntactically well-formed id. Validity is the validator's job.
// Determinism and injectivity over the normalized triple are what the
// duplicate checks rely on.
func DeriveID(city string, year int, period Period) string {
	return cityToken(city) + strconv.Itoa(year) + string(period)
}

// Derive returns the full derived identity for a rule.
func Derive(city string, year int, period Period) Identity {
	start, end := period.EffectiveRange(year)
	return Identity{
		ID:             DeriveID(city, year, period),
		EffectiveStart: start,
		EffectiveEnd:   end,
	}
}

// cityToken lowercases the city and strips everything outside [a-z0-9].
// CJK city names reduce to an empty token; the year+period tail keeps the
// id well-formed, and within one store such names collide only when the
// triple collides.
func cityToken(city string) string {
	lowered := strings.ToLower(city)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
