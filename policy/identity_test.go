package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ID DERIVATION
// =============================================================================

func TestDeriveID(t *testing.T) {
	tests := []struct {
		name   string
		city   string
		year   int
		period Period
		want   string
	}{
		{"lowercase city", "foshan", 2023, PeriodH1, "foshan2023H1"},
		{"mixed case folds", "Foshan", 2023, PeriodH1, "foshan2023H1"},
		{"all caps folds", "FOSHAN", 2023, PeriodH1, "foshan2023H1"},
		{"spaces stripped", "Hong Kong", 2024, PeriodH2, "hongkong2024H2"},
		{"punctuation stripped", "Xi'an", 2023, PeriodH1, "xian2023H1"},
		{"digits survive", "City9", 2025, PeriodH2, "city92025H2"},
		{"cjk reduces to empty token", "广州", 2023, PeriodH1, "2023H1"},
		{"empty city still well-formed", "", 2023, PeriodH2, "2023H2"},
		{"zero year still well-formed", "foshan", 0, PeriodH1, "foshan0H1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveID(tt.city, tt.year, tt.period))
		})
	}
}

func TestDeriveIDDeterministic(t *testing.T) {
	// GIVEN the same triple derived repeatedly
	// THEN the id never varies
	first := DeriveID("Shenzhen", 2024, PeriodH1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DeriveID("Shenzhen", 2024, PeriodH1))
	}
}

func TestDeriveIDDistinguishesTriples(t *testing.T) {
	// GIVEN a set of distinct normalized triples
	triples := []struct {
		city   string
		year   int
		period Period
	}{
		{"foshan", 2023, PeriodH1},
		{"foshan", 2023, PeriodH2},
		{"foshan", 2024, PeriodH1},
		{"guangzhou", 2023, PeriodH1},
		{"shenzhen", 2023, PeriodH1},
	}

	// WHEN every id is derived
	seen := make(map[string]int)
	for i, tr := range triples {
		id := DeriveID(tr.city, tr.year, tr.period)
		// THEN no two triples share an id
		if prev, ok := seen[id]; ok {
			t.Fatalf("triples %d and %d both derive %q", prev, i, id)
		}
		seen[id] = i
	}
}

func TestDeriveIDCaseVariantsCollide(t *testing.T) {
	// Case variants of one city are the same city; their ids must collide
	// so the duplicate checks treat them as one policy.
	assert.Equal(t,
		DeriveID("Foshan", 2023, PeriodH1),
		DeriveID("FOSHAN", 2023, PeriodH1))
}

// =============================================================================
// FULL IDENTITY
// =============================================================================

func TestDerive(t *testing.T) {
	t.Run("H1 covers the first half-year", func(t *testing.T) {
		id := Derive("Foshan", 2023, PeriodH1)

		require.Equal(t, "foshan2023H1", id.ID)
		assert.Equal(t, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), id.EffectiveStart)
		assert.Equal(t, time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC), id.EffectiveEnd)
	})

	t.Run("H2 covers the second half-year", func(t *testing.T) {
		id := Derive("Foshan", 2023, PeriodH2)

		require.Equal(t, "foshan2023H2", id.ID)
		assert.Equal(t, time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC), id.EffectiveStart)
		assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), id.EffectiveEnd)
	})
}
