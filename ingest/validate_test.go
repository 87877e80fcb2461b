package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// candidateFrom builds a candidate through the real header/row path so
// validation tests exercise exactly what the pipeline produces.
func candidateFrom(t *testing.T, header []string, row []string) *Candidate {
	t.Helper()
	cand, ok := normalizeRow(mapHeaders(header), row, 2)
	require.True(t, ok, "row unexpectedly normalized to nothing")
	return cand
}

// fields extracts the violated field names in order.
func fields(errs []FieldError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Field
	}
	return out
}

func TestValidateAcceptsMinimalRow(t *testing.T) {
	cand := candidateFrom(t,
		[]string{"name", "city", "year", "period"},
		[]string{"Foshan H1", "Foshan", "2023", "H1"})

	assert.Empty(t, Validate(cand))
}

func TestValidateRequiredFields(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		cand := candidateFrom(t,
			[]string{"name", "city", "year", "period"},
			[]string{"", "Foshan", "2023", "H1"})

		errs := Validate(cand)
		require.Len(t, errs, 1)
		assert.Equal(t, "name", errs[0].Field)
		assert.Equal(t, "name must not be empty", errs[0].Message)
		assert.Nil(t, errs[0].Value)
	})

	t.Run("missing name and city report independently", func(t *testing.T) {
		cand := candidateFrom(t,
			[]string{"name", "city", "year", "period"},
			[]string{"", "", "2023", "H1"})

		errs := Validate(cand)
		assert.Equal(t, []string{"name", "city"}, fields(errs))
	})
}

func TestValidateYear(t *testing.T) {
	tests := []struct {
		name string
		year string
		ok   bool
	}{
		{"lower bound", "2000", true},
		{"upper bound", "2050", true},
		{"below range", "1999", false},
		{"above range", "2051", false},
		{"fractional", "2023.5", false},
		{"text", "twenty23", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := candidateFrom(t,
				[]string{"name", "city", "year", "period"},
				[]string{"P", "Foshan", tt.year, "H1"})

			errs := Validate(cand)
			if tt.ok {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, "year", errs[0].Field)
			assert.Equal(t, "year must be a whole number between 2000 and 2050", errs[0].Message)
		})
	}
}

func TestValidatePeriod(t *testing.T) {
	for _, bad := range []string{"h1", "Q1", "1", "H3", ""} {
		cand := candidateFrom(t,
			[]string{"name", "city", "year", "period"},
			[]string{"P", "Foshan", "2023", bad})

		errs := Validate(cand)
		require.Len(t, errs, 1, "period %q", bad)
		assert.Equal(t, "period", errs[0].Field)
		assert.Equal(t, "period must be H1 or H2", errs[0].Message)
	}
}

func TestValidateBases(t *testing.T) {
	header := []string{"name", "city", "year", "period", "pension_base_floor", "pension_base_cap"}

	t.Run("floor equal to cap is allowed", func(t *testing.T) {
		cand := candidateFrom(t, header, []string{"P", "Foshan", "2023", "H1", "5000", "5000"})
		assert.Empty(t, Validate(cand))
	})

	t.Run("negative floor", func(t *testing.T) {
		cand := candidateFrom(t, header, []string{"P", "Foshan", "2023", "H1", "-1", "5000"})

		errs := Validate(cand)
		require.Len(t, errs, 1)
		assert.Equal(t, "pension_base_floor", errs[0].Field)
		assert.Equal(t, "pension base floor must be non-negative", errs[0].Message)
		assert.Equal(t, "-1", errs[0].Value)
	})

	t.Run("zero cap is rejected", func(t *testing.T) {
		cand := candidateFrom(t, header, []string{"P", "Foshan", "2023", "H1", "0", "0"})

		errs := Validate(cand)
		require.Len(t, errs, 1)
		assert.Equal(t, "pension_base_cap", errs[0].Field)
		assert.Equal(t, "pension base cap must be positive", errs[0].Message)
	})

	t.Run("floor above cap names both bounds", func(t *testing.T) {
		cand := candidateFrom(t, header, []string{"P", "Foshan", "2023", "H1", "6000", "5000"})

		errs := Validate(cand)
		require.Len(t, errs, 1)
		assert.Equal(t, "pension_base_cap", errs[0].Field)
		assert.Equal(t, "pension base floor exceeds cap", errs[0].Message)
		assert.Equal(t, "floor: 6000, cap: 5000", errs[0].Value)
	})

	t.Run("absent cap defaults above any floor", func(t *testing.T) {
		cand := candidateFrom(t,
			[]string{"name", "city", "year", "period", "pension_base_floor"},
			[]string{"P", "Foshan", "2023", "H1", "99999"})
		assert.Empty(t, Validate(cand))
	})

	t.Run("unparseable cell gets a type error, not a range error", func(t *testing.T) {
		cand := candidateFrom(t, header, []string{"P", "Foshan", "2023", "H1", "abc", "5000"})

		errs := Validate(cand)
		require.Len(t, errs, 1)
		assert.Equal(t, "pension_base_floor", errs[0].Field)
		assert.Equal(t, "pension_base_floor must be a number", errs[0].Message)
		assert.Equal(t, "abc", errs[0].Value)
	})
}

func TestValidateRates(t *testing.T) {
	header := []string{"name", "city", "year", "period", "pension_rate_staff", "hf_rate_enterprise"}

	t.Run("closed interval bounds are allowed", func(t *testing.T) {
		cand := candidateFrom(t, header, []string{"P", "Foshan", "2023", "H1", "0", "1"})
		assert.Empty(t, Validate(cand))
	})

	t.Run("out-of-range rates", func(t *testing.T) {
		cand := candidateFrom(t, header, []string{"P", "Foshan", "2023", "H1", "-0.0001", "1.0001"})

		errs := Validate(cand)
		assert.Equal(t, []string{"pension_rate_staff", "hf_rate_enterprise"}, fields(errs))
	})

	t.Run("percentage entered as whole number is rejected", func(t *testing.T) {
		// 8 instead of 0.08 is the classic sheet mistake
		cand := candidateFrom(t,
			[]string{"name", "city", "year", "period", "pension_rate_staff"},
			[]string{"P", "Foshan", "2023", "H1", "8"})

		errs := Validate(cand)
		require.Len(t, errs, 1)
		assert.Equal(t, "pension_rate_staff must be a decimal between 0 and 1", errs[0].Message)
		assert.Equal(t, "8", errs[0].Value)
	})
}

func TestValidateReportsAllViolationsAtOnce(t *testing.T) {
	// GIVEN a row violating several independent rules
	cand := candidateFrom(t,
		[]string{"name", "city", "year", "period", "pension_base_cap", "medical_rate_staff"},
		[]string{"P", "", "1990", "Q1", "0", "1.5"})

	// WHEN validated
	errs := Validate(cand)

	// THEN every violation is present, so the operator fixes the sheet once
	assert.Equal(t, []string{
		"city",
		"year",
		"period",
		"pension_base_cap",
		"medical_rate_staff",
	}, fields(errs))
}
