/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Policy rules
  are flat on the wire (pension_base_floor, hf_rate_staff, ...) exactly
  as they appear in the import sheet, so an operator can compare a JSON
  response against their spreadsheet column for column.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator/v10 tags; handlers run them through the
  shared Validate instance before touching the store. The spreadsheet
  pipeline has its own validator (see ingest/validate.go) because its
  input is untyped cells, not JSON.

SEE ALSO:
  - handlers.go: uses these types
  - ingest/report.go: the import report this wraps
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shebao/policy-engine/ingest"
	"github.com/shebao/policy-engine/policy"
	"github.com/shebao/policy-engine/store/sqlite"
)

// =============================================================================
// POLICY RULES
// =============================================================================

// RuleDTO is a policy rule in API responses. Figures are float64 on the
// wire; exact decimals live only inside the domain and the store.
type RuleDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	City           string `json:"city"`
	Year           int    `json:"year"`
	Period         string `json:"period"`
	EffectiveStart string `json:"effective_start"`
	EffectiveEnd   string `json:"effective_end"`

	PensionBaseFloor      float64 `json:"pension_base_floor"`
	PensionBaseCap        float64 `json:"pension_base_cap"`
	PensionRateStaff      float64 `json:"pension_rate_staff"`
	PensionRateEnterprise float64 `json:"pension_rate_enterprise"`

	MedicalBaseFloor      float64 `json:"medical_base_floor"`
	MedicalBaseCap        float64 `json:"medical_base_cap"`
	MedicalRateStaff      float64 `json:"medical_rate_staff"`
	MedicalRateEnterprise float64 `json:"medical_rate_enterprise"`

	UnemploymentBaseFloor      float64 `json:"unemployment_base_floor"`
	UnemploymentBaseCap        float64 `json:"unemployment_base_cap"`
	UnemploymentRateStaff      float64 `json:"unemployment_rate_staff"`
	UnemploymentRateEnterprise float64 `json:"unemployment_rate_enterprise"`

	InjuryBaseFloor      float64 `json:"injury_base_floor"`
	InjuryBaseCap        float64 `json:"injury_base_cap"`
	InjuryRateStaff      float64 `json:"injury_rate_staff"`
	InjuryRateEnterprise float64 `json:"injury_rate_enterprise"`

	HfBaseFloor      float64 `json:"hf_base_floor"`
	HfBaseCap        float64 `json:"hf_base_cap"`
	HfRateStaff      float64 `json:"hf_rate_staff"`
	HfRateEnterprise float64 `json:"hf_rate_enterprise"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// CreateRuleRequest creates a policy rule by hand. Figure fields are
// pointers so that "absent" and "zero" stay distinct: absent floors and
// rates default to 0, absent caps to the sentinel ceiling, exactly as
// the import pipeline defaults them.
type CreateRuleRequest struct {
	Name   string `json:"name" validate:"required"`
	City   string `json:"city" validate:"required"`
	Year   int    `json:"year" validate:"required,gte=2000,lte=2050"`
	Period string `json:"period" validate:"required,oneof=H1 H2"`

	PensionBaseFloor      *float64 `json:"pension_base_floor" validate:"omitempty,gte=0"`
	PensionBaseCap        *float64 `json:"pension_base_cap" validate:"omitempty,gt=0"`
	PensionRateStaff      *float64 `json:"pension_rate_staff" validate:"omitempty,gte=0,lte=1"`
	PensionRateEnterprise *float64 `json:"pension_rate_enterprise" validate:"omitempty,gte=0,lte=1"`

	MedicalBaseFloor      *float64 `json:"medical_base_floor" validate:"omitempty,gte=0"`
	MedicalBaseCap        *float64 `json:"medical_base_cap" validate:"omitempty,gt=0"`
	MedicalRateStaff      *float64 `json:"medical_rate_staff" validate:"omitempty,gte=0,lte=1"`
	MedicalRateEnterprise *float64 `json:"medical_rate_enterprise" validate:"omitempty,gte=0,lte=1"`

	UnemploymentBaseFloor      *float64 `json:"unemployment_base_floor" validate:"omitempty,gte=0"`
	UnemploymentBaseCap        *float64 `json:"unemployment_base_cap" validate:"omitempty,gt=0"`
	UnemploymentRateStaff      *float64 `json:"unemployment_rate_staff" validate:"omitempty,gte=0,lte=1"`
	UnemploymentRateEnterprise *float64 `json:"unemployment_rate_enterprise" validate:"omitempty,gte=0,lte=1"`

	InjuryBaseFloor      *float64 `json:"injury_base_floor" validate:"omitempty,gte=0"`
	InjuryBaseCap        *float64 `json:"injury_base_cap" validate:"omitempty,gt=0"`
	InjuryRateStaff      *float64 `json:"injury_rate_staff" validate:"omitempty,gte=0,lte=1"`
	InjuryRateEnterprise *float64 `json:"injury_rate_enterprise" validate:"omitempty,gte=0,lte=1"`

	HfBaseFloor      *float64 `json:"hf_base_floor" validate:"omitempty,gte=0"`
	HfBaseCap        *float64 `json:"hf_base_cap" validate:"omitempty,gt=0"`
	HfRateStaff      *float64 `json:"hf_rate_staff" validate:"omitempty,gte=0,lte=1"`
	HfRateEnterprise *float64 `json:"hf_rate_enterprise" validate:"omitempty,gte=0,lte=1"`
}

// Figures assembles the per-category figures with the standard defaults.
func (r CreateRuleRequest) Figures() map[policy.Category]policy.Figures {
	fig := func(v *float64, fallback decimal.Decimal) decimal.Decimal {
		if v == nil {
			return fallback
		}
		return decimal.NewFromFloat(*v)
	}
	return map[policy.Category]policy.Figures{
		policy.Pension: {
			BaseFloor:      fig(r.PensionBaseFloor, decimal.Zero),
			BaseCap:        fig(r.PensionBaseCap, policy.DefaultBaseCap),
			RateStaff:      fig(r.PensionRateStaff, decimal.Zero),
			RateEnterprise: fig(r.PensionRateEnterprise, decimal.Zero),
		},
		policy.Medical: {
			BaseFloor:      fig(r.MedicalBaseFloor, decimal.Zero),
			BaseCap:        fig(r.MedicalBaseCap, policy.DefaultBaseCap),
			RateStaff:      fig(r.MedicalRateStaff, decimal.Zero),
			RateEnterprise: fig(r.MedicalRateEnterprise, decimal.Zero),
		},
		policy.Unemployment: {
			BaseFloor:      fig(r.UnemploymentBaseFloor, decimal.Zero),
			BaseCap:        fig(r.UnemploymentBaseCap, policy.DefaultBaseCap),
			RateStaff:      fig(r.UnemploymentRateStaff, decimal.Zero),
			RateEnterprise: fig(r.UnemploymentRateEnterprise, decimal.Zero),
		},
		policy.Injury: {
			BaseFloor:      fig(r.InjuryBaseFloor, decimal.Zero),
			BaseCap:        fig(r.InjuryBaseCap, policy.DefaultBaseCap),
			RateStaff:      fig(r.InjuryRateStaff, decimal.Zero),
			RateEnterprise: fig(r.InjuryRateEnterprise, decimal.Zero),
		},
		policy.HousingFund: {
			BaseFloor:      fig(r.HfBaseFloor, decimal.Zero),
			BaseCap:        fig(r.HfBaseCap, policy.DefaultBaseCap),
			RateStaff:      fig(r.HfRateStaff, decimal.Zero),
			RateEnterprise: fig(r.HfRateEnterprise, decimal.Zero),
		},
	}
}

// =============================================================================
// IMPORT
// =============================================================================

// ImportResponse wraps the import report for the HTTP layer.
type ImportResponse struct {
	Success          bool                  `json:"success"`
	Imported         []RuleDTO             `json:"imported"`
	ValidationErrors []ingest.RowError     `json:"validation_errors"`
	BatchDuplicates  []ingest.Duplicate    `json:"batch_duplicates"`
	PersistenceErrs  []ingest.StoreFailure `json:"persistence_errors"`
	Summary          ingest.Summary        `json:"summary"`
}

// =============================================================================
// PROJECTS & COMPANIES
// =============================================================================

// ProjectDTO represents a project in API responses.
type ProjectDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// CreateProjectRequest creates or renames a project.
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// CompanyDTO represents a company in API responses.
type CompanyDTO struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	City      string `json:"city,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateCompanyRequest attaches a company to a project.
type CreateCompanyRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	City      string `json:"city"`
}

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest is the static-credential login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the bearer token for subsequent requests.
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRuleDTO(r policy.Rule) RuleDTO {
	fig := func(cat policy.Category, part string) float64 {
		d, _ := r.Figure(policy.Column(cat, part))
		return d.InexactFloat64()
	}

	dto := RuleDTO{
		ID:             r.ID,
		Name:           r.Name,
		City:           r.City,
		Year:           r.Year,
		Period:         string(r.Period),
		EffectiveStart: r.EffectiveStart.Format(time.DateOnly),
		EffectiveEnd:   r.EffectiveEnd.Format(time.DateOnly),

		PensionBaseFloor:      fig(policy.Pension, policy.PartBaseFloor),
		PensionBaseCap:        fig(policy.Pension, policy.PartBaseCap),
		PensionRateStaff:      fig(policy.Pension, policy.PartRateStaff),
		PensionRateEnterprise: fig(policy.Pension, policy.PartRateEnterprise),

		MedicalBaseFloor:      fig(policy.Medical, policy.PartBaseFloor),
		MedicalBaseCap:        fig(policy.Medical, policy.PartBaseCap),
		MedicalRateStaff:      fig(policy.Medical, policy.PartRateStaff),
		MedicalRateEnterprise: fig(policy.Medical, policy.PartRateEnterprise),

		UnemploymentBaseFloor:      fig(policy.Unemployment, policy.PartBaseFloor),
		UnemploymentBaseCap:        fig(policy.Unemployment, policy.PartBaseCap),
		UnemploymentRateStaff:      fig(policy.Unemployment, policy.PartRateStaff),
		UnemploymentRateEnterprise: fig(policy.Unemployment, policy.PartRateEnterprise),

		InjuryBaseFloor:      fig(policy.Injury, policy.PartBaseFloor),
		InjuryBaseCap:        fig(policy.Injury, policy.PartBaseCap),
		InjuryRateStaff:      fig(policy.Injury, policy.PartRateStaff),
		InjuryRateEnterprise: fig(policy.Injury, policy.PartRateEnterprise),

		HfBaseFloor:      fig(policy.HousingFund, policy.PartBaseFloor),
		HfBaseCap:        fig(policy.HousingFund, policy.PartBaseCap),
		HfRateStaff:      fig(policy.HousingFund, policy.PartRateStaff),
		HfRateEnterprise: fig(policy.HousingFund, policy.PartRateEnterprise),
	}

	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		dto.UpdatedAt = r.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toRuleDTOs(rules []policy.Rule) []RuleDTO {
	dtos := make([]RuleDTO, len(rules))
	for i, r := range rules {
		dtos[i] = toRuleDTO(r)
	}
	return dtos
}

func toImportResponse(report *ingest.Report) ImportResponse {
	return ImportResponse{
		Success:          report.Summary.SuccessCount > 0,
		Imported:         toRuleDTOs(report.Imported),
		ValidationErrors: report.ValidationErrors,
		BatchDuplicates:  report.Duplicates,
		PersistenceErrs:  report.StoreFailures,
		Summary:          report.Summary,
	}
}

func toProjectDTO(p sqlite.Project) ProjectDTO {
	dto := ProjectDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		dto.UpdatedAt = p.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toCompanyDTO(c sqlite.Company) CompanyDTO {
	dto := CompanyDTO{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Name:      c.Name,
		City:      c.City,
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	return dto
}
