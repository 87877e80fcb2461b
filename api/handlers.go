/*
handlers.go - HTTP API handlers for the policy administration service

PURPOSE:
  Exposes policy-rule management and the spreadsheet import pipeline via
  REST. Handles HTTP request/response and JSON serialization, delegates
  to the domain packages.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                Static-credential login

  Policies:
    GET    /api/policies                  List all policy rules
    POST   /api/policies                  Create a rule by hand
    GET    /api/policies/{id}             Get a rule
    DELETE /api/policies/{id}             Delete a rule
    POST   /api/policies/import           Import a workbook (multipart)
    GET    /api/policies/import/template  Column documentation (JSON)
    GET    /api/policies/import/template.xlsx  Generated template workbook

  Projects:
    GET    /api/projects                  List projects
    POST   /api/projects                  Create project
    GET    /api/projects/{id}             Get project
    PUT    /api/projects/{id}             Update project
    DELETE /api/projects/{id}             Delete project (and companies)

  Companies:
    GET    /api/companies                 List (optionally ?project_id=)
    POST   /api/companies                 Create company
    DELETE /api/companies/{id}            Delete company

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, structural import failures
  - 401: Missing/invalid session token
  - 404: Resource not found
  - 409: Conflict (rule triple already persisted)
  - 500: Internal errors

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
  - ingest/importer.go: the import pipeline behind POST /import
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/shebao/policy-engine/ingest"
	"github.com/shebao/policy-engine/policy"
	"github.com/shebao/policy-engine/store/sqlite"
)

// MaxUploadBytes caps import uploads at 10 MB.
const MaxUploadBytes = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Importer *ingest.Importer
	Log      zerolog.Logger

	validate *validator.Validate
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Importer: ingest.NewImporter(store, log),
		Log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListRules returns all policy rules.
// GET /api/policies
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  toRuleDTOs(rules),
		"count": len(rules),
	})
}

// GetRule returns a single policy rule.
// GET /api/policies/{id}
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := h.Store.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get policy", err)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "Policy not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}

// CreateRule creates a policy rule from JSON. The id and effective dates
// are derived, never taken from the request.
// POST /api/policies
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	period, _ := policy.ParsePeriod(req.Period)
	identity := policy.Derive(req.City, req.Year, period)

	ctx := r.Context()
	existing, err := h.Store.FindRule(ctx, req.City, req.Year, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing policy", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Policy already exists for this city, year and period", nil)
		return
	}

	rule := policy.Rule{
		ID:             identity.ID,
		Name:           req.Name,
		City:           req.City,
		Year:           req.Year,
		Period:         period,
		EffectiveStart: identity.EffectiveStart,
		EffectiveEnd:   identity.EffectiveEnd,
		Figures:        req.Figures(),
	}

	stored, err := h.Store.InsertRule(ctx, rule)
	if err != nil {
		if errors.Is(err, policy.ErrRuleExists) {
			writeError(w, http.StatusConflict, "Policy already exists for this city, year and period", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(*stored))
}

// DeleteRule removes a policy rule.
// DELETE /api/policies/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteRule(r.Context(), id); err != nil {
		if errors.Is(err, policy.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "Policy not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete policy", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// ImportRules accepts a multipart workbook upload and runs the import
// pipeline. Row-level failures come back in the 200 response; only
// structural failures (bad upload, unreadable or empty workbook) are
// HTTP errors.
// POST /api/policies/import
func (h *Handler) ImportRules(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Expected multipart/form-data with a file field", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		writeError(w, http.StatusBadRequest, "Please upload an Excel file (.xlsx or .xls)", nil)
		return
	}
	if header.Size > MaxUploadBytes {
		writeError(w, http.StatusBadRequest, "File exceeds the 10MB limit", nil)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload", err)
		return
	}
	if len(data) > MaxUploadBytes {
		writeError(w, http.StatusBadRequest, "File exceeds the 10MB limit", nil)
		return
	}

	h.Log.Info().Str("filename", header.Filename).Int("bytes", len(data)).Msg("policy import started")

	report, err := h.Importer.Import(r.Context(), data)
	if err != nil {
		var structural *policy.StructuralError
		if errors.As(err, &structural) {
			writeError(w, http.StatusBadRequest, "Import failed: "+structural.Reason, structural.Err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Import failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toImportResponse(report))
}

// ImportTemplate documents the expected sheet columns.
// GET /api/policies/import/template
func (h *Handler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, templateInfo())
}

// ImportTemplateWorkbook generates a starter workbook with the header
// row and one example data row.
// GET /api/policies/import/template.xlsx
func (h *Handler) ImportTemplateWorkbook(w http.ResponseWriter, r *http.Request) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	headers := templateHeader()
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build template", err)
		return
	}
	example := templateExampleRow()
	if err := f.SetSheetRow(sheet, "A2", &example); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build template", err)
		return
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build template", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="policy-import-template.xlsx"`)
	w.Write(buf.Bytes())
}

func templateHeader() []any {
	cols := []any{policy.ColName, policy.ColCity, policy.ColYear, policy.ColPeriod}
	for _, c := range policy.NumericColumns() {
		cols = append(cols, c)
	}
	return cols
}

func templateExampleRow() []any {
	row := []any{"Foshan H1 2023 policy", "Foshan", 2023, "H1"}
	examples := map[string][]any{
		string(policy.Pension):      {1900, 24330, 0.08, 0.14},
		string(policy.Medical):      {1900, 24330, 0.02, 0.055},
		string(policy.Unemployment): {1900, 24330, 0.0032, 0.008},
		string(policy.Injury):       {1900, 24330, 0, 0.001},
		string(policy.HousingFund):  {1900, 34860, 0.05, 0.05},
	}
	for _, cat := range policy.Categories() {
		row = append(row, examples[string(cat)]...)
	}
	return row
}

func templateInfo() map[string]any {
	categories := make([]map[string]any, 0, len(policy.Categories()))
	for _, cat := range policy.Categories() {
		fields := make([]string, 0, len(policy.Parts()))
		for _, part := range policy.Parts() {
			fields = append(fields, policy.Column(cat, part))
		}
		categories = append(categories, map[string]any{
			"category": string(cat),
			"fields":   fields,
		})
	}
	return map[string]any{
		"required_fields": []map[string]any{
			{"name": policy.ColName, "description": "policy display name", "example": "Foshan H1 2023 policy"},
			{"name": policy.ColCity, "description": "city the policy applies to", "example": "Foshan"},
			{"name": policy.ColYear, "description": "calendar year", "example": 2023},
			{"name": policy.ColPeriod, "description": "half-year period", "example": "H1", "options": []string{"H1", "H2"}},
		},
		"insurance_fields": categories,
		"notes": []string{
			"The first row must be the column-name header row",
			"Rates are decimals (0.08 means 8%), between 0 and 1",
			"Base amounts are plain numbers; thousands separators are tolerated",
			"Effective dates and the policy id are derived and must not be supplied",
		},
	}
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns all projects.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects", err)
		return
	}

	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProject returns a single project.
// GET /api/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.Store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get project", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Project not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*p))
}

// CreateProject creates a new project.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	p := sqlite.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.Store.SaveProject(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create project", err)
		return
	}

	stored, err := h.Store.GetProject(r.Context(), p.ID)
	if err != nil || stored == nil {
		writeError(w, http.StatusInternalServerError, "Failed to read back project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(*stored))
}

// UpdateProject renames a project.
// PUT /api/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	ctx := r.Context()
	existing, err := h.Store.GetProject(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get project", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Project not found", nil)
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	if err := h.Store.SaveProject(ctx, *existing); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update project", err)
		return
	}

	updated, err := h.Store.GetProject(ctx, id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "Failed to read back project", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*updated))
}

// DeleteProject removes a project and its companies.
// DELETE /api/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteProject(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete project", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

// ListCompanies returns companies, optionally scoped to a project.
// GET /api/companies?project_id=...
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Store.ListCompanies(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list companies", err)
		return
	}

	dtos := make([]CompanyDTO, len(companies))
	for i, c := range companies {
		dtos[i] = toCompanyDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCompany attaches a company to a project.
// POST /api/companies
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	ctx := r.Context()
	project, err := h.Store.GetProject(ctx, req.ProjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check project", err)
		return
	}
	if project == nil {
		writeError(w, http.StatusBadRequest, "Project does not exist", nil)
		return
	}

	c := sqlite.Company{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		Name:      req.Name,
		City:      req.City,
	}
	if err := h.Store.SaveCompany(ctx, c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create company", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompanyDTO(c))
}

// GetCompany returns a single company.
// GET /api/companies/{id}
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.Store.GetCompany(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get company", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Company not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyDTO(*c))
}

// DeleteCompany removes a company.
// DELETE /api/companies/{id}
func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeleteCompany(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete company", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
