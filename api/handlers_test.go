package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/shebao/policy-engine/store/sqlite"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type testAPI struct {
	router http.Handler
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zerolog.Nop()
	handler := NewHandler(store, log)
	auth := NewAuth("admin", "secret")
	api := &testAPI{router: NewRouter(handler, auth, log)}

	// Log in once; most tests need a token.
	res := api.do(t, "POST", "/api/auth/login", map[string]string{
		"username": "admin", "password": "secret",
	}, "")
	require.Equal(t, http.StatusOK, res.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &login))
	api.token = login.Token
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func validRuleBody() map[string]any {
	return map[string]any{
		"name":               "Foshan 2023 H1",
		"city":               "Foshan",
		"year":               2023,
		"period":             "H1",
		"pension_base_floor": 1900,
		"pension_base_cap":   24330,
		"pension_rate_staff": 0.08,
	}
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	api := newTestAPI(t)

	t.Run("wrong password", func(t *testing.T) {
		res := api.do(t, "POST", "/api/auth/login", map[string]string{
			"username": "admin", "password": "wrong",
		}, "")
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		res := api.do(t, "GET", "/api/policies", nil, "")
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		res := api.do(t, "GET", "/api/policies", nil, "not-a-token")
		assert.Equal(t, http.StatusUnauthorized, res.Code)
	})

	t.Run("issued token is accepted", func(t *testing.T) {
		res := api.do(t, "GET", "/api/policies", nil, api.token)
		assert.Equal(t, http.StatusOK, res.Code)
	})
}

// =============================================================================
// POLICY CRUD
// =============================================================================

func TestCreateRule(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(t, "POST", "/api/policies", validRuleBody(), api.token)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	dto := decodeBody[RuleDTO](t, res)
	assert.Equal(t, "foshan2023H1", dto.ID)
	assert.Equal(t, "2023-01-01", dto.EffectiveStart)
	assert.Equal(t, "2023-06-30", dto.EffectiveEnd)
	assert.Equal(t, 0.08, dto.PensionRateStaff)
	// Absent caps default to the sentinel ceiling.
	assert.Equal(t, float64(999999), dto.MedicalBaseCap)
}

func TestCreateRuleValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing name", func(b map[string]any) { delete(b, "name") }},
		{"year below range", func(b map[string]any) { b["year"] = 1999 }},
		{"bad period", func(b map[string]any) { b["period"] = "Q1" }},
		{"rate above one", func(b map[string]any) { b["pension_rate_staff"] = 1.5 }},
		{"zero cap", func(b map[string]any) { b["pension_base_cap"] = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validRuleBody()
			tt.mutate(body)

			res := api.do(t, "POST", "/api/policies", body, api.token)
			assert.Equal(t, http.StatusBadRequest, res.Code)
		})
	}
}

func TestCreateRuleConflict(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(t, "POST", "/api/policies", validRuleBody(), api.token)
	require.Equal(t, http.StatusCreated, res.Code)

	// Same triple, different spelling of the city.
	body := validRuleBody()
	body["city"] = "FOSHAN"

	res = api.do(t, "POST", "/api/policies", body, api.token)
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestGetAndDeleteRule(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(t, "POST", "/api/policies", validRuleBody(), api.token)
	require.Equal(t, http.StatusCreated, res.Code)

	res = api.do(t, "GET", "/api/policies/foshan2023H1", nil, api.token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Foshan 2023 H1", decodeBody[RuleDTO](t, res).Name)

	res = api.do(t, "DELETE", "/api/policies/foshan2023H1", nil, api.token)
	assert.Equal(t, http.StatusOK, res.Code)

	res = api.do(t, "GET", "/api/policies/foshan2023H1", nil, api.token)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = api.do(t, "DELETE", "/api/policies/foshan2023H1", nil, api.token)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

// =============================================================================
// IMPORT
// =============================================================================

// multipartUpload builds a multipart body carrying one file field.
func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func workbookBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestImportEndpoint(t *testing.T) {
	api := newTestAPI(t)

	data := workbookBytes(t, [][]any{
		{"name", "city", "year", "period", "pension_base_floor", "pension_base_cap"},
		{"Foshan 2023 H1", "Foshan", 2023, "H1", 1900, 24330},
		{"broken", "", 2023, "H2"},
	})

	body, contentType := multipartUpload(t, "policies.xlsx", data)
	req := httptest.NewRequest("POST", "/api/policies/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+api.token)

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[ImportResponse](t, rec)
	assert.True(t, resp.Success)
	require.Len(t, resp.Imported, 1)
	assert.Equal(t, "foshan2023H1", resp.Imported[0].ID)
	require.Len(t, resp.ValidationErrors, 1)
	assert.Equal(t, 3, resp.ValidationErrors[0].Row)
	assert.Equal(t, 2, resp.Summary.TotalRows)

	// The imported rule is live in the store.
	res := api.do(t, "GET", "/api/policies/foshan2023H1", nil, api.token)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestImportEndpointRejections(t *testing.T) {
	api := newTestAPI(t)

	t.Run("wrong file extension", func(t *testing.T) {
		body, contentType := multipartUpload(t, "policies.csv", []byte("name,city"))
		req := httptest.NewRequest("POST", "/api/policies/import", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+api.token)

		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "no file here"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", "/api/policies/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+api.token)

		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unreadable workbook", func(t *testing.T) {
		body, contentType := multipartUpload(t, "policies.xlsx", []byte("not a workbook"))
		req := httptest.NewRequest("POST", "/api/policies/import", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+api.token)

		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("header-only workbook", func(t *testing.T) {
		data := workbookBytes(t, [][]any{{"name", "city", "year", "period"}})
		body, contentType := multipartUpload(t, "policies.xlsx", data)
		req := httptest.NewRequest("POST", "/api/policies/import", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+api.token)

		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestImportTemplate(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(t, "GET", "/api/policies/import/template", nil, api.token)
	require.Equal(t, http.StatusOK, res.Code)

	info := decodeBody[map[string]any](t, res)
	assert.Contains(t, info, "required_fields")
	assert.Contains(t, info, "insurance_fields")
}

func TestImportTemplateWorkbook(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(t, "GET", "/api/policies/import/template.xlsx", nil, api.token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "spreadsheetml")

	// The generated template must be import-ready as-is.
	f, err := excelize.OpenReader(bytes.NewReader(res.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, "name", rows[0][0])
	assert.Len(t, rows[0], 24) // 4 required + 20 figure columns
}

// =============================================================================
// PROJECTS & COMPANIES
// =============================================================================

func TestProjectEndpoints(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(t, "POST", "/api/projects", map[string]string{"name": "North region"}, api.token)
	require.Equal(t, http.StatusCreated, res.Code)
	project := decodeBody[ProjectDTO](t, res)
	require.NotEmpty(t, project.ID)

	res = api.do(t, "PUT", "/api/projects/"+project.ID, map[string]string{
		"name": "North region 2024", "description": "renamed",
	}, api.token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "North region 2024", decodeBody[ProjectDTO](t, res).Name)

	res = api.do(t, "GET", "/api/projects", nil, api.token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, decodeBody[[]ProjectDTO](t, res), 1)

	res = api.do(t, "DELETE", "/api/projects/"+project.ID, nil, api.token)
	assert.Equal(t, http.StatusOK, res.Code)

	res = api.do(t, "GET", "/api/projects/"+project.ID, nil, api.token)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestCompanyEndpoints(t *testing.T) {
	api := newTestAPI(t)

	res := api.do(t, "POST", "/api/projects", map[string]string{"name": "P"}, api.token)
	require.Equal(t, http.StatusCreated, res.Code)
	project := decodeBody[ProjectDTO](t, res)

	t.Run("company requires an existing project", func(t *testing.T) {
		res := api.do(t, "POST", "/api/companies", map[string]string{
			"project_id": "nope", "name": "Acme",
		}, api.token)
		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	res = api.do(t, "POST", "/api/companies", map[string]string{
		"project_id": project.ID, "name": "Acme", "city": "Foshan",
	}, api.token)
	require.Equal(t, http.StatusCreated, res.Code)
	company := decodeBody[CompanyDTO](t, res)

	res = api.do(t, "GET", "/api/companies/"+company.ID, nil, api.token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Acme", decodeBody[CompanyDTO](t, res).Name)

	res = api.do(t, "GET", "/api/companies?project_id="+project.ID, nil, api.token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, decodeBody[[]CompanyDTO](t, res), 1)

	res = api.do(t, "DELETE", "/api/companies/"+company.ID, nil, api.token)
	assert.Equal(t, http.StatusOK, res.Code)

	res = api.do(t, "GET", "/api/companies", nil, api.token)
	assert.Empty(t, decodeBody[[]CompanyDTO](t, res))
}
