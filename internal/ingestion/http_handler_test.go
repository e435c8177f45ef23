package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Success bool                    `json:"success"`
	Error   string                  `json:"error"`
	JobID   uuid.UUID               `json:"job_id"`
	Status  domain.ImportStatus     `json:"status"`
	Summary domain.ImportSummary    `json:"summary"`
	Job     domain.ImportJob        `json:"job"`
	Jobs    []JobWithErrors         `json:"jobs"`
	Errors  []domain.ImportLogEntry `json:"errors"`
	Preview PreviewResult           `json:"preview"`
}

func serve(t *testing.T, f *fixture, ctx context.Context, req *http.Request) (int, apiResponse) {
	t.Helper()
	router := mux.NewRouter()
	NewHTTPHandler(f.service, nil).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))

	var body apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func TestHandlerRun(t *testing.T) {
	f := newFixture()
	acme := uuid.New()
	f.companies.index["ACME"] = acme
	job := f.upload(uuid.New(), domain.RecordDebtService, "ds.csv", debtServiceHeader+"ACME,2024-01,1,1,4\nACME,2024-1,1,1,4\n")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/debt-service/run", strings.NewReader(`{"job_id":"`+job.ID.String()+`"}`))
	code, body := serve(t, f, adminContext(), req)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)
	assert.Equal(t, job.ID, body.JobID)
	assert.Equal(t, domain.ImportStatusDone, body.Status)
	assert.Equal(t, 2, body.Summary.TotalRows)
	assert.Equal(t, 1, body.Summary.OKRows)
	assert.Equal(t, 1, body.Summary.ErrorRows)
	require.Len(t, body.Summary.Errors, 1)
	assert.Equal(t, 3, body.Summary.Errors[0].Row)
}

func TestHandlerRunFamilyMismatch(t *testing.T) {
	f := newFixture()
	job := f.jobs.add(uuid.New(), domain.RecordDebtService, "ds.csv")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/balance/run", strings.NewReader(`{"job_id":"`+job.ID.String()+`"}`))
	code, body := serve(t, f, adminContext(), req)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "balance")
	assert.Equal(t, domain.ImportStatusPending, job.Status)
}

func TestHandlerRunFailedJobCarriesSummary(t *testing.T) {
	f := newFixture()
	job := f.upload(uuid.New(), domain.RecordBalanceOperating, "b.csv", "periodo,clientes\n2024-01,1\n")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/run", strings.NewReader(`{"job_id":"`+job.ID.String()+`"}`))
	code, body := serve(t, f, adminContext(), req)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, body.Success)
	assert.Equal(t, domain.ImportStatusFailed, body.Status)
	assert.Contains(t, body.Error, "inventario")
	assert.Contains(t, body.Summary.Fatal, "proveedores")
}

func TestHandlerRunErrors(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		body string
		deny bool
		want int
	}{
		{name: "invalid json", ctx: adminContext(), body: `{`, want: http.StatusBadRequest},
		{name: "invalid id", ctx: adminContext(), body: `{"job_id":"abc"}`, want: http.StatusBadRequest},
		{name: "unknown job", ctx: adminContext(), body: `{"job_id":"` + uuid.NewString() + `"}`, want: http.StatusNotFound},
		{name: "anonymous", ctx: context.Background(), body: `{"job_id":"` + uuid.NewString() + `"}`, want: http.StatusUnauthorized},
		{name: "forbidden", ctx: adminContext(), body: `{"job_id":"` + uuid.NewString() + `"}`, deny: true, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.authorizer.deny = tt.deny

			req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/run", strings.NewReader(tt.body))
			code, body := serve(t, f, tt.ctx, req)
			assert.Equal(t, tt.want, code)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHandlerPreview(t *testing.T) {
	f := newFixture()
	company := uuid.New()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "cashflow.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("periodo,entradas,salidas\n2024-01,100,40\n2024-02,x,1\n"))
	require.NoError(t, err)
	require.NoError(t, form.WriteField("type", "cashflow-investing"))
	require.NoError(t, form.WriteField("company_id", company.String()))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/preview", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	code, body := serve(t, f, adminContext(), req)

	require.Equal(t, http.StatusOK, code, body.Error)
	assert.Equal(t, 2, body.Preview.TotalRows)
	assert.Equal(t, 1, body.Preview.OKRows)
	require.Len(t, body.Preview.Records, 1)
	record := body.Preview.Records[0]
	assert.Equal(t, company, record.CompanyID)
	assert.Equal(t, "inversion", record.Dimension)
	assert.Equal(t, "60", record.Measures["flujo_neto"])
	assert.Zero(t, f.facts.upserts, "preview must not write")
}

func TestHandlerSubmitAndRead(t *testing.T) {
	f := newFixture()
	company := uuid.New()
	f.companies.companies[company] = true
	ctx := adminContext()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/jobs", strings.NewReader(
		`{"company_id":"`+company.String()+`","declared_type":"ratios","storage_path":"imports/ratios.csv"}`))
	code, body := serve(t, f, ctx, req)
	require.Equal(t, http.StatusCreated, code, body.Error)
	assert.Equal(t, domain.ImportStatusPending, body.Job.Status)
	assert.Equal(t, domain.RecordRatios, body.Job.DeclaredType)
	require.NotNil(t, body.Job.CreatedBy)

	jobID := body.Job.ID
	code, body = serve(t, f, ctx, httptest.NewRequest(http.MethodGet, "/api/v1/imports/jobs/"+jobID.String(), nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "imports/ratios.csv", body.Job.StoragePath)

	code, body = serve(t, f, ctx, httptest.NewRequest(http.MethodGet, "/api/v1/imports/jobs/"+jobID.String()+"/errors", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Errors)

	code, _ = serve(t, f, ctx, httptest.NewRequest(http.MethodGet, "/api/v1/companies/"+company.String()+"/imports?limit=10", nil))
	assert.Equal(t, http.StatusOK, code)

	code, _ = serve(t, f, ctx, httptest.NewRequest(http.MethodGet, "/api/v1/imports/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandlerSubmitUnknownCompany(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/jobs", strings.NewReader(
		`{"company_id":"`+uuid.NewString()+`","declared_type":"debt","storage_path":"imports/debt.csv"}`))
	code, body := serve(t, f, adminContext(), req)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Error, "does not exist")
}

func TestHandlerListCompanyJobsWithErrors(t *testing.T) {
	f := newFixture()
	company := uuid.New()
	header := "periodo,clientes,inventario,proveedores\n"
	clean := f.upload(company, domain.RecordBalanceOperating, "a.csv", header+"2024-01,1,2,3\n")
	dirty := f.upload(company, domain.RecordBalanceOperating, "b.csv", header+"2024-01,1,2,3\n2024-13,1,2,3\nbad,1,2,3\n")
	ctx := adminContext()
	for _, job := range []*domain.ImportJob{clean, dirty} {
		_, err := f.service.Run(ctx, RunRequest{JobID: job.ID})
		require.NoError(t, err)
	}

	code, body := serve(t, f, ctx, httptest.NewRequest(http.MethodGet, "/api/v1/companies/"+company.String()+"/imports?include=errors", nil))
	require.Equal(t, http.StatusOK, code, body.Error)
	require.Len(t, body.Jobs, 2)

	byID := map[uuid.UUID]JobWithErrors{}
	for _, job := range body.Jobs {
		byID[job.ID] = job
	}
	assert.Empty(t, byID[clean.ID].Errors)
	require.Len(t, byID[dirty.ID].Errors, 2)
	assert.Equal(t, string(KindInvalidPeriodFormat), byID[dirty.ID].Errors[0].Kind)

	require.Len(t, f.logs.batchCalls, 1, "job logs should be read in one batch")
	assert.Len(t, f.logs.batchCalls[0], 2)
}
