package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Garzer09/biz-data-guide-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxPreviewMemory = 32 << 20

// Handler exposes the import service over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHTTPHandler wraps the service.
func NewHTTPHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the import routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/imports/run", h.run).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/imports/{family:balance|cashflow|debt|debt-service|ratios}/run", h.run).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/imports/preview", h.preview).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/imports/jobs", h.submit).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/imports/jobs/{id}", h.getJob).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/imports/jobs/{id}/errors", h.listErrors).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/companies/{companyId}/imports", h.listCompanyJobs).Methods(http.MethodGet)
}

type runPayload struct {
	JobID string `json:"job_id"`
	Tipo  string `json:"tipo"`
}

type submitPayload struct {
	CompanyID    string `json:"company_id"`
	DeclaredType string `json:"declared_type"`
	StoragePath  string `json:"storage_path"`
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, newJobError(KindBadInput, "invalid JSON body", err))
		return
	}
	jobID, err := uuid.Parse(strings.TrimSpace(payload.JobID))
	if err != nil {
		h.writeError(w, newJobError(KindBadInput, "job_id must be a UUID", err))
		return
	}

	result, err := h.service.Run(r.Context(), RunRequest{
		JobID:  jobID,
		Family: mux.Vars(r)["family"],
		Tipo:   payload.Tipo,
	})
	if err != nil {
		if result.Status != "" {
			writeJSON(w, StatusCode(err), map[string]any{
				"success": false,
				"error":   err.Error(),
				"job_id":  result.JobID,
				"status":  result.Status,
				"summary": result.Summary,
			})
			return
		}
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job_id":  result.JobID,
		"status":  result.Status,
		"summary": result.Summary,
	})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPreviewMemory); err != nil {
		h.writeError(w, newJobError(KindBadInput, "invalid form data", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, newJobError(KindBadInput, "file required", err))
		return
	}
	defer file.Close()

	recordType, err := domain.ParseRecordType(r.FormValue("type"))
	if err != nil {
		h.writeError(w, newJobError(KindBadInput, "invalid type", err))
		return
	}

	var companyID uuid.UUID
	if raw := strings.TrimSpace(r.FormValue("company_id")); raw != "" {
		companyID, err = uuid.Parse(raw)
		if err != nil {
			h.writeError(w, newJobError(KindBadInput, "company_id must be a UUID", err))
			return
		}
	}

	limit, _ := strconv.Atoi(r.FormValue("limit"))
	result, err := h.service.Preview(r.Context(), PreviewRequest{
		RecordType: recordType,
		CompanyID:  companyID,
		FileName:   header.Filename,
		Data:       file,
		Limit:      limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "preview": result})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, newJobError(KindBadInput, "invalid JSON body", err))
		return
	}
	companyID, err := uuid.Parse(strings.TrimSpace(payload.CompanyID))
	if err != nil {
		h.writeError(w, newJobError(KindBadInput, "company_id must be a UUID", err))
		return
	}
	recordType, err := domain.ParseRecordType(payload.DeclaredType)
	if err != nil {
		h.writeError(w, newJobError(KindBadInput, "invalid declared_type", err))
		return
	}

	job, err := h.service.Submit(r.Context(), SubmitRequest{
		CompanyID:   companyID,
		RecordType:  recordType,
		StoragePath: strings.TrimSpace(payload.StoragePath),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "job": job})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	job, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "job": job})
}

func (h *Handler) listErrors(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, offset := pagination(r)
	entries, err := h.service.ListJobErrors(r.Context(), id, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": entries})
}

func (h *Handler) listCompanyJobs(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathUUID(r, "companyId")
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, offset := pagination(r)
	if r.URL.Query().Get("include") == "errors" {
		jobs, err := h.service.ListCompanyJobsWithErrors(r.Context(), companyID, limit, offset)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "jobs": jobs})
		return
	}
	jobs, err := h.service.ListCompanyJobs(r.Context(), companyID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "jobs": jobs})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("import request failed", zap.Error(err))
		var jobErr *JobError
		if errors.As(err, &jobErr) {
			message = jobErr.Message
		} else {
			message = "internal error"
		}
	}
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, newJobError(KindBadInput, fmt.Sprintf("%s must be a UUID", name), err)
	}
	return id, nil
}

func pagination(r *http.Request) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
