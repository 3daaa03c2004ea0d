// Package httpapi is the thin JSON transport over the orchestrator and
// spatial gateway: route registration, request decoding, and the
// taxonomy-to-status-code error mapping. It owns no domain logic.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fiberplan/planning-service/internal/apperr"
	"github.com/fiberplan/planning-service/internal/orchestrator"
	"github.com/fiberplan/planning-service/internal/spatial"
)

// Server wires the HTTP surface onto an Orchestrator and a spatial
// Gateway for the read-only catalog/health endpoints.
type Server struct {
	orch                *orchestrator.Orchestrator
	gateway             *spatial.Gateway
	maxRequestBodyBytes int64
}

// New constructs a Server. maxRequestBodyBytes caps decoded request
// bodies; requests over the limit fail with payload_too_large.
func New(orch *orchestrator.Orchestrator, gateway *spatial.Gateway, maxRequestBodyBytes int64) *Server {
	return &Server{orch: orch, gateway: gateway, maxRequestBodyBytes: maxRequestBodyBytes}
}

// Routes returns the service's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /catalog/summary", s.handleCatalogSummary)
	mux.HandleFunc("GET /catalog/districts", s.handleCatalogDistricts)
	mux.HandleFunc("GET /catalog/franchises", s.handleCatalogFranchises)
	mux.HandleFunc("POST /routing/compute", s.handleComputeRoute)
	mux.HandleFunc("POST /upload-batch", s.handleUploadBatch)
	mux.HandleFunc("GET /job-status/{job_id}", s.handleJobStatus)
	mux.HandleFunc("GET /job-result/{job_id}", s.handleJobResult)
	mux.HandleFunc("GET /jobs/metrics", s.handleJobsMetrics)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.gateway.HealthCheck(r.Context())
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{
		"status":       okString(report.OK()),
		"db_ok":        report.DBOK,
		"postgis_ok":   report.PostGISOK,
		"pgrouting_ok": report.PgRoutingOK,
	})
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "degraded"
}

func (s *Server) handleCatalogSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.gateway.Summary(r.Context())
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCatalogDistricts(w http.ResponseWriter, r *http.Request) {
	districts, err := s.gateway.ListDistricts(r.Context())
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, districts)
}

func (s *Server) handleCatalogFranchises(w http.ResponseWriter, r *http.Request) {
	districtID := 0
	if raw := r.URL.Query().Get("district_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperr.New(apperr.CodeValidationError, "district_id must be an integer"))
			return
		}
		districtID = parsed
	}

	franchises, err := s.gateway.ListFranchises(r.Context(), districtID)
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, franchises)
}

type computeRouteRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleComputeRoute(w http.ResponseWriter, r *http.Request) {
	var req computeRouteRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.orch.ComputeRoute(r.Context(), req.Latitude, req.Longitude)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type uploadBatchRequest struct {
	Coordinates []orchestrator.Coordinate `json:"coordinates"`
}

func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	var req uploadBatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.orch.UploadBatch(r.Context(), req.Coordinates)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.orch.JobStatus(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	resp, err := s.orch.JobResult(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobsMetrics(w http.ResponseWriter, r *http.Request) {
	resp, err := s.orch.JobsMetrics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeJSON reads and decodes a JSON body bounded by maxRequestBodyBytes,
// writing a malformed_json or payload_too_large response and returning
// false on any failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, apperr.New(apperr.CodePayloadTooLarge, "request body exceeds %d bytes", s.maxRequestBodyBytes))
			return false
		}
		writeError(w, apperr.New(apperr.CodeMalformedJSON, "malformed request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperr.Error)
	if !ok {
		appErr = apperr.Internal(err)
	}
	writeJSON(w, appErr.HTTPStatus(), map[string]any{
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	})
}
