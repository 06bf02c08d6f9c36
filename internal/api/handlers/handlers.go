package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/payables-dashboard/internal/api/middleware"
	"github.com/dvloznov/payables-dashboard/internal/connectivity"
	"github.com/dvloznov/payables-dashboard/internal/dashboard"
	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/dvloznov/payables-dashboard/internal/jobs"
	"github.com/dvloznov/payables-dashboard/internal/logger"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Register mounts the JSON API and the health check on r.
func Register(r *mux.Router, sessions *SessionsHandler, jobsH *JobsHandler, conns *ConnectionsHandler) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/sessions", sessions.Create).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", sessions.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/date-range", sessions.SetDateRange).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/load", sessions.Load).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/filter", sessions.Filter).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/rows", sessions.Rows).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/options", sessions.Options).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/export", sessions.Export).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/export/archive", sessions.Archive).Methods(http.MethodPost)
	api.HandleFunc("/jobs", jobsH.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", jobsH.GetJob).Methods(http.MethodGet)
	api.HandleFunc("/connections", conns.Check).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)
}

// StatusFor maps a service error to the HTTP status reported to clients.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSelection),
		errors.Is(err, dashboard.ErrDateRangeRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoData),
		errors.Is(err, dashboard.ErrArchiveDisabled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, StatusFor(err), err.Error())
}

// SessionsHandler serves the per-session dashboard actions.
type SessionsHandler struct {
	svc *dashboard.Service
	log zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(svc *dashboard.Service, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{svc: svc, log: log}
}

type dateRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (req dateRangeRequest) parse() (domain.DateRange, error) {
	return dashboard.ParseDateRange(req.StartDate, req.EndDate)
}

type filterRequest struct {
	Selection domain.Selection `json:"selection"`
}

type rowsResponse struct {
	Columns   []string          `json:"columns"`
	Rows      [][]string        `json:"rows"`
	Filtered  bool              `json:"filtered"`
	Summary   dashboard.Summary `json:"summary"`
	Range     domain.DateRange  `json:"date_range"`
	Selection domain.Selection  `json:"selection"`
}

// Create handles POST /api/sessions
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := h.svc.NewSession(r.Context())
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

// Delete handles DELETE /api/sessions/{id}
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.EndSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDateRange handles PUT /api/sessions/{id}/date-range
func (h *SessionsHandler) SetDateRange(w http.ResponseWriter, r *http.Request) {
	var req dateRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rng, err := req.parse()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.SetDateRange(r.Context(), mux.Vars(r)["id"], rng); err != nil {
		writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"date_range": rng})
}

// Load handles POST /api/sessions/{id}/load. The body is optional; without
// it the session's stored window is used.
func (h *SessionsHandler) Load(w http.ResponseWriter, r *http.Request) {
	var rng *domain.DateRange

	var req dateRangeRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	switch {
	case errors.Is(err, io.EOF):
	case err != nil:
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	default:
		parsed, err := req.parse()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		rng = &parsed
	}

	n, err := h.svc.Load(r.Context(), mux.Vars(r)["id"], rng)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"rows": n})
}

// Filter handles POST /api/sessions/{id}/filter
func (h *SessionsHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	n, err := h.svc.Filter(r.Context(), mux.Vars(r)["id"], req.Selection)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"rows": n})
}

// Rows handles GET /api/sessions/{id}/rows
func (h *SessionsHandler) Rows(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.View(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := rowsResponse{
		Columns:   view.Dataset.Columns,
		Rows:      make([][]string, 0, view.Dataset.Len()),
		Filtered:  view.Filtered,
		Summary:   view.Summary,
		Range:     view.DateRange,
		Selection: view.Selection,
	}
	for _, row := range view.Dataset.Rows {
		values := make([]string, len(resp.Columns))
		for i, col := range resp.Columns {
			values[i], _ = row.Value(col)
		}
		resp.Rows = append(resp.Rows, values)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Options handles GET /api/sessions/{id}/options
func (h *SessionsHandler) Options(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.View(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"options": view.Options})
}

// Export handles GET /api/sessions/{id}/export
func (h *SessionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	dl, err := h.svc.Export(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Data); err != nil {
		log := logger.FromContext(r.Context(), h.log)
		log.Error().Err(err).Msg("Failed to write export")
	}
}

// Archive handles POST /api/sessions/{id}/export/archive
func (h *SessionsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.ArchiveExport(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/jobs/"+job.JobID)
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// JobsHandler handles archive job endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobs.JobFilter{
		SessionID: q.Get("session_id"),
		Status:    jobs.JobStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		filter.Offset = offset
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		log := logger.FromContext(r.Context(), h.log)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// ConnectionsHandler runs the connection probe.
type ConnectionsHandler struct {
	checker *connectivity.Checker
	log     zerolog.Logger
}

// NewConnectionsHandler creates a new connections handler.
func NewConnectionsHandler(checker *connectivity.Checker, log zerolog.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{checker: checker, log: log}
}

// Check handles GET /api/connections
func (h *ConnectionsHandler) Check(w http.ResponseWriter, r *http.Request) {
	results := h.checker.Run(r.Context())
	ok := connectivity.AllOK(results)
	if !ok {
		log := logger.FromContext(r.Context(), h.log)
		log.Warn().Interface("results", results).Msg("Connection check failed")
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      ok,
		"results": results,
	})
}
