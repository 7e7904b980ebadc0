// Package server holds the thin HTTP entry points of the report pipeline.
// Authentication is handled upstream; the requester is trusted from a header.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AungKyawPhyo1142/be-sentria/internal/models"
	"github.com/AungKyawPhyo1142/be-sentria/internal/service"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
)

// ReportHandler exposes the report orchestrator as plain JSON endpoints:
//
//	POST   /reports        create a report and dispatch its fact-check job
//	GET    /reports        list reports, cursor-paginated
//	GET    /reports/{id}   fetch one report detail
//	PUT    /reports/{id}   update a report (owner only)
//	DELETE /reports/{id}   delete a report (owner only)
type ReportHandler struct {
	reports service.ReportService
	log     *logrus.Entry
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		log:     log.WithComponent("report_handler"),
	}
}

type createReportRequest struct {
	ReportName        string             `json:"reportName"`
	Description       string             `json:"description"`
	IncidentType      string             `json:"incidentType"`
	Severity          string             `json:"severity"`
	IncidentTimestamp time.Time          `json:"incidentTimestamp"`
	Latitude          float64            `json:"latitude"`
	Longitude         float64            `json:"longitude"`
	City              string             `json:"city"`
	Country           string             `json:"country"`
	Media             []models.MediaItem `json:"media"`
}

func (r createReportRequest) toInput() service.CreateReportInput {
	return service.CreateReportInput{
		ReportName:        r.ReportName,
		Description:       r.Description,
		IncidentType:      models.IncidentType(r.IncidentType),
		Severity:          models.Severity(r.Severity),
		IncidentTimestamp: r.IncidentTimestamp,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		City:              r.City,
		Country:           r.Country,
		Media:             r.Media,
	}
}

func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/reports"), "/")

	switch {
	case r.Method == http.MethodPost && id == "":
		h.create(w, r)
	case r.Method == http.MethodGet && id == "":
		h.list(w, r)
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodPut && id != "":
		h.update(w, r, id)
	case r.Method == http.MethodDelete && id != "":
		h.delete(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// requester reads the caller identity injected by the upstream gateway
func requester(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *ReportHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requester(r)
	if !ok {
		http.Error(w, "missing requester identity", http.StatusUnauthorized)
		return
	}

	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	out, err := h.reports.Create(r.Context(), req.toInput(), userID)
	if err != nil {
		h.log.WithError(err).Error("failed to create report")
		http.Error(w, "failed to create report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *ReportHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	details, next, err := h.reports.List(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.log.WithError(err).Error("failed to list reports")
		http.Error(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": details, "nextCursor": next})
}

func (h *ReportHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	detail, err := h.reports.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get report")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ReportHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := requester(r)
	if !ok {
		http.Error(w, "missing requester identity", http.StatusUnauthorized)
		return
	}

	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.reports.Update(r.Context(), id, req.toInput(), userID); err != nil {
		h.writeServiceError(w, err, "failed to update report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "report updated"})
}

func (h *ReportHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	userID, ok := requester(r)
	if !ok {
		http.Error(w, "missing requester identity", http.StatusUnauthorized)
		return
	}

	if err := h.reports.Delete(r.Context(), id, userID); err != nil {
		h.writeServiceError(w, err, "failed to delete report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "report deleted"})
}

func (h *ReportHandler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrReportNotFound):
		http.Error(w, "report not found", http.StatusNotFound)
	case errors.Is(err, service.ErrNotReportOwner):
		http.Error(w, "not the report owner", http.StatusForbidden)
	default:
		h.log.WithError(err).Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
