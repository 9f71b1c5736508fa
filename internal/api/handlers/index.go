// Package handlers implements the HTTP endpoints for the index API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/ewindex/internal/index"
	"github.com/wonny/ewindex/internal/service"
	"github.com/wonny/ewindex/internal/store"
	"github.com/wonny/ewindex/pkg/logger"
)

// IndexHandler handles index API endpoints.
type IndexHandler struct {
	service *service.Service
	logger  *logger.Logger
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(svc *service.Service, log *logger.Logger) *IndexHandler {
	return &IndexHandler{service: svc, logger: log}
}

// BuildRequest is the body for POST /api/index/build.
type BuildRequest struct {
	From string `json:"from"` // YYYY-MM-DD
	To   string `json:"to"`   // YYYY-MM-DD
}

// Build runs the index build over a date range.
// POST /api/index/build
func (h *IndexHandler) Build(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.BuildRange(r.Context(), from, to)
	if err != nil {
		h.respondServiceError(w, err, "Build failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Composition returns the membership for a date (default: latest built day).
// GET /api/index/composition?date=YYYY-MM-DD
func (h *IndexHandler) Composition(w http.ResponseWriter, r *http.Request) {
	date, err := h.resolveDate(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.service.Composition(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load composition")
		return
	}

	respondJSON(w, http.StatusOK, compositionResponse(state))
}

// Changes returns composition changes in a date range.
// GET /api/index/changes?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *IndexHandler) Changes(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	changes, err := h.service.Changes(r.Context(), from, to)
	if err != nil {
		h.respondServiceError(w, err, "Failed to load changes")
		return
	}
	if changes == nil {
		changes = []index.CompositionChange{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"from":    from.Format("2006-01-02"),
		"to":      to.Format("2006-01-02"),
		"changes": changes,
	})
}

// Performance returns the daily and cumulative return series.
// GET /api/index/performance?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *IndexHandler) Performance(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Performance(r.Context(), from, to)
	if err != nil {
		h.respondServiceError(w, err, "Failed to compute performance")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Export streams the history report as a zip attachment.
// GET /api/index/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *IndexHandler) Export(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := fmt.Sprintf("index_%s_%s.zip", from.Format("20060102"), to.Format("20060102"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)

	if err := h.service.Export(r.Context(), from, to, w); err != nil {
		// Headers may already be written; log and bail.
		h.logger.WithError(err).Error("Export failed")
	}
}

// Status reports ingestion and build progress.
// GET /api/index/status
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.CurrentStatus(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "Failed to load status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// resolveDate reads the optional date param, falling back to the latest
// built day.
func (h *IndexHandler) resolveDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw != "" {
		return parseDate(raw, "date")
	}

	status, err := h.service.CurrentStatus(r.Context())
	if err != nil {
		return time.Time{}, err
	}
	if status.LatestStateDate.IsZero() {
		return time.Time{}, errors.New("no index history built yet")
	}
	return status.LatestStateDate, nil
}

// respondServiceError maps domain errors onto HTTP status codes.
func (h *IndexHandler) respondServiceError(w http.ResponseWriter, err error, msg string) {
	var (
		verr *index.ValidationError
		derr *index.InsufficientDataError
	)
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &derr):
		respondError(w, http.StatusUnprocessableEntity, derr.Error())
	case errors.Is(err, store.ErrStateNotFound):
		respondError(w, http.StatusNotFound, "No index state for that date")
	default:
		h.logger.WithError(err).Error(msg)
		respondError(w, http.StatusInternalServerError, msg)
	}
}

// memberView is the wire shape of one index member.
type memberView struct {
	Ticker         string  `json:"ticker"`
	Price          float64 `json:"price"`
	NotionalShares float64 `json:"notional_shares"`
	Contribution   float64 `json:"contribution"`
	Weight         float64 `json:"weight"`
}

func compositionResponse(state index.IndexState) map[string]interface{} {
	total := state.MarketValue()
	members := make([]memberView, 0, len(state.Members))
	for _, m := range state.Members {
		weight := 0.0
		if total > 0 {
			weight = m.Contribution() / total
		}
		members = append(members, memberView{
			Ticker:         m.Stock.Ticker,
			Price:          m.Stock.Price,
			NotionalShares: m.NotionalShares,
			Contribution:   m.Contribution(),
			Weight:         weight,
		})
	}

	return map[string]interface{}{
		"date":    state.Date.Format("2006-01-02"),
		"level":   state.Level(),
		"divisor": state.Divisor,
		"members": members,
	}
}

func parseDate(raw, field string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q, want YYYY-MM-DD", field, raw)
	}
	return d, nil
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, errors.New("from and to are required (YYYY-MM-DD)")
	}
	from, err := parseDate(fromRaw, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate(toRaw, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to is before from")
	}
	return from, to, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
