package www

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"binwatch/alert"
)

func (h *Handlers) apiActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.engine.Alerts.ActiveAlerts(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, alerts)
}

func (h *Handlers) apiAlertHistory(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	binID := r.URL.Query().Get("bin_id")

	result, err := h.engine.Alerts.History(r.Context(), page, limit, binID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	totalPages := int(math.Ceil(float64(result.Total) / float64(result.Limit)))
	h.jsonOK(w, map[string]any{
		"alerts":      result.Alerts,
		"page":        result.Page,
		"limit":       result.Limit,
		"total":       result.Total,
		"total_pages": totalPages,
	})
}

func (h *Handlers) apiAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid alert id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Alerts.Acknowledge(r.Context(), id, h.getUsername(r)); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			h.jsonError(w, "alert not found", http.StatusNotFound)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonMessage(w, "alert acknowledged", nil)
}

func (h *Handlers) apiAcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.engine.Alerts.AcknowledgeAll(r.Context(), h.getUsername(r))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonMessage(w, "alerts acknowledged", map[string]int{"acknowledged": count})
}

func (h *Handlers) apiAlertConfigurations(w http.ResponseWriter, r *http.Request) {
	configs, err := h.engine.Alerts.Configurations(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, configs)
}

func (h *Handlers) apiUpdateAlertConfig(w http.ResponseWriter, r *http.Request) {
	binID := chi.URLParam(r, "binID")
	alertType := chi.URLParam(r, "alertType")

	var upd alert.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := h.engine.Alerts.UpdateConfiguration(r.Context(), binID, alertType, &upd)
	switch {
	case errors.Is(err, alert.ErrNoFields):
		h.jsonError(w, "no fields to update", http.StatusBadRequest)
	case errors.Is(err, alert.ErrNotFound):
		h.jsonError(w, "alert configuration not found", http.StatusNotFound)
	case err != nil:
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	default:
		h.jsonMessage(w, "alert configuration updated", nil)
	}
}
