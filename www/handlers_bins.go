package www

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"

	"binwatch/inventory"
)

// binIDPattern matches the two-row, five-position rack layout.
var binIDPattern = regexp.MustCompile(`^BIN-R[1-2]P[1-5]$`)

// readingRequest is a sensor reading submitted over HTTP.
type readingRequest struct {
	BinID       string  `json:"bin_id"`
	WeightGrams float64 `json:"weight_grams"`
	Quantity    int     `json:"quantity"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

func (h *Handlers) apiIngestReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BinID == "" {
		h.jsonError(w, "bin_id is required", http.StatusBadRequest)
		return
	}
	if !binIDPattern.MatchString(req.BinID) {
		h.jsonError(w, "bin_id must match BIN-R<row>P<position>", http.StatusBadRequest)
		return
	}
	if req.WeightGrams < 0 {
		h.jsonError(w, "weight_grams must not be negative", http.StatusBadRequest)
		return
	}
	if req.Quantity < 0 {
		h.jsonError(w, "quantity must not be negative", http.StatusBadRequest)
		return
	}
	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			h.jsonError(w, "invalid timestamp", http.StatusBadRequest)
			return
		}
		ts = parsed
	}

	state, err := h.engine.ProcessReading(r.Context(), req.BinID, req.WeightGrams, req.Quantity, ts)
	if err != nil {
		if errors.Is(err, inventory.ErrBinNotFound) {
			h.jsonError(w, "unknown bin: "+req.BinID, http.StatusNotFound)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonMessage(w, "reading recorded", state)
}

func (h *Handlers) apiListBins(w http.ResponseWriter, r *http.Request) {
	states, err := h.engine.Inventory.CurrentInventory(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, states)
}

func (h *Handlers) apiBinSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Inventory.Summary(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, summary)
}

func (h *Handlers) apiGetBin(w http.ResponseWriter, r *http.Request) {
	binID := chi.URLParam(r, "binID")
	state, err := h.engine.Inventory.GetBinDisplayState(r.Context(), binID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if state == nil {
		h.jsonError(w, "bin not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, state)
}

func (h *Handlers) apiBinHistory(w http.ResponseWriter, r *http.Request) {
	binID := chi.URLParam(r, "binID")
	cfg, err := h.engine.Inventory.GetBinConfiguration(r.Context(), binID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		h.jsonError(w, "bin not found", http.StatusNotFound)
		return
	}

	now := time.Now()
	end := queryTime(r, "end", now)
	start := queryTime(r, "start", now.AddDate(0, 0, -7))
	limit := queryInt(r, "limit", 1000)
	if limit < 1 || limit > 10000 {
		limit = 1000
	}

	points, err := h.engine.Inventory.HistoricalData(r.Context(), binID, start, end, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"bin_id": binID,
		"start":  start.UTC().Format(time.RFC3339),
		"end":    end.UTC().Format(time.RFC3339),
		"data":   points,
	})
}

func (h *Handlers) apiBinConsumption(w http.ResponseWriter, r *http.Request) {
	binID := chi.URLParam(r, "binID")
	cfg, err := h.engine.Inventory.GetBinConfiguration(r.Context(), binID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		h.jsonError(w, "bin not found", http.StatusNotFound)
		return
	}
	rate, err := h.engine.Inventory.ConsumptionRate(r.Context(), binID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rate)
}

// validateConfigUpdate bounds-checks the fields a partial update
// names; empty string means the update is acceptable.
func validateConfigUpdate(upd *inventory.BinConfigUpdate) string {
	if upd.ArticleType != nil && *upd.ArticleType == "" {
		return "article_type must not be empty"
	}
	if upd.ArticleName != nil && *upd.ArticleName == "" {
		return "article_name must not be empty"
	}
	if upd.ArticleWeightGrams != nil && *upd.ArticleWeightGrams <= 0 {
		return "article_weight_grams must be positive"
	}
	if upd.MinThreshold != nil && *upd.MinThreshold < 0 {
		return "min_threshold must not be negative"
	}
	if upd.CriticalThreshold != nil && *upd.CriticalThreshold < 0 {
		return "critical_threshold must not be negative"
	}
	if upd.MaxCapacity != nil && *upd.MaxCapacity <= 0 {
		return "max_capacity must be positive"
	}
	return ""
}

func (h *Handlers) apiUpdateBinConfig(w http.ResponseWriter, r *http.Request) {
	binID := chi.URLParam(r, "binID")
	var upd inventory.BinConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := validateConfigUpdate(&upd); msg != "" {
		h.jsonError(w, msg, http.StatusBadRequest)
		return
	}

	cfg, err := h.engine.Inventory.GetBinConfiguration(r.Context(), binID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		h.jsonError(w, "bin not found", http.StatusNotFound)
		return
	}

	if err := h.engine.Inventory.UpdateBinConfiguration(r.Context(), binID, &upd); err != nil {
		if errors.Is(err, inventory.ErrNoFields) {
			h.jsonError(w, "no fields to update", http.StatusBadRequest)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Config changes move thresholds, so the display state may change
	// tier without a new reading. Recompute and announce.
	state, err := h.engine.Inventory.GetBinDisplayState(r.Context(), binID)
	if err == nil && state != nil {
		h.hub.Broadcast("bin_update", state)
	}
	h.jsonMessage(w, "configuration updated", state)
}
