package www

import (
	"net/http"
	"time"

	"binwatch/store"

	"github.com/go-chi/chi/v5"
)

// apiTrends returns per-bin time series over the requested trailing
// window (days, default 7).
func (h *Handlers) apiTrends(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	if days < 1 || days > 90 {
		days = 7
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	histories, err := h.engine.Inventory.AllHistoricalData(r.Context(), start, end)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"days":   days,
		"trends": histories,
	})
}

// apiConsumption returns consumption rates for every bin.
func (h *Handlers) apiConsumption(w http.ResponseWriter, r *http.Request) {
	configs, err := h.engine.Inventory.ListBinConfigurations(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(configs))
	for _, cfg := range configs {
		rate, err := h.engine.Inventory.ConsumptionRate(r.Context(), cfg.BinID)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, map[string]any{
			"bin_id":         cfg.BinID,
			"article_name":   cfg.ArticleName,
			"daily_average":  rate.DailyAverage,
			"weekly_average": rate.WeeklyAverage,
			"trend":          rate.Trend,
		})
	}
	h.jsonOK(w, out)
}

// apiComparison returns the current fill levels side by side.
func (h *Handlers) apiComparison(w http.ResponseWriter, r *http.Request) {
	states, err := h.engine.Inventory.CurrentInventory(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(states))
	for _, st := range states {
		out = append(out, map[string]any{
			"bin_id":          st.BinID,
			"article_name":    st.ArticleName,
			"quantity":        st.CurrentQuantity,
			"max_capacity":    st.MaxCapacity,
			"fill_percentage": st.FillPercentage,
			"status":          st.Status,
		})
	}
	h.jsonOK(w, out)
}

// apiStatusDistribution returns the status histogram of the grid.
func (h *Handlers) apiStatusDistribution(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Inventory.Summary(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]int{
		"normal":   summary.NormalCount,
		"low":      summary.LowCount,
		"critical": summary.CriticalCount,
		"empty":    summary.EmptyCount,
		"overfill": summary.OverfillCount,
	})
}

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	msg := h.engine.Messaging()
	h.jsonOK(w, map[string]any{
		"status":     "ok",
		"backend":    h.engine.DB().Name(),
		"mqtt":       msg != nil && msg.MQTTConnected(),
		"kafka":      msg != nil && msg.KafkaEnabled(),
		"ws_clients": h.hub.ClientCount(),
	})
}

func (h *Handlers) apiListSettings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.engine.DB().FetchAll(r.Context(),
		`SELECT setting_key, setting_value, description, updated_at FROM system_settings ORDER BY setting_key`)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rows)
}

type settingUpdate struct {
	Value string `json:"value"`
}

func (h *Handlers) apiUpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var upd settingUpdate
	if err := jsonDecode(r, &upd); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := store.SetSetting(r.Context(), h.engine.DB(), key, upd.Value); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonMessage(w, "setting updated", map[string]string{key: upd.Value})
}
