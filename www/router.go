package www

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"

	"binwatch/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	hub      *Hub
}

// NewRouter builds the full HTTP surface. The returned Hub is already
// listening on the engine's event bus.
func NewRouter(eng *engine.Engine) (http.Handler, *Hub) {
	hub := NewHub()
	hub.SetupBusListeners(eng.Bus())

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.Config().Web.SessionSecret),
		hub:      hub,
	}
	h.ensureDefaultAdmin(context.Background(), eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   eng.Config().Web.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/ws", hub.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealth)

		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/me", h.handleMe)

		r.Route("/bins", func(r chi.Router) {
			r.Post("/data", h.apiIngestReading)
			r.Get("/", h.apiListBins)
			r.Get("/summary", h.apiBinSummary)
			r.Get("/{binID}", h.apiGetBin)
			r.Get("/{binID}/history", h.apiBinHistory)
			r.Get("/{binID}/consumption", h.apiBinConsumption)
			r.With(h.requireAuth).Put("/{binID}/config", h.apiUpdateBinConfig)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/active", h.apiActiveAlerts)
			r.Get("/history", h.apiAlertHistory)
			r.Get("/configurations", h.apiAlertConfigurations)
			r.With(h.requireAuth).Post("/{id}/acknowledge", h.apiAcknowledgeAlert)
			r.With(h.requireAuth).Post("/acknowledge-all", h.apiAcknowledgeAll)
			r.With(h.requireAuth).Put("/configurations/{binID}/{alertType}", h.apiUpdateAlertConfig)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/trends", h.apiTrends)
			r.Get("/consumption", h.apiConsumption)
			r.Get("/comparison", h.apiComparison)
			r.Get("/status-distribution", h.apiStatusDistribution)
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/inventory", h.apiExportInventory)
			r.Get("/history", h.apiExportHistory)
			r.Get("/alerts", h.apiExportAlerts)
			r.Get("/report", h.apiExportReport)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.apiListSettings)
			r.With(h.requireAuth).Put("/{key}", h.apiUpdateSetting)
		})
	})

	return r, hub
}
