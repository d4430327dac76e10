// Package www serves the rackcore JSON API and event stream.
package www

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"rackcore/engine"
)

const sessionName = "rackcore-session"

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

// NewRouter builds the HTTP handler. The returned func detaches the event hub
// and must be called on shutdown.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	cfg := eng.AppConfig()
	store := sessions.NewCookieStore([]byte(cfg.Web.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	h := &Handlers{
		engine:   eng,
		sessions: store,
		eventHub: NewEventHub(eng.Events),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	// The event stream is long-lived and stays outside the request timeout.
	r.Get("/api/events", h.handleEvents)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/health", h.apiHealthCheck)

		r.Get("/racks", h.apiListRacks)
		r.Get("/racks/summary", h.apiRackSummaries)
		r.Get("/racks/{id}", h.apiGetRack)
		r.Get("/racks/{id}/layout", h.apiRackLayout)
		r.Get("/racks/{id}/validate", h.apiValidateRack)
		r.Get("/racks/{id}/utilization", h.apiRackUtilization)
		r.Get("/racks/{id}/conflicts", h.apiCheckConflict)
		r.Get("/utilization", h.apiFleetUtilization)
		r.Get("/utilization.xlsx", h.apiFleetUtilizationXLSX)

		r.Get("/equipment", h.apiListUnassigned)
		r.Get("/equipment/{id}", h.apiGetEquipment)
		r.Get("/migrations", h.apiListMigrations)
		r.Get("/audit", h.apiListAudit)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/racks", h.apiCreateRack)
			r.Patch("/racks/{id}", h.apiUpdateRack)
			r.Delete("/racks/{id}", h.apiDeleteRack)
			r.Post("/equipment", h.apiCreateEquipment)
			r.Post("/equipment/models", h.apiUpsertModel)
			r.Post("/equipment/{id}/metrics", h.apiRecordMetric)
			r.Post("/equipment/{id}/move", h.apiMoveEquipment)
		})
	})

	return r, h.eventHub.Close
}
