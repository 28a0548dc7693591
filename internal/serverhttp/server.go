// Package serverhttp implements the server's HTTP API (§6): discovery,
// time, player registration, per-device config and playlist, static
// upload serving, and the event-bus websocket upgrade. Grounded on the
// teacher's internal/handlers.Handlers (a single struct holding every
// dependency, constructed once in main and wired to a router) but
// routed through go-chi/chi instead of the teacher's bare
// http.ServeMux, since §6 needs path parameters
// (/player/{access_code}/...) the stdlib mux handles awkwardly and
// go-chi/httprate needs a middleware-chainable router.
package serverhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"

	"github.com/notandrewjones/signage-app/internal/config"
	"github.com/notandrewjones/signage-app/internal/enrol"
	"github.com/notandrewjones/signage-app/internal/events"
	"github.com/notandrewjones/signage-app/internal/store"
	"github.com/notandrewjones/signage-app/internal/syncorigin"
)

// Deps bundles everything the HTTP layer needs. Built once in main and
// passed to NewRouter, mirroring the teacher's handlers.New(cfg, hub,
// matcher, transitionMatcher, ts) constructor shape.
type Deps struct {
	Store   *store.Store
	Sync    *syncorigin.Store
	Enrol   *enrol.Service
	Hub     *events.Hub
	Cfg     *config.ServerConfig
	Version string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter builds the server's chi router (§2 "resolver -> sync-origin
// store -> HTTP endpoints -> event bus").
func NewRouter(d *Deps) http.Handler {
	h := &handlers{d: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/discover", h.discover)
	r.Get("/time", h.serverTime)

	registerLimit := d.Cfg.RegisterRateLimit
	if registerLimit <= 0 {
		registerLimit = 10
	}
	r.With(httprate.Limit(registerLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/player/register", h.registerPlayer)

	r.Route("/player/{access_code}", func(r chi.Router) {
		r.Get("/config", h.playerConfig)
		r.Get("/playlist", h.playerPlaylist)
		r.Get("/events", h.playerEvents)
		r.Post("/sync-log", h.syncLogReport)
	})

	r.Handle("/uploads/content/*", staticHandler(d.Cfg.UploadsDir+"/content", "/uploads/content"))
	r.Handle("/uploads/logos/*", staticHandler(d.Cfg.UploadsDir+"/logos", "/uploads/logos"))
	r.Handle("/uploads/backgrounds/*", staticHandler(d.Cfg.UploadsDir+"/backgrounds", "/uploads/backgrounds"))

	return r
}

func staticHandler(dir, prefix string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
}

type handlers struct {
	d *Deps
}
