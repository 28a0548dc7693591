package renderer

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/notandrewjones/signage-app/internal/model"
)

// DisplayProvider returns the operator-configured default display and the
// local base URL splash assets are served from (the player's local media
// server, not the origin), so /splash always reflects the latest config
// fetch without rebuilding the mux.
type DisplayProvider func() (display *model.DefaultDisplay, assetBaseURL string)

// Mux builds the player's local render-surface routes: the kiosk page,
// its websocket, and the splash/enrolment fallbacks (§4.6, §4.8, §7).
func Mux(driver *Driver, wsURL string, splash DisplayProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", templ.Handler(Page(wsURL)))
	mux.HandleFunc("/ws", driver.ServeHTTP)
	mux.HandleFunc("/splash", func(w http.ResponseWriter, r *http.Request) {
		display, assetBaseURL := splash()
		templ.Handler(SplashPage("no schedule is active", display, assetBaseURL)).ServeHTTP(w, r)
	})
	return mux
}

// EnrolMux builds the standalone setup-screen server shown before a
// device is bound (§4.8).
func EnrolMux(serverURL string, device *model.Device) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", templ.Handler(EnrolPage(serverURL, device)))
	return mux
}
