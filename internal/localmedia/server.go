// Package localmedia implements the player's loopback HTTP listener
// (§4.5): it serves the cache directories read-only so the renderer
// always loads assets from a uniform http://127.0.0.1:PORT/... origin,
// sidestepping file:// autoplay and cross-origin restrictions in
// embedded browsers. Grounded on the teacher's root main.go, which
// wires a chi-less static file server for /videos alongside the main
// API mux; this package gives the player the same shape as its own
// dedicated listener (§5 "the local media server listens on a
// dedicated thread").
package localmedia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/notandrewjones/signage-app/internal/playercache"
)

// Server is the loopback media listener for one player process.
type Server struct {
	cache  *playercache.Manager
	port   int
	srv    *http.Server
	ln     net.Listener
	actual int
}

// New builds a local media server bound to port (0 picks any free
// port; Port() then reports what was actually bound).
func New(cache *playercache.Manager, port int) *Server {
	return &Server{cache: cache, port: port}
}

// Start binds the listener and begins serving in the background. Call
// Shutdown to tear it down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("localmedia: listen: %w", err)
	}
	s.ln = ln
	s.actual = ln.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/content/", s.serveFrom(s.cache.ContentDir(), "/content/"))
	mux.HandleFunc("/splash/", s.serveFrom(s.cache.SplashDir(), "/splash/"))

	s.srv = &http.Server{Handler: corsNoCache(mux)}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("local media server stopped unexpectedly", "error", err)
		}
	}()
	slog.Info("local media server listening", "port", s.actual)
	return nil
}

// Port returns the port actually bound (useful when New was given 0).
func (s *Server) Port() int { return s.actual }

// BaseURL is the uniform origin the renderer should use for every
// asset, cached or not (§4.5).
func (s *Server) BaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.actual)
}

// Shutdown stops accepting connections and waits briefly for in-flight
// requests to drain (§5 "a stop signal ... tears down timers").
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) serveFrom(dir, prefix string) http.HandlerFunc {
	fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return func(w http.ResponseWriter, r *http.Request) {
		fileServer.ServeHTTP(w, r)
	}
}

// corsNoCache applies the two headers §4.5 and §6 require on every
// response from the local media server.
func corsNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// WaitReachable polls the listener briefly to confirm it accepts
// connections before the renderer starts pointing at it. Best-effort;
// callers should not block indefinitely on a cold start.
func WaitReachable(addr string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}
