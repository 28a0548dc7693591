package playerapp

import (
	"context"
	"net/http"
	"sync"
)

// serviceFunc adapts a plain context-taking function to suture.Service,
// the same thin-wrapper shape as cartographus's
// internal/supervisor/services (one Serve method delegating to an
// existing component, a String method for log identification).
type serviceFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (s serviceFunc) Serve(ctx context.Context) error { return s.fn(ctx) }
func (s serviceFunc) String() string                  { return s.name }

// switchableHandler lets the player swap its entire HTTP surface (kiosk
// page <-> enrolment screen) without tearing down the listener, since the
// bound/unbound transition (§4.8, §7 "forbidden ... should stop playback
// and show setup") happens while the kiosk http.Server keeps running.
type switchableHandler struct {
	mu sync.RWMutex
	h  http.Handler
}

func (s *switchableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.h
	s.mu.RUnlock()
	h.ServeHTTP(w, r)
}

func (s *switchableHandler) Set(h http.Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}
