package playerapp

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notandrewjones/signage-app/internal/config"
)

func newTestConfig(t *testing.T, accessCode string) *config.PlayerConfig {
	t.Helper()
	return &config.PlayerConfig{
		ServerURL:      "http://example.invalid",
		AccessCode:     accessCode,
		LocalMediaPort: 0,
		KioskPort:      0,
		CacheDir:       t.TempDir(),
	}
}

func TestNew_UnboundPicksEnrolMux(t *testing.T) {
	cfg := newTestConfig(t, "")
	a, err := New(cfg, t.TempDir()+"/config.json")
	require.NoError(t, err)
	require.False(t, a.bound)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	a.mux.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
}

func TestNew_BoundPicksKioskMux(t *testing.T) {
	cfg := newTestConfig(t, "abc123")
	a, err := New(cfg, t.TempDir()+"/config.json")
	require.NoError(t, err)
	require.True(t, a.bound)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	a.mux.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
}
