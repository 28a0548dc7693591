package localmedia

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notandrewjones/signage-app/internal/playercache"
)

func TestServer_ServesContentAndSplashWithCORSHeaders(t *testing.T) {
	cache, err := playercache.NewManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cache.ContentDir(), "a.png"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cache.SplashDir(), "logo.png"), []byte("logo"), 0o644))

	s := New(cache, 0)
	require.NoError(t, s.Start())
	defer s.Shutdown(context.Background())

	require.True(t, WaitReachable(s.BaseURL()[len("http://"):], 2*time.Second))

	resp, err := http.Get(s.BaseURL() + "/content/a.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "hi", string(body))

	resp2, err := http.Get(s.BaseURL() + "/splash/logo.png")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestServer_UnknownFileIs404(t *testing.T) {
	cache, err := playercache.NewManager(t.TempDir())
	require.NoError(t, err)
	s := New(cache, 0)
	require.NoError(t, s.Start())
	defer s.Shutdown(context.Background())

	resp, err := http.Get(s.BaseURL() + "/content/nope.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
