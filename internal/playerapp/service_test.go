package playerapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServiceFunc_DelegatesAndNames(t *testing.T) {
	called := false
	s := serviceFunc{name: "widget", fn: func(ctx context.Context) error {
		called = true
		return ctx.Err()
	}}
	require.Equal(t, "widget", s.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Serve(ctx), context.Canceled)
	require.True(t, called)
}

func TestServiceFunc_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := serviceFunc{name: "x", fn: func(ctx context.Context) error { return boom }}
	require.ErrorIs(t, s.Serve(context.Background()), boom)
}

func TestSwitchableHandler_Swap(t *testing.T) {
	var sw switchableHandler
	sw.Set(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first"))
	}))

	srv := httptest.NewServer(&sw)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	body := make([]byte, 5)
	_, _ = resp.Body.Read(body)
	resp.Body.Close()
	require.Equal(t, "first", string(body))

	sw.Set(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("second"))
	}))

	resp, err = http.Get(srv.URL)
	require.NoError(t, err)
	body = make([]byte, 6)
	_, _ = resp.Body.Read(body)
	resp.Body.Close()
	require.Equal(t, "second", string(body))
}

func TestSwitchableHandler_ConcurrentSafe(t *testing.T) {
	var sw switchableHandler
	sw.Set(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sw.Set(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
		}()
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			sw.ServeHTTP(rec, req)
		}()
	}
	wg.Wait()
}
