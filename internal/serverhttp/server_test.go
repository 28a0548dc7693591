package serverhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notandrewjones/signage-app/internal/config"
	"github.com/notandrewjones/signage-app/internal/enrol"
	"github.com/notandrewjones/signage-app/internal/events"
	"github.com/notandrewjones/signage-app/internal/model"
	"github.com/notandrewjones/signage-app/internal/store"
	"github.com/notandrewjones/signage-app/internal/syncorigin"
)

func schedAllDayAllWeek(groupID int64) model.Schedule {
	return model.Schedule{
		GroupID:  groupID,
		Name:     "Always on",
		Start:    0,
		End:      model.TimeOfDay(86399),
		Days:     "0123456",
		Priority: 0,
		Active:   true,
	}
}

func contentItem(groupID int64, name string, displayDuration float64, order int) model.ContentItem {
	return model.ContentItem{
		GroupID:         groupID,
		Name:            name,
		Filename:        name + ".png",
		FileType:        model.FileTypeImage,
		FileSize:        1024,
		DisplayDuration: displayDuration,
		Order:           order,
		Active:          true,
	}
}

func newTestDeps(t *testing.T) (*Deps, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return &Deps{
		Store:   s,
		Sync:    syncorigin.New(s, func() int64 { return 1_700_000_000 }),
		Enrol:   enrol.New(s),
		Hub:     events.NewHub(nil),
		Cfg:     &config.ServerConfig{Addr: ":8090", UploadsDir: "./uploads", RegisterRateLimit: 10},
		Version: "test",
	}, s
}

func TestDiscover(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/discover", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "8090", body["port"])
}

func TestServerTime(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/time", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]int64
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Greater(t, body["time"], int64(0))
}

func TestRegisterPlayer_RoundTrip_E9(t *testing.T) {
	deps, s := newTestDeps(t)
	r := NewRouter(deps)

	d, err := s.CreateDevice("Lobby")
	require.NoError(t, err)

	form := url.Values{"access_code": {d.AccessCode}}
	req := httptest.NewRequest(http.MethodPost, "/player/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, true, body["success"])
	require.Equal(t, "Lobby", body["device_name"])

	// Idempotent re-registration (§8 property 9).
	req2 := httptest.NewRequest(http.MethodPost, "/player/register", strings.NewReader(form.Encode()))
	req2.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
}

func TestRegisterPlayer_UnknownCodeIs404(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRouter(deps)

	form := url.Values{"access_code": {"000000"}}
	req := httptest.NewRequest(http.MethodPost, "/player/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayerPlaylist_UnboundDeviceReturnsEmptyPlaylist(t *testing.T) {
	deps, s := newTestDeps(t)
	r := NewRouter(deps)

	d, err := s.CreateDevice("Kiosk")
	require.NoError(t, err)
	require.NoError(t, s.BindDevice(d.ID))

	req := httptest.NewRequest(http.MethodGet, "/player/"+d.AccessCode+"/playlist", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Nil(t, body["playlist"])
	require.Nil(t, body["active_schedule"])
}

func TestSyncLogReport_RecordsAgainstDevice(t *testing.T) {
	deps, s := newTestDeps(t)
	r := NewRouter(deps)

	d, err := s.CreateDevice("Lobby")
	require.NoError(t, err)
	require.NoError(t, s.BindDevice(d.ID))

	contentItemID := int64(7)
	body, err := json.Marshal(map[string]any{
		"action":          model.SyncActionDownload,
		"content_item_id": contentItemID,
		"status":          model.SyncStatusSuccess,
		"message":         "a.png",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/player/"+d.AccessCode+"/sync-log", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	logs, err := s.SyncLogsForDevice(d.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, model.SyncActionDownload, logs[0].Action)
	require.Equal(t, model.SyncStatusSuccess, logs[0].Status)
}

func TestSyncLogReport_UnknownAccessCodeIs404(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/player/000000/sync-log", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlayerPlaylist_ResolvesBoundGroupPlaylist_E1(t *testing.T) {
	deps, s := newTestDeps(t)
	r := NewRouter(deps)

	g, err := s.CreateScheduleGroup("Lobby group", true)
	require.NoError(t, err)
	_, err = s.CreateSchedule(schedAllDayAllWeek(g.ID))
	require.NoError(t, err)
	_, err = s.CreateContentItem(contentItem(g.ID, "A", 10, 0))
	require.NoError(t, err)
	_, err = s.CreateContentItem(contentItem(g.ID, "B", 5, 1))
	require.NoError(t, err)

	d, err := s.CreateDevice("Lobby display")
	require.NoError(t, err)
	require.NoError(t, s.BindDevice(d.ID))
	require.NoError(t, s.BindDeviceToGroup(d.ID, g.ID))

	req := httptest.NewRequest(http.MethodGet, "/player/"+d.AccessCode+"/playlist", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	playlist, ok := body["playlist"].([]any)
	require.True(t, ok)
	require.Len(t, playlist, 2)
	first := playlist[0].(map[string]any)
	require.Equal(t, "/uploads/content/"+first["filename"].(string), first["url"])

	sync := body["sync"].(map[string]any)
	require.Equal(t, float64(15), sync["total_duration"])
}
