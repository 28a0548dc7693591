package serverhttp

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/notandrewjones/signage-app/internal/metrics"
	"github.com/notandrewjones/signage-app/internal/model"
	"github.com/notandrewjones/signage-app/internal/resolver"
)

// discover answers GET /discover (§6).
func (h *handlers) discover(w http.ResponseWriter, r *http.Request) {
	_, port, _ := net.SplitHostPort(h.d.Cfg.Addr)
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "signage-server",
		"version": h.d.Version,
		"ip":      localIP(),
		"port":    port,
	})
}

// serverTime answers GET /time (§6) — used by players for drift
// diagnostics (§4.3).
func (h *handlers) serverTime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"time": time.Now().Unix()})
}

// registerPlayer answers POST /player/register (§4.8, §6).
func (h *handlers) registerPlayer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, model.NewClientInputError("malformed form body"))
		return
	}
	code := r.FormValue("access_code")
	if code == "" {
		writeError(w, model.NewClientInputError("access_code is required"))
		return
	}

	d, err := h.d.Enrol.Register(code)
	if err != nil {
		outcome := "error"
		switch err.(type) {
		case *model.NotFoundError:
			outcome = "not_found"
		case *model.ForbiddenError:
			outcome = "forbidden"
		}
		metrics.RecordRegistration(outcome)
		writeError(w, err)
		return
	}
	metrics.RecordRegistration("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"device_name": d.Name,
		"device_id":   d.ID,
	})
}

// playerConfig answers GET /player/{access_code}/config (§6). Side
// effect: updates last_seen and marks the device online.
func (h *handlers) playerConfig(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "access_code")
	d, err := h.d.Store.DeviceByAccessCode(code)
	if err != nil {
		writeError(w, err)
		return
	}
	if d == nil {
		writeError(w, model.NewNotFoundError("no device with access code %q", code))
		return
	}

	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	_ = h.d.Store.TouchLastSeen(d.ID, time.Now().Unix(), ip)

	display, err := h.d.Store.DefaultDisplay()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device": map[string]any{
			"id":                d.ID,
			"name":              d.Name,
			"orientation":       d.Orientation,
			"flip_horizontal":   d.FlipHorizontal,
			"flip_vertical":     d.FlipVertical,
			"schedule_group_id": d.ScheduleGroupID,
		},
		"default_display": display,
		"server_time":     time.Now().Unix(),
	})
}

// playerPlaylist answers GET /player/{access_code}/playlist (§6),
// wiring the resolver and sync-origin store together (§2 dependency
// order "resolver -> sync-origin store -> HTTP endpoints").
func (h *handlers) playerPlaylist(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "access_code")
	d, err := h.d.Store.DeviceByAccessCode(code)
	if err != nil {
		writeError(w, err)
		return
	}
	if d == nil {
		writeError(w, model.NewNotFoundError("no device with access code %q", code))
		return
	}
	if !d.Active {
		writeError(w, model.NewForbiddenError("device %d is inactive", d.ID))
		return
	}

	var gd resolver.GroupData
	var boundGroupID *int64
	if d.ScheduleGroupID != nil {
		group, err := h.d.Store.ScheduleGroup(*d.ScheduleGroupID)
		if err != nil {
			writeError(w, err)
			return
		}
		if group != nil {
			gd.Group = *group
			boundGroupID = &group.ID
			if gd.Schedules, err = h.d.Store.Schedules(group.ID); err != nil {
				writeError(w, err)
				return
			}
			if gd.Content, err = h.d.Store.ContentItems(group.ID); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	now := time.Now()
	result := resolver.Resolve(gd, now)
	metrics.RecordResolve(result.ActiveSchedule != nil)

	for i := range result.Playlist {
		result.Playlist[i].URL = "/uploads/content/" + result.Playlist[i].Filename
	}

	var syncBlock map[string]any
	if boundGroupID != nil {
		active, err := h.d.Store.ActiveContentItems(*boundGroupID)
		if err != nil {
			writeError(w, err)
			return
		}
		origin, err := h.d.Sync.Resolve(*boundGroupID, active)
		if err != nil {
			writeError(w, err)
			return
		}
		syncBlock = map[string]any{
			"start_time":     origin.OriginUnix,
			"total_duration": origin.CycleDuration,
		}
	} else {
		syncBlock = map[string]any{"start_time": 0, "total_duration": 0}
	}

	transition := map[string]any{"type": model.TransitionCut, "duration": 0.0}
	if result.ActiveSchedule != nil {
		transition = map[string]any{
			"type":     result.ActiveSchedule.Transition,
			"duration": result.ActiveSchedule.TransitionDuration,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist":        result.Playlist,
		"active_schedule": result.ActiveSchedule,
		"device": map[string]any{
			"orientation":     d.Orientation,
			"flip_horizontal": d.FlipHorizontal,
			"flip_vertical":   d.FlipVertical,
		},
		"transition": transition,
		"sync":       syncBlock,
		"debug":      result.Debug,
	})
}

// syncLogReport answers POST /player/{access_code}/sync-log: the
// player's own cache reports its download/eviction activity here so it
// shows up in the operator-facing SyncLog (SPEC_FULL.md §12).
func (h *handlers) syncLogReport(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "access_code")
	d, err := h.d.Store.DeviceByAccessCode(code)
	if err != nil {
		writeError(w, err)
		return
	}
	if d == nil {
		writeError(w, model.NewNotFoundError("no device with access code %q", code))
		return
	}

	var body struct {
		Action        model.SyncAction `json:"action"`
		ContentItemID *int64           `json:"content_item_id,omitempty"`
		Status        model.SyncStatus `json:"status"`
		Message       string           `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, model.NewClientInputError("malformed sync-log body"))
		return
	}

	if err := h.d.Store.RecordSync(d.ID, body.Action, body.ContentItemID, body.Status, body.Message, time.Now().Unix()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// playerEvents upgrades to the §4.9 bidirectional event bus connection
// for one device.
func (h *handlers) playerEvents(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "access_code")
	d, err := h.d.Store.DeviceByAccessCode(code)
	if err != nil || d == nil {
		http.Error(w, "unknown access code", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	metrics.EventBusClientsConnected.Inc()
	defer metrics.EventBusClientsConnected.Dec()
	h.d.Hub.Accept(code, conn)
	_ = h.d.Store.SetOffline(d.ID)
}

func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
