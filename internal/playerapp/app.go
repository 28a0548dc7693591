// Package playerapp is the player process's supervision root: it wires
// the content cache, local media server, renderer controller, sync
// engine, poller and event-bus client into one thejerf/suture/v4
// supervisor tree (§5 "the player has exactly one process, one
// supervisor, and a handful of components it starts and stops
// together"). Grounded on tomtom215/cartographus's
// internal/supervisor/services thin-wrapper pattern: each long-running
// component gets a Serve(ctx) error/String() string adapter rather than
// a bespoke restart loop.
package playerapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/notandrewjones/signage-app/internal/config"
	"github.com/notandrewjones/signage-app/internal/localmedia"
	"github.com/notandrewjones/signage-app/internal/model"
	"github.com/notandrewjones/signage-app/internal/playercache"
	"github.com/notandrewjones/signage-app/internal/poller"
	"github.com/notandrewjones/signage-app/internal/renderer"
	"github.com/notandrewjones/signage-app/internal/syncengine"
)

const (
	configPollInterval    = 30 * time.Second
	clockProbeInterval    = 60 * time.Second
	clockOffsetWarnThresh = 2 * time.Second // server's /time has 1s resolution, plus RTT slack
	configRequestTimeout  = 10 * time.Second
	splashSyncTimeout     = 60 * time.Second
)

// App is one player's runtime. Build with New, then call Run once; Run
// blocks until ctx is cancelled or an unrecoverable component failure
// propagates out of the supervisor tree.
type App struct {
	cfg        *config.PlayerConfig
	configPath string

	cache  *playercache.Manager
	media  *localmedia.Server
	driver *renderer.Driver
	engine *syncengine.Engine
	mux    switchableHandler

	mu      sync.Mutex
	bound   bool
	poller  *poller.Poller
	display *model.DefaultDisplay
}

// New builds a player app; it does not start anything yet.
func New(cfg *config.PlayerConfig, configPath string) (*App, error) {
	cache, err := playercache.NewManager(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("playerapp: cache: %w", err)
	}
	driver := renderer.NewDriver()
	a := &App{
		cfg:        cfg,
		configPath: configPath,
		cache:      cache,
		media:      localmedia.New(cache, cfg.LocalMediaPort),
		driver:     driver,
		engine:     syncengine.New(driver.Renderer(), nil),
		bound:      cfg.Bound(),
	}
	cache.SetReporter(a.reportSync)
	driver.SetResyncHandler(a.triggerManualResync)
	a.mux.Set(a.initialHandler())
	return a, nil
}

func (a *App) initialHandler() http.Handler {
	if a.bound {
		return renderer.Mux(a.driver, fmt.Sprintf("ws://127.0.0.1:%d/ws", a.cfg.KioskPort), a.currentSplash)
	}
	var dev *model.Device
	if a.cfg.AccessCode != "" {
		dev = &model.Device{AccessCode: a.cfg.AccessCode}
	}
	return renderer.EnrolMux(a.cfg.ServerURL, dev)
}

// currentSplash is the renderer.DisplayProvider backing /splash: it
// always reflects the latest successful config fetch without requiring
// the kiosk mux to be rebuilt.
func (a *App) currentSplash() (*model.DefaultDisplay, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.display, a.media.BaseURL() + "/splash"
}

// triggerManualResync handles the kiosk page's manual-resync key (§2,
// §4.3): it asks the poller to fetch immediately instead of waiting out
// its own tick.
func (a *App) triggerManualResync() {
	a.mu.Lock()
	p := a.poller
	a.mu.Unlock()
	if p != nil {
		slog.Info("manual resync requested")
		p.TriggerNow()
	}
}

// reportSync forwards one cache sync action to the server so it shows up
// in the operator-facing sync log (SPEC_FULL.md §12). Best-effort: a
// failure here never blocks or fails the cache operation it describes.
func (a *App) reportSync(action model.SyncAction, contentItemID *int64, status model.SyncStatus, message string) {
	body, err := json.Marshal(struct {
		Action        model.SyncAction `json:"action"`
		ContentItemID *int64           `json:"content_item_id,omitempty"`
		Status        model.SyncStatus `json:"status"`
		Message       string           `json:"message"`
	}{action, contentItemID, status, message})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	url := fmt.Sprintf("%s/player/%s/sync-log", a.cfg.ServerURL, a.cfg.AccessCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Debug("sync log report failed", "error", err)
		return
	}
	resp.Body.Close()
}

// Run starts every component and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.bound {
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.registerWithServer(rctx); err != nil {
			slog.Warn("initial registration attempt failed, continuing with cached binding", "error", err)
		}
		cancel()
	}

	tree := suture.New("player", suture.Spec{})
	tree.Add(serviceFunc{"local-media", a.serveLocalMedia})
	tree.Add(serviceFunc{"kiosk-http", a.serveKioskHTTP})
	if a.bound {
		tree.Add(serviceFunc{"poller", a.servePoller})
		tree.Add(serviceFunc{"events-client", a.serveEventsClient})
		tree.Add(serviceFunc{"config-poller", a.serveConfigPoller})
		tree.Add(serviceFunc{"clock-probe", a.serveClockProbe})
	}
	return tree.Serve(ctx)
}

func (a *App) serveLocalMedia(ctx context.Context) error {
	if err := a.media.Start(); err != nil {
		return err
	}
	localmedia.WaitReachable(fmt.Sprintf("127.0.0.1:%d", a.media.Port()), 2*time.Second)
	<-ctx.Done()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.media.Shutdown(sctx)
}

// serveKioskHTTP is the suture.Service wrapper around the kiosk page's
// http.Server, following cartographus's HTTPServerService shape: run
// ListenAndServe in a goroutine, wait on ctx or a server error, shut down
// with a bounded timeout.
func (a *App) serveKioskHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.KioskPort),
		Handler: &a.mux,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		<-errCh
		return ctx.Err()
	}
}

func (a *App) servePoller(ctx context.Context) error {
	p := poller.New(poller.Config{
		ServerURL:  a.cfg.ServerURL,
		AccessCode: a.cfg.AccessCode,
		OnUpdate:   a.onPlaylistUpdate,
		OnError:    a.onPollError,
	})
	a.mu.Lock()
	a.poller = p
	a.mu.Unlock()
	p.Run(ctx)
	a.mu.Lock()
	a.poller = nil
	a.mu.Unlock()
	return ctx.Err()
}

func (a *App) serveEventsClient(ctx context.Context) error {
	c := NewEventsClient(a.cfg.ServerURL, a.cfg.AccessCode, func(msgType string) {
		slog.Debug("event bus push received", "type", msgType)
	})
	return c.Run(ctx)
}

// serveConfigPoller periodically refreshes the operator-configured
// default display (§2, §4.4) and syncs its logo/background assets into
// the splash cache, independently of the playlist poller's own tick.
func (a *App) serveConfigPoller(ctx context.Context) error {
	refresh := func() {
		cctx, cancel := context.WithTimeout(ctx, configRequestTimeout)
		display, err := a.fetchConfig(cctx)
		cancel()
		if err != nil {
			slog.Warn("config fetch failed", "error", err)
			return
		}

		a.mu.Lock()
		a.display = display
		a.mu.Unlock()

		sctx, cancel := context.WithTimeout(ctx, splashSyncTimeout)
		err = a.cache.SyncSplash(sctx, splashItems(*display, a.cfg.ServerURL))
		cancel()
		if err != nil {
			slog.Error("splash asset sync failed", "error", err)
		}
	}

	refresh()
	ticker := time.NewTicker(configPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh()
		}
	}
}

func splashItems(display model.DefaultDisplay, serverURL string) []playercache.Item {
	var items []playercache.Item
	if display.LogoFilename != nil {
		items = append(items, playercache.Item{
			Filename: *display.LogoFilename,
			URL:      serverURL + "/uploads/logos/" + *display.LogoFilename,
		})
	}
	for _, bg := range display.Backgrounds {
		if !bg.Active {
			continue
		}
		items = append(items, playercache.Item{
			Filename: bg.Filename,
			URL:      serverURL + "/uploads/backgrounds/" + bg.Filename,
		})
	}
	return items
}

func (a *App) fetchConfig(ctx context.Context) (*model.DefaultDisplay, error) {
	url := fmt.Sprintf("%s/player/%s/config", a.cfg.ServerURL, a.cfg.AccessCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playerapp: config returned status %d", resp.StatusCode)
	}
	var body struct {
		DefaultDisplay model.DefaultDisplay `json:"default_display"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &body.DefaultDisplay, nil
}

// serveClockProbe is the player's half of §4.3's NTP-style clock-offset
// check: an offset estimate from a single round trip against the
// server's wall clock, with a warning past clockOffsetWarnThresh. Large
// offsets mean the two sides may compute different current-item indices
// from the same sync origin even though the math itself is correct.
func (a *App) serveClockProbe(ctx context.Context) error {
	probe := func() {
		tSend := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.ServerURL+"/time", nil)
		if err != nil {
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			slog.Debug("clock probe failed", "error", err)
			return
		}
		defer resp.Body.Close()
		tRecv := time.Now()

		var body struct {
			Time int64 `json:"time"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return
		}

		mid := tSend.Add(tRecv.Sub(tSend) / 2)
		midUnix := float64(mid.Unix()) + float64(mid.Nanosecond())/1e9
		offset := float64(body.Time) - midUnix

		if math.Abs(offset) > clockOffsetWarnThresh.Seconds() {
			slog.Warn("player clock offset from server exceeds threshold", "offset_seconds", offset)
		} else {
			slog.Debug("clock probe", "offset_seconds", offset)
		}
	}

	probe()
	ticker := time.NewTicker(clockProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			probe()
		}
	}
}

// onPlaylistUpdate drives the cache and, where needed, the sync engine
// from one poller tick (§4.7's decision tree: full resync, transform-only
// update, or no-op).
func (a *App) onPlaylistUpdate(pl poller.Playlist, diff poller.Diff) {
	if !diff.Changed() {
		return
	}

	items := make([]playercache.Item, len(pl.Items))
	for i, it := range pl.Items {
		id := it.ID
		items[i] = playercache.Item{
			Filename:          it.Filename,
			URL:               a.cfg.ServerURL + it.URL,
			Size:              it.FileSize,
			FileType:          it.FileType,
			IntrinsicDuration: it.Duration,
			ContentItemID:     &id,
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := a.cache.Sync(ctx, items); err != nil {
		slog.Error("playlist cache sync failed", "error", err)
		return
	}

	if diff.OrientationChanged || diff.FlipChanged {
		_ = a.driver.ApplyTransform(pl.Device.Orientation, pl.Device.FlipHorizontal, pl.Device.FlipVertical)
	}
	if !diff.RequiresFullResync() {
		return
	}

	localItems := make([]model.PlaylistItem, len(pl.Items))
	for i, it := range pl.Items {
		it.URL = a.media.BaseURL() + "/content/" + it.Filename
		localItems[i] = it
	}
	a.engine.Reload(context.Background(), syncengine.Plan{
		Items:              localItems,
		Origin:             syncengine.Origin{Unix: pl.Sync.StartTime, CycleDuration: pl.Sync.TotalDuration},
		TransitionKind:     pl.Transition.Type,
		TransitionDuration: pl.Transition.Duration,
	})
}

// onPollError handles the §6 "players treat as re-enrol required"
// contract: drop to the setup screen and stop trusting the stored access
// code. Other errors (network blips, 5xx) just log — cached content
// keeps playing (§7 NetworkFailure, §E6).
func (a *App) onPollError(err error) {
	if !poller.IsReenrolRequired(err) {
		slog.Warn("poller error", "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.bound {
		return
	}
	a.bound = false
	a.engine.Stop()
	a.cfg.AccessCode = ""
	if err := a.cfg.Save(a.configPath); err != nil {
		slog.Warn("could not persist cleared access code", "error", err)
	}
	a.mux.Set(renderer.EnrolMux(a.cfg.ServerURL, nil))
	slog.Warn("access code no longer recognised by server, showing setup screen")
}

func (a *App) registerWithServer(ctx context.Context) error {
	form := url.Values{"access_code": {a.cfg.AccessCode}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.ServerURL+"/player/register", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("playerapp: register returned status %d", resp.StatusCode)
	}
	return nil
}
