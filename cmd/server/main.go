// Command server is the fleet's central process: resolver, sync-origin
// store, the HTTP API of §6, and the event bus of §4.9. Grounded on the
// teacher's root main.go (flags -> logger -> db -> config -> hub ->
// routes -> graceful shutdown) but reshaped around §2's server-side
// dependency order: resolver -> sync-origin store -> HTTP endpoints ->
// event bus.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notandrewjones/signage-app/internal/config"
	"github.com/notandrewjones/signage-app/internal/enrol"
	"github.com/notandrewjones/signage-app/internal/events"
	"github.com/notandrewjones/signage-app/internal/serverhttp"
	"github.com/notandrewjones/signage-app/internal/store"
	"github.com/notandrewjones/signage-app/internal/syncorigin"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Optional config file (JSON)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || *debug

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	syncStore := syncorigin.New(db, nil)
	enrolSvc := enrol.New(db)

	hub := events.NewHub(func(hb events.Heartbeat) {
		d, err := db.DeviceByAccessCode(hb.AccessCode)
		if err != nil || d == nil {
			slog.Debug("heartbeat for unknown device", "access_code", hb.AccessCode)
			return
		}
		if err := db.TouchLastSeen(d.ID, time.Now().Unix(), hb.IP); err != nil {
			slog.Warn("heartbeat touch failed", "access_code", hb.AccessCode, "error", err)
		}
		if hb.ScreenWidth != nil && hb.ScreenHeight != nil {
			_ = db.UpdateScreenSize(d.ID, *hb.ScreenWidth, *hb.ScreenHeight)
		}
	})

	router := serverhttp.NewRouter(&serverhttp.Deps{
		Store:   db,
		Sync:    syncStore,
		Enrol:   enrolSvc,
		Hub:     hub,
		Cfg:     cfg,
		Version: version,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections need unbounded write time
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		slog.Info("metrics server starting", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(ctx)
	_ = srv.Shutdown(ctx)
}
