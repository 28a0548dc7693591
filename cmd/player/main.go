// Command player is the kiosk-side process: it loads its persisted
// config, builds the playerapp supervisor tree, opens the kiosk page in
// the default browser (or waits for a real kiosk browser to point at
// it), and runs until a signal asks it to stop. Grounded on the
// teacher's root main.go (flags -> logger -> background work ->
// auto-open browser -> block on signal -> graceful shutdown), narrowed
// to the player's own component set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/notandrewjones/signage-app/internal/browser"
	"github.com/notandrewjones/signage-app/internal/config"
	"github.com/notandrewjones/signage-app/internal/playerapp"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to the player's persisted config.json")
	noBrowser := flag.Bool("no-browser", false, "Do not auto-open the kiosk page in a browser on startup")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.LoadPlayerConfig(*configPath)
	if err != nil {
		slog.Error("failed to load player config", "error", err)
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || *debug

	app, err := playerapp.New(cfg, *configPath)
	if err != nil {
		slog.Error("failed to build player app", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*noBrowser {
		kioskURL := fmt.Sprintf("http://127.0.0.1:%d/", cfg.KioskPort)
		go func() {
			slog.Info("opening kiosk page in browser", "url", kioskURL)
			browser.Open(kioskURL)
		}()
	}

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("player app stopped unexpectedly", "error", err)
		os.Exit(1)
	}
	slog.Info("player shut down")
}
