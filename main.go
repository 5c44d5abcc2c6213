package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/RMRattray/national-recording-rummy/api"
	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/directory"
	"github.com/RMRattray/national-recording-rummy/events"
	"github.com/RMRattray/national-recording-rummy/lobby"
	"github.com/RMRattray/national-recording-rummy/loghandler"
	"github.com/RMRattray/national-recording-rummy/storage"
	"github.com/RMRattray/national-recording-rummy/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found; using environment variables.", "tag", "main")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, cfg.SlogLevel())))

	slog.Info(fmt.Sprintf("Configuration: Port=%d, MaxNameLength=%d, EventLogSize=%d, MoveTimeoutMS=%d, GameRetentionSec=%d, IdleEvictSec=%d",
		cfg.Port, cfg.MaxNameLength, cfg.EventLogSize, cfg.MoveTimeoutMS, cfg.GameRetentionSec, cfg.IdleEvictSec), "tag", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []lobby.Option{}

	var historyStore storage.HistoryStore
	if cfg.Storage.DatabaseURL == "" {
		slog.Info("Storage: DATABASE_URL is not set; results will not be recorded.", "tag", "main")
	} else {
		store, err := storage.NewStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			slog.Error("Storage: failed to connect", "tag", "main", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		historyStore = store
		opts = append(opts, lobby.WithStore(store))
		slog.Info("Storage: connected", "tag", "main")
	}

	var publisher events.Publisher
	if cfg.Events.NATSURL == "" {
		slog.Info("Events: NATS_URL is not set; match events will not be published.", "tag", "main")
	} else {
		pub, err := events.Connect(cfg.Events)
		if err != nil {
			slog.Error("Events: failed to connect", "tag", "main", "err", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
		opts = append(opts, lobby.WithEvents(pub))
		slog.Info("Events: connected", "tag", "main", "url", cfg.Events.NATSURL)
	}

	dir := directory.New(cfg)
	go dir.Run(ctx)

	l := lobby.New(ctx, cfg, dir, opts...)

	hub := ws.NewHub(cfg, l, dir)
	l.SetPusher(hub)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	api.NewHandler(cfg, l, dir, historyStore, publisher).Register(mux)
	mux.HandleFunc("/ws", hub.ServeWS)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown", "tag", "main", "err", err)
		}
	}()

	slog.Info(fmt.Sprintf("Rummy server listening on %s", srv.Addr), "tag", "main")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "tag", "main", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped", "tag", "main")
}
