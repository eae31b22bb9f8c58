package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vaultsim/internal/api"
	"vaultsim/internal/config"
	"vaultsim/internal/engine"
	"vaultsim/internal/feed"
	"vaultsim/internal/feed/ws"
	"vaultsim/internal/logger"
	"vaultsim/internal/metrics"
	"vaultsim/internal/store"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, err := config.Load(os.Getenv("VAULTSIM_CONFIG"))
	if err != nil {
		panic(err)
	}

	logger := logger.New(logger.Config{
		Level:      cfg.Runtime.Log.Level,
		Format:     cfg.Runtime.Log.Format,
		Output:     cfg.Runtime.Log.File,
		MaxSize:    cfg.Runtime.Log.MaxSize,
		MaxBackups: cfg.Runtime.Log.MaxBackups,
		MaxAge:     cfg.Runtime.Log.MaxAge,
		Compress:   cfg.Runtime.Log.Compress,
	})

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.WithError(err).Fatal("Не удалось открыть хранилище снимков.")
	}
	defer db.Close()

	hub := ws.NewHub(logger)
	m := metrics.New()
	eng := engine.New(cfg, logger, engine.Options{
		Store:     db,
		Publisher: feed.Multi(hub, m),
		OnDrop:    func(feed.Event) { m.IncDropped() },
	})

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.NewRouter(api.NewHandler(eng, logger), hub, m, cfg.Server),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		logger.WithError(err).Fatal("\"Двигатель\" завершился с ошибкой.")
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP сервер завершился с ошибкой.")
		}
	}()
	logger.WithFields(map[string]interface{}{"listen": cfg.Server.Listen}).Info("Симулятор запущен.")

	<-sigCh
	logger.Info("Остановка...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP сервер остановлен с ошибкой.")
	}

	eng.Stop()
	cancel()
	<-eng.Done()

	logger.Info("Симулятор остановлен.")
}
