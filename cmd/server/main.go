// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/planpoker/internal/cache"
	"github.com/jason-s-yu/planpoker/internal/captcha"
	"github.com/jason-s-yu/planpoker/internal/config"
	"github.com/jason-s-yu/planpoker/internal/events"
	"github.com/jason-s-yu/planpoker/internal/handlers"
	"github.com/jason-s-yu/planpoker/internal/lobby"
	"github.com/jason-s-yu/planpoker/internal/middleware"
	"github.com/jason-s-yu/planpoker/internal/stats"
	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := cache.Connect(ctx, cfg.Redis, logger)
	defer rdb.Close()
	kv := cache.NewStore(rdb)

	bus := events.NewBus(events.DefaultBuffer, logger)
	stats.NewSink(kv, logger).Register(bus)

	io := handlers.NewSocketIOServer(cfg.OriginAllowed)
	hub := handlers.NewWSHub(logger)
	sioRooms := handlers.NewSocketIORooms(io, handlers.DefaultRoomQueue, logger)

	turnstile := captcha.NewTurnstile(cfg.TurnstileSecret, logger)
	if !turnstile.Enabled() {
		logger.Warn("TURNSTILE_SECRET_KEY not set, captcha verification is disabled")
	}

	mgr := lobby.NewManager(lobby.Options{
		Store:       lobby.NewLobbyStore(kv, cfg.LobbyTTL, logger),
		Rooms:       lobby.Broadcasters{sioRooms, hub},
		Events:      bus,
		Captcha:     turnstile,
		Clock:       clockwork.NewRealClock(),
		GracePeriod: cfg.GracePeriod,
		Logger:      logger,
	})
	defer mgr.Close()

	api := handlers.NewLobbyAPI(mgr, logger)
	handlers.MountSocketIO(io, api, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HealthHandler)
	mux.Handle("/socket.io/", io)
	mux.Handle("/lobby/ws", handlers.LobbyWSHandler(logger, api, hub, cfg.OriginAllowed))

	corsOpts := cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: !cfg.AllowsAnyOrigin(),
	}
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.LogMiddleware(logger)(cors.New(corsOpts).Handler(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Run(gctx)
	})
	g.Go(func() error {
		return sioRooms.Run(gctx)
	})
	g.Go(func() error {
		// Serve returns only once the server is closed.
		err := io.Serve()
		if err != nil {
			logger.Warnf("socket.io server stopped: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"addr": srv.Addr}).Info("lobby server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = io.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
