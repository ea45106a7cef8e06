package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"sixinarow/internal/config"
	"sixinarow/internal/handler"
	"sixinarow/internal/hub"
	"sixinarow/internal/match"
	"sixinarow/internal/telemetry"
)

func main() {
	log.SetPrefix("[GAME] ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.ParseConfig(flag.NewFlagSet("server", flag.ExitOnError), os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Println("Server stopped gracefully")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.OTelEndpoint,
		Enabled:     cfg.OTelEnabled,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	clk := clock.New()

	// Initialize game hub with capacity limits
	gameHub := hub.NewHub(hub.Options{
		MaxGames:      cfg.MaxGames,
		FinishedGrace: cfg.FinishedGrace,
		WaitingTTL:    cfg.WaitingTTL,
		Clock:         clk,
	})
	defer gameHub.Stop()

	wsHandler := handler.NewWebSocketHandler(cfg.AllowedOrigins)
	engine := match.NewEngine(gameHub, clk, wsHandler)
	defer engine.Stop()
	wsHandler.Engine = engine

	router := handler.NewRouter(
		handler.NewAPI(gameHub),
		wsHandler,
		handler.NewRateLimiter(cfg.RateLimit, time.Minute, clk),
		cfg.AllowedOrigins,
	)

	// Configure HTTP server with timeouts. Websocket connections are
	// hijacked, so the read/write timeouts only bound the HTTP exchanges.
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		Handler:      router,
	}

	go gameHub.MaintainGames(ctx, cfg.MaintenanceInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	return nil
}
