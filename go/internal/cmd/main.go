package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timekeeper/go/internal/gateway"
	"github.com/mcdev12/timekeeper/go/internal/hub"
	"github.com/mcdev12/timekeeper/go/internal/timekeeper"
	"github.com/mcdev12/timekeeper/go/internal/timer"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventHub := hub.New(cfg.Hub.QueueSize)
	service := timekeeper.NewService(clockwork.NewRealClock(), eventHub)
	service.Start(ctx)

	if cfg.Timer.DefaultDurationSec > 0 {
		mode := timer.ModeCountDown
		if cfg.Timer.DefaultMode == string(timer.ModeCountUp) {
			mode = timer.ModeCountUp
		}
		if _, err := service.Configure(timekeeper.DefaultSessionID, cfg.DefaultDuration(), mode); err != nil {
			log.Fatal().Err(err).Msg("failed to configure default session")
		}
	}

	wsConfig := gateway.DefaultConnectionConfig()
	wsConfig.PingInterval = cfg.PingInterval()
	wsConfig.ReadTimeout = cfg.ReadTimeout()
	wsConfig.WriteTimeout = cfg.WriteTimeout()

	manager := gateway.NewConnectionManager(service, wsConfig)
	handler := gateway.NewHandler(service, manager, eventHub, cfg.Server.Port)
	server := setupServer(cfg, handler)

	printBanner(cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func printBanner(port int) {
	join := gateway.BuildJoinInfo(port)
	fmt.Println("==================================================")
	fmt.Println("  Conference Timekeeper")
	fmt.Println("==================================================")
	fmt.Printf("  Controller : %s\n", join.ControllerURL)
	fmt.Printf("  Display    : %s\n", join.DisplayURL)
	fmt.Printf("  Snapshot   : http://%s:%d/api/snapshot\n", join.IP, port)
	fmt.Println("==================================================")
	fmt.Println("  Stop: Ctrl+C")
	fmt.Println()

	log.Info().
		Str("ip", join.IP).
		Int("port", port).
		Str("default_session", timekeeper.DefaultSessionID).
		Msg("server starting")
}
