package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/schedulr/realtime/config"
	"github.com/schedulr/realtime/src/api"
	"github.com/schedulr/realtime/src/auth"
	"github.com/schedulr/realtime/src/service"
)

func main() {
	// Missing .env is fine; env vars may come from the environment directly.
	_ = godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := config.FromEnv()
	tokens := auth.JWTExpiry(auth.Static(os.Getenv("REALTIME_TOKEN")), logger)

	eng := service.New(service.Options{
		Config: cfg,
		Tokens: tokens,
		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)
	defer eng.Stop()

	app := fiber.New()
	api.Register(app, eng)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			logger.Fatal().Err(err).Msg("listen failed")
		}
	}()
	logger.Info().Str("addr", cfg.ListenAddr).Msg("realtime engine up")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	if err := app.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
}
