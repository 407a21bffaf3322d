package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shindakun/loginportal/internal/auth"
	"github.com/shindakun/loginportal/internal/authclient"
	"github.com/shindakun/loginportal/internal/config"
	"github.com/shindakun/loginportal/internal/server"
	"github.com/shindakun/loginportal/internal/storage"
	"github.com/shindakun/loginportal/internal/version"
)

func main() {
	// A missing .env is fine, the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("Failed to load .env")
	}

	// Initialize logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	log.Info().Str("version", version.GetFullVersion()).Msg("Starting login portal...")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Logger.With().Str("service", "loginportal").Logger()

	// Initialize database
	logger.Info().Str("path", cfg.Session.DBPath).Msg("Initializing session database")
	db, err := storage.InitDB(cfg.Session.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Initialize session manager
	sessionManager := auth.InitSessions(
		cfg.Session.Secret,
		cfg.Session.MaxAge,
		cfg.CookieSecure(),
		cfg.CookieSameSite(),
		db,
	)

	// Upstream auth API client
	client := authclient.New(cfg.LoginURL(), cfg.Upstream.RequestTimeout)
	logger.Info().Str("login_url", client.LoginURL()).Msg("Upstream auth client initialized")

	srv, err := server.New(cfg, logger, sessionManager, client)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return
	}

	logger.Info().Msg("Server exited successfully")
}
