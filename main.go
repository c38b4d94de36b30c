package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/karlijc92/fartopia/internal/catalog"
	"github.com/karlijc92/fartopia/internal/httpserver"
	"github.com/karlijc92/fartopia/internal/progress"
	"github.com/karlijc92/fartopia/internal/unlock"
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := catalog.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load game catalog")
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open progress store")
	}
	defer store.Close()

	guard := progress.NewGuard(store, cfg.SaveRetries)
	registry := unlock.NewRegistry(guard)

	srv := httpserver.New(guard, registry, httpserver.Config{
		JWTSecret:    cfg.JWTSecret,
		CookieName:   cfg.CookieName,
		ClientOrigin: cfg.ClientOrigin,
		Production:   cfg.Production,
	})

	log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("starting fartopia-api")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// openStore picks the single authoritative progress backend.
func openStore(cfg *Config) (progress.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return progress.OpenRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword)
	case "memory":
		log.Warn().Msg("using in-memory progress store; progress is lost on restart")
		return progress.NewMemoryStore(), nil
	default:
		return progress.OpenSQLite(cfg.SQLitePath)
	}
}
