package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/config"
	storepkg "github.com/vaultwire/vaultwire/internal/store"
	storemem "github.com/vaultwire/vaultwire/internal/store/memory"
	storepg "github.com/vaultwire/vaultwire/internal/store/postgres"
	storesqlite "github.com/vaultwire/vaultwire/internal/store/sqlite"
)

// NewStore builds a store.Store for the configured driver.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("using in-memory store; queued envelopes will not survive a restart")
		return storemem.New(), nil

	case "sqlite":
		st, err := storesqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return st, nil

	case "postgres":
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		bootstrapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := storepg.Bootstrap(bootstrapCtx, db); err != nil {
			return nil, fmt.Errorf("postgres bootstrap: %w", err)
		}
		log.Info().Msg("postgres store ready")
		return storepg.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
	}
}
