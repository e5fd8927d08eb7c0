package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/adaptive-alerting/detector-registry/internal/config"
	storepkg "github.com/adaptive-alerting/detector-registry/internal/store"
	storepg "github.com/adaptive-alerting/detector-registry/internal/store/postgres"
	storesqlite "github.com/adaptive-alerting/detector-registry/internal/store/sqlite"
)

// NewStore returns a store.Store for the configured driver, with the schema
// bootstrapped.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := storesqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := storesqlite.Bootstrap(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Str("path", cfg.SQLitePath).Msg("store ready")
		return storesqlite.NewWithDB(db), nil
	case "postgres":
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := storepg.Bootstrap(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Debug().Str("driver", cfg.DBDriver).Msg("store ready")
		return storepg.NewWithDB(db), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
