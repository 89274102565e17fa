package docstore

import (
	"context"
	"fmt"

	"github.com/namthanhstores/storefront-backend/pkg/config"
	"github.com/namthanhstores/storefront-backend/pkg/db"
	"github.com/namthanhstores/storefront-backend/pkg/logger"
)

// Open builds the store selected by STOREFRONT_STORE_BACKEND. dbClient is
// required for the postgres and sqlite backends and ignored otherwise.
func Open(ctx context.Context, cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (Store, error) {
	switch backend := cfg.Store.NormalizedBackend(); backend {
	case config.BackendFirestore:
		return NewFirestoreStore(ctx, cfg.GCP, logg)
	case config.BackendPostgres, config.BackendSQLite:
		return NewGormStore(dbClient, logg, GormOptions{
			PollInterval: cfg.Store.SubscribePoll,
			MaxAttempts:  cfg.Store.TxMaxAttempts,
		})
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", backend)
	}
}
