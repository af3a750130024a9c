package di

import (
	"fmt"

	"github.com/aristath/inarbit/internal/config"
	"github.com/aristath/inarbit/internal/database"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the single "orders" SQLite database (the
// paper_/live_ table families live side by side in it, spec.md section
// 3/6's single-database decision) and dials the Redis-backed KV store
// that market data, routing cache and idempotency markers use.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	ordersDB, err := database.Open(database.Config{
		Path:    cfg.DataDir + "/orders.db",
		Profile: database.ProfileLedger,
		Name:    "orders",
	})
	if err != nil {
		return nil, fmt.Errorf("open orders database: %w", err)
	}
	if err := ordersDB.Migrate(); err != nil {
		ordersDB.Close()
		return nil, fmt.Errorf("migrate orders database: %w", err)
	}
	container.OrdersDB = ordersDB

	container.KV = kv.New(kv.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, log)

	log.Info().Msg("databases and kv store initialized")
	return container, nil
}
