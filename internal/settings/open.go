package settings

import (
	"context"
	"fmt"

	"github.com/patrickwarner/streamlytics/internal/config"
)

// Open returns the Store selected by cfg.SettingsBackend.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.SettingsBackend {
	case config.SettingsBackendMemory, "":
		return NewMemoryStore(), nil
	case config.SettingsBackendRedis:
		return InitRedis(ctx, cfg.RedisAddr)
	case config.SettingsBackendPostgres:
		return InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.SettingsBackend)
	}
}
