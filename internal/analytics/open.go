package analytics

import (
	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/config"
	"github.com/patrickwarner/streamlytics/internal/observability"
)

// OpenDispatcher returns the ClickHouse dispatcher when a DSN is configured
// and a LogDispatcher otherwise. The returned func releases the dispatcher.
func OpenDispatcher(cfg config.Config, metrics observability.MetricsRegistry, logger *zap.Logger) (Dispatcher, func(), error) {
	if cfg.ClickHouseDSN == "" {
		logger.Info("CLICKHOUSE_DSN not set, logging payloads instead of storing them")
		return NewLogDispatcher(logger), func() {}, nil
	}
	ch, err := InitClickHouse(cfg.ClickHouseDSN, PoolConfig{
		MaxOpenConns:    cfg.CHMaxOpenConns,
		MaxIdleConns:    cfg.CHMaxIdleConns,
		ConnMaxLifetime: cfg.CHConnMaxLifetime,
		ConnMaxIdleTime: cfg.CHConnMaxIdleTime,
	}, metrics)
	if err != nil {
		return nil, nil, err
	}
	return ch, ch.Close, nil
}
