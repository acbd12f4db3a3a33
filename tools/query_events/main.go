package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/analytics"
	"github.com/patrickwarner/streamlytics/internal/config"
	"github.com/patrickwarner/streamlytics/internal/observability"
)

func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var id string
	var dsn string
	var timeout time.Duration
	flag.StringVar(&id, "anonymous-id", "", "anonymous ID whose events are listed")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "query timeout")
	flag.Parse()

	if id == "" {
		fmt.Fprintln(os.Stderr, "anonymous-id required")
		os.Exit(1)
	}
	if dsn == "" {
		dsn = config.Load().ClickHouseDSN
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "dsn required (flag or CLICKHOUSE_DSN)")
		os.Exit(1)
	}

	a, err := analytics.InitClickHouse(dsn, analytics.PoolConfig{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}, observability.NewNoOpRegistry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	events, err := a.GetEventsByAnonymousID(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query events: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("events loaded", zap.String("anonymous_id", id), zap.Int("count", len(events)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		fmt.Fprintf(os.Stderr, "encode events: %v\n", err)
		os.Exit(1)
	}
}
