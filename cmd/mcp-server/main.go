package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/streamlytics/internal/analytics"
	"github.com/patrickwarner/streamlytics/internal/config"
	"github.com/patrickwarner/streamlytics/internal/observability"
	"github.com/patrickwarner/streamlytics/internal/probe"
	"github.com/patrickwarner/streamlytics/internal/settings"
)

func main() {
	cfg := config.Load()

	// stdout belongs to the stdio transport
	logger, err := observability.InitStderrLogger(cfg.ServiceName + "-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := probe.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to load probe fixture", zap.Error(err))
	}

	store, err := settings.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open settings store", zap.Error(err))
	}
	defer store.Close()

	traits, err := settings.LoadTraits(ctx, store)
	if err != nil {
		logger.Fatal("Failed to load traits", zap.Error(err))
	}

	dispatcher, closeDispatcher, err := analytics.OpenDispatcher(cfg, observability.NewNoOpRegistry(), logger)
	if err != nil {
		logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
	}
	defer closeDispatcher()

	client := analytics.NewClient(env, analytics.Options{
		CollectDeviceID: cfg.CollectDeviceID,
		Traits:          traits,
		Dispatcher:      dispatcher,
		Logger:          logger,
		DispatchTimeout: cfg.DispatchTimeout,
	})
	defer func() { _ = client.Close() }()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "streamlytics",
		Version: "1.0.0",
	}, nil)
	registerTools(server, &AnalyticsMCPServer{client: client, logger: logger})

	var logBuffer bytes.Buffer
	loggingTransport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP server running via stdio", zap.String("anonymous_id", traits.AnonymousID()))

	if err := server.Run(ctx, loggingTransport); err != nil && ctx.Err() == nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
