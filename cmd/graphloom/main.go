// Command graphloom loads knowledge graphs from graph, vector and audit stores.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/graphloom/internal/adapters/driven/ai"
	"github.com/custodia-labs/graphloom/internal/adapters/driven/audit/httpproxy"
	"github.com/custodia-labs/graphloom/internal/adapters/driven/config/file"
	"github.com/custodia-labs/graphloom/internal/adapters/driven/discovery/httpprobe"
	"github.com/custodia-labs/graphloom/internal/adapters/driven/graph/neo4j"
	"github.com/custodia-labs/graphloom/internal/adapters/driven/metrics"
	"github.com/custodia-labs/graphloom/internal/adapters/driven/telemetry"
	"github.com/custodia-labs/graphloom/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/graphloom/internal/adapters/driving/cli"
	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
	"github.com/custodia-labs/graphloom/internal/core/services"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Environment variables read at startup.
const (
	envTelemetryLevel = "GRAPHLOOM_TELEMETRY_LEVEL"
	envTelemetryFile  = "GRAPHLOOM_TELEMETRY_FILE"
	envConfigDir      = "GRAPHLOOM_CONFIG_DIR"
)

// backendTimeout bounds each HTTP call to the vector and audit backends.
const backendTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal; only a malformed one is worth reporting.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configStore, err := file.NewConfigStore(os.Getenv(envConfigDir))
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	watcher, err := file.NewWatcher(configStore, func() {
		logger.Debug("config reloaded from %s", configStore.Path())
	})
	if err != nil {
		logger.Warn("config changes will need a restart: %v", err)
	} else {
		go func() { _ = watcher.Run(ctx) }()
	}

	sink, closeSink, err := newTelemetry()
	if err != nil {
		return err
	}
	defer closeSink()

	embeddings := ai.NewEmbeddingFactory()
	settingsService := services.NewSettingsService(configStore, embeddings)

	httpClient := &http.Client{Timeout: backendTimeout}
	driverProvider := neo4j.NewDriverProvider()
	defer func() { _ = driverProvider.Close(context.Background()) }()

	discovery := services.NewDiscovery(httpprobe.NewChecker(httpprobe.Config{}), sink)
	recorder := metrics.NewRecorder()

	loader := services.NewLoaderService(
		settingsService,
		neo4j.NewStore(driverProvider, sink),
		qdrant.NewStore(embeddings, httpClient, sink),
		httpproxy.NewStore(httpClient, sink),
		discovery,
		sink,
	)
	loader.SetMetrics(recorder)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Loader:    loader,
		Settings:  settingsService,
		Discovery: discovery,
		Metrics:   recorder,
	})

	return cli.Execute(ctx)
}

// newTelemetry builds the event sink: log lines always, plus JSON lines when
// GRAPHLOOM_TELEMETRY_FILE is set.
func newTelemetry() (driven.Telemetry, func(), error) {
	level := domain.ParseLevel(os.Getenv(envTelemetryLevel))
	sinks := telemetry.Multi{telemetry.NewLogSink(level)}

	path := os.Getenv(envTelemetryFile)
	if path == "" {
		return sinks, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open telemetry file: %w", err)
	}
	sinks = append(sinks, telemetry.NewJSONSink(f, level))
	return sinks, func() { _ = f.Close() }, nil
}
