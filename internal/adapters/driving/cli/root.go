// Package cli provides the graphloom command-line interface.
//
// Commands are package-level cobra commands registered in init(); the
// services they call are injected with SetServices before Execute.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphloom/internal/core/ports/driving"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// MetricsServer serves Prometheus metrics until ctx is cancelled.
type MetricsServer interface {
	Serve(ctx context.Context, addr string) error
}

// Services are the driving ports the commands call.
type Services struct {
	Loader    driving.LoaderService
	Settings  driving.SettingsService
	Discovery driving.DiscoveryService
	Metrics   MetricsServer
}

var (
	loaderService    driving.LoaderService
	settingsService  driving.SettingsService
	discoveryService driving.DiscoveryService
	metricsServer    MetricsServer
)

// Global flags.
var (
	verbose        bool
	jsonOutput     bool
	metricsAddr    string
	insecureVector bool
)

// keyVectorInsecure is the setting --insecure-vector overrides.
const keyVectorInsecure = "vector.insecure"

var rootCmd = &cobra.Command{
	Use:   "graphloom",
	Short: "Load knowledge graphs from graph, vector and audit stores",
	Long: `graphloom reads knowledge-graph data from a graph database (Neo4j),
a vector store (Qdrant) and an audit log, and normalizes every answer
into one entities + relationships shape.

Backends are addressed directly (per-service mode) or through a single
aggregation gateway (unified mode). See 'graphloom settings show'.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().BoolVar(&insecureVector, "insecure-vector", false,
		"use plaintext gRPC to the vector store for this run")
}

// SetServices injects the services used by commands.
func SetServices(s Services) {
	loaderService = s.Loader
	settingsService = s.Settings
	discoveryService = s.Discovery
	metricsServer = s.Metrics
}

// SetVersion sets the version reported by 'graphloom version'.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

func persistentPreRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if insecureVector && settingsService != nil {
		if err := settingsService.Override(keyVectorInsecure, "true"); err != nil {
			return fmt.Errorf("failed to apply --insecure-vector: %w", err)
		}
		logger.Warn("vector gRPC transport is plaintext for this run")
	}

	if metricsAddr == "" {
		return nil
	}
	if metricsServer == nil {
		return errors.New("metrics not configured")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		if err := metricsServer.Serve(ctx, metricsAddr); err != nil {
			logger.Error("metrics server: %v", err)
		}
	}()
	logger.Info("metrics on %s/metrics", metricsAddr)
	return nil
}

func requireLoader() error {
	if loaderService == nil {
		return errors.New("loader service not configured")
	}
	return nil
}
