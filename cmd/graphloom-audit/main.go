// Command graphloom-audit serves an audit log over HTTP for graphloom's audit backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphloom/internal/adapters/driven/storage/auditlog"
	"github.com/custodia-labs/graphloom/internal/adapters/driving/auditproxy"
	"github.com/custodia-labs/graphloom/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

var (
	addr    string
	driver  string
	dsn     string
	dataDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "graphloom-audit",
	Short: "Serve the audit log over HTTP",
	Long: `Serve an audit log for graphloom's audit backend.

Routes:
  POST /api/audit  query recent rows, or {"action":"record"} to append one
  GET  /health     liveness probe

Storage is SQLite under ~/.graphloom/data by default, or Postgres with
--driver postgres --dsn postgres://...`,
	Version:      version,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runServe,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", auditproxy.DefaultAddr, "listen address")
	rootCmd.Flags().StringVar(&driver, "driver", "sqlite", "storage driver: sqlite or postgres")
	rootCmd.Flags().StringVar(&dsn, "dsn", os.Getenv("GRAPHLOOM_AUDIT_DSN"), "postgres connection string")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "sqlite data directory (default ~/.graphloom/data)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	server := auditproxy.NewServer(store)
	if err := server.Start(addr); err != nil {
		return err
	}
	cmd.Printf("audit proxy (%s) listening on http://%s\n", driver, server.Addr())

	<-cmd.Context().Done()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("audit proxy stopped")
	return nil
}

func openStore() (*auditlog.Store, error) {
	switch driver {
	case "sqlite":
		return auditlog.OpenSQLite(dataDir)
	case "postgres":
		if dsn == "" {
			return nil, errors.New("--dsn is required for the postgres driver")
		}
		return auditlog.OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown driver %q (want sqlite or postgres)", driver)
	}
}
