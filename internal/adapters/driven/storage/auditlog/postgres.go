package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/custodia-labs/graphloom/internal/adapters/driven/storage/auditlog/migrations"
)

// pingTimeout bounds the initial connectivity check.
const pingTimeout = 10 * time.Second

// OpenPostgres connects to dsn (a postgres:// URL or key=value string).
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return newStore(db, postgresDialect, migrations.FS)
}
