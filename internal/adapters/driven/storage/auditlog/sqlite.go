package auditlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/graphloom/internal/adapters/driven/storage/auditlog/migrations"
)

// SQLiteFileName is the database file inside the data directory.
const SQLiteFileName = "audit.db"

// OpenSQLite opens (creating if needed) the audit database in dataDir.
// If dataDir is empty, defaults to ~/.graphloom/data.
func OpenSQLite(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".graphloom", "data")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, SQLiteFileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return newStore(db, sqliteDialect, migrations.FS)
}
