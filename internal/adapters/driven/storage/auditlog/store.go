// Package auditlog stores the audit trail behind the audit proxy in SQLite
// (modernc.org/sqlite, no CGO) or PostgreSQL (lib/pq).
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory, one set per dialect. Each migration is a pair of
// .up.sql and .down.sql files; applied versions are tracked in
// schema_migrations.
//
// # Timestamps
//
// SQLite stores created_at as fixed-width UTC text so lexical order is
// time order. PostgreSQL uses TIMESTAMPTZ.
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/graphloom/internal/core/domain"
	"github.com/custodia-labs/graphloom/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.AuditLog = (*Store)(nil)

// Query bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// sqliteTimeFormat is fixed-width so text comparison orders correctly.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z"

// dialect captures the differences between SQLite and PostgreSQL.
type dialect struct {
	name       string
	positional bool
	like       string
	timeArg    func(time.Time) any
}

var (
	sqliteDialect = dialect{
		name: "sqlite",
		like: "LIKE",
		timeArg: func(t time.Time) any {
			return t.UTC().Format(sqliteTimeFormat)
		},
	}
	postgresDialect = dialect{
		name:       "postgres",
		positional: true,
		like:       "ILIKE",
		timeArg: func(t time.Time) any {
			return t.UTC()
		},
	}
)

// rebind rewrites ? placeholders as $1, $2, ... for positional dialects.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is the SQL-backed audit log.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

func newStore(db *sql.DB, d dialect, migrations fs.FS) (*Store, error) {
	s := &Store{db: db, dialect: d, now: time.Now}
	if err := s.migrate(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns "sqlite" or "postgres".
func (s *Store) Dialect() string {
	return s.dialect.name
}

// Append inserts one row.
func (s *Store) Append(ctx context.Context, rec domain.AuditRecord) (domain.AuditRecord, error) {
	if rec.Action == "" {
		return domain.AuditRecord{}, fmt.Errorf("%w: action is required", domain.ErrInvalidInput)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	entities, err := marshalRows(rec.Entities)
	if err != nil {
		return domain.AuditRecord{}, fmt.Errorf("marshalling entities: %w", err)
	}
	relationships, err := marshalRows(rec.Relationships)
	if err != nil {
		return domain.AuditRecord{}, fmt.Errorf("marshalling relationships: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO audit_log (id, action, content, identifier, created_at, entities, relationships)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), rec.ID, rec.Action, rec.Content, rec.Identifier, s.dialect.timeArg(rec.CreatedAt), entities, relationships)
	if err != nil {
		return domain.AuditRecord{}, fmt.Errorf("inserting audit row: %w", err)
	}
	return rec, nil
}

// Recent lists rows newest first.
func (s *Store) Recent(ctx context.Context, q domain.AuditQuery) ([]domain.AuditRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	query := `SELECT id, action, content, identifier, created_at, entities, relationships
		FROM audit_log WHERE created_at >= ?`
	args := []any{s.dialect.timeArg(q.StartDate)}
	if content := strings.TrimSpace(q.Content); content != "" {
		query += " AND content " + s.dialect.like + ` ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(content)+"%")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes LIKE wildcards in s match literally under ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanRecord(rows *sql.Rows) (domain.AuditRecord, error) {
	var (
		rec           domain.AuditRecord
		createdAt     any
		entities      string
		relationships string
	)
	if err := rows.Scan(&rec.ID, &rec.Action, &rec.Content, &rec.Identifier, &createdAt, &entities, &relationships); err != nil {
		return domain.AuditRecord{}, fmt.Errorf("scanning audit row: %w", err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return domain.AuditRecord{}, fmt.Errorf("parsing created_at for %s: %w", rec.ID, err)
	}
	rec.CreatedAt = t

	if rec.Entities, err = unmarshalRows(entities); err != nil {
		return domain.AuditRecord{}, fmt.Errorf("unmarshalling entities for %s: %w", rec.ID, err)
	}
	if rec.Relationships, err = unmarshalRows(relationships); err != nil {
		return domain.AuditRecord{}, fmt.Errorf("unmarshalling relationships for %s: %w", rec.ID, err)
	}
	return rec, nil
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	case []byte:
		return time.Parse(time.RFC3339Nano, string(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func marshalRows(rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalRows(raw string) ([]map[string]any, error) {
	if raw == "" || raw == "[]" || raw == "null" {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// migrate applies pending NNN_name.up.sql files from dir in order.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, s.dialect.name)
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, s.dialect.name+"/"+name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(script); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(s.dialect.rebind("INSERT INTO schema_migrations (version) VALUES (?)"), version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
