// Package executor applies migration chains against a live database. Each
// migration runs in its own transaction where the dialect supports
// transactional DDL, and applied IDs are recorded in a tracking table so
// re-running migrate is idempotent.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Database drivers registered for database/sql.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/stratumdb/stratum/internal/dialect"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// TrackingTable is the table recording which migrations have been applied.
const TrackingTable = "_stratum_migrations"

// Executor runs migrations against one database connection.
type Executor struct {
	db      *sql.DB
	dialect dialect.Dialect

	// LogQueries emits every statement at info level before execution.
	LogQueries bool
}

// Open connects to the database for the given dialect name and DSN and
// verifies the connection with a ping.
func Open(ctx context.Context, dialectName, dsn string) (*Executor, error) {
	d, err := dialect.Get(dialectName)
	if err != nil {
		return nil, err
	}

	// lib/pq registers as "postgres", modernc.org/sqlite as "sqlite", which
	// match the dialect names exactly.
	db, err := sql.Open(d.Name(), dsn)
	if err != nil {
		return nil, sterr.Wrap(sterr.ErrSQLConnection, err, "failed to open database").
			With("dialect", d.Name())
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, sterr.Wrap(sterr.ErrSQLConnection, err, "failed to connect to database").
			With("dialect", d.Name())
	}

	return &Executor{db: db, dialect: d}, nil
}

// New wraps an existing connection. Used by tests with in-memory databases.
func New(db *sql.DB, d dialect.Dialect) *Executor {
	return &Executor{db: db, dialect: d}
}

// Close releases the underlying connection.
func (e *Executor) Close() error {
	return e.db.Close()
}

// Dialect returns the executor's dialect.
func (e *Executor) Dialect() dialect.Dialect {
	return e.dialect
}

// EnsureTrackingTable creates the applied-migrations table if missing.
func (e *Executor) EnsureTrackingTable(ctx context.Context) error {
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s TEXT PRIMARY KEY,\n  %s TEXT NOT NULL,\n  %s TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP\n);",
		e.dialect.QuoteIdent(TrackingTable),
		e.dialect.QuoteIdent("id"),
		e.dialect.QuoteIdent("hash"),
		e.dialect.QuoteIdent("applied_at"),
	)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return sterr.Wrap(sterr.ErrSQLExecution, err, "failed to create tracking table").
			WithSQL(stmt)
	}
	return nil
}

// Applied returns the set of migration IDs already recorded as applied.
func (e *Executor) Applied(ctx context.Context) (map[string]bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s;",
		e.dialect.QuoteIdent("id"), e.dialect.QuoteIdent(TrackingTable))

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, sterr.Wrap(sterr.ErrSQLExecution, err, "failed to read applied migrations").
			WithSQL(query)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, sterr.Wrap(sterr.ErrSQLExecution, err, "failed to scan applied migration row")
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

// ApplyOptions controls an Apply run.
type ApplyOptions struct {
	// Until stops after applying the migration with this ID. Empty applies
	// the whole chain.
	Until string
}

// Apply runs every pending migration in order. Each migration gets its own
// transaction; a failure rolls back that migration only, leaving everything
// before it applied and recorded. A partially-applied statement list is
// never recorded as applied and never silently retried.
func (e *Executor) Apply(ctx context.Context, migrations []*migration.Migration, opts ApplyOptions) (int, error) {
	if err := e.EnsureTrackingTable(ctx); err != nil {
		return 0, err
	}
	applied, err := e.Applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if applied[m.ID] {
			slog.Debug("migration already applied", "id", m.ID)
			continue
		}

		start := time.Now()
		if err := e.applyOne(ctx, m); err != nil {
			return count, err
		}
		count++
		slog.Info("applied migration", "id", m.ID, "duration", time.Since(start))

		if opts.Until != "" && m.ID == opts.Until {
			break
		}
	}
	return count, nil
}

// applyOne executes one migration's statements and records it, all inside a
// single transaction where the dialect allows it.
func (e *Executor) applyOne(ctx context.Context, m *migration.Migration) error {
	stmts, err := dialect.MigrationSQL(e.dialect, m)
	if err != nil {
		return err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return sterr.Wrap(sterr.ErrSQLConnection, err, "failed to begin transaction").
			With("migration", m.ID)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if e.LogQueries {
			slog.Info("executing", "migration", m.ID, "sql", stmt)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return sterr.Wrap(sterr.ErrSQLExecution, err, "migration statement failed").
				With("migration", m.ID).
				WithSQL(stmt)
		}
	}

	record := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s);",
		e.dialect.QuoteIdent(TrackingTable),
		e.dialect.QuoteIdent("id"), e.dialect.QuoteIdent("hash"),
		e.dialect.Placeholder(1), e.dialect.Placeholder(2))
	if _, err := tx.ExecContext(ctx, record, m.ID, m.Hash); err != nil {
		return sterr.Wrap(sterr.ErrSQLExecution, err, "failed to record applied migration").
			With("migration", m.ID)
	}

	if err := tx.Commit(); err != nil {
		return sterr.Wrap(sterr.ErrSQLExecution, err, "failed to commit migration").
			With("migration", m.ID)
	}
	return nil
}

// DryRun returns the statements Apply would execute, without running them.
func DryRun(d dialect.Dialect, migrations []*migration.Migration) ([]string, error) {
	var all []string
	for _, m := range migrations {
		stmts, err := dialect.MigrationSQL(d, m)
		if err != nil {
			return nil, err
		}
		all = append(all, stmts...)
	}
	return all, nil
}
