// Package dialect provides database-specific DDL generation. Each dialect
// implements type mappings from the model column types to SQL, identifier
// quoting, and statement generation for the migration operation set.
package dialect

import (
	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// Dialect defines the interface for database-specific SQL generation.
// Implementations exist for PostgreSQL and SQLite.
type Dialect interface {
	// Name returns the dialect name (postgres, sqlite).
	Name() string

	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string

	// Placeholder returns a parameter placeholder for the given index (1-based).
	// PostgreSQL: $1, $2, ... SQLite: ?.
	Placeholder(index int) string

	// SupportsTransactionalDDL reports whether DDL can run inside a
	// transaction and be rolled back.
	SupportsTransactionalDDL() bool

	// ColumnType maps a model column type to its SQL type.
	ColumnType(f *imr.Field) (string, error)

	// CreateModelSQL generates CREATE TABLE plus any CREATE INDEX statements.
	CreateModelSQL(op *migration.CreateModel) ([]string, error)

	// DeleteModelSQL generates a DROP TABLE statement.
	DeleteModelSQL(op *migration.DeleteModel) (string, error)

	// RenameModelSQL generates an ALTER TABLE RENAME statement.
	RenameModelSQL(op *migration.RenameModel) (string, error)

	// AddFieldSQL generates ALTER TABLE ADD COLUMN plus any CREATE INDEX
	// statements.
	AddFieldSQL(op *migration.AddField) ([]string, error)

	// DeleteFieldSQL generates an ALTER TABLE DROP COLUMN statement.
	DeleteFieldSQL(op *migration.DeleteField) (string, error)

	// RenameFieldSQL generates an ALTER TABLE RENAME COLUMN statement.
	RenameFieldSQL(op *migration.RenameField) (string, error)
}

// Get returns the dialect implementation for the given name.
// Valid names: "postgres", "postgresql", "sqlite", "sqlite3".
func Get(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return Postgres(), nil
	case "sqlite", "sqlite3":
		return SQLite(), nil
	}
	err := sterr.Newf(sterr.ErrDialect, "unsupported dialect %q", name)
	if suggestion := sterr.SuggestSimilar(name, Names()); suggestion != "" {
		err = err.WithHelp(suggestion)
	}
	return nil, err
}

// Names returns the list of supported dialect names.
func Names() []string {
	return []string{"postgres", "sqlite"}
}

// SQL generates the ordered statement list for a single operation.
func SQL(d Dialect, op migration.Operation) ([]string, error) {
	switch o := op.(type) {
	case *migration.CreateModel:
		return d.CreateModelSQL(o)
	case *migration.DeleteModel:
		stmt, err := d.DeleteModelSQL(o)
		if err != nil {
			return nil, err
		}
		return []string{stmt}, nil
	case *migration.RenameModel:
		stmt, err := d.RenameModelSQL(o)
		if err != nil {
			return nil, err
		}
		return []string{stmt}, nil
	case *migration.AddField:
		return d.AddFieldSQL(o)
	case *migration.DeleteField:
		stmt, err := d.DeleteFieldSQL(o)
		if err != nil {
			return nil, err
		}
		return []string{stmt}, nil
	case *migration.RenameField:
		stmt, err := d.RenameFieldSQL(o)
		if err != nil {
			return nil, err
		}
		return []string{stmt}, nil
	}
	return nil, sterr.Newf(sterr.ErrUnknownOperation, "unknown operation type %q", op.Type())
}

// MigrationSQL generates the full ordered statement list for a migration.
func MigrationSQL(d Dialect, m *migration.Migration) ([]string, error) {
	var stmts []string
	for _, op := range m.Operations {
		s, err := SQL(d, op)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s...)
	}
	return stmts, nil
}
