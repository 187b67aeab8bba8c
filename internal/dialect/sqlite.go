package dialect

import (
	"fmt"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// sqlite implements the Dialect interface for SQLite.
type sqlite struct{}

// SQLite returns the SQLite dialect implementation.
func SQLite() Dialect {
	return &sqlite{}
}

func (d *sqlite) Name() string {
	return "sqlite"
}

func (d *sqlite) QuoteIdent(name string) string {
	return quoteIdentDoubleQuote(name)
}

func (d *sqlite) Placeholder(index int) string {
	return "?"
}

func (d *sqlite) SupportsTransactionalDDL() bool {
	return true
}

// ColumnType maps a model column type to its SQLite affinity. SQLite has
// dynamic typing; most types collapse onto TEXT, INTEGER, or REAL.
func (d *sqlite) ColumnType(f *imr.Field) (string, error) {
	switch f.Type {
	case imr.VarChar, imr.Choices, imr.Set:
		// Length constraints and value sets are CHECK territory; SQLite
		// ignores VARCHAR(n) bounds.
		return "TEXT", nil
	case imr.VarBinary:
		return "BLOB", nil
	case imr.Int8, imr.Int16, imr.Int32, imr.Int64,
		imr.UInt8, imr.UInt16, imr.UInt32, imr.UInt64:
		return "INTEGER", nil
	case imr.Float, imr.Double:
		return "REAL", nil
	case imr.Boolean:
		// 0 = false, 1 = true.
		return "INTEGER", nil
	case imr.Date:
		return "DATE", nil
	case imr.DateTime, imr.Timestamp:
		return "DATETIME", nil
	case imr.Time:
		return "TIME", nil
	}
	return "", sterr.Newf(sterr.ErrDialect, "sqlite has no mapping for column type %q", f.Type).
		WithField(f.Name)
}

func (d *sqlite) config() columnConfig {
	return columnConfig{
		QuoteIdent: d.QuoteIdent,
		TypeSQL:    d.ColumnType,
		// AUTOINCREMENT only attaches to INTEGER PRIMARY KEY, which the
		// integer type mapping guarantees.
		AutoIncrement: "AUTOINCREMENT",
		BoolLiteral: func(b bool) string {
			if b {
				return "1"
			}
			return "0"
		},
	}
}

func (d *sqlite) CreateModelSQL(op *migration.CreateModel) ([]string, error) {
	return buildCreateModelSQL(op, d.config())
}

func (d *sqlite) DeleteModelSQL(op *migration.DeleteModel) (string, error) {
	return fmt.Sprintf("DROP TABLE %s;", d.QuoteIdent(op.Name)), nil
}

func (d *sqlite) RenameModelSQL(op *migration.RenameModel) (string, error) {
	// SQLite 3.25.0+.
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;",
		d.QuoteIdent(op.Old), d.QuoteIdent(op.New)), nil
}

func (d *sqlite) AddFieldSQL(op *migration.AddField) ([]string, error) {
	return buildAddFieldSQL(op, d.config())
}

func (d *sqlite) DeleteFieldSQL(op *migration.DeleteField) (string, error) {
	// SQLite 3.35.0+ supports DROP COLUMN.
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;",
		d.QuoteIdent(op.ModelName), d.QuoteIdent(op.Name)), nil
}

func (d *sqlite) RenameFieldSQL(op *migration.RenameField) (string, error) {
	// SQLite 3.25.0+ supports RENAME COLUMN.
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;",
		d.QuoteIdent(op.ModelName), d.QuoteIdent(op.Old), d.QuoteIdent(op.New)), nil
}
