package dialect

import (
	"fmt"
	"strconv"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// postgres implements the Dialect interface for PostgreSQL.
type postgres struct{}

// Postgres returns the PostgreSQL dialect implementation.
func Postgres() Dialect {
	return &postgres{}
}

func (d *postgres) Name() string {
	return "postgres"
}

func (d *postgres) QuoteIdent(name string) string {
	return quoteIdentDoubleQuote(name)
}

func (d *postgres) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

func (d *postgres) SupportsTransactionalDDL() bool {
	return true
}

// ColumnType maps a model column type to PostgreSQL.
func (d *postgres) ColumnType(f *imr.Field) (string, error) {
	switch f.Type {
	case imr.VarChar:
		if a := f.Get(imr.KindMaxLength); a != nil {
			return fmt.Sprintf("VARCHAR(%d)", a.(imr.MaxLength).Value), nil
		}
		return "TEXT", nil
	case imr.VarBinary:
		return "BYTEA", nil
	case imr.Int8, imr.Int16:
		return "SMALLINT", nil
	case imr.Int32:
		return "INTEGER", nil
	case imr.Int64:
		return "BIGINT", nil
	case imr.UInt8, imr.UInt16:
		return "INTEGER", nil
	case imr.UInt32:
		return "BIGINT", nil
	case imr.UInt64:
		// Identity columns must be smallint, integer, or bigint, so an
		// auto-incrementing uint64 narrows to BIGINT and gives up the upper
		// half of the range. Plain uint64 keeps the full range.
		if f.Has(imr.KindAutoIncrement) {
			return "BIGINT", nil
		}
		return "NUMERIC(20, 0)", nil
	case imr.Float:
		return "REAL", nil
	case imr.Double:
		return "DOUBLE PRECISION", nil
	case imr.Boolean:
		return "BOOLEAN", nil
	case imr.Date:
		return "DATE", nil
	case imr.DateTime, imr.Timestamp:
		return "TIMESTAMP", nil
	case imr.Time:
		return "TIME", nil
	case imr.Choices, imr.Set:
		// Rendered as TEXT with a CHECK constraint on the value list.
		return "TEXT", nil
	}
	return "", sterr.Newf(sterr.ErrDialect, "postgres has no mapping for column type %q", f.Type).
		WithField(f.Name)
}

func (d *postgres) config() columnConfig {
	return columnConfig{
		QuoteIdent:    d.QuoteIdent,
		TypeSQL:       d.ColumnType,
		AutoIncrement: "GENERATED BY DEFAULT AS IDENTITY",
		BoolLiteral: func(b bool) string {
			if b {
				return "TRUE"
			}
			return "FALSE"
		},
	}
}

func (d *postgres) CreateModelSQL(op *migration.CreateModel) ([]string, error) {
	return buildCreateModelSQL(op, d.config())
}

func (d *postgres) DeleteModelSQL(op *migration.DeleteModel) (string, error) {
	return fmt.Sprintf("DROP TABLE %s;", d.QuoteIdent(op.Name)), nil
}

func (d *postgres) RenameModelSQL(op *migration.RenameModel) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;",
		d.QuoteIdent(op.Old), d.QuoteIdent(op.New)), nil
}

func (d *postgres) AddFieldSQL(op *migration.AddField) ([]string, error) {
	return buildAddFieldSQL(op, d.config())
}

func (d *postgres) DeleteFieldSQL(op *migration.DeleteField) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;",
		d.QuoteIdent(op.ModelName), d.QuoteIdent(op.Name)), nil
}

func (d *postgres) RenameFieldSQL(op *migration.RenameField) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;",
		d.QuoteIdent(op.ModelName), d.QuoteIdent(op.Old), d.QuoteIdent(op.New)), nil
}
