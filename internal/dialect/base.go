package dialect

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// columnConfig parameterizes the shared column-definition builder with the
// dialect-specific pieces.
type columnConfig struct {
	QuoteIdent func(string) string
	TypeSQL    func(*imr.Field) (string, error)

	// AutoIncrement is the clause appended after PRIMARY KEY for
	// auto-incrementing columns ("AUTOINCREMENT", "GENERATED BY DEFAULT AS
	// IDENTITY"). Empty if the column type already carries it.
	AutoIncrement string

	// BoolLiteral renders a boolean default (TRUE/FALSE vs 1/0).
	BoolLiteral func(bool) string
}

// quoteIdentDoubleQuote quotes an identifier with double quotes, doubling
// any embedded quote characters.
func quoteIdentDoubleQuote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteStringLiteral renders a single-quoted SQL string literal.
func quoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// buildColumnDefSQL renders one column definition: name, type, and the
// constraint clauses derived from its annotations, in a fixed order so
// generated DDL is byte-stable across runs.
func buildColumnDefSQL(f *imr.Field, cfg columnConfig) (string, error) {
	typeSQL, err := cfg.TypeSQL(f)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(cfg.QuoteIdent(f.Name))
	b.WriteString(" ")
	b.WriteString(typeSQL)

	if f.Has(imr.KindPrimaryKey) {
		b.WriteString(" PRIMARY KEY")
		if f.Has(imr.KindAutoIncrement) && cfg.AutoIncrement != "" {
			b.WriteString(" ")
			b.WriteString(cfg.AutoIncrement)
		}
	}
	if f.Has(imr.KindNotNull) {
		b.WriteString(" NOT NULL")
	}
	if f.Has(imr.KindUnique) {
		b.WriteString(" UNIQUE")
	}

	if a := f.Get(imr.KindDefaultValue); a != nil {
		lit, err := defaultLiteral(a.(imr.DefaultValue).Value, cfg.BoolLiteral)
		if err != nil {
			return "", sterr.Wrap(sterr.ErrDialect, err, "cannot render default value").
				WithField(f.Name)
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}
	// Both auto times get a creation-time default; keeping the update
	// timestamp current on writes is the ORM runtime's job, not DDL's.
	if f.Has(imr.KindAutoCreateTime) || f.Has(imr.KindAutoUpdateTime) {
		b.WriteString(" DEFAULT CURRENT_TIMESTAMP")
	}

	if a := f.Get(imr.KindChoices); a != nil {
		choices := a.(imr.ChoicesValues)
		quoted := make([]string, len(choices.Values))
		for i, v := range choices.Values {
			quoted[i] = quoteStringLiteral(v)
		}
		fmt.Fprintf(&b, " CHECK (%s IN (%s))", cfg.QuoteIdent(f.Name), strings.Join(quoted, ", "))
	}

	if fk := f.ForeignKey(); fk != nil {
		fmt.Fprintf(&b, " REFERENCES %s(%s)", cfg.QuoteIdent(fk.TableName), cfg.QuoteIdent(fk.ColumnName))
	}

	return b.String(), nil
}

// defaultLiteral renders a default value as a SQL literal.
func defaultLiteral(value any, boolLit func(bool) string) (string, error) {
	switch v := value.(type) {
	case string:
		return quoteStringLiteral(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return boolLit(v), nil
	}
	return "", fmt.Errorf("unsupported default value type %T", value)
}

// buildCreateModelSQL renders the CREATE TABLE statement followed by any
// index statements for the table's fields.
func buildCreateModelSQL(op *migration.CreateModel, cfg columnConfig) ([]string, error) {
	cols := make([]string, 0, len(op.Fields))
	for i := range op.Fields {
		col, err := buildColumnDefSQL(&op.Fields[i], cfg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, "  "+col)
	}

	create := fmt.Sprintf("CREATE TABLE %s (\n%s\n);",
		cfg.QuoteIdent(op.Name), strings.Join(cols, ",\n"))

	stmts := append([]string{create}, buildIndexSQL(op.Name, op.Fields, cfg.QuoteIdent)...)
	return stmts, nil
}

// indexColumn is one column's membership in a named composite index.
type indexColumn struct {
	column   string
	priority int64
}

// buildIndexSQL renders CREATE INDEX statements for the index annotations on
// the given fields. Plain indexes get a generated idx_<table>_<column> name;
// composite members group by their index name, ordered by priority ascending
// with ties keeping field declaration order.
func buildIndexSQL(table string, fields []imr.Field, quote func(string) string) []string {
	var stmts []string
	composites := make(map[string][]indexColumn)

	for i := range fields {
		f := &fields[i]
		for _, a := range f.Annotations {
			idx, ok := a.(imr.Index)
			if !ok {
				continue
			}
			if idx.Composite == nil {
				stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s);",
					quote("idx_"+table+"_"+f.Name), quote(table), quote(f.Name)))
				continue
			}
			composites[idx.Composite.Name] = append(composites[idx.Composite.Name], indexColumn{
				column:   f.Name,
				priority: idx.Composite.Priority,
			})
		}
	}

	names := make([]string, 0, len(composites))
	for name := range composites {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		members := composites[name]
		// Members are collected in field declaration order; the stable sort
		// keeps that order for equal priorities.
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].priority < members[j].priority
		})
		cols := make([]string, len(members))
		for i, m := range members {
			cols[i] = quote(m.column)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s);",
			quote(name), quote(table), strings.Join(cols, ", ")))
	}

	return stmts
}

// buildAddFieldSQL renders ALTER TABLE ADD COLUMN plus any index statements
// for the new column.
func buildAddFieldSQL(op *migration.AddField, cfg columnConfig) ([]string, error) {
	col, err := buildColumnDefSQL(&op.Field, cfg)
	if err != nil {
		return nil, err
	}
	stmts := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", cfg.QuoteIdent(op.ModelName), col)}
	stmts = append(stmts, buildIndexSQL(op.ModelName, []imr.Field{op.Field}, cfg.QuoteIdent)...)
	return stmts, nil
}
