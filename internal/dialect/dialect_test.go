package dialect

import (
	"reflect"
	"testing"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

func field(name string, typ imr.DBType, annotations ...imr.Annotation) imr.Field {
	return imr.Field{Name: name, Type: typ, Annotations: annotations}
}

func TestGet(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
	}
	for _, tt := range tests {
		d, err := Get(tt.input)
		if err != nil {
			t.Errorf("Get(%q) error: %v", tt.input, err)
			continue
		}
		if d.Name() != tt.want {
			t.Errorf("Get(%q).Name() = %q, want %q", tt.input, d.Name(), tt.want)
		}
	}

	_, err := Get("sqllite")
	if !sterr.Is(err, sterr.ErrDialect) {
		t.Fatalf("expected %s, got %v", sterr.ErrDialect, err)
	}
}

func TestCreateModelSQLSQLite(t *testing.T) {
	op := &migration.CreateModel{
		Name: "user",
		Fields: []imr.Field{
			field("id", imr.UInt64, imr.PrimaryKey{}, imr.AutoIncrement{}),
			field("username", imr.VarChar, imr.MaxLength{Value: 255}, imr.NotNull{}, imr.Unique{}),
			field("active", imr.Boolean, imr.DefaultValue{Value: true}),
			field("created_at", imr.DateTime, imr.AutoCreateTime{}),
		},
	}

	stmts, err := SQLite().CreateModelSQL(op)
	if err != nil {
		t.Fatalf("CreateModelSQL() error: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}

	want := `CREATE TABLE "user" (
  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
  "username" TEXT NOT NULL UNIQUE,
  "active" INTEGER DEFAULT 1,
  "created_at" DATETIME DEFAULT CURRENT_TIMESTAMP
);`
	if stmts[0] != want {
		t.Errorf("wrong DDL:\n%s\nwant:\n%s", stmts[0], want)
	}
}

func TestCreateModelSQLPostgres(t *testing.T) {
	op := &migration.CreateModel{
		Name: "user",
		Fields: []imr.Field{
			field("id", imr.UInt64, imr.PrimaryKey{}, imr.AutoIncrement{}),
			field("username", imr.VarChar, imr.MaxLength{Value: 100}),
			field("active", imr.Boolean, imr.DefaultValue{Value: false}),
			field("role", imr.Choices, imr.ChoicesValues{Values: []string{"admin", "member"}}),
		},
	}

	stmts, err := Postgres().CreateModelSQL(op)
	if err != nil {
		t.Fatalf("CreateModelSQL() error: %v", err)
	}

	want := `CREATE TABLE "user" (
  "id" BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY,
  "username" VARCHAR(100),
  "active" BOOLEAN DEFAULT FALSE,
  "role" TEXT CHECK ("role" IN ('admin', 'member'))
);`
	if stmts[0] != want {
		t.Errorf("wrong DDL:\n%s\nwant:\n%s", stmts[0], want)
	}
}

func TestCreateModelSQLIndexes(t *testing.T) {
	op := &migration.CreateModel{
		Name: "event",
		Fields: []imr.Field{
			field("id", imr.UInt64, imr.PrimaryKey{}),
			field("kind", imr.VarChar, imr.MaxLength{Value: 20}, imr.Index{}),
			// Composite members declared out of priority order on purpose.
			field("day", imr.Date, imr.Index{Composite: &imr.IndexComposite{Name: "idx_event_window", Priority: 2}}),
			field("hour", imr.Int8, imr.Index{Composite: &imr.IndexComposite{Name: "idx_event_window", Priority: 1}}),
		},
	}

	stmts, err := SQLite().CreateModelSQL(op)
	if err != nil {
		t.Fatalf("CreateModelSQL() error: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("expected CREATE TABLE plus 2 indexes, got %d statements", len(stmts))
	}

	wantPlain := `CREATE INDEX "idx_event_kind" ON "event" ("kind");`
	if stmts[1] != wantPlain {
		t.Errorf("plain index = %q, want %q", stmts[1], wantPlain)
	}
	wantComposite := `CREATE INDEX "idx_event_window" ON "event" ("hour", "day");`
	if stmts[2] != wantComposite {
		t.Errorf("composite index = %q, want %q", stmts[2], wantComposite)
	}
}

func TestCompositeIndexEqualPriorityKeepsDeclarationOrder(t *testing.T) {
	op := &migration.CreateModel{
		Name: "event",
		Fields: []imr.Field{
			field("id", imr.UInt64, imr.PrimaryKey{}),
			field("b", imr.Int32, imr.Index{Composite: &imr.IndexComposite{Name: "idx_event_ab", Priority: 1}}),
			field("a", imr.Int32, imr.Index{Composite: &imr.IndexComposite{Name: "idx_event_ab", Priority: 1}}),
		},
	}

	stmts, err := SQLite().CreateModelSQL(op)
	if err != nil {
		t.Fatalf("CreateModelSQL() error: %v", err)
	}
	want := `CREATE INDEX "idx_event_ab" ON "event" ("b", "a");`
	if stmts[len(stmts)-1] != want {
		t.Errorf("equal priorities must keep declaration order: got %q, want %q",
			stmts[len(stmts)-1], want)
	}
}

// PostgreSQL only allows identity on smallint, integer, and bigint, so the
// uint64 mapping depends on whether the column auto-increments.
func TestPostgresUInt64Identity(t *testing.T) {
	plain := field("id", imr.UInt64)
	if got, _ := Postgres().ColumnType(&plain); got != "NUMERIC(20, 0)" {
		t.Errorf("plain uint64 = %q, want NUMERIC(20, 0)", got)
	}

	auto := field("id", imr.UInt64, imr.PrimaryKey{}, imr.AutoIncrement{})
	if got, _ := Postgres().ColumnType(&auto); got != "BIGINT" {
		t.Errorf("auto-incrementing uint64 = %q, want BIGINT", got)
	}

	stmts, err := Postgres().CreateModelSQL(&migration.CreateModel{
		Name:   "user",
		Fields: []imr.Field{auto},
	})
	if err != nil {
		t.Fatalf("CreateModelSQL() error: %v", err)
	}
	want := `CREATE TABLE "user" (
  "id" BIGINT PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY
);`
	if stmts[0] != want {
		t.Errorf("wrong DDL:\n%s\nwant:\n%s", stmts[0], want)
	}
}

func TestForeignKeyReference(t *testing.T) {
	op := &migration.AddField{
		ModelName: "post",
		Field:     field("author_id", imr.UInt64, imr.ForeignKey{TableName: "user", ColumnName: "id"}),
	}

	stmts, err := Postgres().AddFieldSQL(op)
	if err != nil {
		t.Fatalf("AddFieldSQL() error: %v", err)
	}
	want := `ALTER TABLE "post" ADD COLUMN "author_id" NUMERIC(20, 0) REFERENCES "user"("id");`
	if len(stmts) != 1 || stmts[0] != want {
		t.Errorf("got %v, want %q", stmts, want)
	}
}

func TestAddFieldWithIndex(t *testing.T) {
	op := &migration.AddField{
		ModelName: "user",
		Field:     field("email", imr.VarChar, imr.MaxLength{Value: 120}, imr.Index{}),
	}

	stmts, err := SQLite().AddFieldSQL(op)
	if err != nil {
		t.Fatalf("AddFieldSQL() error: %v", err)
	}
	want := []string{
		`ALTER TABLE "user" ADD COLUMN "email" TEXT;`,
		`CREATE INDEX "idx_user_email" ON "user" ("email");`,
	}
	if !reflect.DeepEqual(stmts, want) {
		t.Errorf("got %v, want %v", stmts, want)
	}
}

func TestSingleStatementOperations(t *testing.T) {
	d := SQLite()

	tests := []struct {
		name string
		op   migration.Operation
		want string
	}{
		{
			name: "delete model",
			op:   &migration.DeleteModel{Name: "user"},
			want: `DROP TABLE "user";`,
		},
		{
			name: "rename model",
			op:   &migration.RenameModel{Old: "post", New: "article"},
			want: `ALTER TABLE "post" RENAME TO "article";`,
		},
		{
			name: "delete field",
			op:   &migration.DeleteField{ModelName: "user", Name: "legacy"},
			want: `ALTER TABLE "user" DROP COLUMN "legacy";`,
		},
		{
			name: "rename field",
			op:   &migration.RenameField{ModelName: "user", Old: "name", New: "full_name"},
			want: `ALTER TABLE "user" RENAME COLUMN "name" TO "full_name";`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := SQL(d, tt.op)
			if err != nil {
				t.Fatalf("SQL() error: %v", err)
			}
			if len(stmts) != 1 || stmts[0] != tt.want {
				t.Errorf("got %v, want %q", stmts, tt.want)
			}
		})
	}
}

func TestColumnTypeMappings(t *testing.T) {
	pg, lite := Postgres(), SQLite()

	tests := []struct {
		typ     imr.DBType
		pgSQL   string
		liteSQL string
	}{
		{imr.Int8, "SMALLINT", "INTEGER"},
		{imr.Int32, "INTEGER", "INTEGER"},
		{imr.Int64, "BIGINT", "INTEGER"},
		{imr.UInt32, "BIGINT", "INTEGER"},
		{imr.UInt64, "NUMERIC(20, 0)", "INTEGER"},
		{imr.Float, "REAL", "REAL"},
		{imr.Double, "DOUBLE PRECISION", "REAL"},
		{imr.VarBinary, "BYTEA", "BLOB"},
		{imr.Boolean, "BOOLEAN", "INTEGER"},
		{imr.Date, "DATE", "DATE"},
		{imr.Timestamp, "TIMESTAMP", "DATETIME"},
		{imr.Time, "TIME", "TIME"},
	}

	for _, tt := range tests {
		f := field("c", tt.typ)
		if got, err := pg.ColumnType(&f); err != nil || got != tt.pgSQL {
			t.Errorf("postgres %s = %q (%v), want %q", tt.typ, got, err, tt.pgSQL)
		}
		if got, err := lite.ColumnType(&f); err != nil || got != tt.liteSQL {
			t.Errorf("sqlite %s = %q (%v), want %q", tt.typ, got, err, tt.liteSQL)
		}
	}
}

func TestVarCharLength(t *testing.T) {
	f := field("name", imr.VarChar, imr.MaxLength{Value: 42})
	if got, _ := Postgres().ColumnType(&f); got != "VARCHAR(42)" {
		t.Errorf("ColumnType = %q, want VARCHAR(42)", got)
	}

	bare := field("name", imr.VarChar)
	if got, _ := Postgres().ColumnType(&bare); got != "TEXT" {
		t.Errorf("ColumnType = %q, want TEXT", got)
	}
}

func TestQuoteIdentEscapes(t *testing.T) {
	if got := SQLite().QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdent = %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := Postgres().Placeholder(3); got != "$3" {
		t.Errorf("postgres Placeholder(3) = %q", got)
	}
	if got := SQLite().Placeholder(3); got != "?" {
		t.Errorf("sqlite Placeholder(3) = %q", got)
	}
}

func TestMigrationSQLOrder(t *testing.T) {
	m := &migration.Migration{
		ID: "0002_reshape",
		Operations: []migration.Operation{
			&migration.DeleteModel{Name: "legacy"},
			&migration.CreateModel{Name: "tag", Fields: []imr.Field{
				field("name", imr.VarChar, imr.PrimaryKey{}, imr.MaxLength{Value: 40}),
			}},
			&migration.DeleteField{ModelName: "user", Name: "nickname"},
		},
	}

	stmts, err := MigrationSQL(SQLite(), m)
	if err != nil {
		t.Fatalf("MigrationSQL() error: %v", err)
	}
	want := []string{
		`DROP TABLE "legacy";`,
		`CREATE TABLE "tag" (
  "name" TEXT PRIMARY KEY
);`,
		`ALTER TABLE "user" DROP COLUMN "nickname";`,
	}
	if !reflect.DeepEqual(stmts, want) {
		t.Errorf("got:\n%v\nwant:\n%v", stmts, want)
	}
}
