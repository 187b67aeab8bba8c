package lint

import (
	"strings"
	"testing"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/sterr"
)

func field(name string, typ imr.DBType, annotations ...imr.Annotation) imr.Field {
	return imr.Field{Name: name, Type: typ, Annotations: annotations}
}

func model(name string, fields ...imr.Field) imr.ModelFormat {
	return imr.ModelFormat{Name: name, Fields: fields}
}

func pkField() imr.Field {
	return field("id", imr.UInt64, imr.PrimaryKey{})
}

// codesOf collapses a violation list to its codes for easy comparison.
func codesOf(errs []*sterr.Error) []sterr.Code {
	codes := make([]sterr.Code, len(errs))
	for i, e := range errs {
		codes[i] = e.GetCode()
	}
	return codes
}

func assertCodes(t *testing.T, errs []*sterr.Error, want ...sterr.Code) {
	t.Helper()
	got := codesOf(errs)
	if len(got) != len(want) {
		t.Fatalf("got %d violations %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("violation %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestValidModelsPass(t *testing.T) {
	models := []imr.ModelFormat{
		model("user",
			field("id", imr.UInt64, imr.PrimaryKey{}, imr.AutoIncrement{}),
			field("username", imr.VarChar, imr.MaxLength{Value: 255}, imr.Unique{}),
			field("role", imr.Choices, imr.ChoicesValues{Values: []string{"admin", "member"}}),
			field("created_at", imr.DateTime, imr.AutoCreateTime{}),
		),
		model("post",
			pkField(),
			field("author_id", imr.UInt64, imr.ForeignKey{TableName: "user", ColumnName: "id"}),
		),
	}

	if errs := Models(models); len(errs) != 0 {
		t.Errorf("valid models must produce no violations, got %v", errs)
	}
}

func TestPrimaryKeyCardinality(t *testing.T) {
	tests := []struct {
		name   string
		fields []imr.Field
		want   []sterr.Code
	}{
		{
			name:   "no primary key",
			fields: []imr.Field{field("name", imr.VarChar, imr.MaxLength{Value: 10})},
			want:   []sterr.Code{sterr.ErrLintPrimaryKey},
		},
		{
			name: "two primary keys",
			fields: []imr.Field{
				field("a", imr.UInt64, imr.PrimaryKey{}),
				field("b", imr.UInt64, imr.PrimaryKey{}),
			},
			want: []sterr.Code{sterr.ErrLintPrimaryKey},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCodes(t, Models([]imr.ModelFormat{model("m", tt.fields...)}), tt.want...)
		})
	}
}

func TestAnnotationCompatibility(t *testing.T) {
	tests := []struct {
		name  string
		field imr.Field
		code  sterr.Code
	}{
		{
			name:  "auto_create_time on primary key",
			field: field("id", imr.DateTime, imr.PrimaryKey{}, imr.AutoCreateTime{}),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "default on unique",
			field: field("code", imr.Int32, imr.Unique{}, imr.DefaultValue{Value: int64(0)}),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "not_null on primary key",
			field: field("id", imr.UInt64, imr.PrimaryKey{}, imr.NotNull{}),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "auto_increment without primary key",
			field: field("n", imr.UInt64, imr.AutoIncrement{}),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "auto_create_time on non-temporal type",
			field: field("when", imr.Int64, imr.AutoCreateTime{}),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "varchar without max_length",
			field: field("name", imr.VarChar),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "max_length on non-varchar",
			field: field("n", imr.Int32, imr.MaxLength{Value: 10}),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "non-positive max_length",
			field: field("name", imr.VarChar, imr.MaxLength{Value: 0}),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "choices type without choices annotation",
			field: field("role", imr.Choices),
			code:  sterr.ErrLintAnnotation,
		},
		{
			name:  "duplicate annotation",
			field: field("name", imr.VarChar, imr.MaxLength{Value: 5}, imr.MaxLength{Value: 9}),
			code:  sterr.ErrLintAnnotation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Models([]imr.ModelFormat{model("m", pkField(), tt.field)})
			if len(errs) == 0 {
				t.Fatal("expected a violation")
			}
			found := false
			for _, e := range errs {
				if e.GetCode() == tt.code {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a %s violation, got %v", tt.code, codesOf(errs))
			}
		})
	}
}

// primary_key plus auto_increment is the one key combination that must stay
// legal: it is how every surrogate id column is declared.
func TestPrimaryKeyWithAutoIncrementIsValid(t *testing.T) {
	models := []imr.ModelFormat{
		model("user", field("id", imr.UInt64, imr.PrimaryKey{}, imr.AutoIncrement{})),
	}
	if errs := Models(models); len(errs) != 0 {
		t.Errorf("primary_key + auto_increment must lint clean, got %v", errs)
	}
}

func TestNameRules(t *testing.T) {
	tests := []struct {
		name      string
		modelName string
		fieldName string
	}{
		{"upper case model", "User", "id"},
		{"dash in model", "user-profile", "id"},
		{"sqlite reserved prefix", "sqlite_master", "id"},
		{"trailing underscore field", "user", "name_"},
		{"leading digit field", "user", "1name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := []imr.ModelFormat{
				model(tt.modelName, field(tt.fieldName, imr.UInt64, imr.PrimaryKey{})),
			}
			errs := Models(models)
			if len(errs) == 0 {
				t.Fatal("expected a name violation")
			}
			if errs[0].GetCode() != sterr.ErrLintName {
				t.Errorf("expected %s, got %s", sterr.ErrLintName, errs[0].GetCode())
			}
		})
	}
}

func TestDuplicateNames(t *testing.T) {
	models := []imr.ModelFormat{
		model("user", pkField()),
		model("user", pkField()),
	}
	errs := Models(models)
	if len(errs) != 1 || errs[0].GetCode() != sterr.ErrLintDuplicate {
		t.Errorf("expected one duplicate-model violation, got %v", codesOf(errs))
	}

	models = []imr.ModelFormat{
		model("user", pkField(), field("name", imr.VarChar, imr.MaxLength{Value: 5}), field("name", imr.VarChar, imr.MaxLength{Value: 5})),
	}
	errs = Models(models)
	if len(errs) != 1 || errs[0].GetCode() != sterr.ErrLintDuplicate {
		t.Errorf("expected one duplicate-field violation, got %v", codesOf(errs))
	}
}

func TestForeignKeyTargets(t *testing.T) {
	t.Run("unknown model suggests closest", func(t *testing.T) {
		models := []imr.ModelFormat{
			model("user", pkField()),
			model("post",
				pkField(),
				field("author_id", imr.UInt64, imr.ForeignKey{TableName: "usre", ColumnName: "id"}),
			),
		}
		errs := Models(models)
		if len(errs) != 1 || errs[0].GetCode() != sterr.ErrLintForeignKey {
			t.Fatalf("expected one foreign-key violation, got %v", codesOf(errs))
		}
		if !strings.Contains(errs[0].Error(), "user") {
			t.Errorf("violation should suggest the closest model name:\n%s", errs[0].Error())
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		models := []imr.ModelFormat{
			model("user", pkField()),
			model("post",
				pkField(),
				field("author_id", imr.UInt64, imr.ForeignKey{TableName: "user", ColumnName: "uid"}),
			),
		}
		errs := Models(models)
		if len(errs) != 1 || errs[0].GetCode() != sterr.ErrLintForeignKey {
			t.Fatalf("expected one foreign-key violation, got %v", codesOf(errs))
		}
	})
}

func TestCompositeIndexNameMustBeSnakeCase(t *testing.T) {
	models := []imr.ModelFormat{
		model("user",
			pkField(),
			field("a", imr.Int32, imr.Index{Composite: &imr.IndexComposite{Name: "BadName", Priority: 1}}),
		),
	}
	errs := Models(models)
	if len(errs) != 1 || errs[0].GetCode() != sterr.ErrLintIndex {
		t.Errorf("expected one index violation, got %v", codesOf(errs))
	}
}
