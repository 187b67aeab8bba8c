package imr

import (
	"testing"

	"github.com/stratumdb/stratum/internal/sterr"
)

const validModelsJSON = `{
  "format_version": 1,
  "models": [
    {
      "name": "user",
      "fields": [
        {
          "name": "id",
          "type": "uint64",
          "annotations": [
            {"type": "primary_key"},
            {"type": "auto_increment"}
          ]
        },
        {
          "name": "username",
          "type": "varchar",
          "annotations": [
            {"type": "max_length", "value": 255},
            {"type": "unique"}
          ]
        },
        {
          "name": "role",
          "type": "choices",
          "annotations": [
            {"type": "choices", "value": ["admin", "member"]},
            {"type": "default_value", "value": "member"}
          ]
        },
        {
          "name": "team_id",
          "type": "uint64",
          "annotations": [
            {"type": "foreign_key", "value": {"table_name": "team", "column_name": "id"}}
          ]
        },
        {
          "name": "created_at",
          "type": "datetime",
          "annotations": [
            {"type": "auto_create_time"},
            {"type": "index", "value": {"name": "idx_created", "priority": 1}}
          ]
        }
      ]
    }
  ]
}`

func TestParseModels(t *testing.T) {
	set, err := ParseModels([]byte(validModelsJSON), ".models.json")
	if err != nil {
		t.Fatalf("ParseModels() error: %v", err)
	}
	if len(set.Models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(set.Models))
	}

	user := set.Models[0]
	if user.Name != "user" || len(user.Fields) != 5 {
		t.Fatalf("unexpected model: %+v", user)
	}

	id := user.GetField("id")
	if id == nil || !id.Has(KindPrimaryKey) || !id.Has(KindAutoIncrement) {
		t.Errorf("id annotations wrong: %+v", id)
	}
	if pk := user.PrimaryKey(); pk == nil || pk.Name != "id" {
		t.Errorf("PrimaryKey() = %v", pk)
	}

	username := user.GetField("username")
	if ml, ok := username.Get(KindMaxLength).(MaxLength); !ok || ml.Value != 255 {
		t.Errorf("max_length wrong: %+v", username.Annotations)
	}

	role := user.GetField("role")
	if dv, ok := role.Get(KindDefaultValue).(DefaultValue); !ok || dv.Value != "member" {
		t.Errorf("default_value wrong: %+v", role.Annotations)
	}

	fk := user.GetField("team_id").ForeignKey()
	if fk == nil || fk.TableName != "team" || fk.ColumnName != "id" {
		t.Errorf("foreign key wrong: %+v", fk)
	}

	created := user.GetField("created_at")
	idx, ok := created.Get(KindIndex).(Index)
	if !ok || idx.Composite == nil || idx.Composite.Name != "idx_created" || idx.Composite.Priority != 1 {
		t.Errorf("index wrong: %+v", created.Annotations)
	}
}

func TestParseModelsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    sterr.Code
	}{
		{
			name:    "not json",
			content: `{`,
			code:    sterr.ErrParseFile,
		},
		{
			name:    "missing format_version",
			content: `{"models": []}`,
			code:    sterr.ErrParseMissingKey,
		},
		{
			name:    "unsupported version",
			content: `{"format_version": 99, "models": []}`,
			code:    sterr.ErrUnknownVersion,
		},
		{
			name:    "unknown top-level key",
			content: `{"format_version": 1, "models": [], "extra": true}`,
			code:    sterr.ErrParseFile,
		},
		{
			name: "unknown annotation",
			content: `{"format_version": 1, "models": [
				{"name": "m", "fields": [
					{"name": "f", "type": "int32", "annotations": [{"type": "sparkly"}]}
				]}
			]}`,
			code: sterr.ErrUnknownAnnotation,
		},
		{
			name: "flag annotation with value",
			content: `{"format_version": 1, "models": [
				{"name": "m", "fields": [
					{"name": "f", "type": "int32", "annotations": [{"type": "primary_key", "value": 7}]}
				]}
			]}`,
			code: sterr.ErrParseWrongType,
		},
		{
			name: "unknown column type",
			content: `{"format_version": 1, "models": [
				{"name": "m", "fields": [{"name": "f", "type": "blorb", "annotations": []}]}
			]}`,
			code: sterr.ErrParseWrongType,
		},
		{
			name: "field without name",
			content: `{"format_version": 1, "models": [
				{"name": "m", "fields": [{"name": "", "type": "int32", "annotations": []}]}
			]}`,
			code: sterr.ErrParseMissingKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModels([]byte(tt.content), ".models.json")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !sterr.Is(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestMarshalModelsRoundTrip(t *testing.T) {
	set, err := ParseModels([]byte(validModelsJSON), ".models.json")
	if err != nil {
		t.Fatalf("ParseModels() error: %v", err)
	}

	data, err := MarshalModels(set)
	if err != nil {
		t.Fatalf("MarshalModels() error: %v", err)
	}
	back, err := ParseModels(data, "roundtrip")
	if err != nil {
		t.Fatalf("re-parse error: %v", err)
	}

	if CanonicalHash(back.Models) != CanonicalHash(set.Models) {
		t.Error("round trip changed the canonical hash")
	}
}

func TestCanonicalHash(t *testing.T) {
	base := []ModelFormat{{
		Name: "user",
		Fields: []Field{
			{Name: "id", Type: UInt64, Annotations: []Annotation{PrimaryKey{}, AutoIncrement{}}},
			{Name: "name", Type: VarChar, Annotations: []Annotation{MaxLength{Value: 50}}},
		},
	}}

	if CanonicalHash(base) != CanonicalHash(base) {
		t.Error("hash must be deterministic")
	}

	// Annotation order is not semantic; the hash must not see it.
	reordered := []ModelFormat{{
		Name: "user",
		Fields: []Field{
			{Name: "id", Type: UInt64, Annotations: []Annotation{AutoIncrement{}, PrimaryKey{}}},
			{Name: "name", Type: VarChar, Annotations: []Annotation{MaxLength{Value: 50}}},
		},
	}}
	if CanonicalHash(base) != CanonicalHash(reordered) {
		t.Error("annotation order must not affect the hash")
	}

	// Field order is semantic; the hash must see it.
	swapped := []ModelFormat{{
		Name: "user",
		Fields: []Field{
			{Name: "name", Type: VarChar, Annotations: []Annotation{MaxLength{Value: 50}}},
			{Name: "id", Type: UInt64, Annotations: []Annotation{PrimaryKey{}, AutoIncrement{}}},
		},
	}}
	if CanonicalHash(base) == CanonicalHash(swapped) {
		t.Error("field order must affect the hash")
	}

	changed := []ModelFormat{{
		Name: "user",
		Fields: []Field{
			{Name: "id", Type: UInt64, Annotations: []Annotation{PrimaryKey{}, AutoIncrement{}}},
			{Name: "name", Type: VarChar, Annotations: []Annotation{MaxLength{Value: 51}}},
		},
	}}
	if CanonicalHash(base) == CanonicalHash(changed) {
		t.Error("annotation values must affect the hash")
	}
}

func TestFieldEqual(t *testing.T) {
	a := Field{Name: "n", Type: VarChar, Annotations: []Annotation{MaxLength{Value: 10}, Unique{}}}
	b := Field{Name: "n", Type: VarChar, Annotations: []Annotation{Unique{}, MaxLength{Value: 10}}}
	c := Field{Name: "n", Type: VarChar, Annotations: []Annotation{MaxLength{Value: 11}, Unique{}}}

	if !a.Equal(&b) {
		t.Error("annotation order must not affect field equality")
	}
	if a.Equal(&c) {
		t.Error("different annotation values must not compare equal")
	}
}

func TestNullable(t *testing.T) {
	tests := []struct {
		name        string
		annotations []Annotation
		want        bool
	}{
		{"plain", nil, true},
		{"not_null", []Annotation{NotNull{}}, false},
		{"primary_key", []Annotation{PrimaryKey{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Field{Name: "f", Type: Int32, Annotations: tt.annotations}
			if got := f.Nullable(); got != tt.want {
				t.Errorf("Nullable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDBTypeValid(t *testing.T) {
	for _, typ := range []DBType{VarChar, Int64, UInt8, Double, Boolean, DateTime, Choices, Set} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if DBType("blorb").Valid() {
		t.Error("unknown type should be invalid")
	}
}
