package migration

import (
	"bytes"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/sterr"
)

// The TOML wire contract. Key names and nesting are the only human-facing
// persisted format; renames are breaking changes.
//
//	[Migration]
//	Dependency = ""
//	Initial = true
//	Hash = "..."
//	Replaces = []
//
//	  [[Migration.Operations]]
//	  Type = "CreateModel"
//	  Name = "user"
//	    [[Migration.Operations.Fields]]
//	    Type = "uint64"
//	    Name = "id"
//	      [[Migration.Operations.Fields.Annotations]]
//	      Type = "PrimaryKey"

// tomlAnnotationNames maps annotation kinds to their PascalCase wire names.
var tomlAnnotationNames = map[imr.AnnotationKind]string{
	imr.KindAutoCreateTime: "AutoCreateTime",
	imr.KindAutoUpdateTime: "AutoUpdateTime",
	imr.KindAutoIncrement:  "AutoIncrement",
	imr.KindPrimaryKey:     "PrimaryKey",
	imr.KindUnique:         "Unique",
	imr.KindNotNull:        "NotNull",
	imr.KindMaxLength:      "MaxLength",
	imr.KindDefaultValue:   "DefaultValue",
	imr.KindChoices:        "Choices",
	imr.KindIndex:          "Index",
	imr.KindForeignKey:     "ForeignKey",
}

// tomlAnnotationKind resolves a wire name back to its kind.
func tomlAnnotationKind(name string) (imr.AnnotationKind, bool) {
	for k, n := range tomlAnnotationNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// -----------------------------------------------------------------------------
// Decode
// -----------------------------------------------------------------------------

// Pointer fields distinguish "missing key" from zero values so parse errors
// can name the exact key, per file.

type tomlDoc struct {
	Migration *tomlMigration `toml:"Migration"`
}

type tomlMigration struct {
	Hash       *string         `toml:"Hash"`
	Initial    *bool           `toml:"Initial"`
	Dependency *string         `toml:"Dependency"`
	Replaces   *[]string       `toml:"Replaces"`
	Operations []tomlOperation `toml:"Operations"`
}

type tomlOperation struct {
	Type      *string     `toml:"Type"`
	Name      *string     `toml:"Name"`
	Old       *string     `toml:"Old"`
	New       *string     `toml:"New"`
	TableName *string     `toml:"TableName"`
	Fields    []tomlField `toml:"Fields"`
	Field     *tomlField  `toml:"Field"`
}

type tomlField struct {
	Name        *string          `toml:"Name"`
	Type        *string          `toml:"Type"`
	Annotations []tomlAnnotation `toml:"Annotations"`
}

type tomlAnnotation struct {
	Type  *string         `toml:"Type"`
	Value *toml.Primitive `toml:"Value"`
}

type tomlIndexValue struct {
	Name     string `toml:"Name"`
	Priority int64  `toml:"Priority"`
}

type tomlForeignKeyValue struct {
	TableName  string `toml:"TableName"`
	ColumnName string `toml:"ColumnName"`
}

// Deserialize parses a migration file's TOML content. The path is used to
// contextualize errors and to derive the migration ID from the filename stem;
// round-trips are structure-stable, not formatting-stable.
func Deserialize(data []byte, path string) (*Migration, error) {
	missing := func(key string) error {
		return sterr.New(sterr.ErrParseMissingKey, "migration file is missing a required key").
			WithFile(path).
			WithKey(key)
	}

	var doc tomlDoc
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, sterr.Wrap(sterr.ErrParseFile, err, "failed to decode migration file").
			WithFile(path)
	}

	if doc.Migration == nil {
		return nil, missing("Migration")
	}
	raw := doc.Migration
	if raw.Hash == nil {
		return nil, missing("Hash")
	}
	if raw.Initial == nil {
		return nil, missing("Initial")
	}
	if raw.Dependency == nil {
		return nil, missing("Dependency")
	}

	m := &Migration{
		Hash:       *raw.Hash,
		Initial:    *raw.Initial,
		Dependency: *raw.Dependency,
	}
	if raw.Replaces != nil {
		m.Replaces = *raw.Replaces
	}
	if id, ok := ParseFilename(filepath.Base(path)); ok {
		m.ID = id
	}

	for _, rawOp := range raw.Operations {
		op, err := decodeOperation(&md, rawOp, path)
		if err != nil {
			return nil, err
		}
		m.Operations = append(m.Operations, op)
	}

	// Anything left undecoded is a key outside the wire contract.
	// Forward compatibility is opt-in via version negotiation, not silent
	// tolerance: a migration the tool doesn't fully understand must not load.
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, sterr.Newf(sterr.ErrParseWrongType, "unexpected key %q in migration file",
			undecoded[0].String()).
			WithFile(path).
			WithKey(undecoded[0].String())
	}

	return m, nil
}

// decodeOperation converts one wire operation into its typed form.
func decodeOperation(md *toml.MetaData, raw tomlOperation, path string) (Operation, error) {
	missing := func(key string) error {
		return sterr.New(sterr.ErrParseMissingKey, "operation is missing a required key").
			WithFile(path).
			WithKey(key)
	}

	if raw.Type == nil {
		return nil, missing("Type")
	}

	switch OpType(*raw.Type) {
	case OpCreateModel:
		if raw.Name == nil {
			return nil, missing("Name")
		}
		op := &CreateModel{Name: *raw.Name}
		for _, rawField := range raw.Fields {
			field, err := decodeField(md, rawField, *raw.Name, path)
			if err != nil {
				return nil, err
			}
			op.Fields = append(op.Fields, field)
		}
		if err := op.Validate(); err != nil {
			return nil, err
		}
		return op, nil

	case OpDeleteModel:
		if raw.Name == nil {
			return nil, missing("Name")
		}
		op := &DeleteModel{Name: *raw.Name}
		return op, op.Validate()

	case OpRenameModel:
		if raw.Old == nil {
			return nil, missing("Old")
		}
		if raw.New == nil {
			return nil, missing("New")
		}
		op := &RenameModel{Old: *raw.Old, New: *raw.New}
		return op, op.Validate()

	case OpAddField:
		if raw.Name == nil {
			return nil, missing("Name")
		}
		if raw.Field == nil {
			return nil, missing("Field")
		}
		field, err := decodeField(md, *raw.Field, *raw.Name, path)
		if err != nil {
			return nil, err
		}
		op := &AddField{ModelName: *raw.Name, Field: field}
		return op, op.Validate()

	case OpDeleteField:
		if raw.TableName == nil {
			return nil, missing("TableName")
		}
		if raw.Name == nil {
			return nil, missing("Name")
		}
		op := &DeleteField{ModelName: *raw.TableName, Name: *raw.Name}
		return op, op.Validate()

	case OpRenameField:
		if raw.TableName == nil {
			return nil, missing("TableName")
		}
		if raw.Old == nil {
			return nil, missing("Old")
		}
		if raw.New == nil {
			return nil, missing("New")
		}
		op := &RenameField{ModelName: *raw.TableName, Old: *raw.Old, New: *raw.New}
		return op, op.Validate()
	}

	return nil, sterr.Newf(sterr.ErrUnknownOperation, "unknown operation type %q", *raw.Type).
		WithFile(path)
}

// decodeField converts one wire field, decoding its annotation values.
func decodeField(md *toml.MetaData, raw tomlField, model, path string) (imr.Field, error) {
	if raw.Name == nil {
		return imr.Field{}, sterr.New(sterr.ErrParseMissingKey, "field is missing a required key").
			WithFile(path).
			WithModel(model).
			WithKey("Name")
	}
	if raw.Type == nil {
		return imr.Field{}, sterr.New(sterr.ErrParseMissingKey, "field is missing a required key").
			WithFile(path).
			WithModel(model).
			WithField(*raw.Name).
			WithKey("Type")
	}

	dbType := imr.DBType(*raw.Type)
	if !dbType.Valid() {
		return imr.Field{}, sterr.Newf(sterr.ErrParseWrongType, "unknown column type %q", *raw.Type).
			WithFile(path).
			WithModel(model).
			WithField(*raw.Name)
	}

	field := imr.Field{Name: *raw.Name, Type: dbType}
	for _, rawAnn := range raw.Annotations {
		a, err := decodeAnnotation(md, rawAnn, model, *raw.Name, path)
		if err != nil {
			return imr.Field{}, err
		}
		field.Annotations = append(field.Annotations, a)
	}

	return field, nil
}

// decodeAnnotation converts one wire annotation, enforcing that the TOML
// value type matches the annotation's value type exactly.
func decodeAnnotation(md *toml.MetaData, raw tomlAnnotation, model, field, path string) (imr.Annotation, error) {
	if raw.Type == nil {
		return nil, sterr.New(sterr.ErrParseMissingKey, "annotation is missing a required key").
			WithFile(path).
			WithModel(model).
			WithField(field).
			WithKey("Type")
	}

	kind, ok := tomlAnnotationKind(*raw.Type)
	if !ok {
		return nil, sterr.Newf(sterr.ErrUnknownAnnotation, "unknown annotation type %q", *raw.Type).
			WithFile(path).
			WithModel(model).
			WithField(field)
	}

	wrongValue := func(want string) error {
		return sterr.Newf(sterr.ErrParseWrongType,
			"annotation %q has a missing or mis-typed value (want %s)", *raw.Type, want).
			WithFile(path).
			WithModel(model).
			WithField(field).
			WithKey("Value")
	}

	switch kind {
	case imr.KindAutoCreateTime, imr.KindAutoUpdateTime, imr.KindAutoIncrement,
		imr.KindPrimaryKey, imr.KindUnique, imr.KindNotNull:
		if raw.Value != nil {
			return nil, wrongValue("no value")
		}
		switch kind {
		case imr.KindAutoCreateTime:
			return imr.AutoCreateTime{}, nil
		case imr.KindAutoUpdateTime:
			return imr.AutoUpdateTime{}, nil
		case imr.KindAutoIncrement:
			return imr.AutoIncrement{}, nil
		case imr.KindPrimaryKey:
			return imr.PrimaryKey{}, nil
		case imr.KindUnique:
			return imr.Unique{}, nil
		default:
			return imr.NotNull{}, nil
		}

	case imr.KindMaxLength:
		var n int64
		if raw.Value == nil {
			return nil, wrongValue("integer")
		}
		if err := md.PrimitiveDecode(*raw.Value, &n); err != nil {
			return nil, wrongValue("integer")
		}
		return imr.MaxLength{Value: n}, nil

	case imr.KindDefaultValue:
		if raw.Value == nil {
			return nil, wrongValue("string, integer, float, or bool")
		}
		var v any
		if err := md.PrimitiveDecode(*raw.Value, &v); err != nil {
			return nil, wrongValue("string, integer, float, or bool")
		}
		switch v.(type) {
		case string, int64, float64, bool:
			return imr.DefaultValue{Value: v}, nil
		}
		return nil, wrongValue("string, integer, float, or bool")

	case imr.KindChoices:
		if raw.Value == nil {
			return nil, wrongValue("array of string")
		}
		var values []string
		if err := md.PrimitiveDecode(*raw.Value, &values); err != nil {
			return nil, wrongValue("array of string")
		}
		return imr.ChoicesValues{Values: values}, nil

	case imr.KindIndex:
		// No value means a plain single-column index.
		if raw.Value == nil {
			return imr.Index{}, nil
		}
		var iv tomlIndexValue
		if err := md.PrimitiveDecode(*raw.Value, &iv); err != nil {
			return nil, wrongValue("{Name, Priority} table")
		}
		return imr.Index{Composite: &imr.IndexComposite{Name: iv.Name, Priority: iv.Priority}}, nil

	case imr.KindForeignKey:
		if raw.Value == nil {
			return nil, wrongValue("{TableName, ColumnName} table")
		}
		var fk tomlForeignKeyValue
		if err := md.PrimitiveDecode(*raw.Value, &fk); err != nil {
			return nil, wrongValue("{TableName, ColumnName} table")
		}
		return imr.ForeignKey{TableName: fk.TableName, ColumnName: fk.ColumnName}, nil
	}

	return nil, sterr.Newf(sterr.ErrUnknownAnnotation, "unknown annotation type %q", *raw.Type)
}

// -----------------------------------------------------------------------------
// Encode
// -----------------------------------------------------------------------------

type tomlDocEnc struct {
	Migration tomlMigrationEnc `toml:"Migration"`
}

type tomlMigrationEnc struct {
	Dependency string             `toml:"Dependency"`
	Initial    bool               `toml:"Initial"`
	Hash       string             `toml:"Hash"`
	Replaces   []string           `toml:"Replaces"`
	Operations []tomlOperationEnc `toml:"Operations,omitempty"`
}

type tomlOperationEnc struct {
	Type      string         `toml:"Type"`
	Name      string         `toml:"Name,omitempty"`
	Old       string         `toml:"Old,omitempty"`
	New       string         `toml:"New,omitempty"`
	TableName string         `toml:"TableName,omitempty"`
	Fields    []tomlFieldEnc `toml:"Fields,omitempty"`
	Field     *tomlFieldEnc  `toml:"Field,omitempty"`
}

type tomlFieldEnc struct {
	Name        string           `toml:"Name"`
	Type        string           `toml:"Type"`
	Annotations []map[string]any `toml:"Annotations,omitempty"`
}

// Serialize renders a migration into its TOML file content. The migration ID
// lives in the filename, never in the body.
func Serialize(m *Migration) (string, error) {
	replaces := m.Replaces
	if replaces == nil {
		replaces = []string{}
	}

	doc := tomlDocEnc{
		Migration: tomlMigrationEnc{
			Dependency: m.Dependency,
			Initial:    m.Initial,
			Hash:       m.Hash,
			Replaces:   replaces,
		},
	}

	for _, op := range m.Operations {
		if err := op.Validate(); err != nil {
			return "", err
		}
		doc.Migration.Operations = append(doc.Migration.Operations, encodeOperation(op))
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = "  "
	if err := enc.Encode(doc); err != nil {
		return "", sterr.Wrap(sterr.ErrParseFile, err, "failed to encode migration")
	}

	return buf.String(), nil
}

// encodeOperation converts a typed operation into its wire form.
func encodeOperation(op Operation) tomlOperationEnc {
	out := tomlOperationEnc{Type: string(op.Type())}

	switch o := op.(type) {
	case *CreateModel:
		out.Name = o.Name
		for _, f := range o.Fields {
			out.Fields = append(out.Fields, encodeField(f))
		}
	case *DeleteModel:
		out.Name = o.Name
	case *RenameModel:
		out.Old = o.Old
		out.New = o.New
	case *AddField:
		out.Name = o.ModelName
		field := encodeField(o.Field)
		out.Field = &field
	case *DeleteField:
		out.TableName = o.ModelName
		out.Name = o.Name
	case *RenameField:
		out.TableName = o.ModelName
		out.Old = o.Old
		out.New = o.New
	}

	return out
}

// encodeField converts a field into its wire form. Annotations encode as
// small tables so that value-less annotations carry no Value key at all.
func encodeField(f imr.Field) tomlFieldEnc {
	out := tomlFieldEnc{Name: f.Name, Type: string(f.Type)}

	for _, a := range f.Annotations {
		entry := map[string]any{"Type": tomlAnnotationNames[a.Kind()]}
		switch v := a.(type) {
		case imr.MaxLength:
			entry["Value"] = v.Value
		case imr.DefaultValue:
			entry["Value"] = v.Value
		case imr.ChoicesValues:
			entry["Value"] = v.Values
		case imr.Index:
			if v.Composite != nil {
				entry["Value"] = tomlIndexValue{Name: v.Composite.Name, Priority: v.Composite.Priority}
			}
		case imr.ForeignKey:
			entry["Value"] = tomlForeignKeyValue{TableName: v.TableName, ColumnName: v.ColumnName}
		}
		out.Annotations = append(out.Annotations, entry)
	}

	return out
}

// Equal reports whether two migrations are structurally identical: same
// metadata and the same operations in the same order. Annotation lists
// compare as sets.
func Equal(a, b *Migration) bool {
	if a.ID != b.ID || a.Hash != b.Hash || a.Initial != b.Initial || a.Dependency != b.Dependency {
		return false
	}
	if len(a.Replaces) != len(b.Replaces) || len(a.Operations) != len(b.Operations) {
		return false
	}
	for i := range a.Replaces {
		if a.Replaces[i] != b.Replaces[i] {
			return false
		}
	}
	for i := range a.Operations {
		if !operationsEqual(a.Operations[i], b.Operations[i]) {
			return false
		}
	}
	return true
}

// operationsEqual compares two operations structurally.
func operationsEqual(a, b Operation) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch oa := a.(type) {
	case *CreateModel:
		ob := b.(*CreateModel)
		if oa.Name != ob.Name || len(oa.Fields) != len(ob.Fields) {
			return false
		}
		for i := range oa.Fields {
			if !oa.Fields[i].Equal(&ob.Fields[i]) {
				return false
			}
		}
		return true
	case *DeleteModel:
		return oa.Name == b.(*DeleteModel).Name
	case *RenameModel:
		ob := b.(*RenameModel)
		return oa.Old == ob.Old && oa.New == ob.New
	case *AddField:
		ob := b.(*AddField)
		return oa.ModelName == ob.ModelName && oa.Field.Equal(&ob.Field)
	case *DeleteField:
		ob := b.(*DeleteField)
		return oa.ModelName == ob.ModelName && oa.Name == ob.Name
	case *RenameField:
		ob := b.(*RenameField)
		return oa.ModelName == ob.ModelName && oa.Old == ob.Old && oa.New == ob.New
	}
	return false
}
