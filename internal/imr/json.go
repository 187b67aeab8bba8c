package imr

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/stratumdb/stratum/internal/sterr"
)

// Wire structs for the versioned intermediate JSON schema. The key names and
// nesting below are a contract shared with source extractors; renames are
// breaking changes and require a format_version bump.

type jsonModelSet struct {
	FormatVersion *int        `json:"format_version"`
	Models        []jsonModel `json:"models"`
}

type jsonModel struct {
	Name            string      `json:"name"`
	SourceDefinedAt *Source     `json:"source_defined_at,omitempty"`
	Fields          []jsonField `json:"fields"`
}

type jsonField struct {
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Annotations     []jsonAnnotation `json:"annotations"`
	SourceDefinedAt *Source          `json:"source_defined_at,omitempty"`
}

type jsonAnnotation struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

type jsonIndexValue struct {
	Name     string `json:"name"`
	Priority int64  `json:"priority"`
}

type jsonForeignKeyValue struct {
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
}

// LoadModels reads and parses the intermediate JSON file at path.
func LoadModels(path string) (*ModelSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sterr.Wrap(sterr.ErrParseFile, err, "failed to read models file").
			WithFile(path)
	}
	return ParseModels(data, path)
}

// ParseModels decodes the intermediate JSON wire format. The path is used
// only to contextualize errors. Unknown keys and unknown annotation types are
// parse errors, never silently tolerated.
func ParseModels(data []byte, path string) (*ModelSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	var raw jsonModelSet
	if err := dec.Decode(&raw); err != nil {
		return nil, sterr.Wrap(sterr.ErrParseFile, err, "failed to decode models file").
			WithFile(path)
	}

	if raw.FormatVersion == nil {
		return nil, sterr.New(sterr.ErrParseMissingKey, "models file is missing a required key").
			WithFile(path).
			WithKey("format_version")
	}
	if *raw.FormatVersion != CurrentFormatVersion {
		return nil, sterr.Newf(sterr.ErrUnknownVersion,
			"unsupported model format version %d (want %d)",
			*raw.FormatVersion, CurrentFormatVersion).
			WithFile(path)
	}

	set := &ModelSet{FormatVersion: *raw.FormatVersion}
	for _, rm := range raw.Models {
		if rm.Name == "" {
			return nil, sterr.New(sterr.ErrParseMissingKey, "model is missing a required key").
				WithFile(path).
				WithKey("name")
		}
		model := ModelFormat{Name: rm.Name, SourceDefinedAt: rm.SourceDefinedAt}
		for _, rf := range rm.Fields {
			field, err := parseJSONField(rf, rm.Name, path)
			if err != nil {
				return nil, err
			}
			model.Fields = append(model.Fields, field)
		}
		set.Models = append(set.Models, model)
	}

	return set, nil
}

// parseJSONField converts one wire field, decoding its annotation payloads.
func parseJSONField(raw jsonField, model, path string) (Field, error) {
	if raw.Name == "" {
		return Field{}, sterr.New(sterr.ErrParseMissingKey, "field is missing a required key").
			WithFile(path).
			WithModel(model).
			WithKey("name")
	}
	if raw.Type == "" {
		return Field{}, sterr.New(sterr.ErrParseMissingKey, "field is missing a required key").
			WithFile(path).
			WithModel(model).
			WithField(raw.Name).
			WithKey("type")
	}
	dbType := DBType(raw.Type)
	if !dbType.Valid() {
		return Field{}, sterr.Newf(sterr.ErrParseWrongType, "unknown column type %q", raw.Type).
			WithFile(path).
			WithModel(model).
			WithField(raw.Name)
	}

	field := Field{
		Name:            raw.Name,
		Type:            dbType,
		SourceDefinedAt: raw.SourceDefinedAt,
	}
	for _, ra := range raw.Annotations {
		a, err := parseJSONAnnotation(ra, model, raw.Name, path)
		if err != nil {
			return Field{}, err
		}
		field.Annotations = append(field.Annotations, a)
	}

	return field, nil
}

// parseJSONAnnotation decodes one annotation from its wire type + value pair.
func parseJSONAnnotation(raw jsonAnnotation, model, field, path string) (Annotation, error) {
	kind, ok := KindFromName(raw.Type)
	if !ok {
		return nil, sterr.Newf(sterr.ErrUnknownAnnotation, "unknown annotation type %q", raw.Type).
			WithFile(path).
			WithModel(model).
			WithField(field)
	}

	wrongType := func(want string) error {
		return sterr.Newf(sterr.ErrParseWrongType,
			"annotation %q has a mis-typed value (want %s)", raw.Type, want).
			WithFile(path).
			WithModel(model).
			WithField(field).
			WithKey("value")
	}

	switch kind {
	case KindAutoCreateTime, KindAutoUpdateTime, KindAutoIncrement,
		KindPrimaryKey, KindUnique, KindNotNull:
		if len(raw.Value) > 0 {
			return nil, wrongType("no value")
		}
		return flagAnnotation(kind), nil

	case KindMaxLength:
		var n int64
		if err := json.Unmarshal(raw.Value, &n); err != nil {
			return nil, wrongType("integer")
		}
		return MaxLength{Value: n}, nil

	case KindDefaultValue:
		value, err := parseDefaultValue(raw.Value)
		if err != nil {
			return nil, wrongType("string, integer, float, or bool")
		}
		return DefaultValue{Value: value}, nil

	case KindChoices:
		var values []string
		if err := json.Unmarshal(raw.Value, &values); err != nil {
			return nil, wrongType("array of string")
		}
		return ChoicesValues{Values: values}, nil

	case KindIndex:
		if len(raw.Value) == 0 {
			return Index{}, nil
		}
		var iv jsonIndexValue
		if err := json.Unmarshal(raw.Value, &iv); err != nil {
			return nil, wrongType("{name, priority} object")
		}
		return Index{Composite: &IndexComposite{Name: iv.Name, Priority: iv.Priority}}, nil

	case KindForeignKey:
		var fk jsonForeignKeyValue
		if err := json.Unmarshal(raw.Value, &fk); err != nil {
			return nil, wrongType("{table_name, column_name} object")
		}
		return ForeignKey{TableName: fk.TableName, ColumnName: fk.ColumnName}, nil
	}

	return nil, sterr.Newf(sterr.ErrUnknownAnnotation, "unknown annotation type %q", raw.Type)
}

// flagAnnotation returns the value-less annotation for a flag kind.
func flagAnnotation(kind AnnotationKind) Annotation {
	switch kind {
	case KindAutoCreateTime:
		return AutoCreateTime{}
	case KindAutoUpdateTime:
		return AutoUpdateTime{}
	case KindAutoIncrement:
		return AutoIncrement{}
	case KindPrimaryKey:
		return PrimaryKey{}
	case KindUnique:
		return Unique{}
	default:
		return NotNull{}
	}
}

// parseDefaultValue decodes a default value, preferring int64 for whole
// JSON numbers and float64 otherwise.
func parseDefaultValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch tv := v.(type) {
	case string:
		return tv, nil
	case bool:
		return tv, nil
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i, nil
		}
		f, err := tv.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, sterr.New(sterr.ErrParseWrongType, "default value must be a scalar")
	}
}

// MarshalModels serializes a model set into the intermediate JSON wire format.
func MarshalModels(set *ModelSet) ([]byte, error) {
	version := set.FormatVersion
	if version == 0 {
		version = CurrentFormatVersion
	}
	raw := jsonModelSet{FormatVersion: &version}

	for _, m := range set.Models {
		rm := jsonModel{Name: m.Name, SourceDefinedAt: m.SourceDefinedAt}
		for _, f := range m.Fields {
			rf := jsonField{
				Name:            f.Name,
				Type:            string(f.Type),
				SourceDefinedAt: f.SourceDefinedAt,
			}
			for _, a := range f.Annotations {
				ra, err := marshalJSONAnnotation(a)
				if err != nil {
					return nil, err
				}
				rf.Annotations = append(rf.Annotations, ra)
			}
			rm.Fields = append(rm.Fields, rf)
		}
		raw.Models = append(raw.Models, rm)
	}

	return json.MarshalIndent(raw, "", "  ")
}

// marshalJSONAnnotation converts one annotation into its wire type + value pair.
func marshalJSONAnnotation(a Annotation) (jsonAnnotation, error) {
	out := jsonAnnotation{Type: a.Kind().String()}

	var payload any
	switch v := a.(type) {
	case AutoCreateTime, AutoUpdateTime, AutoIncrement, PrimaryKey, Unique, NotNull:
		return out, nil
	case MaxLength:
		payload = v.Value
	case DefaultValue:
		payload = v.Value
	case ChoicesValues:
		payload = v.Values
	case Index:
		if v.Composite == nil {
			return out, nil
		}
		payload = jsonIndexValue{Name: v.Composite.Name, Priority: v.Composite.Priority}
	case ForeignKey:
		payload = jsonForeignKeyValue{TableName: v.TableName, ColumnName: v.ColumnName}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return jsonAnnotation{}, sterr.Wrap(sterr.ErrParseFile, err, "failed to encode annotation value")
	}
	out.Value = data
	return out, nil
}

// WriteModels writes the model set to path in the intermediate JSON format.
func WriteModels(path string, set *ModelSet) error {
	data, err := MarshalModels(set)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return sterr.Wrap(sterr.ErrParseFile, err, "failed to write models file").
			WithFile(path)
	}
	return nil
}
