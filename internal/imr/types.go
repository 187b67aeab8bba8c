// Package imr defines the intermediate model representation: the
// language-agnostic description of tables, columns, and annotations that the
// migration engine diffs against. It is produced by a source extractor (or by
// hand-written registration) and persisted as a versioned JSON file so the
// engine can run independently of any source language.
package imr

import (
	"regexp"

	"github.com/stratumdb/stratum/internal/sterr"
)

// DBType is the portable, driver-agnostic column type enumeration.
// Concrete SQL type mapping is the executor dialect's responsibility.
type DBType string

// All column types supported by the migration engine.
const (
	VarChar   DBType = "varchar"
	VarBinary DBType = "varbinary"
	Int8      DBType = "int8"
	Int16     DBType = "int16"
	Int32     DBType = "int32"
	Int64     DBType = "int64"
	UInt8     DBType = "uint8"
	UInt16    DBType = "uint16"
	UInt32    DBType = "uint32"
	UInt64    DBType = "uint64"
	Float     DBType = "float_number"
	Double    DBType = "double_number"
	Boolean   DBType = "boolean"
	Date      DBType = "date"
	DateTime  DBType = "datetime"
	Time      DBType = "time"
	Timestamp DBType = "timestamp"
	Choices   DBType = "choices"
	Set       DBType = "set"
)

// dbTypes is the closed set of valid type strings.
var dbTypes = map[DBType]bool{
	VarChar: true, VarBinary: true,
	Int8: true, Int16: true, Int32: true, Int64: true,
	UInt8: true, UInt16: true, UInt32: true, UInt64: true,
	Float: true, Double: true, Boolean: true,
	Date: true, DateTime: true, Time: true, Timestamp: true,
	Choices: true, Set: true,
}

// Valid reports whether t is a member of the closed DBType enumeration.
func (t DBType) Valid() bool {
	return dbTypes[t]
}

// Temporal reports whether t is a date/time type, the only types
// auto_create_time and auto_update_time may be attached to.
func (t DBType) Temporal() bool {
	switch t {
	case Date, DateTime, Time, Timestamp:
		return true
	}
	return false
}

// Source records where a model or field was declared, for diagnostics only.
// It is never load-bearing for diffing.
type Source struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// ModelFormat describes one logical table.
type ModelFormat struct {
	// Name is the snake_case table identifier, unique within a model set.
	Name string `json:"name"`

	// SourceDefinedAt is optional provenance for diagnostics.
	SourceDefinedAt *Source `json:"source_defined_at,omitempty"`

	// Fields in declaration order. Order matters: it affects composite index
	// ordering and DDL column order.
	Fields []Field `json:"fields"`
}

// Field describes one column.
type Field struct {
	// Name is the actual database column name.
	Name string `json:"name"`

	// SourceColumn is the originating source-language identifier. Diagnostics
	// only; absent from all serialized formats.
	SourceColumn string `json:"-"`

	// Type is the portable column type.
	Type DBType `json:"type"`

	// Annotations is semantically a set, serialized as an ordered list.
	Annotations []Annotation `json:"annotations"`

	// SourceDefinedAt is optional provenance for diagnostics.
	SourceDefinedAt *Source `json:"source_defined_at,omitempty"`
}

// ModelSet is the root of the intermediate JSON file.
type ModelSet struct {
	// FormatVersion is the explicit wire schema version. Only CurrentFormatVersion
	// is accepted; there is deliberately no silent dual-format parsing.
	FormatVersion int `json:"format_version"`

	Models []ModelFormat `json:"models"`
}

// CurrentFormatVersion is the only intermediate JSON schema this engine reads
// and writes.
const CurrentFormatVersion = 1

// validNamePattern matches snake_case identifiers starting with a letter.
var validNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidName reports whether name is a valid snake_case identifier.
func ValidName(name string) bool {
	return validNamePattern.MatchString(name)
}

// GetField returns the field with the given name, or nil if not found.
func (m *ModelFormat) GetField(name string) *Field {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// HasField reports whether the model has a field with the given name.
func (m *ModelFormat) HasField(name string) bool {
	return m.GetField(name) != nil
}

// PrimaryKey returns the primary key field, or nil if none.
func (m *ModelFormat) PrimaryKey() *Field {
	for i := range m.Fields {
		if m.Fields[i].Has(KindPrimaryKey) {
			return &m.Fields[i]
		}
	}
	return nil
}

// Has reports whether the field carries an annotation of the given kind.
func (f *Field) Has(kind AnnotationKind) bool {
	for _, a := range f.Annotations {
		if a.Kind() == kind {
			return true
		}
	}
	return false
}

// Get returns the first annotation of the given kind, or nil.
func (f *Field) Get(kind AnnotationKind) Annotation {
	for _, a := range f.Annotations {
		if a.Kind() == kind {
			return a
		}
	}
	return nil
}

// Nullable reports whether the column admits NULL. Nullability is a
// first-class boolean derived from the absence of not_null and primary_key
// (primary key implies not-null), never re-derived from the source type.
func (f *Field) Nullable() bool {
	return !f.Has(KindNotNull) && !f.Has(KindPrimaryKey)
}

// ForeignKey returns the field's foreign key annotation, or nil.
func (f *Field) ForeignKey() *ForeignKey {
	if a := f.Get(KindForeignKey); a != nil {
		fk := a.(ForeignKey)
		return &fk
	}
	return nil
}

// Equal reports whether two fields have the same name, type, and annotation
// set. Annotation comparison is order-independent.
func (f *Field) Equal(other *Field) bool {
	if f.Name != other.Name || f.Type != other.Type {
		return false
	}
	return AnnotationsEqual(f.Annotations, other.Annotations)
}

// ModelByName returns the model with the given name from the set, or nil.
func (s *ModelSet) ModelByName(name string) *ModelFormat {
	for i := range s.Models {
		if s.Models[i].Name == name {
			return &s.Models[i]
		}
	}
	return nil
}

// Validate checks structural well-formedness of the set: valid version and
// non-empty model and field names with known types. Semantic rules (annotation
// compatibility, primary keys, FK targets) live in the lint package.
func (s *ModelSet) Validate() error {
	if s.FormatVersion != CurrentFormatVersion {
		return sterr.Newf(sterr.ErrUnknownVersion,
			"unsupported model format version %d (want %d)",
			s.FormatVersion, CurrentFormatVersion)
	}
	for _, m := range s.Models {
		if m.Name == "" {
			return sterr.New(sterr.ErrParseMissingKey, "model is missing a name").
				WithKey("name")
		}
		for _, f := range m.Fields {
			if f.Name == "" {
				return sterr.New(sterr.ErrParseMissingKey, "field is missing a name").
					WithModel(m.Name).
					WithKey("name")
			}
			if !f.Type.Valid() {
				return sterr.Newf(sterr.ErrParseWrongType, "unknown column type %q", f.Type).
					WithModel(m.Name).
					WithField(f.Name)
			}
		}
	}
	return nil
}
