package imr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AnnotationKind identifies one member of the closed annotation set.
type AnnotationKind int

// The closed set of annotation kinds. The set is closed by design: the file
// format and the DB-type enumeration are the compatibility contract, so new
// kinds are breaking changes, not extension points.
const (
	KindAutoCreateTime AnnotationKind = iota
	KindAutoUpdateTime
	KindAutoIncrement
	KindPrimaryKey
	KindUnique
	KindNotNull
	KindMaxLength
	KindDefaultValue
	KindChoices
	KindIndex
	KindForeignKey
)

// kindNames maps kinds to their snake_case wire names (intermediate JSON).
var kindNames = map[AnnotationKind]string{
	KindAutoCreateTime: "auto_create_time",
	KindAutoUpdateTime: "auto_update_time",
	KindAutoIncrement:  "auto_increment",
	KindPrimaryKey:     "primary_key",
	KindUnique:         "unique",
	KindNotNull:        "not_null",
	KindMaxLength:      "max_length",
	KindDefaultValue:   "default_value",
	KindChoices:        "choices",
	KindIndex:          "index",
	KindForeignKey:     "foreign_key",
}

// String returns the snake_case name of the kind.
func (k AnnotationKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("annotation(%d)", int(k))
}

// KindFromName resolves a snake_case wire name back to its kind.
func KindFromName(name string) (AnnotationKind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Annotation is one member of a field's annotation set. The implementing set
// is sealed: exactly the eleven types below, dispatched exhaustively by Kind.
type Annotation interface {
	// Kind returns the annotation's discriminator.
	Kind() AnnotationKind

	// canonical returns a stable string encoding of kind plus payload, used
	// for order-independent set comparison and canonical hashing.
	canonical() string

	// sealed prevents implementations outside this package.
	sealed()
}

// -----------------------------------------------------------------------------
// Flag annotations (no payload)
// -----------------------------------------------------------------------------

// AutoCreateTime sets the column to the database's current time on insert.
// Valid only on temporal types.
type AutoCreateTime struct{}

// AutoUpdateTime sets the column to the database's current time on update.
// Valid only on temporal types.
type AutoUpdateTime struct{}

// AutoIncrement marks an AUTO_INCREMENT column. Requires PrimaryKey.
type AutoIncrement struct{}

// PrimaryKey marks the model's primary key. Exactly one per model.
type PrimaryKey struct{}

// Unique marks a UNIQUE constraint.
type Unique struct{}

// NotNull marks a NOT NULL constraint. Redundant (and rejected) on primary
// keys, which are implicitly not-null.
type NotNull struct{}

func (AutoCreateTime) Kind() AnnotationKind { return KindAutoCreateTime }
func (AutoUpdateTime) Kind() AnnotationKind { return KindAutoUpdateTime }
func (AutoIncrement) Kind() AnnotationKind  { return KindAutoIncrement }
func (PrimaryKey) Kind() AnnotationKind     { return KindPrimaryKey }
func (Unique) Kind() AnnotationKind         { return KindUnique }
func (NotNull) Kind() AnnotationKind        { return KindNotNull }

func (AutoCreateTime) canonical() string { return "auto_create_time" }
func (AutoUpdateTime) canonical() string { return "auto_update_time" }
func (AutoIncrement) canonical() string  { return "auto_increment" }
func (PrimaryKey) canonical() string     { return "primary_key" }
func (Unique) canonical() string         { return "unique" }
func (NotNull) canonical() string        { return "not_null" }

func (AutoCreateTime) sealed() {}
func (AutoUpdateTime) sealed() {}
func (AutoIncrement) sealed()  {}
func (PrimaryKey) sealed()     {}
func (Unique) sealed()         {}
func (NotNull) sealed()        {}

// -----------------------------------------------------------------------------
// Value annotations
// -----------------------------------------------------------------------------

// MaxLength bounds a varchar column. Required, and only valid, on varchar.
type MaxLength struct {
	Value int64
}

func (MaxLength) Kind() AnnotationKind { return KindMaxLength }
func (a MaxLength) canonical() string  { return "max_length:" + strconv.FormatInt(a.Value, 10) }
func (MaxLength) sealed()              {}

// DefaultValue is a DEFAULT constraint. Value is one of string, int64,
// float64, or bool; temporal defaults are carried as their string literal.
type DefaultValue struct {
	Value any
}

func (DefaultValue) Kind() AnnotationKind { return KindDefaultValue }

func (a DefaultValue) canonical() string {
	switch v := a.Value.(type) {
	case string:
		return "default_value:s:" + v
	case int64:
		return "default_value:i:" + strconv.FormatInt(v, 10)
	case float64:
		return "default_value:f:" + strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return "default_value:b:" + strconv.FormatBool(v)
	default:
		return fmt.Sprintf("default_value:?:%v", v)
	}
}

func (DefaultValue) sealed() {}

// ValidValue reports whether the default's payload is one of the supported
// value types.
func (a DefaultValue) ValidValue() bool {
	switch a.Value.(type) {
	case string, int64, float64, bool:
		return true
	}
	return false
}

// ChoicesValues lists the admissible values of a choices column. Required,
// and only valid, on the choices type.
type ChoicesValues struct {
	Values []string
}

func (ChoicesValues) Kind() AnnotationKind { return KindChoices }
func (a ChoicesValues) canonical() string  { return "choices:" + strings.Join(a.Values, ",") }
func (ChoicesValues) sealed()              {}

// IndexComposite names a multi-column index group. Fields sharing a Name on
// the same model form one index ordered by Priority ascending, ties broken by
// field declaration order.
type IndexComposite struct {
	Name     string
	Priority int64
}

// Index requests an index on the column. A nil Composite is a plain
// single-column index.
type Index struct {
	Composite *IndexComposite
}

func (Index) Kind() AnnotationKind { return KindIndex }

func (a Index) canonical() string {
	if a.Composite == nil {
		return "index"
	}
	return "index:" + a.Composite.Name + ":" + strconv.FormatInt(a.Composite.Priority, 10)
}

func (Index) sealed() {}

// ForeignKey references (table, column). Not inheritable by composite
// embedding; mutually exclusive with unique and choices on the same field.
type ForeignKey struct {
	TableName  string
	ColumnName string
}

func (ForeignKey) Kind() AnnotationKind { return KindForeignKey }
func (a ForeignKey) canonical() string  { return "foreign_key:" + a.TableName + ":" + a.ColumnName }
func (ForeignKey) sealed()              {}

// -----------------------------------------------------------------------------
// Set operations
// -----------------------------------------------------------------------------

// canonicalKeys returns the sorted canonical encodings of an annotation list.
func canonicalKeys(annotations []Annotation) []string {
	keys := make([]string, len(annotations))
	for i, a := range annotations {
		keys[i] = a.canonical()
	}
	sort.Strings(keys)
	return keys
}

// AnnotationsEqual reports whether two annotation lists describe the same set,
// independent of order.
func AnnotationsEqual(a, b []Annotation) bool {
	if len(a) != len(b) {
		return false
	}
	ka, kb := canonicalKeys(a), canonicalKeys(b)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

// SortAnnotations returns a copy of the list in canonical order. Used by the
// hash so that two runs against unchanged models hash identically regardless
// of extractor ordering.
func SortAnnotations(annotations []Annotation) []Annotation {
	sorted := make([]Annotation, len(annotations))
	copy(sorted, annotations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].canonical() < sorted[j].canonical()
	})
	return sorted
}
