// Package migration defines the migration value type, the closed set of
// schema operations, and the TOML file codec. A migration file carries only
// the delta from its dependency, never the full schema.
package migration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/sterr"
)

// Migration is one versioned, ordered set of schema operations plus chain
// metadata. Exactly one migration in a valid history is Initial with an empty
// Dependency.
type Migration struct {
	// ID is derived from the filename (NNNN_slug), never from the file body.
	ID string

	// Hash is the content hash of the IR state that produced this migration.
	// Used only to short-circuit regeneration, never for diffing correctness.
	Hash string

	// Initial marks the root of the chain.
	Initial bool

	// Dependency is the ID of the migration this one builds on; empty only
	// when Initial.
	Dependency string

	// Replaces lists the IDs of migrations subsumed by a squash, in order.
	Replaces []string

	// Operations are executed strictly in order.
	Operations []Operation
}

// IsEmpty reports whether the migration carries no operations. The diff
// engine returns an empty migration as its "nothing to do" sentinel; callers
// treat it as success and never write it to disk.
func (m *Migration) IsEmpty() bool {
	return len(m.Operations) == 0
}

// Sequence returns the numeric filename prefix of the migration's ID, or 0
// if the ID is not in NNNN_slug form.
func (m *Migration) Sequence() int {
	seq, _, err := SplitID(m.ID)
	if err != nil {
		return 0
	}
	return seq
}

// OpType discriminates the closed operation set. The string values are the
// wire contract of the migration file format.
type OpType string

const (
	OpCreateModel OpType = "CreateModel"
	OpDeleteModel OpType = "DeleteModel"
	OpRenameModel OpType = "RenameModel"
	OpAddField    OpType = "AddField"
	OpDeleteField OpType = "DeleteField"
	OpRenameField OpType = "RenameField"
)

// Operation is a single atomic schema change. The implementing set is sealed:
// exactly the six types below. The operation set is closed by design; the
// file format is the compatibility contract.
type Operation interface {
	// Type returns the operation discriminator.
	Type() OpType

	// Model returns the table the operation targets (the old name for
	// renames).
	Model() string

	// Validate checks that the operation is well-formed.
	Validate() error

	// sealed prevents implementations outside this package.
	sealed()
}

// -----------------------------------------------------------------------------
// CreateModel - creates a new table with its full field list
// -----------------------------------------------------------------------------

// CreateModel creates a table with all fields in declaration order.
type CreateModel struct {
	Name   string
	Fields []imr.Field
}

func (op *CreateModel) Type() OpType  { return OpCreateModel }
func (op *CreateModel) Model() string { return op.Name }
func (op *CreateModel) sealed()       {}

func (op *CreateModel) Validate() error {
	if op.Name == "" {
		return sterr.New(sterr.ErrParseMissingKey, "create model requires a name").
			WithKey("Name")
	}
	if len(op.Fields) == 0 {
		return sterr.New(sterr.ErrParseMissingKey, "create model requires at least one field").
			WithModel(op.Name)
	}
	for _, f := range op.Fields {
		if f.Name == "" {
			return sterr.New(sterr.ErrParseMissingKey, "field requires a name").
				WithModel(op.Name).
				WithKey("Name")
		}
		if !f.Type.Valid() {
			return sterr.Newf(sterr.ErrParseWrongType, "unknown column type %q", f.Type).
				WithModel(op.Name).
				WithField(f.Name)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// DeleteModel - removes an existing table
// -----------------------------------------------------------------------------

// DeleteModel drops a table.
type DeleteModel struct {
	Name string
}

func (op *DeleteModel) Type() OpType  { return OpDeleteModel }
func (op *DeleteModel) Model() string { return op.Name }
func (op *DeleteModel) sealed()       {}

func (op *DeleteModel) Validate() error {
	if op.Name == "" {
		return sterr.New(sterr.ErrParseMissingKey, "delete model requires a name").
			WithKey("Name")
	}
	return nil
}

// -----------------------------------------------------------------------------
// RenameModel - renames an existing table
// -----------------------------------------------------------------------------

// RenameModel renames a table. The diff engine never emits this on its own;
// it exists for operators hand-editing a generated delete+create pair.
type RenameModel struct {
	Old string
	New string
}

func (op *RenameModel) Type() OpType  { return OpRenameModel }
func (op *RenameModel) Model() string { return op.Old }
func (op *RenameModel) sealed()       {}

func (op *RenameModel) Validate() error {
	if op.Old == "" {
		return sterr.New(sterr.ErrParseMissingKey, "rename model requires an old name").
			WithKey("Old")
	}
	if op.New == "" {
		return sterr.New(sterr.ErrParseMissingKey, "rename model requires a new name").
			WithKey("New")
	}
	if op.Old == op.New {
		return sterr.New(sterr.ErrParseWrongType, "old and new model names must differ").
			WithModel(op.Old)
	}
	return nil
}

// -----------------------------------------------------------------------------
// AddField - adds a column to an existing table
// -----------------------------------------------------------------------------

// AddField adds a column to an existing table.
type AddField struct {
	ModelName string
	Field     imr.Field
}

func (op *AddField) Type() OpType  { return OpAddField }
func (op *AddField) Model() string { return op.ModelName }
func (op *AddField) sealed()       {}

func (op *AddField) Validate() error {
	if op.ModelName == "" {
		return sterr.New(sterr.ErrParseMissingKey, "add field requires a model name").
			WithKey("Name")
	}
	if op.Field.Name == "" {
		return sterr.New(sterr.ErrParseMissingKey, "add field requires a field name").
			WithModel(op.ModelName).
			WithKey("Name")
	}
	if !op.Field.Type.Valid() {
		return sterr.Newf(sterr.ErrParseWrongType, "unknown column type %q", op.Field.Type).
			WithModel(op.ModelName).
			WithField(op.Field.Name)
	}
	return nil
}

// -----------------------------------------------------------------------------
// DeleteField - removes a column from an existing table
// -----------------------------------------------------------------------------

// DeleteField drops a column.
type DeleteField struct {
	ModelName string
	Name      string
}

func (op *DeleteField) Type() OpType  { return OpDeleteField }
func (op *DeleteField) Model() string { return op.ModelName }
func (op *DeleteField) sealed()       {}

func (op *DeleteField) Validate() error {
	if op.ModelName == "" {
		return sterr.New(sterr.ErrParseMissingKey, "delete field requires a model name").
			WithKey("TableName")
	}
	if op.Name == "" {
		return sterr.New(sterr.ErrParseMissingKey, "delete field requires a field name").
			WithModel(op.ModelName).
			WithKey("Name")
	}
	return nil
}

// -----------------------------------------------------------------------------
// RenameField - renames a column
// -----------------------------------------------------------------------------

// RenameField renames a column in an existing table.
type RenameField struct {
	ModelName string
	Old       string
	New       string
}

func (op *RenameField) Type() OpType  { return OpRenameField }
func (op *RenameField) Model() string { return op.ModelName }
func (op *RenameField) sealed()       {}

func (op *RenameField) Validate() error {
	if op.ModelName == "" {
		return sterr.New(sterr.ErrParseMissingKey, "rename field requires a model name").
			WithKey("TableName")
	}
	if op.Old == "" {
		return sterr.New(sterr.ErrParseMissingKey, "rename field requires an old name").
			WithModel(op.ModelName).
			WithKey("Old")
	}
	if op.New == "" {
		return sterr.New(sterr.ErrParseMissingKey, "rename field requires a new name").
			WithModel(op.ModelName).
			WithKey("New")
	}
	if op.Old == op.New {
		return sterr.New(sterr.ErrParseWrongType, "old and new field names must differ").
			WithModel(op.ModelName).
			WithField(op.Old)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Filename handling
// -----------------------------------------------------------------------------

// FilenamePattern matches valid migration filenames: a 4-digit zero-padded
// sequence, an underscore, a snake_case slug, and the .toml extension.
var FilenamePattern = regexp.MustCompile(`^([0-9]{4})_([a-z0-9_]+)\.toml$`)

// ParseFilename extracts the migration ID (the filename stem) from a
// migration filename. Returns false if the name does not match the pattern.
func ParseFilename(filename string) (id string, ok bool) {
	if !FilenamePattern.MatchString(filename) {
		return "", false
	}
	return strings.TrimSuffix(filename, ".toml"), true
}

// SplitID splits a migration ID into its numeric sequence and slug.
func SplitID(id string) (seq int, slug string, err error) {
	idx := strings.Index(id, "_")
	if idx != 4 {
		return 0, "", sterr.Newf(sterr.ErrParseFile, "malformed migration id %q", id)
	}
	seq, convErr := strconv.Atoi(id[:4])
	if convErr != nil {
		return 0, "", sterr.Wrapf(sterr.ErrParseFile, convErr, "malformed migration id %q", id)
	}
	return seq, id[5:], nil
}

// FormatID builds a migration ID from a sequence number and slug.
func FormatID(seq int, slug string) string {
	return fmt.Sprintf("%04d_%s", seq, slug)
}

// Filename returns the on-disk name for a migration ID.
func Filename(id string) string {
	return id + ".toml"
}
