// Package engine implements the diff core: replaying migration history into
// a schema state, diffing that state against the current models, and
// squashing contiguous migration runs. Everything here is a pure computation
// over in-memory values; the engine never touches the filesystem.
package engine

import (
	"sort"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// Table is one table's replayed state. Field order is preserved because it
// is semantically load-bearing (DDL column order, composite index order).
type Table struct {
	Name   string
	Fields []imr.Field
}

// GetField returns the field with the given name, or nil.
func (t *Table) GetField(name string) *imr.Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// Schema is the replayed state of a migration chain: a mapping from table
// name to ordered column list.
type Schema struct {
	Tables map[string]*Table
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{Tables: make(map[string]*Table)}
}

// TableNames returns the table names in sorted order.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemaFromModels builds the target schema state from the current models.
func SchemaFromModels(models []imr.ModelFormat) *Schema {
	schema := NewSchema()
	for _, m := range models {
		fields := make([]imr.Field, len(m.Fields))
		copy(fields, m.Fields)
		schema.Tables[m.Name] = &Table{Name: m.Name, Fields: fields}
	}
	return schema
}

// Replay folds a sequence of migrations onto an empty schema, producing the
// last known schema state. No single migration carries the full schema, only
// the delta from its dependency, so replay is the only way to reconstruct it.
func Replay(migrations []*migration.Migration) (*Schema, error) {
	schema := NewSchema()
	for _, m := range migrations {
		for _, op := range m.Operations {
			if err := schema.apply(op, m.ID); err != nil {
				return nil, err
			}
		}
	}
	return schema, nil
}

// apply folds one operation into the schema. A failure here means the chain
// is internally inconsistent; the loader cannot catch these because they
// depend on the accumulated state, not on any single file.
func (s *Schema) apply(op migration.Operation, migrationID string) error {
	switch o := op.(type) {
	case *migration.CreateModel:
		if _, exists := s.Tables[o.Name]; exists {
			return sterr.Newf(sterr.ErrBrokenChain, "migration %q creates table %q which already exists", migrationID, o.Name).
				WithModel(o.Name)
		}
		fields := make([]imr.Field, len(o.Fields))
		copy(fields, o.Fields)
		s.Tables[o.Name] = &Table{Name: o.Name, Fields: fields}
		return nil

	case *migration.DeleteModel:
		if _, exists := s.Tables[o.Name]; !exists {
			return s.tableNotFound(migrationID, o.Name)
		}
		delete(s.Tables, o.Name)
		return nil

	case *migration.RenameModel:
		table, exists := s.Tables[o.Old]
		if !exists {
			return s.tableNotFound(migrationID, o.Old)
		}
		if _, exists := s.Tables[o.New]; exists {
			return sterr.Newf(sterr.ErrBrokenChain, "migration %q renames table %q to %q which already exists", migrationID, o.Old, o.New).
				WithModel(o.New)
		}
		table.Name = o.New
		delete(s.Tables, o.Old)
		s.Tables[o.New] = table
		return nil

	case *migration.AddField:
		table, exists := s.Tables[o.ModelName]
		if !exists {
			return s.tableNotFound(migrationID, o.ModelName)
		}
		if table.GetField(o.Field.Name) != nil {
			return sterr.Newf(sterr.ErrBrokenChain, "migration %q adds column %q which already exists", migrationID, o.Field.Name).
				WithModel(o.ModelName).
				WithField(o.Field.Name)
		}
		table.Fields = append(table.Fields, o.Field)
		return nil

	case *migration.DeleteField:
		table, exists := s.Tables[o.ModelName]
		if !exists {
			return s.tableNotFound(migrationID, o.ModelName)
		}
		for i := range table.Fields {
			if table.Fields[i].Name == o.Name {
				table.Fields = append(table.Fields[:i], table.Fields[i+1:]...)
				return nil
			}
		}
		return s.fieldNotFound(migrationID, table, o.Name)

	case *migration.RenameField:
		table, exists := s.Tables[o.ModelName]
		if !exists {
			return s.tableNotFound(migrationID, o.ModelName)
		}
		if table.GetField(o.New) != nil {
			return sterr.Newf(sterr.ErrBrokenChain, "migration %q renames column %q to %q which already exists", migrationID, o.Old, o.New).
				WithModel(o.ModelName).
				WithField(o.New)
		}
		field := table.GetField(o.Old)
		if field == nil {
			return s.fieldNotFound(migrationID, table, o.Old)
		}
		field.Name = o.New
		return nil
	}

	return sterr.Newf(sterr.ErrUnknownOperation, "unknown operation type %q", op.Type())
}

// tableNotFound builds a replay error with a fuzzy suggestion.
func (s *Schema) tableNotFound(migrationID, name string) error {
	err := sterr.Newf(sterr.ErrBrokenChain, "migration %q references table %q which does not exist", migrationID, name).
		WithModel(name)
	if suggestion := sterr.SuggestSimilar(name, s.TableNames()); suggestion != "" {
		err = err.WithHelp(suggestion)
	}
	return err
}

// fieldNotFound builds a replay error with a fuzzy suggestion.
func (s *Schema) fieldNotFound(migrationID string, table *Table, name string) error {
	err := sterr.Newf(sterr.ErrBrokenChain, "migration %q references column %q which does not exist", migrationID, name).
		WithModel(table.Name).
		WithField(name)
	names := make([]string, 0, len(table.Fields))
	for _, f := range table.Fields {
		names = append(names, f.Name)
	}
	if suggestion := sterr.SuggestSimilar(name, names); suggestion != "" {
		err = err.WithHelp(suggestion)
	}
	return err
}
