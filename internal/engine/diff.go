package engine

import (
	"github.com/stratumdb/stratum/internal/history"
	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/migration"
	"github.com/stratumdb/stratum/internal/sterr"
)

// Diff computes the migration that transforms the replayed history state
// into the current models. The returned migration carries no ID; the caller
// assigns one from the next free filename sequence. A migration with zero
// operations means nothing changed; callers treat it as success and never
// write it to disk.
//
// Renames are not auto-detected. A renamed table or column comes out as a
// delete plus a create; heuristic rename matching from name similarity is a
// known source of silent data loss and is deliberately absent.
func Diff(models []imr.ModelFormat, hist *history.History) (*migration.Migration, error) {
	active := hist.Active()
	old, err := Replay(active)
	if err != nil {
		return nil, err
	}

	ops, err := diffSchemas(old, SchemaFromModels(models))
	if err != nil {
		return nil, err
	}

	m := &migration.Migration{
		Hash:       imr.CanonicalHash(models),
		Initial:    len(active) == 0,
		Operations: ops,
	}
	if head := hist.Head(); head != nil {
		m.Dependency = head.ID
	}
	return m, nil
}

// diffSchemas emits the operations turning old into new. Ordering is fixed:
// model deletes first, then model creates, both sorted by table name
// ascending, then per-table field operations for tables present in both,
// again sorted by table name. Deletes always precede adds so that a table
// or column recreated under the same name never collides with its old self
// mid-migration.
func diffSchemas(old, new *Schema) ([]migration.Operation, error) {
	var ops []migration.Operation

	var deleted, created, common []string
	for _, name := range old.TableNames() {
		if _, exists := new.Tables[name]; exists {
			common = append(common, name)
		} else {
			deleted = append(deleted, name)
		}
	}
	for _, name := range new.TableNames() {
		if _, exists := old.Tables[name]; !exists {
			created = append(created, name)
		}
	}
	// TableNames is sorted, so deleted, created, and common already are.

	for _, name := range deleted {
		ops = append(ops, &migration.DeleteModel{Name: name})
	}
	for _, name := range created {
		fields := make([]imr.Field, len(new.Tables[name].Fields))
		copy(fields, new.Tables[name].Fields)
		ops = append(ops, &migration.CreateModel{Name: name, Fields: fields})
	}

	for _, name := range common {
		fieldOps, err := diffFields(old, old.Tables[name], new.Tables[name])
		if err != nil {
			return nil, err
		}
		ops = append(ops, fieldOps...)
	}

	return ops, nil
}

// diffFields emits the per-table field operations: deletes in the old column
// order, then adds in the new declaration order. A field with the same name
// but a different type or annotation set becomes a delete plus an add; an
// in-place alter is not attempted because SQL dialects disagree enough on
// safe type coercion that drop and recreate is the only behavior guaranteed
// correct across backends.
func diffFields(old *Schema, oldTable, newTable *Table) ([]migration.Operation, error) {
	var deletes, adds []migration.Operation

	for _, oldField := range oldTable.Fields {
		newField := newTable.GetField(oldField.Name)
		if newField == nil {
			deletes = append(deletes, &migration.DeleteField{
				ModelName: oldTable.Name,
				Name:      oldField.Name,
			})
			continue
		}
		if oldField.Equal(newField) {
			continue
		}
		if err := checkFieldTransition(old, oldTable, &oldField, newField); err != nil {
			return nil, err
		}
		deletes = append(deletes, &migration.DeleteField{
			ModelName: oldTable.Name,
			Name:      oldField.Name,
		})
		adds = append(adds, &migration.AddField{
			ModelName: oldTable.Name,
			Field:     *newField,
		})
	}

	for _, newField := range newTable.Fields {
		if oldTable.GetField(newField.Name) == nil {
			adds = append(adds, &migration.AddField{
				ModelName: newTable.Name,
				Field:     newField,
			})
		}
	}

	return append(deletes, adds...), nil
}

// checkFieldTransition rejects a changed field whose primary-key status
// flips while foreign keys elsewhere still point at it. Dropping and
// recreating such a column would orphan every referencing constraint, so the
// transition requires a hand-written migration instead.
func checkFieldTransition(old *Schema, table *Table, oldField, newField *imr.Field) error {
	oldPK := oldField.Has(imr.KindPrimaryKey)
	newPK := newField.Has(imr.KindPrimaryKey)
	if oldPK == newPK {
		return nil
	}

	for _, refTable := range old.Tables {
		for _, refField := range refTable.Fields {
			fk := refField.ForeignKey()
			if fk == nil {
				continue
			}
			if fk.TableName == table.Name && fk.ColumnName == oldField.Name {
				return sterr.New(sterr.ErrInvalidFieldTransition,
					"changing the primary-key status of a referenced column would orphan its foreign keys").
					WithModel(table.Name).
					WithField(oldField.Name).
					With("referenced_by", refTable.Name+"."+refField.Name).
					WithHelp("write the transition by hand: migrate the referencing columns first, then change the key")
			}
		}
	}
	return nil
}
