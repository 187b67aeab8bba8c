// Package lint validates a model set before it is handed to the diff engine.
// Lint is a pure function: it returns every violation it finds and never
// aborts; the caller decides whether lint errors are fatal.
package lint

import (
	"strings"

	"github.com/stratumdb/stratum/internal/imr"
	"github.com/stratumdb/stratum/internal/sterr"
)

// Models checks a model set for internal inconsistencies: naming rules,
// primary key cardinality, annotation compatibility, and foreign key target
// existence. The returned list is empty for a valid set.
func Models(models []imr.ModelFormat) []*sterr.Error {
	var errs []*sterr.Error

	seenModels := make(map[string]bool)
	for i := range models {
		model := &models[i]

		if seenModels[model.Name] {
			errs = append(errs, sterr.New(sterr.ErrLintDuplicate, "duplicate model name").
				WithModel(model.Name))
		}
		seenModels[model.Name] = true

		errs = append(errs, checkModel(model, models)...)
	}

	return errs
}

// checkModel validates a single model and its fields.
func checkModel(model *imr.ModelFormat, all []imr.ModelFormat) []*sterr.Error {
	var errs []*sterr.Error

	if err := checkName(model.Name, "model"); err != nil {
		err.WithModel(model.Name)
		if model.SourceDefinedAt != nil {
			err.WithLocation(model.SourceDefinedAt.File, model.SourceDefinedAt.Line, model.SourceDefinedAt.Column)
		}
		errs = append(errs, err)
	}

	primaryKeys := 0
	autoIncrements := 0
	seenFields := make(map[string]bool)

	for i := range model.Fields {
		field := &model.Fields[i]

		if seenFields[field.Name] {
			errs = append(errs, sterr.New(sterr.ErrLintDuplicate, "duplicate field name").
				WithModel(model.Name).
				WithField(field.Name))
		}
		seenFields[field.Name] = true

		if err := checkName(field.Name, "field"); err != nil {
			errs = append(errs, err.WithModel(model.Name).WithField(field.Name))
		}

		if field.Has(imr.KindPrimaryKey) {
			primaryKeys++
		}
		if field.Has(imr.KindAutoIncrement) {
			autoIncrements++
		}

		errs = append(errs, checkField(model, field, all)...)
	}

	if primaryKeys == 0 {
		errs = append(errs, sterr.New(sterr.ErrLintPrimaryKey, "model has no primary key").
			WithModel(model.Name))
	} else if primaryKeys > 1 {
		errs = append(errs, sterr.Newf(sterr.ErrLintPrimaryKey,
			"model has %d primary keys; exactly one is allowed", primaryKeys).
			WithModel(model.Name))
	}

	if autoIncrements > 1 {
		errs = append(errs, sterr.Newf(sterr.ErrLintAnnotation,
			"model has %d auto_increment fields; at most one is allowed", autoIncrements).
			WithModel(model.Name))
	}

	return errs
}

// checkName validates a snake_case identifier plus the reserved-name rules.
func checkName(name, what string) *sterr.Error {
	if name == "" {
		return sterr.Newf(sterr.ErrLintName, "%s name must not be empty", what)
	}
	if !imr.ValidName(name) {
		return sterr.Newf(sterr.ErrLintName,
			"%s name %q must be snake_case matching [a-z][a-z0-9_]*", what, name)
	}
	if strings.HasSuffix(name, "_") {
		return sterr.Newf(sterr.ErrLintName, "%s name %q must not end with '_'", what, name)
	}
	// Reserved by sqlite for internal tables.
	if what == "model" && strings.HasPrefix(name, "sqlite_") {
		return sterr.Newf(sterr.ErrLintName, "%s name %q must not start with 'sqlite_'", what, name)
	}
	return nil
}

// annotationFlags records which annotation kinds a field carries, for the
// pairwise compatibility matrix.
type annotationFlags struct {
	autoCreateTime bool
	autoUpdateTime bool
	autoIncrement  bool
	choices        bool
	defaultValue   bool
	index          bool
	maxLength      bool
	notNull        bool
	primaryKey     bool
	unique         bool
	foreignKey     bool
}

// incompatiblePairs is the pairwise, order-independent compatibility matrix.
type incompatiblePair struct {
	a, b func(annotationFlags) bool
	msg  string
}

var incompatiblePairs = []incompatiblePair{
	{hasACT, hasAI, "auto_create_time and auto_increment are mutually exclusive"},
	{hasACT, hasChoices, "auto_create_time and choices are mutually exclusive"},
	{hasACT, hasDefault, "auto_create_time and default_value are mutually exclusive"},
	{hasACT, hasMaxLen, "auto_create_time and max_length are mutually exclusive"},
	{hasACT, hasPK, "auto_create_time and primary_key are mutually exclusive"},
	{hasACT, hasUnique, "auto_create_time and unique are mutually exclusive"},
	{hasAUT, hasAI, "auto_update_time and auto_increment are mutually exclusive"},
	{hasAUT, hasChoices, "auto_update_time and choices are mutually exclusive"},
	{hasAUT, hasMaxLen, "auto_update_time and max_length are mutually exclusive"},
	{hasAUT, hasPK, "auto_update_time and primary_key are mutually exclusive"},
	{hasAUT, hasUnique, "auto_update_time and unique are mutually exclusive"},
	{hasAI, hasChoices, "auto_increment and choices are mutually exclusive"},
	{hasAI, hasMaxLen, "auto_increment and max_length are mutually exclusive"},
	{hasAI, hasDefault, "auto_increment and default_value are mutually exclusive"},
	{hasChoices, hasMaxLen, "choices and max_length are mutually exclusive"},
	{hasChoices, hasPK, "choices and primary_key are mutually exclusive"},
	{hasChoices, hasUnique, "choices and unique are mutually exclusive"},
	{hasDefault, hasAUT, "default_value and auto_update_time are mutually exclusive"},
	{hasDefault, hasPK, "default_value and primary_key are mutually exclusive"},
	{hasDefault, hasUnique, "default_value and unique are mutually exclusive"},
	{hasIndex, hasPK, "index and primary_key are mutually exclusive"},
	{hasNotNull, hasPK, "not_null and primary_key are mutually exclusive (primary key implies not-null)"},
	{hasFK, hasUnique, "foreign_key and unique are mutually exclusive"},
	{hasFK, hasChoices, "foreign_key and choices are mutually exclusive"},
}

func hasACT(f annotationFlags) bool     { return f.autoCreateTime }
func hasAUT(f annotationFlags) bool     { return f.autoUpdateTime }
func hasAI(f annotationFlags) bool      { return f.autoIncrement }
func hasChoices(f annotationFlags) bool { return f.choices }
func hasDefault(f annotationFlags) bool { return f.defaultValue }
func hasIndex(f annotationFlags) bool   { return f.index }
func hasMaxLen(f annotationFlags) bool  { return f.maxLength }
func hasNotNull(f annotationFlags) bool { return f.notNull }
func hasPK(f annotationFlags) bool      { return f.primaryKey }
func hasUnique(f annotationFlags) bool  { return f.unique }
func hasFK(f annotationFlags) bool      { return f.foreignKey }

// checkField validates one field's annotation set and type coupling rules.
func checkField(model *imr.ModelFormat, field *imr.Field, all []imr.ModelFormat) []*sterr.Error {
	var errs []*sterr.Error

	fieldErr := func(code sterr.Code, msg string) *sterr.Error {
		e := sterr.New(code, msg).WithModel(model.Name).WithField(field.Name)
		if field.SourceDefinedAt != nil {
			e.WithLocation(field.SourceDefinedAt.File, field.SourceDefinedAt.Line, field.SourceDefinedAt.Column)
		}
		return e
	}

	flags, dupErrs := collectFlags(model, field)
	errs = append(errs, dupErrs...)

	for _, pair := range incompatiblePairs {
		if pair.a(flags) && pair.b(flags) {
			errs = append(errs, fieldErr(sterr.ErrLintAnnotation, pair.msg))
		}
	}

	if flags.autoIncrement && !flags.primaryKey {
		errs = append(errs, fieldErr(sterr.ErrLintAnnotation, "auto_increment requires primary_key"))
	}

	// Type coupling rules.
	if (flags.autoCreateTime || flags.autoUpdateTime) && !field.Type.Temporal() {
		errs = append(errs, fieldErr(sterr.ErrLintAnnotation,
			"auto_create_time and auto_update_time are only valid on date, datetime, time, and timestamp"))
	}
	if field.Type == imr.VarChar && !flags.maxLength {
		errs = append(errs, fieldErr(sterr.ErrLintAnnotation, "varchar requires max_length"))
	}
	if flags.maxLength && field.Type != imr.VarChar {
		errs = append(errs, fieldErr(sterr.ErrLintAnnotation, "max_length is only valid on varchar"))
	}
	if field.Type == imr.Choices && !flags.choices {
		errs = append(errs, fieldErr(sterr.ErrLintAnnotation, "the choices type requires a choices annotation"))
	}
	if flags.choices && field.Type != imr.Choices {
		errs = append(errs, fieldErr(sterr.ErrLintAnnotation, "choices is only valid on the choices type"))
	}

	if ml, ok := field.Get(imr.KindMaxLength).(imr.MaxLength); ok && ml.Value <= 0 {
		errs = append(errs, fieldErr(sterr.ErrLintAnnotation, "max_length must be positive"))
	}
	if dv, ok := field.Get(imr.KindDefaultValue).(imr.DefaultValue); ok && !dv.ValidValue() {
		errs = append(errs, fieldErr(sterr.ErrLintAnnotation,
			"default_value must be a string, integer, float, or bool"))
	}

	// Foreign key target must exist within the same model set.
	if fk := field.ForeignKey(); fk != nil {
		errs = append(errs, checkForeignKey(model, field, fk, all)...)
	}

	return errs
}

// collectFlags builds the presence flags and flags exact-duplicate annotations.
func collectFlags(model *imr.ModelFormat, field *imr.Field) (annotationFlags, []*sterr.Error) {
	var flags annotationFlags
	var errs []*sterr.Error

	seen := make(map[imr.AnnotationKind]bool)
	for _, a := range field.Annotations {
		kind := a.Kind()
		// A field may carry several composite index annotations; every other
		// kind appears at most once.
		if seen[kind] && kind != imr.KindIndex {
			errs = append(errs, sterr.Newf(sterr.ErrLintAnnotation,
				"duplicate %s annotation", kind).
				WithModel(model.Name).
				WithField(field.Name))
		}
		seen[kind] = true

		switch kind {
		case imr.KindAutoCreateTime:
			flags.autoCreateTime = true
		case imr.KindAutoUpdateTime:
			flags.autoUpdateTime = true
		case imr.KindAutoIncrement:
			flags.autoIncrement = true
		case imr.KindChoices:
			flags.choices = true
		case imr.KindDefaultValue:
			flags.defaultValue = true
		case imr.KindIndex:
			flags.index = true
			if idx := a.(imr.Index); idx.Composite != nil && !imr.ValidName(idx.Composite.Name) {
				errs = append(errs, sterr.Newf(sterr.ErrLintIndex,
					"composite index name %q must be snake_case", idx.Composite.Name).
					WithModel(model.Name).
					WithField(field.Name))
			}
		case imr.KindMaxLength:
			flags.maxLength = true
		case imr.KindNotNull:
			flags.notNull = true
		case imr.KindPrimaryKey:
			flags.primaryKey = true
		case imr.KindUnique:
			flags.unique = true
		case imr.KindForeignKey:
			flags.foreignKey = true
		}
	}

	return flags, errs
}

// checkForeignKey validates that the referenced table and column exist.
func checkForeignKey(model *imr.ModelFormat, field *imr.Field, fk *imr.ForeignKey, all []imr.ModelFormat) []*sterr.Error {
	var target *imr.ModelFormat
	var names []string
	for i := range all {
		names = append(names, all[i].Name)
		if all[i].Name == fk.TableName {
			target = &all[i]
		}
	}

	if target == nil {
		err := sterr.Newf(sterr.ErrLintForeignKey,
			"foreign key references unknown model %q", fk.TableName).
			WithModel(model.Name).
			WithField(field.Name)
		if suggestion := sterr.SuggestSimilar(fk.TableName, names); suggestion != "" {
			err.WithHelp(suggestion)
		}
		return []*sterr.Error{err}
	}

	if !target.HasField(fk.ColumnName) {
		var cols []string
		for _, f := range target.Fields {
			cols = append(cols, f.Name)
		}
		err := sterr.Newf(sterr.ErrLintForeignKey,
			"foreign key references unknown column %q on model %q", fk.ColumnName, fk.TableName).
			WithModel(model.Name).
			WithField(field.Name)
		if suggestion := sterr.SuggestSimilar(fk.ColumnName, cols); suggestion != "" {
			err.WithHelp(suggestion)
		}
		return []*sterr.Error{err}
	}

	return nil
}
