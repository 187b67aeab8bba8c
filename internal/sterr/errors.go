// Package sterr provides standardized error handling for Stratum.
// All errors carry stable, machine-readable codes, structured context,
// and proper wrapping.
package sterr

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number} where category is 1-6 and number is 001-999.
type Code string

// Error codes organized by category.
const (
	// Lint errors (E1xxx) - model-set-internal inconsistencies
	ErrLintName        Code = "E1001" // Model or field name violates naming rules
	ErrLintPrimaryKey  Code = "E1002" // Zero or multiple primary keys on a model
	ErrLintAnnotation  Code = "E1003" // Incompatible or misplaced annotation
	ErrLintForeignKey  Code = "E1004" // Foreign key target does not exist
	ErrLintDuplicate   Code = "E1005" // Duplicate model or field name
	ErrLintIndex       Code = "E1006" // Composite index group is inconsistent

	// History errors (E2xxx) - malformed or inconsistent migration chain
	ErrMultipleInitial Code = "E2001" // More than one migration marked initial
	ErrBrokenChain     Code = "E2002" // Dependency graph is not a single linear chain
	ErrNoInitial       Code = "E2003" // Non-empty history without an initial migration

	// Parse errors (E3xxx) - malformed TOML/JSON content
	ErrParseFile         Code = "E3001" // File content could not be decoded
	ErrParseMissingKey   Code = "E3002" // Required key is missing
	ErrParseWrongType    Code = "E3003" // Key has the wrong value type
	ErrUnknownAnnotation Code = "E3004" // Annotation Type string is not recognized
	ErrUnknownOperation  Code = "E3005" // Operation Type string is not recognized
	ErrUnknownVersion    Code = "E3006" // Wire format version is not supported

	// Diff errors (E4xxx) - transitions the engine refuses to auto-resolve
	ErrInvalidFieldTransition Code = "E4001" // Primary-key change would orphan foreign keys

	// Squash errors (E5xxx)
	ErrNonContiguous Code = "E5001" // Squash range is not a contiguous active run

	// SQL errors (E6xxx) - executor failures
	ErrSQLExecution  Code = "E6001" // DDL statement failed to execute
	ErrSQLConnection Code = "E6002" // Database connection failed
	ErrDialect       Code = "E6003" // Dialect not supported for operation
)

// Error is the standard error type for Stratum.
// It provides structured error information with codes, context, and wrapping support.
type Error struct {
	code    Code           // Machine-readable error code
	message string         // Human-readable error message
	context map[string]any // Structured context data
	cause   error          // Wrapped underlying error
	stack   string         // Stack trace for debugging
}

// Error returns the formatted error string.
// Format:
//
//	[E3002] migration file is missing a required key
//	  file: migrations/0002_add_email.toml
//	  key: Hash
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.code, e.message))

	// Write context in sorted order for deterministic output
	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n  %s: %v", k, e.context[k]))
		}
	}

	if e.cause != nil {
		b.WriteString(fmt.Sprintf("\n  cause: %v", e.cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error for errors.Unwrap compatibility.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether the target error matches this error.
// It matches if target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.code == targetErr.code
	}

	return false
}

// GetCode returns the error code.
func (e *Error) GetCode() Code {
	return e.code
}

// GetMessage returns the error message.
func (e *Error) GetMessage() string {
	return e.message
}

// GetContext returns the error context map.
func (e *Error) GetContext() map[string]any {
	return e.context
}

// GetCause returns the underlying cause error.
func (e *Error) GetCause() error {
	return e.cause
}

// GetStack returns the stack trace.
func (e *Error) GetStack() string {
	return e.stack
}

// With adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

// WithModel adds model (table) context to the error.
func (e *Error) WithModel(name string) *Error {
	return e.With("model", name)
}

// WithField adds field (column) context to the error.
func (e *Error) WithField(name string) *Error {
	return e.With("field", name)
}

// WithFile adds file path context to the error.
func (e *Error) WithFile(path string) *Error {
	return e.With("file", path)
}

// WithKey adds the offending TOML/JSON key to the error.
func (e *Error) WithKey(key string) *Error {
	return e.With("key", key)
}

// WithSQL adds SQL statement context to the error.
func (e *Error) WithSQL(sql string) *Error {
	return e.With("sql", sql)
}

// WithLocation adds source location context (file, line, column) from the IR.
func (e *Error) WithLocation(file string, line, col int) *Error {
	e.With("defined_at", fmt.Sprintf("%s:%d:%d", file, line, col))
	return e
}

// WithHelp adds a help suggestion to the error (displayed as "help: ...").
func (e *Error) WithHelp(help string) *Error {
	helps, _ := e.context["helps"].([]string)
	helps = append(helps, help)
	return e.With("helps", helps)
}

// Helps returns all help suggestions attached to this error.
func (e *Error) Helps() []string {
	helps, _ := e.context["helps"].([]string)
	return helps
}

// captureStack captures a stack trace for debugging.
func captureStack(skip int) string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		// Skip runtime internals
		if strings.Contains(frame.File, "runtime/") {
			if !more {
				break
			}
			continue
		}
		b.WriteString(fmt.Sprintf("%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return b.String()
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		stack:   captureStack(3),
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		code:    code,
		message: fmt.Sprintf(format, args...),
		context: make(map[string]any),
		stack:   captureStack(3),
	}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(code Code, err error, msg string) *Error {
	if err == nil {
		return New(code, msg)
	}
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		cause:   err,
		stack:   captureStack(3),
	}
}

// Wrapf creates a new Error that wraps an existing error with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// GetErrorCode extracts the error code from an error chain.
// Returns empty string if no code is found.
func GetErrorCode(err error) Code {
	if err == nil {
		return ""
	}

	var serr *Error
	if errors.As(err, &serr) {
		return serr.code
	}

	return ""
}

// Is checks if an error has the specified code.
func Is(err error, code Code) bool {
	return GetErrorCode(err) == code
}

// HasCode checks if an error has any error code.
func HasCode(err error) bool {
	return GetErrorCode(err) != ""
}

// IsParse reports whether the error belongs to the parse category (E3xxx).
func IsParse(err error) bool {
	return strings.HasPrefix(string(GetErrorCode(err)), "E3")
}

// IsHistory reports whether the error belongs to the history category (E2xxx).
func IsHistory(err error) bool {
	return strings.HasPrefix(string(GetErrorCode(err)), "E2")
}
