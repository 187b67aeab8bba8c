package ui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stratumdb/stratum/internal/sterr"
)

// RenderError formats an error for terminal display. Structured errors get
// the rustc-style layout: a coded headline, sorted context lines, the
// underlying cause, and any help suggestions.
func RenderError(err error) string {
	var serr *sterr.Error
	if !errors.As(err, &serr) {
		return Error(err.Error())
	}

	var b strings.Builder
	b.WriteString(Red(Bold(fmt.Sprintf("error[%s]", serr.GetCode()))))
	b.WriteString(": ")
	b.WriteString(serr.GetMessage())

	ctx := serr.GetContext()
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		// Help suggestions get their own lines below.
		if k == "helps" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n")
		b.WriteString(Dim("  --> "))
		b.WriteString(fmt.Sprintf("%s: %v", k, ctx[k]))
	}

	if cause := serr.GetCause(); cause != nil {
		b.WriteString("\n")
		b.WriteString(Dim("  caused by: "))
		b.WriteString(cause.Error())
	}

	for _, help := range serr.Helps() {
		b.WriteString("\n")
		b.WriteString(Yellow("  help: "))
		b.WriteString(help)
	}

	return b.String()
}

// RenderWarnings formats loader warnings about ignored files.
func RenderWarnings(warnings []string) string {
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		lines = append(lines, Warning("ignoring "+w+": not a migration file"))
	}
	return strings.Join(lines, "\n")
}
