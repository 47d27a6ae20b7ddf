package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/entityorm/internal/orm/crud"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
	"github.com/conduit-lang/entityorm/internal/orm/validation"
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Context     string
	Problem     string
	Details     []string
	Suggestions []string
	NoColor     bool
}

// FormatError creates an error message: a header line with the context,
// indented details and the suggestions
//
// Example output:
//
//	❌ UNKNOWN ENTITY TYPE: cannot find entity type 'dpt'
//
//	   Did you mean: dept?
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	red := color.New(color.FgRed, color.Bold)
	body := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	if opts.NoColor {
		red.DisableColor()
		body.DisableColor()
		yellow.DisableColor()
	}

	if opts.Context != "" {
		red.Fprintf(&b, "❌ %s: %s\n", strings.ToUpper(opts.Context), opts.Problem)
	} else {
		red.Fprintf(&b, "❌ %s\n", opts.Problem)
	}
	for _, detail := range opts.Details {
		body.Fprintf(&b, "   %s\n", detail)
	}
	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}
	return b.String()
}

// WriteError writes err formatted with a context derived from its kind
func WriteError(w io.Writer, err error, noColor bool) {
	fmt.Fprint(w, FormatError(errorOptions(err, noColor)))
}

func errorOptions(err error, noColor bool) ErrorOptions {
	opts := ErrorOptions{Problem: err.Error(), NoColor: noColor}

	var suggestion *SuggestionError
	var validationErrors *validation.ValidationErrors
	var modified *crud.RecordModifiedError
	switch {
	case errors.As(err, &suggestion):
		opts.Context = suggestion.Context
		opts.Problem = suggestion.Problem
		opts.Suggestions = suggestion.Suggestions
	case errors.As(err, &validationErrors):
		opts.Context = "validation failed"
		opts.Problem = fmt.Sprintf("%d invalid values", validationErrors.Count())
		for _, attributeError := range validationErrors.Errors() {
			opts.Details = append(opts.Details, attributeError.Error())
		}
	case errors.As(err, &modified):
		opts.Context = "record modified"
	case errors.Is(err, schema.ErrContractViolation):
		opts.Context = "contract violation"
	case crud.IsNotFound(err):
		opts.Context = "not found"
	case crud.IsUniqueViolation(err), crud.IsForeignKeyViolation(err):
		opts.Context = "constraint violation"
	case errors.Is(err, crud.ErrReadOnly):
		opts.Context = "read only"
	}
	return opts
}

// SuggestionError is an error offering alternatives to the user
type SuggestionError struct {
	Context     string
	Problem     string
	Suggestions []string
}

func (e *SuggestionError) Error() string {
	return e.Context + ": " + e.Problem
}

// UnknownEntityTypeError returns an error for an unknown entity type name,
// suggesting similar known names
func UnknownEntityTypeError(name string, known []string) error {
	return &SuggestionError{
		Context:     "unknown entity type",
		Problem:     fmt.Sprintf("cannot find entity type '%s'", name),
		Suggestions: SimilarNames(name, known),
	}
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}
