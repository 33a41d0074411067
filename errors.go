package kim

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes carried by FieldInvalid and Issue.
const (
	CodeRequired       = "required"
	CodeTypeError      = "type_error"
	CodeNoneNotAllowed = "none_not_allowed"
	CodeInvalidChoice  = "invalid_choice"
	CodeNotFound       = "not_found"
)

// ValidationError reports that a raw value violates a Type's shape contract.
// It never escapes Mapper.Marshal: the coercion stage turns it into a
// FieldInvalid with CodeTypeError.
type ValidationError struct {
	Message string
	Value   any
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("kim: %s: %v", e.Message, e.Cause)
	}
	return "kim: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func validationErrorf(v any, format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), Value: v}
}

// FieldInvalid is the user-facing failure of a single field.
// Issues is set when the failure comes from a nested mapping; paths are
// relative to the field.
type FieldInvalid struct {
	Field   string
	Code    string
	Message string
	Issues  Issues
}

func (e *FieldInvalid) Error() string {
	return fmt.Sprintf("kim: field %q invalid (%s): %s", e.Field, e.Code, e.Message)
}

// FieldError is a programmer-facing schema defect: an unresolved name, a
// missing attribute on serialize, or bad pipeline wiring. It is always fatal.
type FieldError struct {
	Field   string
	Message string
	Cause   error
}

func (e *FieldError) Error() string {
	b := &strings.Builder{}
	b.WriteString("kim: ")
	if e.Field != "" {
		fmt.Fprintf(b, "field %q: ", e.Field)
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *FieldError) Unwrap() error { return e.Cause }

// FieldOptsError is returned by OptsCheck hooks. NewFieldOpts always
// re-surfaces it wrapped in a FieldError.
type FieldOptsError struct {
	Message string
}

func (e *FieldOptsError) Error() string { return "kim: invalid field options: " + e.Message }

// Issue is one entry of an aggregate marshal failure.
type Issue struct {
	Path    string `json:"path"`  // JSON Pointer, e.g. /address/city or /items/2/price.
	Field   string `json:"field"` // Name of the failing field (last path segment).
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Issues is the aggregate failure returned by Mapper.Marshal.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := min(n, maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		fmt.Fprintf(b, "%s at %s: %s", it.Code, it.Path, it.Message)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Fields returns the names of the failing fields in issue order, without
// duplicates.
func (iss Issues) Fields() []string {
	seen := make(map[string]struct{}, len(iss))
	out := make([]string, 0, len(iss))
	for _, it := range iss {
		if _, ok := seen[it.Field]; ok {
			continue
		}
		seen[it.Field] = struct{}{}
		out = append(out, it.Field)
	}
	return out
}

// ByPath returns the first issue recorded at the given JSON Pointer.
func (iss Issues) ByPath(path string) (Issue, bool) {
	for _, it := range iss {
		if it.Path == path {
			return it, true
		}
	}
	return Issue{}, false
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	return append(dst, more...)
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// isFatal reports errors that abort a whole Mapper call: schema defects and
// context cancellation.
func isFatal(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// rebaseIssues prefixes every issue path with base ("/name" or "/3").
func rebaseIssues(base string, child Issues) Issues {
	out := make(Issues, 0, len(child))
	for _, it := range child {
		p := it.Path
		switch {
		case p == "" || p == "/":
			p = base
		case p[0] == '/':
			p = base + p
		default:
			p = base + "/" + p
		}
		it.Path = p
		out = append(out, it)
	}
	return out
}

// issuesFromInvalid flattens a FieldInvalid into issues rooted at "/"+name.
func issuesFromInvalid(name string, fi *FieldInvalid) Issues {
	base := "/" + escapePointer(name)
	if len(fi.Issues) > 0 {
		return rebaseIssues(base, fi.Issues)
	}
	return Issues{{Path: base, Field: name, Code: fi.Code, Message: fi.Message}}
}

// escapePointer applies RFC 6901 escaping to a single reference token.
func escapePointer(tok string) string {
	if !strings.ContainsAny(tok, "~/") {
		return tok
	}
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(tok)
}
