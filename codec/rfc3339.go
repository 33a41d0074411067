// Package codec holds kim Types that convert between a wire representation
// and a richer Go value.
package codec

import (
	"time"

	"github.com/reoring/kim"
	js "github.com/reoring/kim/jsonschema"
)

// TimeRFC3339 returns a Type that marshals RFC3339 strings into time.Time
// and serializes time.Time back to canonical RFC3339 in UTC.
func TimeRFC3339() RFC3339Type { return RFC3339Type{} }

// RFC3339Type is the kim.Type behind TimeRFC3339.
type RFC3339Type struct{}

var _ kim.Type = RFC3339Type{}

func (RFC3339Type) FromValue(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t != nil {
			return *t, nil
		}
	case string:
		tt, err := parseRFC3339(t)
		if err != nil {
			return nil, &kim.ValidationError{Message: "invalid RFC3339 time", Value: v, Cause: err}
		}
		return tt, nil
	}
	return nil, &kim.ValidationError{Message: "expected RFC3339 string", Value: v}
}

func (RFC3339Type) GetValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return formatRFC3339Canonical(t), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return formatRFC3339Canonical(*t), nil
	case string:
		tt, err := parseRFC3339(t)
		if err != nil {
			return nil, &kim.ValidationError{Message: "invalid RFC3339 time", Value: v, Cause: err}
		}
		return formatRFC3339Canonical(tt), nil
	}
	return nil, &kim.ValidationError{Message: "expected time.Time", Value: v}
}

func (RFC3339Type) Validate(v any) error {
	if _, ok := v.(time.Time); !ok {
		return &kim.ValidationError{Message: "expected time.Time", Value: v}
	}
	return nil
}

func (RFC3339Type) JSONSchema() (*js.Schema, error) {
	return &js.Schema{Type: "string", Format: "date-time"}, nil
}

func parseRFC3339(s string) (time.Time, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

func formatRFC3339Canonical(t time.Time) string {
	// Normalize to UTC; RFC3339Nano trims trailing zeros.
	return t.UTC().Format(time.RFC3339Nano)
}
