package kim

import (
	"reflect"
	"slices"

	js "github.com/reoring/kim/jsonschema"
)

// Type carries the value-level semantics of a schema position.
// Implementations must be immutable after construction.
type Type interface {
	// GetValue extracts the external representation of an internal value
	// (serialize direction).
	GetValue(v any) (any, error)
	// FromValue coerces an external value into the internal shape (marshal
	// direction).
	FromValue(v any) (any, error)
	// Validate reports a *ValidationError when v does not have the shape the
	// Type expects.
	Validate(v any) error
}

// Defaulter is implemented by Types that carry their own default value.
// A Field default always wins over it.
type Defaulter interface {
	Default() (any, bool)
}

// JSONSchemaer is implemented by Types that can describe themselves as JSON
// Schema.
type JSONSchemaer interface {
	JSONSchema() (*js.Schema, error)
}

// BaseType is the identity Type: both transforms return their input and
// Validate always succeeds.
type BaseType struct{}

var _ Type = BaseType{}

func (BaseType) GetValue(v any) (any, error)     { return v, nil }
func (BaseType) FromValue(v any) (any, error)    { return v, nil }
func (BaseType) Validate(any) error              { return nil }
func (BaseType) JSONSchema() (*js.Schema, error) { return &js.Schema{}, nil }

// TypedType is an identity Type that requires the runtime kind of a value to
// be one of Kinds.
type TypedType struct {
	BaseType
	Name  string
	Kinds []reflect.Kind
}

// Typed returns a TypedType accepting values of the listed kinds.
func Typed(name string, kinds ...reflect.Kind) TypedType {
	return TypedType{Name: name, Kinds: slices.Clone(kinds)}
}

func (t TypedType) Validate(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !slices.Contains(t.Kinds, rv.Kind()) {
		return validationErrorf(v, "expected %s, got %T", t.Name, v)
	}
	return nil
}

var (
	stringShape  = Typed("string", reflect.String)
	integerShape = Typed("integer",
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64)
	objectShape = Typed("object", reflect.Map)
	listShape   = Typed("list", reflect.Slice, reflect.Array)
)

// Any returns the identity Type, accepting every value unchanged.
func Any() Type { return BaseType{} }
