package kim

import (
	"context"
	"reflect"
	"strconv"

	"github.com/reoring/kim/i18n"
	js "github.com/reoring/kim/jsonschema"
)

// NestedType embeds a child Mapping, optionally restricted by a Role.
type NestedType struct {
	mapping *Mapping
	role    *Role
}

var _ Type = (*NestedType)(nil)

// Nested returns a Type that maps values through the child mapping m.
func Nested(m *Mapping) *NestedType { return &NestedType{mapping: m} }

// WithRole returns a copy restricted to the fields role admits.
func (n *NestedType) WithRole(r *Role) *NestedType {
	cp := *n
	cp.role = r
	return &cp
}

// Mapping returns the unfiltered child mapping.
func (n *NestedType) Mapping() *Mapping { return n.mapping }

// SetMapping re-points the child mapping. Only call it while the schema is
// being defined; a NestedType in use must not change.
func (n *NestedType) SetMapping(m *Mapping) { n.mapping = m }

// Role returns the configured role, or nil.
func (n *NestedType) Role() *Role { return n.role }

// GetMapping returns the child mapping filtered by the role when one is set,
// else the child mapping itself. The child mapping is never mutated.
func (n *NestedType) GetMapping() (*Mapping, error) {
	if n.mapping == nil {
		return nil, &FieldError{Message: "nested type has no mapping"}
	}
	if n.role == nil {
		return n.mapping, nil
	}
	return CreateMappingFromRole(n.role, n.mapping)
}

// FromValue runs the child mapping's input pipelines over v, which may be a
// map[string]any, an Object or a struct. Child failures are returned as
// Issues relative to the nested value.
func (n *NestedType) FromValue(v any) (any, error) {
	return n.fromValueIn(context.Background(), defaultMapperConfig, v)
}

// GetValue runs the child mapping's output pipelines over v.
func (n *NestedType) GetValue(v any) (any, error) {
	return n.getValueIn(context.Background(), defaultMapperConfig, v)
}

func (n *NestedType) fromValueIn(ctx context.Context, cfg mapperConfig, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	m, err := n.GetMapping()
	if err != nil {
		return nil, err
	}
	obj, err := ObjectOf(v)
	if err != nil {
		return nil, err
	}
	return marshalFields(ctx, m, obj, cfg)
}

func (n *NestedType) getValueIn(ctx context.Context, cfg mapperConfig, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	m, err := n.GetMapping()
	if err != nil {
		return nil, err
	}
	obj, err := ObjectOf(v)
	if err != nil {
		return nil, err
	}
	return serializeFields(ctx, m, obj, cfg)
}

func (n *NestedType) Validate(v any) error {
	if _, ok := v.(map[string]any); !ok {
		return objectShape.Validate(v)
	}
	return nil
}

func (n *NestedType) JSONSchema() (*js.Schema, error) {
	m, err := n.GetMapping()
	if err != nil {
		return nil, err
	}
	return rootSchema(n.schemaKey(), m)
}

func (n *NestedType) schemaKey() schemaKey { return schemaKey{m: n.mapping, r: n.role} }

func (n *NestedType) jsonSchemaIn(b *schemaBuilder) (*js.Schema, error) {
	m, err := n.GetMapping()
	if err != nil {
		return nil, err
	}
	return b.mapping(n.schemaKey(), m)
}

// CollectionType applies an item Type to every element of a sequence.
type CollectionType struct {
	item      Type
	required  bool
	allowNone bool
}

var _ Type = CollectionType{}

// Collection returns a Type over sequences of item. None is allowed and
// empty sequences are accepted until configured otherwise.
func Collection(item Type) CollectionType {
	return CollectionType{item: item, allowNone: true}
}

// Required returns a copy whose Validate rejects empty sequences.
func (c CollectionType) Required() CollectionType {
	c.required = true
	return c
}

// AllowNone returns a copy whose Validate accepts or rejects nil.
func (c CollectionType) AllowNone(allow bool) CollectionType {
	c.allowNone = allow
	return c
}

// Item returns the element Type.
func (c CollectionType) Item() Type { return c.item }

func (c CollectionType) GetValue(v any) (any, error) {
	return c.getValueIn(context.Background(), defaultMapperConfig, v)
}

func (c CollectionType) FromValue(v any) (any, error) {
	return c.fromValueIn(context.Background(), defaultMapperConfig, v)
}

func (c CollectionType) fromValueIn(ctx context.Context, cfg mapperConfig, v any) (any, error) {
	return c.mapItems(v, func(item any) (any, error) { return fromValueIn(ctx, cfg, c.item, item) })
}

func (c CollectionType) getValueIn(ctx context.Context, cfg mapperConfig, v any) (any, error) {
	return c.mapItems(v, func(item any) (any, error) { return getValueIn(ctx, cfg, c.item, item) })
}

func (c CollectionType) mapItems(v any, fn func(any) (any, error)) (any, error) {
	if v == nil {
		return nil, nil
	}
	if err := listShape.Validate(v); err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		item, err := fn(rv.Index(i).Interface())
		if err != nil {
			return nil, itemError(i, err)
		}
		out[i] = item
	}
	return out, nil
}

// Validate enforces allow-none, then non-emptiness, then validates each
// element, stopping at the first invalid one.
func (c CollectionType) Validate(v any) error {
	if v == nil {
		if !c.allowNone {
			return validationErrorf(v, "collection cannot be null")
		}
		return nil
	}
	if err := listShape.Validate(v); err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if c.required && rv.Len() == 0 {
		return validationErrorf(v, "collection cannot be empty")
	}
	for i := 0; i < rv.Len(); i++ {
		if err := c.item.Validate(rv.Index(i).Interface()); err != nil {
			return itemError(i, err)
		}
	}
	return nil
}

func (c CollectionType) JSONSchema() (*js.Schema, error) {
	return c.jsonSchemaIn(nil)
}

func (c CollectionType) jsonSchemaIn(b *schemaBuilder) (*js.Schema, error) {
	s := &js.Schema{Type: "array", Items: &js.Schema{}}
	is, err := typeSchema(b, c.item)
	if err != nil {
		return nil, err
	}
	if is != nil {
		s.Items = is
	}
	if c.required {
		one := 1
		s.MinItems = &one
	}
	s.Nullable = c.allowNone
	return s, nil
}

// itemError positions an element failure at index i. A scalar element
// failure becomes a single type_error issue with no field name; the owning
// field fills in its own message.
func itemError(i int, err error) error {
	base := "/" + strconv.Itoa(i)
	if iss, ok := AsIssues(err); ok {
		return rebaseIssues(base, iss)
	}
	if isFatal(err) {
		return err
	}
	return Issues{{Path: base, Code: CodeTypeError, Message: i18n.T(CodeTypeError, nil)}}
}

// contextType is implemented by types that run child mappings, so that they
// see the context and settings of the Mapper call driving them.
type contextType interface {
	fromValueIn(ctx context.Context, cfg mapperConfig, v any) (any, error)
	getValueIn(ctx context.Context, cfg mapperConfig, v any) (any, error)
}

var (
	_ contextType = (*NestedType)(nil)
	_ contextType = CollectionType{}
)

func fromValueIn(ctx context.Context, cfg mapperConfig, t Type, v any) (any, error) {
	if ct, ok := t.(contextType); ok {
		return ct.fromValueIn(ctx, cfg, v)
	}
	return t.FromValue(v)
}

func getValueIn(ctx context.Context, cfg mapperConfig, t Type, v any) (any, error) {
	if ct, ok := t.(contextType); ok {
		return ct.getValueIn(ctx, cfg, v)
	}
	return t.GetValue(v)
}
