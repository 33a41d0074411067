package kim

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	js "github.com/reoring/kim/jsonschema"
)

// MappingFactory builds a mapping of some kind from an ordered field list.
type MappingFactory func(name string, fields ...*Field) (*Mapping, error)

// Mapping is an ordered, name-unique set of fields: the schema itself.
// It is immutable once defined, apart from Replace and DefineRole which are
// schema-definition-time operations.
type Mapping struct {
	kind   string
	name   string
	fields []*Field
	index  map[string]int
	roles  map[string]*Role
}

// NewMapping builds an untagged mapping.
func NewMapping(name string, fields ...*Field) (*Mapping, error) {
	return NewKindMapping("", name, fields...)
}

// NewKindMapping builds a mapping tagged with kind. Role-filtered copies keep
// the kind. Fields must have resolvable, unique names.
func NewKindMapping(kind, name string, fields ...*Field) (*Mapping, error) {
	m := &Mapping{kind: kind, name: name, fields: make([]*Field, 0, len(fields)), index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if f == nil {
			return nil, &FieldError{Message: fmt.Sprintf("mapping %q: field %d is nil", name, i)}
		}
		fn, err := f.Name()
		if err != nil {
			return nil, &FieldError{Message: fmt.Sprintf("mapping %q: field %d", name, i), Cause: err}
		}
		if _, dup := m.index[fn]; dup {
			return nil, &FieldError{Field: fn, Message: fmt.Sprintf("mapping %q: duplicate field name", name)}
		}
		m.index[fn] = len(m.fields)
		m.fields = append(m.fields, f)
	}
	return m, nil
}

// MustMapping is like NewMapping but panics on error.
func MustMapping(name string, fields ...*Field) *Mapping {
	m, err := NewMapping(name, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Mapping) Name() string { return m.name }
func (m *Mapping) Kind() string { return m.kind }
func (m *Mapping) Len() int     { return len(m.fields) }

// Fields returns the fields in declared order.
func (m *Mapping) Fields() []*Field { return slices.Clone(m.fields) }

// Names returns the field names in declared order.
func (m *Mapping) Names() []string {
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i], _ = f.Name()
	}
	return out
}

// Field looks a field up by name.
func (m *Mapping) Field(name string) (*Field, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.fields[i], true
}

// Replace swaps the field with the same name for f, keeping its position.
func (m *Mapping) Replace(f *Field) error {
	fn, err := f.Name()
	if err != nil {
		return err
	}
	i, ok := m.index[fn]
	if !ok {
		return &FieldError{Field: fn, Message: fmt.Sprintf("mapping %q has no such field", m.name)}
	}
	m.fields[i] = f
	return nil
}

// DefineRole registers a named role for use with WithRoleName.
func (m *Mapping) DefineRole(name string, r *Role) error {
	if name == "" || r == nil {
		return &FieldError{Message: fmt.Sprintf("mapping %q: role needs a name and a value", m.name)}
	}
	if m.roles == nil {
		m.roles = map[string]*Role{}
	}
	m.roles[name] = r
	return nil
}

// Role returns a role registered with DefineRole.
func (m *Mapping) Role(name string) (*Role, bool) {
	r, ok := m.roles[name]
	return r, ok
}

// RoleNames returns the registered role names, sorted.
func (m *Mapping) RoleNames() []string { return slices.Sorted(maps.Keys(m.roles)) }

// factory returns a MappingFactory producing mappings of the same kind.
func (m *Mapping) factory() MappingFactory {
	kind := m.kind
	return func(name string, fields ...*Field) (*Mapping, error) {
		return NewKindMapping(kind, name, fields...)
	}
}

// JSONSchema describes the mapping as a JSON Schema object. A mapping that
// reaches itself through nested fields is emitted once and referenced with
// $ref: "#" for the root, "#/$defs/<name>" for inner mappings.
func (m *Mapping) JSONSchema() (*js.Schema, error) {
	return rootSchema(schemaKey{m: m}, m)
}

// schemaKey identifies a mapping as rendered under a role. Role filtering
// builds a new Mapping per call, so the unfiltered mapping is the identity.
type schemaKey struct {
	m *Mapping
	r *Role
}

type schemaBuilder struct {
	root   schemaKey
	active map[schemaKey]bool
	names  map[schemaKey]string
	taken  map[string]bool
	defs   map[string]*js.Schema
}

// schemaBuilderType is implemented by types that render child mappings.
type schemaBuilderType interface {
	jsonSchemaIn(b *schemaBuilder) (*js.Schema, error)
}

func rootSchema(k schemaKey, m *Mapping) (*js.Schema, error) {
	b := &schemaBuilder{
		root:   k,
		active: map[schemaKey]bool{},
		names:  map[schemaKey]string{},
		taken:  map[string]bool{},
		defs:   map[string]*js.Schema{},
	}
	s, err := b.mapping(k, m)
	if err != nil {
		return nil, err
	}
	if len(b.defs) > 0 {
		s.Defs = b.defs
	}
	return s, nil
}

// typeSchema renders t, or returns nil when t does not describe itself.
// b may be nil outside a mapping export.
func typeSchema(b *schemaBuilder, t Type) (*js.Schema, error) {
	if bt, ok := t.(schemaBuilderType); ok && b != nil {
		return bt.jsonSchemaIn(b)
	}
	if jt, ok := t.(JSONSchemaer); ok {
		return jt.JSONSchema()
	}
	return nil, nil
}

func (b *schemaBuilder) ref(k schemaKey) string {
	if k == b.root {
		return "#"
	}
	name, ok := b.names[k]
	if !ok {
		name = cmp.Or(k.m.name, "mapping")
		for i := 2; b.taken[name]; i++ {
			name = fmt.Sprintf("%s_%d", cmp.Or(k.m.name, "mapping"), i)
		}
		b.taken[name] = true
		b.names[k] = name
	}
	return "#/$defs/" + name
}

func (b *schemaBuilder) mapping(k schemaKey, m *Mapping) (*js.Schema, error) {
	if b.active[k] {
		return &js.Schema{Ref: b.ref(k)}, nil
	}
	b.active[k] = true
	defer delete(b.active, k)

	s, err := m.properties(b)
	if err != nil {
		return nil, err
	}
	if name, ok := b.names[k]; ok && k != b.root {
		b.defs[name] = s
		return &js.Schema{Ref: "#/$defs/" + name}, nil
	}
	return s, nil
}

func (m *Mapping) properties(b *schemaBuilder) (*js.Schema, error) {
	s := &js.Schema{
		Title:         m.name,
		Type:          "object",
		Properties:    make(map[string]*js.Schema, len(m.fields)),
		PropertyOrder: m.Names(),
	}
	for _, f := range m.fields {
		name, _ := f.Name()
		ps, err := typeSchema(b, f.Type())
		if err != nil {
			return nil, fmt.Errorf("kim: json schema for %q: %w", name, err)
		}
		if ps == nil {
			ps = &js.Schema{}
		}
		o := f.Opts()
		if def, ok := f.Default(); ok {
			ps.Default = def
		}
		if o.HasChoices() {
			ps.Enum = o.Choices()
		}
		ps.ReadOnly = o.ReadOnly()
		if o.AllowNone() {
			ps.Nullable = true
		}
		if o.Required() && !o.ReadOnly() {
			s.Required = append(s.Required, name)
		}
		s.Properties[name] = ps
	}
	return s, nil
}
