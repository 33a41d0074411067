// Package schemafile loads kim Mappings from YAML (or JSON) descriptors.
package schemafile

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reoring/kim"
	"github.com/reoring/kim/codec"
)

// File is the top-level descriptor, and also the shape of a nested mapping.
type File struct {
	Name   string              `yaml:"name"`
	Kind   string              `yaml:"kind"`
	Roles  map[string]RoleSpec `yaml:"roles"`
	Fields []FieldSpec         `yaml:"fields"`
}

// RoleSpec describes a named role.
type RoleSpec struct {
	Whitelist bool     `yaml:"whitelist"`
	Fields    []string `yaml:"fields"`
}

// FieldSpec describes one field, or a collection's item when used under
// items (only the type keys are read there).
type FieldSpec struct {
	Name          string            `yaml:"name"`
	Type          string            `yaml:"type"`
	Source        string            `yaml:"source"`
	AttributeName string            `yaml:"attribute_name"`
	Required      bool              `yaml:"required"`
	ReadOnly      bool              `yaml:"read_only"`
	AllowNone     *bool             `yaml:"allow_none"`
	Default       any               `yaml:"default"`
	Choices       []any             `yaml:"choices"`
	ErrorMsgs     map[string]string `yaml:"error_msgs"`

	Precision *int32     `yaml:"precision"`
	NonEmpty  bool       `yaml:"non_empty"`
	Items     *FieldSpec `yaml:"items"`
	Mapping   *File      `yaml:"mapping"`
	Role      string     `yaml:"role"`
}

// LoadFile reads and parses the descriptor at path. An unnamed descriptor is
// named after the file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// Parse decodes a descriptor. JSON input is accepted as YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return &f, nil
}

// Load reads the descriptor at path and builds its Mapping.
func Load(path string) (*kim.Mapping, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := f.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Build turns the descriptor into a Mapping with its roles registered.
func (f *File) Build() (*kim.Mapping, error) { return f.build("") }

func (f *File) build(prefix string) (*kim.Mapping, error) {
	fields := make([]*kim.Field, 0, len(f.Fields))
	for i, fs := range f.Fields {
		name := cmp.Or(fs.Name, fs.AttributeName)
		if name == "" {
			return nil, fmt.Errorf("field %d under %q: name or attribute_name is required", i, prefix)
		}
		at := prefix + name
		t, err := fs.buildType(at)
		if err != nil {
			return nil, err
		}
		fld, err := kim.NewField(t, fs.options())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", at, err)
		}
		fields = append(fields, fld)
	}
	m, err := kim.NewKindMapping(f.Kind, f.Name, fields...)
	if err != nil {
		return nil, err
	}
	for _, name := range slices.Sorted(maps.Keys(f.Roles)) {
		rs := f.Roles[name]
		for _, fn := range rs.Fields {
			if _, ok := m.Field(fn); !ok {
				return nil, fmt.Errorf("role %q names unknown field %q", prefix+name, fn)
			}
		}
		if err := m.DefineRole(name, kim.NewRole(rs.Whitelist, rs.Fields...)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (fs FieldSpec) options() kim.Options {
	return kim.Options{
		Name:          fs.Name,
		AttributeName: fs.AttributeName,
		Source:        fs.Source,
		Required:      fs.Required,
		Default:       fs.Default,
		AllowNone:     fs.AllowNone,
		ReadOnly:      fs.ReadOnly,
		Choices:       fs.Choices,
		ErrorMsgs:     fs.ErrorMsgs,
	}
}

func (fs FieldSpec) buildType(at string) (kim.Type, error) {
	if fs.Precision != nil && fs.Type != "decimal" {
		return nil, fmt.Errorf("field %q: precision only applies to decimal", at)
	}
	switch fs.Type {
	case "", "any":
		return kim.Any(), nil
	case "string":
		return kim.String(), nil
	case "integer":
		return kim.Integer(), nil
	case "datetime":
		return codec.TimeRFC3339(), nil
	case "decimal":
		d := kim.Decimal()
		if fs.Precision != nil {
			if *fs.Precision < 0 {
				return nil, fmt.Errorf("field %q: precision must not be negative", at)
			}
			d = d.WithPrecision(*fs.Precision)
		}
		return d, nil
	case "nested":
		if fs.Mapping == nil {
			return nil, fmt.Errorf("field %q: nested type needs a mapping", at)
		}
		child := *fs.Mapping
		if child.Name == "" {
			child.Name = lastSegment(at)
		}
		cm, err := child.build(at + ".")
		if err != nil {
			return nil, err
		}
		n := kim.Nested(cm)
		if fs.Role != "" {
			r, ok := cm.Role(fs.Role)
			if !ok {
				return nil, fmt.Errorf("field %q: nested mapping has no role %q", at, fs.Role)
			}
			n = n.WithRole(r)
		}
		return n, nil
	case "collection":
		if fs.Items == nil {
			return nil, fmt.Errorf("field %q: collection type needs items", at)
		}
		it, err := fs.Items.buildType(at + "[]")
		if err != nil {
			return nil, err
		}
		c := kim.Collection(it)
		if fs.NonEmpty {
			c = c.Required()
		}
		return c, nil
	}
	return nil, fmt.Errorf("field %q: unknown type %q", at, fs.Type)
}

func lastSegment(at string) string {
	at = strings.TrimSuffix(at, "[]")
	if i := strings.LastIndexByte(at, '.'); i >= 0 {
		return at[i+1:]
	}
	return at
}
