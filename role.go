package kim

import "slices"

// Role selects a subset of a mapping's fields by name, either as a whitelist
// or as a blacklist.
type Role struct {
	names     []string
	set       map[string]struct{}
	whitelist bool
}

// NewRole returns a role over names.
func NewRole(whitelist bool, names ...string) *Role {
	set := make(map[string]struct{}, len(names))
	ordered := make([]string, 0, len(names))
	for _, n := range names {
		if _, dup := set[n]; dup {
			continue
		}
		set[n] = struct{}{}
		ordered = append(ordered, n)
	}
	return &Role{names: ordered, set: set, whitelist: whitelist}
}

// Whitelist returns a role admitting only names.
func Whitelist(names ...string) *Role { return NewRole(true, names...) }

// Blacklist returns a role admitting everything but names.
func Blacklist(names ...string) *Role { return NewRole(false, names...) }

// FieldNames returns the role's names in declared order.
func (r *Role) FieldNames() []string { return slices.Clone(r.names) }

// IsWhitelist reports whether the role is a whitelist.
func (r *Role) IsWhitelist() bool { return r.whitelist }

// Membership reports whether the field called name passes the role.
func (r *Role) Membership(name string) bool {
	_, in := r.set[name]
	return in == r.whitelist
}

// CreateMappingFromRole returns a new mapping of the same kind holding the
// fields of m that pass role, in their original order. m is not modified.
func CreateMappingFromRole(role *Role, m *Mapping) (*Mapping, error) {
	return CreateMappingFromRoleWith(role, m, m.factory())
}

// CreateMappingFromRoleWith is CreateMappingFromRole with an explicit
// factory for the resulting mapping.
func CreateMappingFromRoleWith(role *Role, m *Mapping, factory MappingFactory) (*Mapping, error) {
	if role == nil {
		return nil, &FieldError{Message: "nil role"}
	}
	kept := make([]*Field, 0, len(m.fields))
	for _, f := range m.fields {
		name, _ := f.Name()
		if role.Membership(name) {
			kept = append(kept, f)
		}
	}
	return factory(m.name, kept...)
}
