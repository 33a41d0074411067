package kim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	discardLogger       = slog.New(slog.DiscardHandler)
	defaultMapperConfig = mapperConfig{log: discardLogger}
)

// MapperOption configures a Mapper.
type MapperOption func(*mapperOptions)

type mapperOptions struct {
	role     *Role
	roleName string
	log      *slog.Logger
	failFast bool
}

// WithRole restricts the mapper to the fields role admits.
func WithRole(r *Role) MapperOption { return func(o *mapperOptions) { o.role = r } }

// WithRoleName restricts the mapper to a role registered on the mapping.
func WithRoleName(name string) MapperOption { return func(o *mapperOptions) { o.roleName = name } }

// WithLogger sets the logger used for debug records. nil discards.
func WithLogger(l *slog.Logger) MapperOption { return func(o *mapperOptions) { o.log = l } }

// WithFailFast makes Marshal stop at the first invalid field, including
// fields of nested mappings.
func WithFailFast(enabled bool) MapperOption { return func(o *mapperOptions) { o.failFast = enabled } }

type mapperConfig struct {
	log      *slog.Logger
	failFast bool
}

// Mapper drives one Mapping over the data of each call. A Mapper holds
// configuration only; every call allocates its own sessions and output, so a
// Mapper may be shared between goroutines.
type Mapper struct {
	mapping *Mapping
	cfg     mapperConfig
}

// NewMapper resolves the options against m. A role, when given, is applied
// once here.
func NewMapper(m *Mapping, opts ...MapperOption) (*Mapper, error) {
	if m == nil {
		return nil, &FieldError{Message: "mapper needs a mapping"}
	}
	var o mapperOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.roleName != "" {
		r, ok := m.Role(o.roleName)
		if !ok {
			return nil, &FieldError{Message: fmt.Sprintf("mapping %q has no role %q", m.Name(), o.roleName)}
		}
		o.role = r
	}
	if o.role != nil {
		rm, err := CreateMappingFromRole(o.role, m)
		if err != nil {
			return nil, err
		}
		m = rm
	}
	if o.log == nil {
		o.log = discardLogger
	}
	return &Mapper{mapping: m, cfg: mapperConfig{log: o.log, failFast: o.failFast}}, nil
}

// MustMapper is like NewMapper but panics on error.
func MustMapper(m *Mapping, opts ...MapperOption) *Mapper {
	mp, err := NewMapper(m, opts...)
	if err != nil {
		panic(err)
	}
	return mp
}

// Mapping returns the (role-filtered) mapping the mapper drives.
func (mp *Mapper) Mapping() *Mapping { return mp.mapping }

// Marshal runs every field's input pipeline over data in declared order.
// Invalid fields are collected and returned together as Issues; a
// *FieldError aborts immediately.
func (mp *Mapper) Marshal(ctx context.Context, data map[string]any) (map[string]any, error) {
	return marshalFields(ctx, mp.mapping, MapObject(data), mp.cfg)
}

// MarshalObject is Marshal over any Object.
func (mp *Mapper) MarshalObject(ctx context.Context, data Object) (map[string]any, error) {
	return marshalFields(ctx, mp.mapping, data, mp.cfg)
}

// MarshalInto marshals data and assigns every output key onto dst, which
// may be a SettableObject, a map[string]any or a pointer to a struct.
func (mp *Mapper) MarshalInto(ctx context.Context, data map[string]any, dst any) error {
	out, err := mp.Marshal(ctx, data)
	if err != nil {
		return err
	}
	var so SettableObject
	switch t := dst.(type) {
	case SettableObject:
		so = t
	case map[string]any:
		so = MapObject(t)
	default:
		if so, err = StructObject(dst); err != nil {
			return &FieldError{Message: "cannot marshal into destination", Cause: err}
		}
	}
	for _, name := range mp.mapping.Names() {
		v, ok := out[name]
		if !ok {
			continue
		}
		if err := so.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Serialize runs every field's output pipeline over obj in declared order.
// Any failure is fatal: it means obj does not fit the schema.
func (mp *Mapper) Serialize(ctx context.Context, obj any) (map[string]any, error) {
	o, err := ObjectOf(obj)
	if err != nil {
		return nil, &FieldError{Message: "cannot serialize source", Cause: err}
	}
	return serializeFields(ctx, mp.mapping, o, mp.cfg)
}

func marshalFields(ctx context.Context, m *Mapping, data Object, cfg mapperConfig) (map[string]any, error) {
	ms := newCallSession(ctx, data, nil, cfg)
	var iss Issues
	for _, f := range m.fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := f.Marshal(ms)
		if err == nil {
			continue
		}
		var fi *FieldInvalid
		if !errors.As(err, &fi) {
			cfg.log.DebugContext(ctx, "marshal aborted", slog.String("mapping", m.name), slog.Any("error", err))
			return nil, err
		}
		name, _ := f.Name()
		cfg.log.DebugContext(ctx, "field invalid",
			slog.String("mapping", m.name),
			slog.String("field", name),
			slog.String("code", fi.Code))
		iss = AppendIssues(iss, issuesFromInvalid(name, fi)...)
		if cfg.failFast {
			break
		}
	}
	if len(iss) > 0 {
		cfg.log.DebugContext(ctx, "marshal failed", slog.String("mapping", m.name), slog.Int("issues", len(iss)))
		return nil, iss
	}
	return ms.Output, nil
}

func serializeFields(ctx context.Context, m *Mapping, obj Object, cfg mapperConfig) (map[string]any, error) {
	ms := newCallSession(ctx, nil, obj, cfg)
	for _, f := range m.fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := f.Serialize(ms); err != nil {
			cfg.log.DebugContext(ctx, "serialize aborted", slog.String("mapping", m.name), slog.Any("error", err))
			return nil, err
		}
	}
	return ms.Output, nil
}
