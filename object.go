package kim

import (
	"fmt"
	"reflect"
	"strings"
)

// Object is the named-attribute capability the engine reads from.
type Object interface {
	// Get returns the value stored under name and whether it exists.
	Get(name string) (any, bool)
}

// SettableObject is an Object whose attributes can be assigned.
type SettableObject interface {
	Object
	Set(name string, v any) error
}

// MapObject adapts a string-keyed map to SettableObject.
type MapObject map[string]any

func (m MapObject) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapObject) Set(name string, v any) error {
	m[name] = v
	return nil
}

// ObjectOf adapts v to an Object: Objects are returned as is, string-keyed
// maps become MapObject and structs (or pointers to structs) become
// StructObject. Anything else is a *ValidationError.
func ObjectOf(v any) (Object, error) {
	switch t := v.(type) {
	case Object:
		return t, nil
	case map[string]any:
		return MapObject(t), nil
	case nil:
		return nil, validationErrorf(v, "expected object, got null")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(MapObject, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	so, err := StructObject(v)
	if err != nil {
		return nil, validationErrorf(v, "expected object, got %T", v)
	}
	return so, nil
}

// structObject exposes struct fields by external key and by Go name.
type structObject struct {
	rv    reflect.Value
	index map[string][]int
}

// StructObject adapts a struct or a pointer to a struct. Set requires a
// non-nil pointer. Fields are addressed by ResolveStructKey and by their Go
// name; unexported fields are hidden.
func StructObject(v any) (SettableObject, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("kim: nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("kim: %T is not a struct", v)
	}
	return &structObject{rv: rv, index: structIndex(rv.Type())}, nil
}

func structIndex(rt reflect.Type) map[string][]int {
	idx := make(map[string][]int)
	for _, sf := range reflect.VisibleFields(rt) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		key := ResolveStructKey(sf)
		if key == "-" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = sf.Index
		}
		if _, dup := idx[sf.Name]; !dup {
			idx[sf.Name] = sf.Index
		}
	}
	return idx
}

func (o *structObject) field(name string) (reflect.Value, bool) {
	path, ok := o.index[name]
	if !ok {
		return reflect.Value{}, false
	}
	fv, err := o.rv.FieldByIndexErr(path)
	if err != nil {
		return reflect.Value{}, false
	}
	return fv, true
}

func (o *structObject) Get(name string) (any, bool) {
	fv, ok := o.field(name)
	if !ok {
		return nil, false
	}
	if fv.Kind() == reflect.Pointer && fv.IsNil() {
		return nil, true
	}
	return fv.Interface(), true
}

func (o *structObject) Set(name string, v any) error {
	fv, ok := o.field(name)
	if !ok {
		return &FieldError{Field: name, Message: "attribute not found on " + o.rv.Type().String()}
	}
	if !fv.CanSet() {
		return &FieldError{Field: name, Message: "attribute is not settable; pass a pointer"}
	}
	if err := assignValue(fv, v); err != nil {
		return &FieldError{Field: name, Message: "cannot assign value", Cause: err}
	}
	return nil
}

// assignValue stores v into dst, converting numeric kinds and descending
// into nested maps and slices.
func assignValue(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	src := reflect.ValueOf(v)
	st, dt := src.Type(), dst.Type()
	switch {
	case st.AssignableTo(dt):
		dst.Set(src)
		return nil
	case dt.Kind() == reflect.Pointer:
		nv := reflect.New(dt.Elem())
		if err := assignValue(nv.Elem(), v); err != nil {
			return err
		}
		dst.Set(nv)
		return nil
	case sameFamily(st.Kind(), dt.Kind()) && st.ConvertibleTo(dt):
		dst.Set(src.Convert(dt))
		return nil
	case dt.Kind() == reflect.Struct && st.Kind() == reflect.Map:
		m, ok := v.(map[string]any)
		if !ok {
			break
		}
		so := &structObject{rv: dst, index: structIndex(dt)}
		for k, mv := range m {
			if err := so.Set(k, mv); err != nil {
				return err
			}
		}
		return nil
	case dt.Kind() == reflect.Slice && (st.Kind() == reflect.Slice || st.Kind() == reflect.Array):
		out := reflect.MakeSlice(dt, src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := assignValue(out.Index(i), src.Index(i).Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		dst.Set(out)
		return nil
	}
	return fmt.Errorf("%s is not assignable to %s", st, dt)
}

func sameFamily(a, b reflect.Kind) bool { return kindFamily(a) != "" && kindFamily(a) == kindFamily(b) }

func kindFamily(k reflect.Kind) string {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	}
	return ""
}

// ResolveStructKey applies the repository-wide rule to resolve a struct
// field's external key.
// Priority: kim:"name=..." > json tag name > field name; "-" disables the field.
func ResolveStructKey(sf reflect.StructField) string {
	if kt := sf.Tag.Get("kim"); kt != "" {
		for _, p := range strings.Split(kt, ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "name=") {
				return strings.TrimPrefix(p, "name=")
			}
		}
	}
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			return "-"
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			if jt[:i] == "" {
				return sf.Name
			}
			return jt[:i]
		}
		return jt
	}
	return sf.Name
}
