package kim

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/reoring/kim/i18n"
)

// Options enumerates every recognized field option. The zero value is a
// nameless, optional, nullable, writable field with no default.
type Options struct {
	// Name is the external key. It falls back to AttributeName.
	Name string
	// AttributeName is the attribute name on the internal object.
	AttributeName string
	// Source is the key read from the input (marshal) and the attribute read
	// from the object (serialize). It falls back to the resolved name.
	Source string
	// Required fails marshal when the key is absent and no default exists.
	Required bool
	// Default is substituted for an absent key. nil means no default.
	Default any
	// AllowNone controls whether nil passes through. nil means true.
	AllowNone *bool
	// ReadOnly fields are never written by marshal.
	ReadOnly bool
	// Choices restricts the coerced value to a fixed set.
	Choices []any
	// ErrorMsgs overrides the built-in message templates per error code.
	ErrorMsgs map[string]string
}

// Bool returns a pointer to b, for Options.AllowNone.
func Bool(b bool) *bool { return &b }

// OptsCheck is a construction-time check over resolved options. It should
// report failures as *FieldOptsError.
type OptsCheck func(*FieldOpts) error

// FieldOpts is the validated, immutable configuration of one field.
type FieldOpts struct {
	name          string
	attributeName string
	source        string
	required      bool
	def           any
	hasDefault    bool
	allowNone     bool
	readOnly      bool
	choices       []any
	errorMsgs     map[string]string
}

// NewFieldOpts validates o and runs the extra checks. Every failure is
// reported as a *FieldError.
func NewFieldOpts(o Options, checks ...OptsCheck) (*FieldOpts, error) {
	fo := &FieldOpts{
		name:          o.Name,
		attributeName: o.AttributeName,
		source:        o.Source,
		required:      o.Required,
		def:           o.Default,
		hasDefault:    o.Default != nil,
		allowNone:     o.AllowNone == nil || *o.AllowNone,
		readOnly:      o.ReadOnly,
		choices:       slices.Clone(o.Choices),
		errorMsgs:     i18n.Defaults(),
	}
	maps.Copy(fo.errorMsgs, o.ErrorMsgs)

	for i, c := range fo.choices {
		if c == nil {
			continue
		}
		if !reflect.ValueOf(c).Comparable() {
			return nil, &FieldError{Field: fo.displayName(), Message: fmt.Sprintf("choice %d (%T) is not comparable", i, c)}
		}
	}
	for _, check := range checks {
		if check == nil {
			continue
		}
		if err := check(fo); err != nil {
			return nil, &FieldError{Field: fo.displayName(), Message: "invalid options", Cause: err}
		}
	}
	return fo, nil
}

// Name resolves to the explicit name, else the attribute name. It fails with
// a *FieldError when neither was supplied.
func (o *FieldOpts) Name() (string, error) {
	if o.name != "" {
		return o.name, nil
	}
	if o.attributeName != "" {
		return o.attributeName, nil
	}
	return "", &FieldError{Message: "field has neither name nor attribute_name"}
}

func (o *FieldOpts) displayName() string {
	n, _ := o.Name()
	return n
}

// Source resolves to the explicit source, else the resolved name ("" when
// the field is nameless).
func (o *FieldOpts) Source() string {
	if o.source != "" {
		return o.source
	}
	return o.displayName()
}

func (o *FieldOpts) AttributeName() string { return o.attributeName }
func (o *FieldOpts) Required() bool        { return o.required }
func (o *FieldOpts) AllowNone() bool       { return o.allowNone }
func (o *FieldOpts) ReadOnly() bool        { return o.readOnly }

// Default returns the field-level default.
func (o *FieldOpts) Default() (any, bool) { return o.def, o.hasDefault }

// Choices returns a copy of the configured choices.
func (o *FieldOpts) Choices() []any { return slices.Clone(o.choices) }

// HasChoices reports whether the field restricts its values.
func (o *FieldOpts) HasChoices() bool { return len(o.choices) > 0 }

// IsChoice reports whether v is one of the configured choices.
func (o *FieldOpts) IsChoice(v any) bool {
	return slices.ContainsFunc(o.choices, func(c any) bool { return equalValues(c, v) })
}

// ErrorMsgs returns a copy of the merged message templates.
func (o *FieldOpts) ErrorMsgs() map[string]string { return maps.Clone(o.errorMsgs) }

// ErrorMsg returns the template for code.
func (o *FieldOpts) ErrorMsg(code string) (string, bool) {
	m, ok := o.errorMsgs[code]
	return m, ok
}

func equalValues(a, b any) bool {
	if da, ok := a.(decimal.Decimal); ok {
		db, err := toDecimal(b)
		return err == nil && da.Equal(db)
	}
	if db, ok := b.(decimal.Decimal); ok {
		da, err := toDecimal(a)
		return err == nil && da.Equal(db)
	}
	if a == nil || b == nil {
		return a == b
	}
	if reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// ErrChoicesRequired is a ready-made OptsCheck failure for kinds that need
// choices.
var ErrChoicesRequired = errors.New("choices must not be empty")

// RequireChoices is an OptsCheck for enum-like field kinds.
func RequireChoices(o *FieldOpts) error {
	if !o.HasChoices() {
		return &FieldOptsError{Message: ErrChoicesRequired.Error()}
	}
	return nil
}
