package kim

import "github.com/reoring/kim/i18n"

// FieldKind selects how a Field is built: which pipelines it runs and which
// extra option checks it enforces at construction.
type FieldKind struct {
	Name   string
	Input  func() Pipeline
	Output func() Pipeline
	Checks []OptsCheck
}

// DefaultKind runs the standard input and output pipelines.
var DefaultKind = FieldKind{Name: "field", Input: InputPipeline, Output: OutputPipeline}

// ChoiceKind is DefaultKind with non-empty choices enforced.
var ChoiceKind = FieldKind{Name: "choice", Input: InputPipeline, Output: OutputPipeline, Checks: []OptsCheck{RequireChoices}}

// Field binds a Type and its options to a schema position. It is immutable
// and safe to share across concurrent Mapper calls.
type Field struct {
	kind   string
	typ    Type
	opts   *FieldOpts
	input  Pipeline
	output Pipeline
}

// NewField builds a DefaultKind field.
func NewField(t Type, o Options) (*Field, error) { return NewFieldOf(DefaultKind, t, o) }

// NewFieldOf builds a field of the given kind. Option failures, including
// failures of the kind's checks, are reported as *FieldError.
func NewFieldOf(kind FieldKind, t Type, o Options) (*Field, error) {
	if t == nil {
		return nil, &FieldError{Field: o.Name, Message: "field has no type"}
	}
	opts, err := NewFieldOpts(o, kind.Checks...)
	if err != nil {
		return nil, err
	}
	in, out := kind.Input, kind.Output
	if in == nil {
		in = InputPipeline
	}
	if out == nil {
		out = OutputPipeline
	}
	return &Field{kind: kind.Name, typ: t, opts: opts, input: in(), output: out()}, nil
}

// MustField is like NewField but panics on error.
func MustField(t Type, o Options) *Field {
	f, err := NewField(t, o)
	if err != nil {
		panic(err)
	}
	return f
}

// Name returns the resolved field name, or a *FieldError when the field has
// neither a name nor an attribute name.
func (f *Field) Name() (string, error) { return f.opts.Name() }

// Source returns the key/attribute the field reads from.
func (f *Field) Source() string { return f.opts.Source() }

func (f *Field) Kind() string             { return f.kind }
func (f *Field) Type() Type               { return f.typ }
func (f *Field) Opts() *FieldOpts         { return f.opts }
func (f *Field) InputPipeline() Pipeline  { return f.input }
func (f *Field) OutputPipeline() Pipeline { return f.output }

// Default returns the field default, falling back to a Defaulter type's
// default.
func (f *Field) Default() (any, bool) {
	if v, ok := f.opts.Default(); ok {
		return v, true
	}
	if d, ok := f.typ.(Defaulter); ok {
		return d.Default()
	}
	return nil, false
}

// Marshal runs the input pipeline and writes the result into ms.Output.
// The first failing stage aborts with a *FieldInvalid or *FieldError.
func (f *Field) Marshal(ms *MapperSession) error {
	name, err := f.Name()
	if err != nil {
		return err
	}
	return f.input.Run(NewSession(f, name, nil, ms))
}

// Serialize runs the output pipeline over ms.Object and writes the result
// into ms.Output.
func (f *Field) Serialize(ms *MapperSession) error {
	name, err := f.Name()
	if err != nil {
		return err
	}
	return f.output.Run(NewSession(f, name, nil, ms))
}

// Invalid formats the template for code with data and returns it as a
// *FieldInvalid. {name} is always available to templates.
func (f *Field) Invalid(code string, data map[string]string) error {
	return f.invalid(code, data)
}

func (f *Field) invalid(code string, data map[string]string) *FieldInvalid {
	name := f.opts.displayName()
	tmpl, ok := f.opts.ErrorMsg(code)
	if !ok {
		tmpl = code
	}
	ctx := map[string]string{"name": name}
	for k, v := range data {
		ctx[k] = v
	}
	return &FieldInvalid{Field: name, Code: code, Message: i18n.Format(tmpl, ctx)}
}

func (f *Field) typeFailure(err error) error {
	if isFatal(err) {
		return err
	}
	if iss, ok := AsIssues(err); ok {
		fi := f.invalid(CodeTypeError, nil)
		fi.Issues = make(Issues, len(iss))
		for i, it := range iss {
			// element failures of a scalar collection carry no field of
			// their own and take this field's message
			if it.Field == "" {
				it.Field = fi.Field
				it.Message = f.invalid(it.Code, nil).Message
			}
			fi.Issues[i] = it
		}
		return fi
	}
	return f.invalid(CodeTypeError, map[string]string{"error": err.Error()})
}
