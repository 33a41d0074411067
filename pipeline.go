package kim

import (
	"context"
	"errors"
	"slices"
)

// ErrSkipField is returned by a Stage to stop its pipeline without writing
// the field and without failing.
var ErrSkipField = errors.New("kim: skip field")

// MapperSession is the per-call state shared by all fields of one Mapper
// call. Data is the marshal input, Object the serialize input.
type MapperSession struct {
	Data   Object
	Object Object
	Output map[string]any

	ctx context.Context
	cfg mapperConfig
}

// NewMapperSession returns a session writing into a fresh output map.
func NewMapperSession(data, obj Object) *MapperSession {
	return &MapperSession{Data: data, Object: obj, Output: map[string]any{}}
}

func newCallSession(ctx context.Context, data, obj Object, cfg mapperConfig) *MapperSession {
	ms := NewMapperSession(data, obj)
	ms.ctx = ctx
	ms.cfg = cfg
	return ms
}

// Context returns the context of the Mapper call, or context.Background
// for sessions built with NewMapperSession.
func (ms *MapperSession) Context() context.Context {
	if ms == nil || ms.ctx == nil {
		return context.Background()
	}
	return ms.ctx
}

func (ms *MapperSession) config() mapperConfig {
	if ms == nil || ms.cfg.log == nil {
		return defaultMapperConfig
	}
	return ms.cfg
}

// Session is the mutable context of one field's pipeline run. It is created
// for a single field of a single call and never reused.
type Session struct {
	Field *Field
	// Key is the resolved field name, the output key.
	Key string
	// Value is the running value passed between stages.
	Value any
	// Missing reports that the source key was absent and no default applied.
	Missing bool
	Mapper  *MapperSession
}

// NewSession returns a Session for f over ms.
func NewSession(f *Field, key string, value any, ms *MapperSession) *Session {
	return &Session{Field: f, Key: key, Value: value, Mapper: ms}
}

// Stage is one step of a pipeline. Transform returns the new running value.
type Stage interface {
	Name() string
	Transform(s *Session) (any, error)
}

type stageFunc struct {
	name string
	fn   func(*Session) (any, error)
}

func (s stageFunc) Name() string                       { return s.name }
func (s stageFunc) Transform(ss *Session) (any, error) { return s.fn(ss) }

// NewStage adapts a function into a Stage.
func NewStage(name string, fn func(*Session) (any, error)) Stage {
	return stageFunc{name: name, fn: fn}
}

// Pipeline is a fixed ordered list of stages.
type Pipeline struct {
	name   string
	stages []Stage
}

// NewPipeline compiles stages into an immutable Pipeline.
func NewPipeline(name string, stages ...Stage) Pipeline {
	return Pipeline{name: name, stages: slices.Clone(stages)}
}

func (p Pipeline) Name() string { return p.name }

// Stages returns a copy of the stage list.
func (p Pipeline) Stages() []Stage { return slices.Clone(p.stages) }

// Run executes the stages in order, aborting at the first error.
func (p Pipeline) Run(s *Session) error {
	for _, st := range p.stages {
		v, err := st.Transform(s)
		if errors.Is(err, ErrSkipField) {
			return nil
		}
		if err != nil {
			return err
		}
		s.Value = v
	}
	return nil
}

// InputPipeline returns the marshal pipeline:
// read-only, resolve, required, none, coerce, choice, write.
func InputPipeline() Pipeline {
	return NewPipeline("input",
		ReadOnlyStage, ResolveStage, RequiredStage, NoneStage, CoerceStage, ChoiceStage, WriteStage)
}

// OutputPipeline returns the serialize pipeline: extract, get-value, write.
func OutputPipeline() Pipeline {
	return NewPipeline("output", ExtractStage, GetValueStage, WriteStage)
}

var (
	// ReadOnlyStage skips read-only fields entirely.
	ReadOnlyStage = NewStage("read_only", func(s *Session) (any, error) {
		if s.Field.opts.ReadOnly() {
			return nil, ErrSkipField
		}
		return s.Value, nil
	})

	// ResolveStage reads the raw value by source, substituting the default
	// when the key is absent.
	ResolveStage = NewStage("resolve", func(s *Session) (any, error) {
		if s.Mapper == nil || s.Mapper.Data == nil {
			return nil, &FieldError{Field: s.Key, Message: "no input data in session"}
		}
		if v, ok := s.Mapper.Data.Get(s.Field.Source()); ok {
			return v, nil
		}
		if def, ok := s.Field.Default(); ok {
			return def, nil
		}
		s.Missing = true
		return nil, nil
	})

	// RequiredStage fails absent required fields and absent fields that
	// disallow nil. Other absent fields are skipped.
	RequiredStage = NewStage("required", func(s *Session) (any, error) {
		if !s.Missing {
			return s.Value, nil
		}
		switch {
		case s.Field.opts.Required():
			return nil, s.Field.Invalid(CodeRequired, nil)
		case !s.Field.opts.AllowNone():
			return nil, s.Field.Invalid(CodeNoneNotAllowed, nil)
		}
		return nil, ErrSkipField
	})

	// NoneStage lets nil through unless the field disallows it.
	NoneStage = NewStage("none", func(s *Session) (any, error) {
		if s.Value == nil && !s.Field.opts.AllowNone() {
			return nil, s.Field.Invalid(CodeNoneNotAllowed, nil)
		}
		return s.Value, nil
	})

	// CoerceStage runs the Type's FromValue then Validate. Type failures
	// become type_error; nested Issues are carried on the FieldInvalid.
	CoerceStage = NewStage("coerce", func(s *Session) (any, error) {
		if s.Value == nil {
			return nil, nil
		}
		t := s.Field.typ
		v, err := fromValueIn(s.Mapper.Context(), s.Mapper.config(), t, s.Value)
		if err == nil {
			err = t.Validate(v)
		}
		if err != nil {
			return nil, s.Field.typeFailure(err)
		}
		return v, nil
	})

	// ChoiceStage enforces the configured choices.
	ChoiceStage = NewStage("choice", func(s *Session) (any, error) {
		o := s.Field.opts
		if s.Value == nil || !o.HasChoices() || o.IsChoice(s.Value) {
			return s.Value, nil
		}
		return nil, s.Field.Invalid(CodeInvalidChoice, nil)
	})

	// WriteStage stores the running value under the field name.
	WriteStage = NewStage("write", func(s *Session) (any, error) {
		if s.Mapper == nil || s.Mapper.Output == nil {
			return nil, &FieldError{Field: s.Key, Message: "no output mapping in session"}
		}
		s.Mapper.Output[s.Key] = s.Value
		return s.Value, nil
	})

	// ExtractStage reads the attribute named by source from the object.
	ExtractStage = NewStage("extract", func(s *Session) (any, error) {
		if s.Mapper == nil || s.Mapper.Object == nil {
			return nil, &FieldError{Field: s.Key, Message: "no source object in session"}
		}
		src := s.Field.Source()
		v, ok := s.Mapper.Object.Get(src)
		if !ok {
			return nil, &FieldError{Field: s.Key, Message: "attribute " + src + " not found on object"}
		}
		return v, nil
	})

	// GetValueStage runs the Type's GetValue. Failures here mean the object
	// does not fit the schema, so they are reported as *FieldError.
	GetValueStage = NewStage("get_value", func(s *Session) (any, error) {
		v, err := getValueIn(s.Mapper.Context(), s.Mapper.config(), s.Field.typ, s.Value)
		if err == nil {
			return v, nil
		}
		if isFatal(err) {
			return nil, err
		}
		return nil, &FieldError{Field: s.Key, Message: "cannot serialize value", Cause: err}
	})
)
