package kim_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/kim"
)

func TestField_NameResolution(t *testing.T) {
	f := kim.MustField(kim.String(), kim.Options{Name: "email", AttributeName: "Email"})
	name, err := f.Name()
	require.NoError(t, err)
	assert.Equal(t, "email", name)
	assert.Equal(t, "email", f.Source())

	f = kim.MustField(kim.String(), kim.Options{AttributeName: "email_address"})
	name, err = f.Name()
	require.NoError(t, err)
	assert.Equal(t, "email_address", name)

	f = kim.MustField(kim.String(), kim.Options{Name: "email", Source: "mail"})
	assert.Equal(t, "mail", f.Source())
}

func TestField_UnnamedIsFieldError(t *testing.T) {
	f := kim.MustField(kim.String(), kim.Options{})
	_, err := f.Name()
	var fe *kim.FieldError
	require.ErrorAs(t, err, &fe)

	err = f.Marshal(kim.NewMapperSession(kim.MapObject{}, nil))
	require.ErrorAs(t, err, &fe)

	_, err = kim.NewMapping("m", f)
	require.ErrorAs(t, err, &fe)
}

func TestField_NilTypeIsFieldError(t *testing.T) {
	_, err := kim.NewField(nil, kim.Options{Name: "x"})
	var fe *kim.FieldError
	require.ErrorAs(t, err, &fe)
}

func TestField_Invalid_DefaultAndCustomMessages(t *testing.T) {
	f := kim.MustField(kim.Integer(), kim.Options{Name: "age"})
	err := f.Invalid(kim.CodeRequired, nil)
	var fi *kim.FieldInvalid
	require.ErrorAs(t, err, &fi)
	assert.Equal(t, "age", fi.Field)
	assert.Equal(t, kim.CodeRequired, fi.Code)
	assert.Equal(t, "This is a required field", fi.Message)

	f = kim.MustField(kim.Integer(), kim.Options{
		Name:      "age",
		ErrorMsgs: map[string]string{kim.CodeRequired: "{name} is mandatory ({hint})"},
	})
	err = f.Invalid(kim.CodeRequired, map[string]string{"hint": "years"})
	require.ErrorAs(t, err, &fi)
	assert.Equal(t, "age is mandatory (years)", fi.Message)

	// untouched codes keep their defaults
	msg, ok := f.Opts().ErrorMsg(kim.CodeTypeError)
	require.True(t, ok)
	assert.Equal(t, "Invalid type", msg)
}

func TestField_ChoiceKindRequiresChoices(t *testing.T) {
	_, err := kim.NewFieldOf(kim.ChoiceKind, kim.String(), kim.Options{Name: "status"})
	var fe *kim.FieldError
	require.ErrorAs(t, err, &fe)
	var oe *kim.FieldOptsError
	require.ErrorAs(t, err, &oe)

	f, err := kim.NewFieldOf(kim.ChoiceKind, kim.String(), kim.Options{Name: "status", Choices: []any{"on", "off"}})
	require.NoError(t, err)
	assert.Equal(t, "choice", f.Kind())
}

func TestField_CustomOptsCheck(t *testing.T) {
	noDefault := func(o *kim.FieldOpts) error {
		if _, ok := o.Default(); ok {
			return &kim.FieldOptsError{Message: "defaults are not supported"}
		}
		return nil
	}
	kind := kim.FieldKind{Name: "strict", Checks: []kim.OptsCheck{noDefault}}

	_, err := kim.NewFieldOf(kind, kim.String(), kim.Options{Name: "a", Default: "x"})
	var fe *kim.FieldError
	require.ErrorAs(t, err, &fe)

	f, err := kim.NewFieldOf(kind, kim.String(), kim.Options{Name: "a"})
	require.NoError(t, err)
	// nil pipelines fall back to the standard ones
	assert.Len(t, f.InputPipeline().Stages(), 7)
}

func TestField_NonComparableChoicesRejected(t *testing.T) {
	_, err := kim.NewField(kim.Any(), kim.Options{Name: "a", Choices: []any{[]int{1}}})
	var fe *kim.FieldError
	require.ErrorAs(t, err, &fe)
}

type choiceTagged struct{ V any }

func TestField_ChoicesHoldingSlices(t *testing.T) {
	_, err := kim.NewField(kim.Any(), kim.Options{Name: "a", Choices: []any{choiceTagged{V: []int{1}}}})
	var fe *kim.FieldError
	require.ErrorAs(t, err, &fe)

	f := kim.MustField(kim.Any(), kim.Options{Name: "a", Choices: []any{choiceTagged{V: 1}}})
	ms := kim.NewMapperSession(kim.MapObject{"a": choiceTagged{V: []int{1}}}, nil)
	var fi *kim.FieldInvalid
	require.NotPanics(t, func() { err = f.Marshal(ms) })
	require.ErrorAs(t, err, &fi)
	assert.Equal(t, kim.CodeInvalidChoice, fi.Code)

	ms = kim.NewMapperSession(kim.MapObject{"a": choiceTagged{V: 1}}, nil)
	require.NoError(t, f.Marshal(ms))
	assert.Equal(t, choiceTagged{V: 1}, ms.Output["a"])
}

func stageNames(p kim.Pipeline) []string {
	var out []string
	for _, st := range p.Stages() {
		out = append(out, st.Name())
	}
	return out
}

func TestField_Pipelines(t *testing.T) {
	f := kim.MustField(kim.String(), kim.Options{Name: "a"})
	assert.Equal(t,
		[]string{"read_only", "resolve", "required", "none", "coerce", "choice", "write"},
		stageNames(f.InputPipeline()))
	assert.Equal(t, []string{"extract", "get_value", "write"}, stageNames(f.OutputPipeline()))
}

func TestField_CustomPipeline(t *testing.T) {
	upper := kim.NewStage("upper", func(s *kim.Session) (any, error) {
		if str, ok := s.Value.(string); ok {
			return str + "!", nil
		}
		return s.Value, nil
	})
	kind := kim.FieldKind{
		Name: "shout",
		Input: func() kim.Pipeline {
			return kim.NewPipeline("shout", kim.ResolveStage, kim.RequiredStage, upper, kim.WriteStage)
		},
	}
	f, err := kim.NewFieldOf(kind, kim.String(), kim.Options{Name: "a"})
	require.NoError(t, err)

	ms := kim.NewMapperSession(kim.MapObject{"a": "hi"}, nil)
	require.NoError(t, f.Marshal(ms))
	assert.Equal(t, "hi!", ms.Output["a"])
}

func TestField_SkipFieldStage(t *testing.T) {
	skip := kim.NewStage("skip", func(*kim.Session) (any, error) { return nil, kim.ErrSkipField })
	kind := kim.FieldKind{Input: func() kim.Pipeline { return kim.NewPipeline("skip", skip, kim.WriteStage) }}
	f, err := kim.NewFieldOf(kind, kim.String(), kim.Options{Name: "a"})
	require.NoError(t, err)

	ms := kim.NewMapperSession(kim.MapObject{"a": "x"}, nil)
	require.NoError(t, f.Marshal(ms))
	assert.NotContains(t, ms.Output, "a")
}

func TestField_Marshal(t *testing.T) {
	cases := []struct {
		name    string
		typ     kim.Type
		opts    kim.Options
		data    kim.MapObject
		want    any
		skipped bool
		code    string
	}{
		{name: "present", typ: kim.Integer(), opts: kim.Options{Name: "n"}, data: kim.MapObject{"n": "12"}, want: 12},
		{name: "source key", typ: kim.Integer(), opts: kim.Options{Name: "n", Source: "num"}, data: kim.MapObject{"num": 3}, want: 3},
		{name: "missing optional", typ: kim.Integer(), opts: kim.Options{Name: "n"}, data: kim.MapObject{}, skipped: true},
		{name: "missing required", typ: kim.Integer(), opts: kim.Options{Name: "n", Required: true}, data: kim.MapObject{}, code: kim.CodeRequired},
		{name: "missing none rejected", typ: kim.Integer(), opts: kim.Options{Name: "n", AllowNone: kim.Bool(false)}, data: kim.MapObject{}, code: kim.CodeNoneNotAllowed},
		{name: "default", typ: kim.Integer(), opts: kim.Options{Name: "n", Required: true, Default: "5"}, data: kim.MapObject{}, want: 5},
		{name: "read only", typ: kim.Integer(), opts: kim.Options{Name: "n", ReadOnly: true, Required: true}, data: kim.MapObject{"n": 1}, skipped: true},
		{name: "none allowed", typ: kim.Integer(), opts: kim.Options{Name: "n"}, data: kim.MapObject{"n": nil}, want: nil},
		{name: "none rejected", typ: kim.Integer(), opts: kim.Options{Name: "n", AllowNone: kim.Bool(false)}, data: kim.MapObject{"n": nil}, code: kim.CodeNoneNotAllowed},
		{name: "type error", typ: kim.Integer(), opts: kim.Options{Name: "n"}, data: kim.MapObject{"n": "abc"}, code: kim.CodeTypeError},
		{name: "choice ok", typ: kim.Integer(), opts: kim.Options{Name: "n", Choices: []any{1, 2}}, data: kim.MapObject{"n": "2"}, want: 2},
		{name: "choice bad", typ: kim.Integer(), opts: kim.Options{Name: "n", Choices: []any{1, 2}}, data: kim.MapObject{"n": 3}, code: kim.CodeInvalidChoice},
		{name: "none skips choice", typ: kim.Integer(), opts: kim.Options{Name: "n", Choices: []any{1}}, data: kim.MapObject{"n": nil}, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := kim.MustField(tc.typ, tc.opts)
			ms := kim.NewMapperSession(tc.data, nil)
			err := f.Marshal(ms)
			if tc.code != "" {
				var fi *kim.FieldInvalid
				require.ErrorAs(t, err, &fi)
				assert.Equal(t, tc.code, fi.Code)
				assert.NotContains(t, ms.Output, "n")
				return
			}
			require.NoError(t, err)
			if tc.skipped {
				assert.NotContains(t, ms.Output, "n")
				return
			}
			require.Contains(t, ms.Output, "n")
			assert.Equal(t, tc.want, ms.Output["n"])
		})
	}
}

func TestField_NoneMessage(t *testing.T) {
	f := kim.MustField(kim.String(), kim.Options{Name: "n", AllowNone: kim.Bool(false)})
	err := f.Marshal(kim.NewMapperSession(kim.MapObject{"n": nil}, nil))
	var fi *kim.FieldInvalid
	require.ErrorAs(t, err, &fi)
	assert.Equal(t, "This field cannot be null", fi.Message)
}

type sevenInt struct{ kim.IntegerType }

func (sevenInt) Default() (any, bool) { return 7, true }

func TestField_DefaultPrecedence(t *testing.T) {
	f := kim.MustField(sevenInt{}, kim.Options{Name: "n"})
	ms := kim.NewMapperSession(kim.MapObject{}, nil)
	require.NoError(t, f.Marshal(ms))
	assert.Equal(t, 7, ms.Output["n"])

	f = kim.MustField(sevenInt{}, kim.Options{Name: "n", Default: 9})
	ms = kim.NewMapperSession(kim.MapObject{}, nil)
	require.NoError(t, f.Marshal(ms))
	assert.Equal(t, 9, ms.Output["n"])
}

func TestField_Serialize(t *testing.T) {
	f := kim.MustField(kim.Integer(), kim.Options{Name: "n", Source: "Count"})
	ms := kim.NewMapperSession(nil, kim.MapObject{"Count": 4})
	require.NoError(t, f.Serialize(ms))
	assert.Equal(t, map[string]any{"n": 4}, ms.Output)

	ms = kim.NewMapperSession(nil, kim.MapObject{})
	err := f.Serialize(ms)
	var fe *kim.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "Count")
}

func TestField_SerializeTypeFailureIsFieldError(t *testing.T) {
	f := kim.MustField(kim.Decimal(), kim.Options{Name: "price"})
	err := f.Serialize(kim.NewMapperSession(nil, kim.MapObject{"price": true}))
	var fe *kim.FieldError
	require.ErrorAs(t, err, &fe)
	var ve *kim.ValidationError
	assert.True(t, errors.As(err, &ve))
}
