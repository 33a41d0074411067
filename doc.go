// Package kim is a declarative, bidirectional schema engine.
//
// A Mapping is an ordered set of Fields. Each Field binds a Type (String,
// Integer, Decimal, Nested, Collection or a custom implementation) to its
// Options, and carries two pre-compiled pipelines:
//
//   - input (marshal): read_only, resolve, required, none, coerce, choice, write
//   - output (serialize): extract, get_value, write
//
// A Mapper drives a Mapping over the data of a single call:
//
//	m := kim.MustMapping("user",
//		kim.MustField(kim.String(), kim.Options{Name: "name", Required: true}),
//		kim.MustField(kim.Decimal().WithPrecision(2), kim.Options{Name: "price"}),
//	)
//	mp := kim.MustMapper(m)
//	out, err := mp.Marshal(ctx, map[string]any{"price": "2.519"})
//	iss, ok := kim.AsIssues(err) // required at /name
//
// Marshal collects every invalid field into Issues addressed by JSON
// Pointer, including fields of nested mappings and collection items.
// Schema defects surface as *FieldError and abort the call.
//
// Roles restrict a Mapping to a subset of its fields, either on a Mapper
// (WithRole, WithRoleName) or on a NestedType (WithRole). The source
// mapping is never modified.
package kim
