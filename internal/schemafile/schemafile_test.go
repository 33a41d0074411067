package schemafile

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/kim"
)

func TestLoad_OrderDescriptor(t *testing.T) {
	m, err := Load("testdata/order.yaml")
	require.NoError(t, err)

	assert.Equal(t, "order", m.Name())
	assert.Equal(t, "api", m.Kind())
	assert.Equal(t, []string{"id", "customer", "status", "total", "address", "lines", "secret", "tags"}, m.Names())
	assert.Equal(t, []string{"public", "summary"}, m.RoleNames())

	f, ok := m.Field("customer")
	require.True(t, ok)
	assert.Equal(t, "customer_name", f.Source())
	assert.True(t, f.Opts().Required())

	f, _ = m.Field("total")
	dt, ok := f.Type().(kim.DecimalType)
	require.True(t, ok)
	p, _ := dt.Precision()
	assert.Equal(t, int32(2), p)
	assert.False(t, f.Opts().AllowNone())

	f, _ = m.Field("address")
	nt, ok := f.Type().(*kim.NestedType)
	require.True(t, ok)
	require.NotNil(t, nt.Role())
	assert.Equal(t, "address", nt.Mapping().Name())

	f, _ = m.Field("lines")
	ct, ok := f.Type().(kim.CollectionType)
	require.True(t, ok)
	assert.Error(t, ct.Validate([]any{}))
	it, ok := ct.Item().(*kim.NestedType)
	require.True(t, ok)
	assert.Equal(t, "lines", it.Mapping().Name())
}

func TestLoad_MarshalThroughDescriptor(t *testing.T) {
	m, err := Load("testdata/order.yaml")
	require.NoError(t, err)

	mp := kim.MustMapper(m)
	out, err := mp.Marshal(context.Background(), map[string]any{
		"id":            99,
		"customer_name": "Aiko",
		"total":         "10.005",
		"address":       map[string]any{"city": "Fukuoka", "zip": 810},
		"lines":         []any{map[string]any{"sku": "A-1"}},
		"tags":          []any{"gift"},
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "id")
	assert.Equal(t, "Aiko", out["customer"])
	assert.Equal(t, "new", out["status"])
	assert.True(t, out["total"].(decimal.Decimal).Equal(decimal.RequireFromString("10.01")))
	assert.Equal(t, map[string]any{"city": "Fukuoka"}, out["address"])
	assert.Equal(t, []any{map[string]any{"sku": "A-1", "qty": 1}}, out["lines"])
	assert.Equal(t, []any{"gift"}, out["tags"])

	_, err = mp.Marshal(context.Background(), map[string]any{"status": "void", "lines": []any{map[string]any{}}})
	iss, ok := kim.AsIssues(err)
	require.True(t, ok, "%v", err)
	it, ok := iss.ByPath("/customer")
	require.True(t, ok)
	assert.Equal(t, "customer please", it.Message)
	_, ok = iss.ByPath("/status")
	assert.True(t, ok)
	_, ok = iss.ByPath("/lines/0/sku")
	assert.True(t, ok)
}

func TestLoad_RoleByName(t *testing.T) {
	m, err := Load("testdata/order.yaml")
	require.NoError(t, err)
	mp, err := kim.NewMapper(m, kim.WithRoleName("summary"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "total"}, mp.Mapping().Names())

	mp, err = kim.NewMapper(m, kim.WithRoleName("public"))
	require.NoError(t, err)
	assert.NotContains(t, mp.Mapping().Names(), "secret")
}

func TestParse_JSONDescriptor(t *testing.T) {
	f, err := Parse([]byte(`{"name": "point", "fields": [{"name": "x", "type": "integer", "required": true}, {"name": "y", "type": "integer", "default": 0}]}`))
	require.NoError(t, err)
	m, err := f.Build()
	require.NoError(t, err)
	out, err := kim.MustMapper(m).Marshal(context.Background(), map[string]any{"x": "3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 3, "y": 0}, out)
}

func TestBuild_DateTime(t *testing.T) {
	f, err := Parse([]byte("fields: [{name: at, type: datetime}]"))
	require.NoError(t, err)
	m, err := f.Build()
	require.NoError(t, err)
	out, err := kim.MustMapper(m).Marshal(context.Background(), map[string]any{"at": "2025-01-02T03:04:05Z"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), out["at"])
}

func TestBuild_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown type":       "fields: [{name: a, type: float}]",
		"precision":          "fields: [{name: a, type: integer, precision: 2}]",
		"negative precision": "fields: [{name: a, type: decimal, precision: -1}]",
		"nested no mapping":  "fields: [{name: a, type: nested}]",
		"nested bad role":    "fields: [{name: a, type: nested, role: x, mapping: {fields: [{name: b}]}}]",
		"collection no item": "fields: [{name: a, type: collection}]",
		"unnamed":            "fields: [{type: string}]",
		"duplicate":          "fields: [{name: a}, {name: a}]",
		"role unknown field": "roles: {r: {fields: [zzz]}}\nfields: [{name: a}]",
		"non comparable":     "fields: [{name: a, choices: [[1]]}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(doc))
			require.NoError(t, err)
			_, err = f.Build()
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/nope.yaml")
	assert.Error(t, err)
	_, err = Parse([]byte("fields: {"))
	assert.Error(t, err)
}
