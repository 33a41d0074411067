package kim

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	js "github.com/reoring/kim/jsonschema"
)

// StringType is the text Type. Both transforms are the identity.
type StringType struct{}

var _ Type = StringType{}

// String returns the text Type.
func String() StringType { return StringType{} }

func (StringType) GetValue(v any) (any, error)     { return v, nil }
func (StringType) FromValue(v any) (any, error)    { return v, nil }
func (StringType) Validate(v any) error            { return stringShape.Validate(v) }
func (StringType) JSONSchema() (*js.Schema, error) { return &js.Schema{Type: "string"}, nil }

// IntegerType is the whole-number Type. FromValue produces an int.
type IntegerType struct{}

var _ Type = IntegerType{}

// Integer returns the whole-number Type.
func Integer() IntegerType { return IntegerType{} }

func (IntegerType) GetValue(v any) (any, error) { return v, nil }

// FromValue accepts integers, floats (truncated toward zero), json.Number,
// decimal.Decimal and numeric strings.
func (IntegerType) FromValue(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case bool:
		return nil, validationErrorf(v, "expected integer, got bool")
	case float32:
		return truncFloat(v, float64(n))
	case float64:
		return truncFloat(v, n)
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, strconv.IntSize); err == nil {
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, &ValidationError{Message: "expected integer", Value: v, Cause: err}
		}
		return truncFloat(v, f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil, &ValidationError{Message: "expected integer", Value: v, Cause: err}
		}
		return i, nil
	case decimal.Decimal:
		bi := n.Truncate(0).BigInt()
		if !bi.IsInt64() || !fitsInt(bi.Int64()) {
			return nil, validationErrorf(v, "integer %s out of range", n)
		}
		return int(bi.Int64()), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return nil, validationErrorf(v, "expected integer, got null")
	case rv.CanInt():
		if !fitsInt(rv.Int()) {
			return nil, validationErrorf(v, "integer %d out of range", rv.Int())
		}
		return int(rv.Int()), nil
	case rv.CanUint():
		if rv.Uint() > math.MaxInt {
			return nil, validationErrorf(v, "integer %d out of range", rv.Uint())
		}
		return int(rv.Uint()), nil
	case rv.Kind() == reflect.String:
		return Integer().FromValue(rv.String())
	}
	return nil, validationErrorf(v, "expected integer, got %T", v)
}

func (IntegerType) Validate(v any) error            { return integerShape.Validate(v) }
func (IntegerType) JSONSchema() (*js.Schema, error) { return &js.Schema{Type: "integer"}, nil }

func truncFloat(orig any, f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, validationErrorf(orig, "expected integer, got %v", f)
	}
	t := math.Trunc(f)
	if t < math.MinInt || t >= math.MaxInt {
		return nil, validationErrorf(orig, "integer %v out of range", f)
	}
	return int(t), nil
}

func fitsInt(i int64) bool { return i >= math.MinInt && i <= math.MaxInt }

// DecimalType is the arbitrary-precision decimal Type backed by
// shopspring/decimal.
type DecimalType struct {
	places       int32
	hasPrecision bool
}

var _ Type = DecimalType{}

// Decimal returns a decimal Type that performs no rounding.
func Decimal() DecimalType { return DecimalType{} }

// WithPrecision returns a copy that rounds coerced values half away from
// zero to places fractional digits. A negative places removes the
// precision.
func (d DecimalType) WithPrecision(places int32) DecimalType {
	if places < 0 {
		d.places, d.hasPrecision = 0, false
		return d
	}
	d.places = places
	d.hasPrecision = true
	return d
}

// Precision reports the configured number of fractional digits.
func (d DecimalType) Precision() (int32, bool) { return d.places, d.hasPrecision }

func (d DecimalType) FromValue(v any) (any, error) {
	dec, err := toDecimal(v)
	if err != nil {
		return nil, err
	}
	if d.hasPrecision {
		dec = dec.Round(d.places)
	}
	return dec, nil
}

// GetValue renders the value as a decimal string, fixed to the configured
// precision when one is set.
func (d DecimalType) GetValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	dec, err := toDecimal(v)
	if err != nil {
		return nil, err
	}
	if d.hasPrecision {
		return dec.StringFixed(d.places), nil
	}
	return dec.String(), nil
}

func (DecimalType) Validate(v any) error {
	if _, ok := v.(decimal.Decimal); !ok {
		return validationErrorf(v, "expected decimal, got %T", v)
	}
	return nil
}

func (DecimalType) JSONSchema() (*js.Schema, error) {
	return &js.Schema{Type: "string", Format: "decimal"}, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case *decimal.Decimal:
		if n != nil {
			return *n, nil
		}
	case bool:
		return decimal.Decimal{}, validationErrorf(v, "expected decimal, got bool")
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Decimal{}, &ValidationError{Message: "expected decimal", Value: v, Cause: err}
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(string(n))
		if err != nil {
			return decimal.Decimal{}, &ValidationError{Message: "expected decimal", Value: v, Cause: err}
		}
		return d, nil
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return decimal.Decimal{}, validationErrorf(v, "expected decimal, got %v", n)
		}
		return decimal.NewFromFloat32(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, validationErrorf(v, "expected decimal, got %v", n)
		}
		return decimal.NewFromFloat(n), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return decimal.Decimal{}, validationErrorf(v, "expected decimal, got null")
	case rv.CanInt():
		return decimal.NewFromInt(rv.Int()), nil
	case rv.CanUint():
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), nil
	}
	return decimal.Decimal{}, validationErrorf(v, "expected decimal, got %T", v)
}
