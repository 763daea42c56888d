package record

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind identifies the scalar type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "null"
	}
}

// Value is a scalar field value: a string, a number or null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

func Null() Value {
	return Value{}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Num returns the numeric payload; ok is false for non-number values.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Raw is the textual form used for equality filtering and display.
// Numbers use the shortest representation that round-trips; null is "".
func (v Value) Raw() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

func (v Value) String() string {
	return v.Raw()
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	default:
		return true
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return json.Marshal(v.Raw())
		}
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

// Record maps field names to scalar values. The field set is discovered at
// runtime; see Schema.
type Record map[string]Value

// Get returns the value for field, or Null when the field is absent.
func (r Record) Get(field string) Value {
	if r == nil {
		return Null()
	}
	return r[field]
}

// Of builds a Record from plain Go values. Strings, numeric types and nil are
// accepted; anything else is stored as its JSON text.
func Of(fields map[string]any) Record {
	r := make(Record, len(fields))
	for k, v := range fields {
		r[k] = FromAny(v)
	}
	return r
}

func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case bool:
		return String(strconv.FormatBool(t))
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return Null()
		}
		return String(string(b))
	}
}
