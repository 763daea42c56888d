package record

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// ErrMalformed reports a payload whose shape does not match what was asked for.
var ErrMalformed = errors.New("malformed payload")

// ResultSet is one decoded batch of records plus the schema taken from the
// first record's wire order.
type ResultSet struct {
	Records []Record
	Schema  *Schema
}

func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// DecodeArray decodes the array of objects found at path. Object key order of
// the first element becomes the schema order. Booleans become "true"/"false"
// strings and nested JSON is kept as its raw text.
func DecodeArray(data []byte, path string) (*ResultSet, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	arr := gjson.GetBytes(data, path)
	if !arr.Exists() {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformed, path)
	}
	if !arr.IsArray() {
		return nil, fmt.Errorf("%w: %q is %s, not an array", ErrMalformed, path, arr.Type)
	}
	var (
		records []Record
		fields  []string
		decErr  error
		idx     int
	)
	arr.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			decErr = fmt.Errorf("%w: element %d of %q is not an object", ErrMalformed, idx, path)
			return false
		}
		first := idx == 0
		rec := make(Record)
		item.ForEach(func(k, v gjson.Result) bool {
			name := k.String()
			rec[name] = fromJSON(v)
			if first {
				fields = append(fields, name)
			}
			return true
		})
		records = append(records, rec)
		idx++
		return true
	})
	if decErr != nil {
		return nil, decErr
	}
	if records == nil {
		records = []Record{}
	}
	return &ResultSet{Records: records, Schema: NewSchema(fields...)}, nil
}

// DecodeStrings decodes an array of scalars at path into their string forms.
func DecodeStrings(data []byte, path string) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	arr := gjson.GetBytes(data, path)
	if !arr.IsArray() {
		return nil, fmt.Errorf("%w: %q is not an array", ErrMalformed, path)
	}
	out := make([]string, 0, len(arr.Array()))
	for _, item := range arr.Array() {
		if item.Type == gjson.Null {
			continue
		}
		out = append(out, fromJSON(item).Raw())
	}
	return out, nil
}

func fromJSON(v gjson.Result) Value {
	switch v.Type {
	case gjson.Null:
		return Null()
	case gjson.String:
		return String(v.Str)
	case gjson.Number:
		// Out of range literals such as 1e999 keep their text.
		if math.IsInf(v.Num, 0) {
			return String(v.Raw)
		}
		return Number(v.Num)
	default:
		return String(v.Raw)
	}
}
