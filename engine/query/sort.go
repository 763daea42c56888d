package query

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/centrosedu/centros/engine/record"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q (want asc or desc)", s)
	}
}

// Spec is a sort request: a field and a direction.
type Spec struct {
	Field     string
	Direction Direction
}

func (s Spec) IsZero() bool {
	return s.Field == ""
}

func (s Spec) String() string {
	if s.IsZero() {
		return ""
	}
	dir := s.Direction
	if dir != Desc {
		dir = Asc
	}
	return s.Field + ":" + string(dir)
}

// Toggle flips direction when field is already the sort field, otherwise
// starts ascending on field.
func (s Spec) Toggle(field string) Spec {
	if s.Field == field && s.Direction != Desc {
		return Spec{Field: field, Direction: Desc}
	}
	return Spec{Field: field, Direction: Asc}
}

// NumericFields lists fields compared by numeric parse instead of raw value.
type NumericFields map[string]struct{}

func NewNumericFields(fields ...string) NumericFields {
	n := make(NumericFields, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			n[f] = struct{}{}
		}
	}
	return n
}

func (n NumericFields) Has(field string) bool {
	_, ok := n[field]
	return ok
}

// ApplySort returns a stably sorted copy of records. Descending order negates
// the comparator so ties keep their input order in both directions.
func ApplySort(records []record.Record, spec Spec, numeric NumericFields) []record.Record {
	out := make([]record.Record, len(records))
	copy(out, records)
	if spec.IsZero() || len(out) < 2 {
		return out
	}
	sign := 1
	if spec.Direction == Desc {
		sign = -1
	}
	cmp := compareValues
	if numeric.Has(spec.Field) {
		cmp = compareNumeric
	}
	sort.SliceStable(out, func(i, j int) bool {
		return sign*cmp(out[i].Get(spec.Field), out[j].Get(spec.Field)) < 0
	})
	return out
}

// compareValues orders null first, then numbers numerically, strings
// lexically. Mixed number/string pairs compare by raw text.
func compareValues(a, b record.Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return -1
	case b.IsNull():
		return 1
	}
	an, aok := a.Num()
	bn, bok := b.Num()
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.Raw(), b.Raw())
}

func compareNumeric(a, b record.Value) int {
	return numericValue(a).Cmp(numericValue(b))
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// numericValue parses the leading number of v the way a float parse of user
// facing text would ("12.5 km" is 12.5). Anything unparsable is zero, and
// so are infinities and NaN.
func numericValue(v record.Value) decimal.Decimal {
	if n, ok := v.Num(); ok {
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(n)
	}
	m := numericPrefix.FindString(strings.TrimSpace(v.Raw()))
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}
