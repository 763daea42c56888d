package query

import (
	"sort"

	"github.com/centrosedu/centros/engine/record"
)

// Criteria maps a field to the single raw value it must equal. Absent fields
// and empty values are unconstrained.
type Criteria map[string]string

// Active returns a copy holding only the constraining entries.
func (c Criteria) Active() Criteria {
	out := make(Criteria, len(c))
	for k, v := range c {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Fields returns the constrained fields in sorted order.
func (c Criteria) Fields() []string {
	fields := make([]string, 0, len(c))
	for k, v := range c {
		if v != "" {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}

func (c Criteria) IsEmpty() bool {
	for _, v := range c {
		if v != "" {
			return false
		}
	}
	return true
}

// Match reports whether r satisfies every active criterion. Comparison is
// exact equality on the raw text; null only matches an unconstrained field.
func (c Criteria) Match(r record.Record) bool {
	for field, want := range c {
		if want == "" {
			continue
		}
		v := r.Get(field)
		if v.IsNull() || v.Raw() != want {
			return false
		}
	}
	return true
}

// ApplyFilters returns the records matching all criteria, in input order.
// The input slice is never modified.
func ApplyFilters(records []record.Record, criteria Criteria) []record.Record {
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		if criteria.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
