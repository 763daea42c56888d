package record

import (
	"fmt"
	"sort"
	"strings"
)

// Schema is the ordered field set of one result set, discovered from its
// first record. Headers and filter options are driven by it so unexpected
// fields on later records never leak into the output.
type Schema struct {
	fields []string
	index  map[string]int
}

// NewSchema keeps the first occurrence of each non-empty field name.
func NewSchema(fields ...string) *Schema {
	s := &Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, dup := s.index[f]; dup {
			continue
		}
		s.index[f] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// InferSchema builds a schema from the first record. Map iteration order is
// not stable so fields are sorted; decoders that know the wire order should
// use NewSchema instead.
func InferSchema(records []Record) *Schema {
	if len(records) == 0 {
		return NewSchema()
	}
	fields := make([]string, 0, len(records[0]))
	for k := range records[0] {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return NewSchema(fields...)
}

func (s *Schema) Fields() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

func (s *Schema) Has(field string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[field]
	return ok
}

// Field returns the i-th field, or "" when out of range.
func (s *Schema) Field(i int) string {
	if s == nil || i < 0 || i >= len(s.fields) {
		return ""
	}
	return s.fields[i]
}

// Row projects a record onto the schema order.
func (s *Schema) Row(r Record) []Value {
	row := make([]Value, s.Len())
	for i, f := range s.Fields() {
		row[i] = r.Get(f)
	}
	return row
}

// MismatchError reports how a record deviates from its schema.
type MismatchError struct {
	Missing []string
	Extra   []string
}

func (e *MismatchError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ","))
	}
	return fmt.Sprintf("record does not match schema: %s", strings.Join(parts, "; "))
}

// Validate returns a *MismatchError when r lacks schema fields or carries
// extra ones.
func (s *Schema) Validate(r Record) error {
	var missing, extra []string
	for _, f := range s.Fields() {
		if _, ok := r[f]; !ok {
			missing = append(missing, f)
		}
	}
	for k := range r {
		if !s.Has(k) {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return &MismatchError{Missing: missing, Extra: extra}
}

// DistinctValues returns the sorted distinct non-empty raw values of field.
// Fields outside the schema yield nil.
func (s *Schema) DistinctValues(records []Record, field string) []string {
	if !s.Has(field) {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range records {
		raw := r.Get(field).Raw()
		if raw == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}
