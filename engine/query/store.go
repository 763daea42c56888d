package query

import (
	"sync"

	"github.com/centrosedu/centros/engine/record"
)

// Store holds a fully loaded dataset and the view derived from it by the
// active criteria and sort. The view is recomputed on every change.
type Store struct {
	mu       sync.RWMutex
	numeric  NumericFields
	original []record.Record
	schema   *record.Schema
	criteria Criteria
	sort     Spec
	view     []record.Record
}

func NewStore(numeric NumericFields) *Store {
	if numeric == nil {
		numeric = NewNumericFields()
	}
	return &Store{
		numeric:  numeric,
		schema:   record.NewSchema(),
		criteria: Criteria{},
		view:     []record.Record{},
	}
}

// Load replaces the dataset. A nil schema is inferred from the records.
// Active criteria and sort are kept and re-applied.
func (s *Store) Load(records []record.Record, schema *record.Schema) {
	if schema == nil {
		schema = record.InferSchema(records)
	}
	original := make([]record.Record, len(records))
	copy(original, records)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.original = original
	s.schema = schema
	s.recompute()
}

func (s *Store) SetFilters(criteria Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = criteria.Active()
	s.recompute()
}

func (s *Store) SetSort(spec Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort = spec
	s.recompute()
}

func (s *Store) ClearSort() {
	s.SetSort(Spec{})
}

func (s *Store) recompute() {
	s.view = ApplySort(ApplyFilters(s.original, s.criteria), s.sort, s.numeric)
}

// View returns the filtered and sorted records.
func (s *Store) View() []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]record.Record, len(s.view))
	copy(out, s.view)
	return out
}

func (s *Store) Original() []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]record.Record, len(s.original))
	copy(out, s.original)
	return out
}

func (s *Store) Schema() *record.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema
}

// Len is the size of the derived view.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.view)
}

// FilterOptions returns, per requested field, the distinct values present in
// the unfiltered dataset. Fields outside the schema are omitted.
func (s *Store) FilterOptions(fields ...string) map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(fields))
	for _, f := range fields {
		if !s.schema.Has(f) {
			continue
		}
		out[f] = s.schema.DistinctValues(s.original, f)
	}
	return out
}

// Page slices the view into 1-based pages of size records. hasNext reports
// whether records remain after this page.
func (s *Store) Page(page, size int) (records []record.Record, hasNext bool) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Compare before multiplying so huge page numbers cannot overflow.
	if len(s.view) == 0 || page-1 > (len(s.view)-1)/size {
		return []record.Record{}, false
	}
	start := (page - 1) * size
	end := min(start+size, len(s.view))
	out := make([]record.Record, end-start)
	copy(out, s.view[start:end])
	return out, end < len(s.view)
}
