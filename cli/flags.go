package cli

import (
	"fmt"
	"strings"

	"github.com/centrosedu/centros/engine/centers"
	"github.com/centrosedu/centros/engine/controller"
	"github.com/centrosedu/centros/engine/query"
	"github.com/spf13/cobra"
)

// filterFlags binds the server-side filter flags to their Query fields.
var filterFlags = []struct {
	name  string
	usage string
	set   func(q *centers.Query, v string)
}{
	{"localidad", "Filter by locality", func(q *centers.Query, v string) { q.Locality = v }},
	{"etapa", "Filter by educational stage", func(q *centers.Query, v string) { q.Stage = v }},
	{"provincia", "Filter by province", func(q *centers.Query, v string) { q.Province = v }},
	{"codigo", "Filter by center code", func(q *centers.Query, v string) { q.Code = v }},
	{"nombre", "Filter by center name", func(q *centers.Query, v string) { q.Name = v }},
	{"tipo", "Filter by center type", func(q *centers.Query, v string) { q.CenterType = v }},
	{"origen", "Origin address used to compute distances", func(q *centers.Query, v string) { q.OriginAddress = v }},
}

// addQueryFlags registers the filter, sort and query configuration flags.
func addQueryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	for _, def := range filterFlags {
		f.String(def.name, "", def.usage)
	}
	f.StringArray("where", nil, "Exact-match filter on a result field, as field=value (repeatable)")
	f.String("sort", "", "Sort by result field")
	f.String("order", "asc", "Sort order (asc, desc)")
	f.Int("rows", 0, "Rows per page (1-100)")
	f.String("mode", "", "Query mode (server, client)")
	f.Int("prefetch", 0, "Pages fetched ahead after a cache miss")
	f.Int("dataset-size", 0, "Rows requested when loading the whole dataset in client mode")
	f.StringSlice("numeric-fields", nil, "Fields sorted by numeric value")
}

// parseFormFromFlags builds a search form from the query flags.
func parseFormFromFlags(cmd *cobra.Command) (controller.Form, error) {
	var form controller.Form
	for _, def := range filterFlags {
		v, err := cmd.Flags().GetString(def.name)
		if err != nil {
			return form, fmt.Errorf("failed to get %s flag: %w", def.name, err)
		}
		def.set(&form.Query, strings.TrimSpace(v))
	}
	where, err := cmd.Flags().GetStringArray("where")
	if err != nil {
		return form, fmt.Errorf("failed to get where flag: %w", err)
	}
	if form.Criteria, err = parseCriteria(where); err != nil {
		return form, err
	}
	if form.Sort, err = parseSortFlags(cmd); err != nil {
		return form, err
	}
	return form, nil
}

func parseCriteria(pairs []string) (query.Criteria, error) {
	criteria := query.Criteria{}
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid where filter %q (want field=value)", pair)
		}
		criteria[field] = value
	}
	return criteria, nil
}

func parseSortFlags(cmd *cobra.Command) (query.Spec, error) {
	field, err := cmd.Flags().GetString("sort")
	if err != nil {
		return query.Spec{}, fmt.Errorf("failed to get sort flag: %w", err)
	}
	order, err := cmd.Flags().GetString("order")
	if err != nil {
		return query.Spec{}, fmt.Errorf("failed to get order flag: %w", err)
	}
	dir, err := query.ParseDirection(order)
	if err != nil {
		return query.Spec{}, err
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return query.Spec{}, nil
	}
	return query.Spec{Field: field, Direction: dir}, nil
}
