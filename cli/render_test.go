package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/centrosedu/centros/engine/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() viewState {
	return viewState{
		Records: []record.Record{
			record.Of(map[string]any{"codigo": "41001", "D_DENOMINA": "IES Murillo", "distancia": 2.5}),
			record.Of(map[string]any{"codigo": "41002", "D_DENOMINA": "CEIP Triana"}),
		},
		Schema:  record.NewSchema("codigo", "D_DENOMINA", "distancia"),
		Page:    2,
		HasPrev: true,
		HasNext: true,
	}
}

func TestPageView(t *testing.T) {
	t.Run("Should capture every render call", func(t *testing.T) {
		v := &pageView{}
		state := sampleState()
		v.SetLoadingVisible(true)
		v.RenderError("old failure")
		v.Render(state.Records, state.Schema)
		v.RenderPagination(2, true, false)

		got := v.snapshot()
		assert.True(t, got.Loading)
		assert.Empty(t, got.Error)
		assert.Len(t, got.Records, 2)
		assert.Equal(t, 2, got.Page)
		assert.False(t, got.HasNext)
	})
}

func TestFormatTable(t *testing.T) {
	t.Run("Should draw headers in schema order and every row", func(t *testing.T) {
		out := formatTable(sampleState(), 120)
		assert.Contains(t, out, "codigo")
		assert.Contains(t, out, "D_DENOMINA")
		assert.Contains(t, out, "IES Murillo")
		assert.Contains(t, out, "2.5")
		assert.Contains(t, out, "Page 2")
		assert.Less(t, strings.Index(out, "codigo"), strings.Index(out, "D_DENOMINA"))
	})

	t.Run("Should show the error and an empty notice", func(t *testing.T) {
		out := formatTable(viewState{Error: "Could not reach the server.", Page: 1}, 80)
		assert.Contains(t, out, "Could not reach the server.")
		assert.Contains(t, out, "No centers match")
	})
}

func TestFormatJSON(t *testing.T) {
	t.Run("Should include fields, records and pagination", func(t *testing.T) {
		data, err := formatJSON(sampleState())
		require.NoError(t, err)
		var got struct {
			Page    int              `json:"page"`
			HasPrev bool             `json:"has_prev"`
			HasNext bool             `json:"has_next"`
			Fields  []string         `json:"fields"`
			Centers []map[string]any `json:"centros"`
		}
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, 2, got.Page)
		assert.True(t, got.HasPrev)
		assert.Equal(t, []string{"codigo", "D_DENOMINA", "distancia"}, got.Fields)
		require.Len(t, got.Centers, 2)
		assert.Equal(t, "IES Murillo", got.Centers[0]["D_DENOMINA"])
		assert.InDelta(t, 2.5, got.Centers[0]["distancia"], 0.0001)
	})

	t.Run("Should emit empty arrays instead of null", func(t *testing.T) {
		data, err := formatJSON(viewState{Error: "boom"})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"fields": []`)
		assert.Contains(t, string(data), `"centros": []`)
		assert.Contains(t, string(data), `"error": "boom"`)
	})
}

func TestTruncate(t *testing.T) {
	t.Run("Should cut long values with an ellipsis", func(t *testing.T) {
		assert.Equal(t, "Écija", truncate("Écija", 5))
		assert.Equal(t, "Éc…", truncate("Écija", 3))
	})
}
