package record

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	t.Run("Should render raw text per kind", func(t *testing.T) {
		assert.Equal(t, "Sevilla", String("Sevilla").Raw())
		assert.Equal(t, "12.5", Number(12.5).Raw())
		assert.Equal(t, "41001", Number(41001).Raw())
		assert.Equal(t, "", Null().Raw())
	})

	t.Run("Should compare kind and payload", func(t *testing.T) {
		assert.True(t, String("a").Equal(String("a")))
		assert.False(t, String("1").Equal(Number(1)))
		assert.True(t, Null().Equal(Null()))
	})

	t.Run("Should return null for absent fields", func(t *testing.T) {
		r := Of(map[string]any{"codigo": "41000"})
		assert.True(t, r.Get("provincia").IsNull())
		assert.True(t, Record(nil).Get("x").IsNull())
	})

	t.Run("Should marshal non-finite numbers as text", func(t *testing.T) {
		data, err := json.Marshal(Record{"d": Number(math.Inf(1)), "n": Number(2)})
		require.NoError(t, err)
		assert.JSONEq(t, `{"d":"+Inf","n":2}`, string(data))
	})

	t.Run("Should convert plain Go values", func(t *testing.T) {
		r := Of(map[string]any{"n": 3, "s": "x", "b": true, "z": nil})
		n, ok := r["n"].Num()
		require.True(t, ok)
		assert.Equal(t, 3.0, n)
		assert.Equal(t, "true", r["b"].Raw())
		assert.True(t, r["z"].IsNull())
	})
}

func TestSchema(t *testing.T) {
	t.Run("Should keep first occurrence order and drop blanks", func(t *testing.T) {
		s := NewSchema("codigo", "", "nombre", "codigo")
		assert.Equal(t, []string{"codigo", "nombre"}, s.Fields())
		assert.Equal(t, "nombre", s.Field(1))
		assert.Equal(t, "", s.Field(5))
	})

	t.Run("Should report missing and unexpected fields", func(t *testing.T) {
		s := NewSchema("codigo", "nombre")
		err := s.Validate(Of(map[string]any{"codigo": "1", "extra": "x"}))
		var mismatch *MismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, []string{"nombre"}, mismatch.Missing)
		assert.Equal(t, []string{"extra"}, mismatch.Extra)
		assert.NoError(t, s.Validate(Of(map[string]any{"codigo": "1", "nombre": "x"})))
	})

	t.Run("Should list distinct sorted values for filter options", func(t *testing.T) {
		s := NewSchema("provincia")
		records := []Record{
			Of(map[string]any{"provincia": "Sevilla"}),
			Of(map[string]any{"provincia": "Cádiz"}),
			Of(map[string]any{"provincia": "Sevilla"}),
			Of(map[string]any{"provincia": ""}),
		}
		assert.Equal(t, []string{"Cádiz", "Sevilla"}, s.DistinctValues(records, "provincia"))
		assert.Nil(t, s.DistinctValues(records, "municipio"))
	})

	t.Run("Should infer sorted fields from the first record", func(t *testing.T) {
		s := InferSchema([]Record{Of(map[string]any{"b": 1, "a": 2})})
		assert.Equal(t, []string{"a", "b"}, s.Fields())
		assert.Equal(t, 0, InferSchema(nil).Len())
	})
}

func TestDecodeArray(t *testing.T) {
	t.Run("Should decode records and keep wire field order", func(t *testing.T) {
		body := []byte(`{"centros":[
			{"codigo":"41000","nombre":"IES Uno","distancia":12.5,"bilingue":true,"nota":null},
			{"codigo":"41001","nombre":"IES Dos","distancia":3,"bilingue":false,"nota":"x"}
		],"total":2}`)
		rs, err := DecodeArray(body, "centros")
		require.NoError(t, err)
		require.Equal(t, 2, rs.Len())
		assert.Equal(t, []string{"codigo", "nombre", "distancia", "bilingue", "nota"}, rs.Schema.Fields())
		assert.Equal(t, "IES Uno", rs.Records[0].Get("nombre").Raw())
		assert.Equal(t, KindNumber, rs.Records[0].Get("distancia").Kind())
		assert.Equal(t, "true", rs.Records[0].Get("bilingue").Raw())
		assert.True(t, rs.Records[0].Get("nota").IsNull())
	})

	t.Run("Should keep out of range numbers as text", func(t *testing.T) {
		rs, err := DecodeArray([]byte(`{"centros":[{"distancia":1e999}]}`), "centros")
		require.NoError(t, err)
		v := rs.Records[0].Get("distancia")
		assert.Equal(t, KindString, v.Kind())
		assert.Equal(t, "1e999", v.Raw())
		_, err = json.Marshal(rs.Records)
		assert.NoError(t, err)
	})

	t.Run("Should return an empty set for an empty array", func(t *testing.T) {
		rs, err := DecodeArray([]byte(`{"centros":[]}`), "centros")
		require.NoError(t, err)
		assert.NotNil(t, rs.Records)
		assert.Equal(t, 0, rs.Schema.Len())
	})

	t.Run("Should reject malformed shapes", func(t *testing.T) {
		cases := map[string]string{
			"invalid json":   `{"centros":[`,
			"missing path":   `{"data":[]}`,
			"not an array":   `{"centros":{"a":1}}`,
			"scalar element": `{"centros":[1,2]}`,
		}
		for name, body := range cases {
			_, err := DecodeArray([]byte(body), "centros")
			assert.True(t, errors.Is(err, ErrMalformed), name)
		}
	})
}

func TestDecodeStrings(t *testing.T) {
	t.Run("Should decode scalar arrays skipping nulls", func(t *testing.T) {
		out, err := DecodeStrings([]byte(`{"tipos":["IES",null,"CEIP"]}`), "tipos")
		require.NoError(t, err)
		assert.Equal(t, []string{"IES", "CEIP"}, out)
	})

	t.Run("Should fail when the path is not an array", func(t *testing.T) {
		_, err := DecodeStrings([]byte(`{"tipos":"IES"}`), "tipos")
		assert.ErrorIs(t, err, ErrMalformed)
	})
}
