package centers

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/centrosedu/centros/pkg/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second, RetryCount: 0})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("Should reject invalid base URLs", func(t *testing.T) {
		for _, raw := range []string{"", "localhost:8000", "ftp://host/api", "/api"} {
			_, err := NewClient(Config{BaseURL: raw})
			assert.Error(t, err, raw)
		}
	})

	t.Run("Should trim trailing slashes", func(t *testing.T) {
		c, err := NewClient(Config{BaseURL: "http://localhost:8000/api/"})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000/api", c.BaseURL())
	})
}

func TestClient_FetchCenters(t *testing.T) {
	t.Run("Should send every parameter even when empty", func(t *testing.T) {
		var got map[string][]string
		var requestID, userAgent string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/centros", r.URL.Path)
			got = r.URL.Query()
			requestID = r.Header.Get("X-Request-ID")
			userAgent = r.Header.Get("User-Agent")
			_, _ = w.Write([]byte(`{"centros":[]}`))
		})

		_, err := client.FetchCenters(t.Context(), Query{Province: "Sevilla", Page: 2, RowsPerPage: 10})
		require.NoError(t, err)

		for _, name := range []string{
			"localidad", "etapa", "codigo", "nombreCentro", "tipoCentro", "direccionOrigen",
		} {
			require.Contains(t, got, name)
			assert.Equal(t, []string{""}, got[name], name)
		}
		assert.Equal(t, []string{"Sevilla"}, got["provincia"])
		assert.Equal(t, []string{"2"}, got["page"])
		assert.Equal(t, []string{"10"}, got["rowsPerPage"])
		assert.NotEmpty(t, requestID)
		assert.Equal(t, version.UserAgent(), userAgent)
	})

	t.Run("Should decode records, schema and total", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"centros":[
				{"codigo":"41000","D_DENOMINA":"IES","distancia":"4.2"},
				{"codigo":"41001","D_DENOMINA":"CEIP","distancia":"1.1"}
			],"total":57,"page":1,"rowsPerPage":2}`))
		})
		page, err := client.FetchCenters(t.Context(), Query{Page: 1, RowsPerPage: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Len())
		assert.Equal(t, []string{"codigo", "D_DENOMINA", "distancia"}, page.Schema.Fields())
		assert.True(t, page.HasTotal)
		assert.Equal(t, 57, page.Total)
	})

	t.Run("Should classify non-2xx responses as status errors", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
		})
		_, err := client.FetchCenters(t.Context(), Query{})
		require.ErrorIs(t, err, ErrStatus)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, "Not Found", apiErr.Message)
	})

	t.Run("Should classify embedded backend errors as status errors", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"error":"Error al obtener los centros: boom"},500]`))
		})
		_, err := client.FetchCenters(t.Context(), Query{})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 500, apiErr.Status)
		assert.Contains(t, apiErr.Message, "boom")
	})

	t.Run("Should classify unexpected shapes as malformed", func(t *testing.T) {
		for _, body := range []string{`{"data":[]}`, `{"centros":"none"}`, `not json`} {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := client.FetchCenters(t.Context(), Query{})
			assert.ErrorIs(t, err, ErrMalformed, body)
		}
	})

	t.Run("Should classify connection failures as transport errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()
		client, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
		require.NoError(t, err)
		_, err = client.FetchCenters(t.Context(), Query{})
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("Should retry server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"centros":[{"codigo":"1"}]}`))
		}))
		defer srv.Close()
		client, err := NewClient(Config{BaseURL: srv.URL, RetryCount: 2, RetryWait: time.Millisecond})
		require.NoError(t, err)
		page, err := client.FetchCenters(t.Context(), Query{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Len())
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestClient_FetchCenterTypes(t *testing.T) {
	t.Run("Should decode the type list", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/centros/tipos", r.URL.Path)
			_, _ = w.Write([]byte(`{"tipos":["IES","CEIP","CPR"]}`))
		})
		types, err := client.FetchCenterTypes(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []string{"IES", "CEIP", "CPR"}, types)
	})

	t.Run("Should fail on a missing list", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})
		_, err := client.FetchCenterTypes(t.Context())
		assert.ErrorIs(t, err, ErrMalformed)
	})
}
