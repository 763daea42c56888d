package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequests struct {
	mu    sync.Mutex
	pages []string
	query []map[string][]string
}

func newCentersServer(t *testing.T) (*httptest.Server, *recordedRequests) {
	t.Helper()
	rec := &recordedRequests{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/centros/tipos":
			_, _ = w.Write([]byte(`{"tipos":["IES","CEIP"]}`))
		case "/api/centros":
			q := r.URL.Query()
			rec.mu.Lock()
			rec.pages = append(rec.pages, q.Get("page"))
			rec.query = append(rec.query, q)
			rec.mu.Unlock()
			_, _ = w.Write([]byte(`{"centros":[
				{"codigo":"41001","provincia":"Sevilla","distancia":"12"},
				{"codigo":"41002","provincia":"Sevilla","distancia":"3"}
			],"total":2,"page":1,"rowsPerPage":10}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", t.TempDir() + "/.env", "--log-level", "disabled"}, args...))
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestListCmd(t *testing.T) {
	t.Run("Should print a page as JSON with server-side filters", func(t *testing.T) {
		srv, rec := newCentersServer(t)
		out, err := execute(t, "--base-url", srv.URL+"/api", "list", "--json",
			"--provincia", "Sevilla", "--sort", "distancia", "--prefetch", "0")
		require.NoError(t, err)

		var got struct {
			Page    int              `json:"page"`
			HasNext bool             `json:"has_next"`
			Fields  []string         `json:"fields"`
			Centers []map[string]any `json:"centros"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, 1, got.Page)
		assert.Equal(t, []string{"codigo", "provincia", "distancia"}, got.Fields)
		require.Len(t, got.Centers, 2)
		assert.Equal(t, "41002", got.Centers[0]["codigo"])

		require.Len(t, rec.query, 1)
		assert.Equal(t, []string{"Sevilla"}, rec.query[0]["provincia"])
		assert.Equal(t, []string{"10"}, rec.query[0]["rowsPerPage"])
	})

	t.Run("Should prefetch the following pages after a miss", func(t *testing.T) {
		srv, rec := newCentersServer(t)
		_, err := execute(t, "--base-url", srv.URL+"/api", "list", "--page", "2", "--json")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"2", "3", "4"}, rec.pages)
	})

	t.Run("Should page in memory in client mode", func(t *testing.T) {
		srv, rec := newCentersServer(t)
		out, err := execute(t, "--base-url", srv.URL+"/api", "list", "--json",
			"--mode", "client", "--rows", "1", "--page", "2")
		require.NoError(t, err)
		assert.Contains(t, out, `"41002"`)
		assert.NotContains(t, out, `"41001"`)
		require.Len(t, rec.query, 1)
		assert.Equal(t, []string{"100"}, rec.query[0]["rowsPerPage"])
	})

	t.Run("Should render a table", func(t *testing.T) {
		srv, _ := newCentersServer(t)
		out, err := execute(t, "--base-url", srv.URL+"/api", "list", "--prefetch", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "41001")
		assert.Contains(t, out, "Page 1")
	})

	t.Run("Should report fetch failures in the output", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		out, err := execute(t, "--base-url", srv.URL, "--retries", "0", "list", "--json")
		require.NoError(t, err)
		assert.Contains(t, out, "status 500")
	})

	t.Run("Should reject invalid configuration", func(t *testing.T) {
		_, err := execute(t, "list", "--rows", "500")
		assert.ErrorContains(t, err, "validation failed")
	})

	t.Run("Should reject a page below one", func(t *testing.T) {
		srv, _ := newCentersServer(t)
		_, err := execute(t, "--base-url", srv.URL, "list", "--page", "0")
		assert.ErrorContains(t, err, "page must be at least 1")
	})
}

func TestTypesCmd(t *testing.T) {
	t.Run("Should print one type per line", func(t *testing.T) {
		srv, _ := newCentersServer(t)
		out, err := execute(t, "--base-url", srv.URL+"/api", "types")
		require.NoError(t, err)
		assert.Equal(t, []string{"IES", "CEIP"}, strings.Fields(out))
	})

	t.Run("Should print an empty list when the types cannot be loaded", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		out, err := execute(t, "--base-url", srv.URL, "types", "--json")
		require.NoError(t, err)
		assert.Equal(t, "[]", strings.TrimSpace(out))
	})
}
