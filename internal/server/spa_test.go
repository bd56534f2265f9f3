package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUIFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":           {Data: []byte("<html>admin</html>")},
		"assets/app-abc123.js": {Data: []byte("console.log('app')")},
		"favicon.ico":          {Data: []byte("icon")},
	}
}

func TestSPAHandler(t *testing.T) {
	h := newSPAHandler(testUIFS())

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	t.Run("serves index at root", func(t *testing.T) {
		w := get("/")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "admin")
	})

	t.Run("hashed assets cached immutably", func(t *testing.T) {
		w := get("/assets/app-abc123.js")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
	})

	t.Run("unknown path falls back to index for client routing", func(t *testing.T) {
		w := get("/gems/hello")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "admin")
		assert.Contains(t, w.Header().Get("Cache-Control"), "no-cache")
	})

	t.Run("api path gets json 404 instead of index", func(t *testing.T) {
		w := get("/api/nope")
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})
}
