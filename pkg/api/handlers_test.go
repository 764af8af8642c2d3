package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bookshelf/pkg/book"
	"github.com/ssargent/bookshelf/pkg/query"
	"github.com/ssargent/bookshelf/pkg/store"
)

// envelope mirrors APIResponse with a typed payload
type envelope[T any] struct {
	Success bool                  `json:"success"`
	Data    T                     `json:"data"`
	Error   string                `json:"error"`
	Details []book.FieldViolation `json:"details"`
}

func decodeEnvelope[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

func setupTestServer(t *testing.T) (*Server, *store.BookStore) {
	t.Helper()
	bookStore := store.NewBookStore()
	server := NewServer(bookStore, ServerConfig{DefaultLimit: 10, MaxLimit: 20}, NewMetrics(prometheus.NewRegistry()))
	return server, bookStore
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func seedBook(t *testing.T, s *store.BookStore, title, author string, year int) book.Book {
	t.Helper()
	b, err := s.Create(context.Background(), book.Candidate{Title: title, Author: author, Year: book.IntPtr(year)})
	require.NoError(t, err)
	return b
}

func TestServer_handleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[map[string]string](t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data["status"])
}

func TestServer_handleRoot(t *testing.T) {
	server, _ := setupTestServer(t)
	server.config.Version = "1.2.3"

	w := httptest.NewRecorder()
	server.handleRoot(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[ServiceInfo](t, w)
	assert.Equal(t, "bookshelf", env.Data.Name)
	assert.Equal(t, "1.2.3", env.Data.Version)
	assert.Equal(t, "/books", env.Data.Endpoints["books"])
}

func TestServer_handleStats(t *testing.T) {
	server, bookStore := setupTestServer(t)
	seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

	w := httptest.NewRecorder()
	server.handleStats(w, httptest.NewRequest("GET", "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[store.Stats](t, w)
	assert.Equal(t, 1, env.Data.Books)
	assert.Equal(t, 1, env.Data.LastID)
}

func TestServer_handleCreateBook(t *testing.T) {
	t.Run("valid book", func(t *testing.T) {
		server, bookStore := setupTestServer(t)

		body := `{"title":"Dune","author":"Frank Herbert","year":1965,"genre":"Science Fiction","isbn":"978-0441172719"}`
		req := httptest.NewRequest("POST", "/books", strings.NewReader(body))
		w := httptest.NewRecorder()
		server.handleCreateBook(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "/books/1", w.Header().Get("Location"))

		env := decodeEnvelope[book.Book](t, w)
		assert.True(t, env.Success)
		assert.Equal(t, 1, env.Data.ID)
		assert.Equal(t, "Dune", env.Data.Title)
		require.NotNil(t, env.Data.Year)
		assert.Equal(t, 1965, *env.Data.Year)
		assert.Equal(t, 1, bookStore.Len())
	})

	t.Run("client id is ignored", func(t *testing.T) {
		server, _ := setupTestServer(t)

		body := `{"id":99,"title":"Dune","author":"Frank Herbert"}`
		w := httptest.NewRecorder()
		server.handleCreateBook(w, httptest.NewRequest("POST", "/books", strings.NewReader(body)))

		require.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope[book.Book](t, w)
		assert.Equal(t, 1, env.Data.ID)
		assert.Nil(t, env.Data.Year)
	})

	t.Run("validation failure lists every field", func(t *testing.T) {
		server, bookStore := setupTestServer(t)

		body := `{"title":"Du","author":"F","year":3000}`
		w := httptest.NewRecorder()
		server.handleCreateBook(w, httptest.NewRequest("POST", "/books", strings.NewReader(body)))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decodeEnvelope[json.RawMessage](t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "Validation failed", env.Error)

		fields := make([]string, 0, len(env.Details))
		for _, d := range env.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"title", "author", "year"}, fields)
		assert.Equal(t, 0, bookStore.Len())
	})

	t.Run("malformed requests", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "invalid json", body: `{"title":`},
			{name: "empty body", body: ``},
			{name: "unknown field", body: `{"title":"Dune","author":"Frank Herbert","publisher":"Chilton"}`},
			{name: "wrong type", body: `{"title":"Dune","author":"Frank Herbert","year":"1965"}`},
			{name: "trailing data", body: `{"title":"Dune","author":"Frank Herbert"}{}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server, _ := setupTestServer(t)
				w := httptest.NewRecorder()
				server.handleCreateBook(w, httptest.NewRequest("POST", "/books", strings.NewReader(tt.body)))

				assert.Equal(t, http.StatusBadRequest, w.Code)
				env := decodeEnvelope[json.RawMessage](t, w)
				assert.False(t, env.Success)
				assert.Contains(t, env.Error, "Invalid JSON request")
			})
		}
	})
}

func TestServer_handleGetBook(t *testing.T) {
	server, bookStore := setupTestServer(t)
	created := seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleGetBook(w, withID(httptest.NewRequest("GET", "/books/1", nil), "1"))

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope[book.Book](t, w)
		assert.Equal(t, created, env.Data)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleGetBook(w, withID(httptest.NewRequest("GET", "/books/42", nil), "42"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeEnvelope[json.RawMessage](t, w)
		assert.Equal(t, "book 42 not found", env.Error)
	})

	t.Run("non-integer id", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleGetBook(w, withID(httptest.NewRequest("GET", "/books/abc", nil), "abc"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope[json.RawMessage](t, w)
		assert.Contains(t, env.Error, "must be an integer")
	})
}

func TestServer_handleReplaceBook(t *testing.T) {
	t.Run("replaces every field", func(t *testing.T) {
		server, bookStore := setupTestServer(t)
		seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

		body := `{"title":"Dune Messiah","author":"Frank Herbert"}`
		w := httptest.NewRecorder()
		server.handleReplaceBook(w, withID(httptest.NewRequest("PUT", "/books/1", strings.NewReader(body)), "1"))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		env := decodeEnvelope[book.Book](t, w)
		assert.Equal(t, 1, env.Data.ID)
		assert.Equal(t, "Dune Messiah", env.Data.Title)
		assert.Nil(t, env.Data.Year, "omitted optional fields are cleared by a replace")
	})

	t.Run("missing record", func(t *testing.T) {
		server, _ := setupTestServer(t)

		body := `{"title":"Dune Messiah","author":"Frank Herbert"}`
		w := httptest.NewRecorder()
		server.handleReplaceBook(w, withID(httptest.NewRequest("PUT", "/books/7", strings.NewReader(body)), "7"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid record keeps the original", func(t *testing.T) {
		server, bookStore := setupTestServer(t)
		original := seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

		body := `{"title":"Dune","author":"Frank Herbert","isbn":"12345"}`
		w := httptest.NewRecorder()
		server.handleReplaceBook(w, withID(httptest.NewRequest("PUT", "/books/1", strings.NewReader(body)), "1"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		got, err := bookStore.Get(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, original, got)
	})
}

func TestServer_handlePatchBook(t *testing.T) {
	t.Run("updates only supplied fields", func(t *testing.T) {
		server, bookStore := setupTestServer(t)
		seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

		body := `{"genre":"Science Fiction"}`
		w := httptest.NewRecorder()
		server.handlePatchBook(w, withID(httptest.NewRequest("PATCH", "/books/1", strings.NewReader(body)), "1"))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		env := decodeEnvelope[book.Book](t, w)
		assert.Equal(t, "Dune", env.Data.Title)
		require.NotNil(t, env.Data.Year)
		assert.Equal(t, 1965, *env.Data.Year)
		require.NotNil(t, env.Data.Genre)
		assert.Equal(t, "Science Fiction", *env.Data.Genre)
	})

	t.Run("explicit null clears a field", func(t *testing.T) {
		server, bookStore := setupTestServer(t)
		seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

		body := `{"year":null}`
		w := httptest.NewRecorder()
		server.handlePatchBook(w, withID(httptest.NewRequest("PATCH", "/books/1", strings.NewReader(body)), "1"))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		env := decodeEnvelope[book.Book](t, w)
		assert.Nil(t, env.Data.Year)
	})

	t.Run("merged record is validated", func(t *testing.T) {
		server, bookStore := setupTestServer(t)
		seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

		body := `{"title":"D"}`
		w := httptest.NewRecorder()
		server.handlePatchBook(w, withID(httptest.NewRequest("PATCH", "/books/1", strings.NewReader(body)), "1"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		env := decodeEnvelope[json.RawMessage](t, w)
		require.Len(t, env.Details, 1)
		assert.Equal(t, "title", env.Details[0].Field)
	})

	t.Run("type mismatch", func(t *testing.T) {
		server, bookStore := setupTestServer(t)
		seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

		body := `{"year":"nineteen sixty-five"}`
		w := httptest.NewRecorder()
		server.handlePatchBook(w, withID(httptest.NewRequest("PATCH", "/books/1", strings.NewReader(body)), "1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing record", func(t *testing.T) {
		server, _ := setupTestServer(t)

		w := httptest.NewRecorder()
		server.handlePatchBook(w, withID(httptest.NewRequest("PATCH", "/books/3", strings.NewReader(`{}`)), "3"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServer_handleDeleteBook(t *testing.T) {
	server, bookStore := setupTestServer(t)
	seedBook(t, bookStore, "Dune", "Frank Herbert", 1965)

	w := httptest.NewRecorder()
	server.handleDeleteBook(w, withID(httptest.NewRequest("DELETE", "/books/1", nil), "1"))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, 0, bookStore.Len())

	w = httptest.NewRecorder()
	server.handleDeleteBook(w, withID(httptest.NewRequest("DELETE", "/books/1", nil), "1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_handleListBooks(t *testing.T) {
	server, bookStore := setupTestServer(t)
	seedBook(t, bookStore, "1984", "George Orwell", 1949)
	seedBook(t, bookStore, "Animal Farm", "George Orwell", 1945)
	seedBook(t, bookStore, "Brave New World", "Aldous Huxley", 1932)

	t.Run("all books in insertion order", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleListBooks(w, httptest.NewRequest("GET", "/books", nil))

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope[query.Result](t, w)
		assert.Equal(t, 3, env.Data.Total)
		assert.Equal(t, 1, env.Data.Page)
		assert.Equal(t, 10, env.Data.Limit)
		require.Len(t, env.Data.Items, 3)
		assert.Equal(t, "1984", env.Data.Items[0].Title)
	})

	t.Run("filter and sort", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleListBooks(w, httptest.NewRequest("GET", "/books?author=orwell&sort=year&order=asc", nil))

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope[query.Result](t, w)
		require.Len(t, env.Data.Items, 2)
		assert.Equal(t, "Animal Farm", env.Data.Items[0].Title)
		assert.Equal(t, "1984", env.Data.Items[1].Title)
	})

	t.Run("limit is capped", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleListBooks(w, httptest.NewRequest("GET", "/books?limit=500", nil))

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope[query.Result](t, w)
		assert.Equal(t, 20, env.Data.Limit)
	})

	t.Run("zero limit returns an empty page", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleListBooks(w, httptest.NewRequest("GET", "/books?limit=0", nil))

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope[query.Result](t, w)
		assert.Empty(t, env.Data.Items)
		assert.Equal(t, 3, env.Data.Total)
	})

	t.Run("huge page is empty", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleListBooks(w, httptest.NewRequest("GET", "/books?page=2305843009213693953&limit=20", nil))

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope[query.Result](t, w)
		assert.Empty(t, env.Data.Items)
		assert.Equal(t, 3, env.Data.Total)
	})

	t.Run("empty page past the end", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleListBooks(w, httptest.NewRequest("GET", "/books?page=5&limit=2", nil))

		require.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope[query.Result](t, w)
		assert.Equal(t, 3, env.Data.Total)
		assert.Empty(t, env.Data.Items)
	})

	t.Run("malformed year", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleListBooks(w, httptest.NewRequest("GET", "/books?year=nineteen", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
