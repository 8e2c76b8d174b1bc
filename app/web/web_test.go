package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/shopinv/app/inventory"
	"github.com/umputun/shopinv/app/store"
)

// newTestServer makes server backed by a fresh sqlite file
func newTestServer(t *testing.T, passwordHash string) (*Server, *store.SQLite) {
	t.Helper()
	st, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv, err := New(Config{App: inventory.New(st), Version: "v1.2.3-abc1234-20241225", PasswordHash: passwordHash})
	require.NoError(t, err)
	return srv, st
}

func newFormRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// postForm sends urlencoded form to the handler
func postForm(t *testing.T, h http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return serve(h, newFormRequest(path, values))
}

func getPage(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		srv, _ := newTestServer(t, "")
		assert.NotNil(t, srv.templates["page"])
		assert.NotNil(t, srv.templates["login"])
		assert.NotNil(t, srv.csrfProtection)
		assert.NotNil(t, srv.loginLimiter)
	})

	t.Run("missing app", func(t *testing.T) {
		srv, err := New(Config{})
		require.Error(t, err)
		assert.Nil(t, srv)
		assert.Contains(t, err.Error(), "App is required")
	})
}

func TestServer_render_ErrorHandling(t *testing.T) {
	srv, _ := newTestServer(t, "")

	t.Run("unknown page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.render(rec, http.StatusOK, "nope", "nope", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Template not found")
	})

	t.Run("unknown template name", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.render(rec, http.StatusOK, "page", "nope", TemplateData{})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Template error")
	})

	t.Run("custom status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.render(rec, http.StatusUnprocessableEntity, "page", "page", TemplateData{})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	})
}

func TestServer_StaticAndPing(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.routes()

	rec := getPage(t, h, "/static/style.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".window")

	rec = getPage(t, h, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	rec = getPage(t, h, "/no-such-page")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplateHelpers(t *testing.T) {
	assert.Equal(t, "9.99", formatPrice(9.99))
	assert.Equal(t, "12.50", formatPrice(12.5))
	assert.Equal(t, "0.00", formatPrice(0))
	assert.Equal(t, "10", formatQuantity(10))

	tests := []struct{ in, want string }{
		{"v1.7.0-abc1234-20241225", "v1.7.0"},
		{"v1.7.0", "v1.7.0"},
		{"unknown", "unknown"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shortVersion(tt.in), tt.in)
	}
}

func TestServer_Run(t *testing.T) {
	srv, _ := newTestServer(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- srv.Run(ctx, "127.0.0.1:0")
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}
