package tool

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPToolGetReturnsStatusHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GET", r.Method)
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	tool := NewHTTPTool(time.Second, []string{"net.http"})
	out, err := tool.Call(context.Background(), map[string]interface{}{"url": srv.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, out["status_code"])
	require.Equal(t, "pong", out["body"])
	headers, ok := out["headers"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "yes", headers["X-Test"])
}

func TestHTTPToolPostsBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "custom", r.Header.Get("X-Custom"))
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, "hello", string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tool := NewHTTPTool(time.Second, nil)
	out, err := tool.Call(context.Background(), map[string]interface{}{
		"url":     srv.URL,
		"method":  "post",
		"body":    "hello",
		"headers": map[string]interface{}{"X-Custom": "custom"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, out["status_code"])
}

func TestHTTPToolRejectsMissingURL(t *testing.T) {
	tool := NewHTTPTool(time.Second, nil)
	_, err := tool.Call(context.Background(), map[string]interface{}{})
	require.Error(t, err)
}

func TestHTTPToolRejectsUnsupportedMethod(t *testing.T) {
	tool := NewHTTPTool(time.Second, nil)
	_, err := tool.Call(context.Background(), map[string]interface{}{"url": "http://example.com", "method": "TRACE"})
	require.Error(t, err)
}

func TestHTTPToolPermissionsReturnsDeclaredList(t *testing.T) {
	tool := NewHTTPTool(time.Second, []string{"net.http"})
	require.Equal(t, []string{"net.http"}, tool.Permissions())
}
