package searchclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", WithToken("tok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Submit(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "best laptops", body["query"])

		writeJSON(w, http.StatusAccepted, map[string]string{"searchId": "s1", "query": "best laptops", "status": "processing"})
	})

	got, err := c.Submit(context.Background(), "best laptops")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SearchID)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestClient_SearchEncodesQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/", r.URL.Path)
		assert.Equal(t, "a&b c", r.URL.Query().Get("query"))
		writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "searchId": "s1", "sites": []string{"https://a.example"}, "summary": "ok"})
	})

	got, err := c.Search(context.Background(), "a&b c")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, []string{"https://a.example"}, got.Sites)
}

func TestClient_DeleteQueryEscapesPath(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/search/laptop%20deals%2F2024", r.URL.EscapedPath())
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "deleted": 2})
	})

	got, err := c.DeleteQuery(context.Background(), "laptop deals/2024")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Deleted)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "search not found"},
		})
	})

	_, err := c.Status(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "search not found", apiErr.Message)
	assert.True(t, IsNotFound(err))
}

func TestClient_PlainErrorBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.Results(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestClient_AskContext(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask_context", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "laptops", body["originalQuery"])
		assert.Equal(t, "cheapest?", body["userQuestion"])
		writeJSON(w, http.StatusOK, map[string]any{
			"type":    "table",
			"headers": []string{"Model", "Price"},
			"rows":    [][]string{{"A", "$999"}},
		})
	})

	got, err := c.AskContext(context.Background(), "laptops", "cheapest?")
	require.NoError(t, err)
	assert.Equal(t, TypeTable, got.Type)
	assert.Equal(t, [][]string{{"A", "$999"}}, got.Rows)
}

func TestClient_SourceDetail(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://a.example/p?x=1", r.URL.Query().Get("url"))
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://a.example/p?x=1", "content": "page"})
	})

	got, err := c.SourceDetail(context.Background(), "https://a.example/p?x=1")
	require.NoError(t, err)
	assert.Equal(t, "page", got.Content)
}
