package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchai/api/internal/config"
)

const resultsPage = `<html><body>
<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fshop.example%2Flaptops&rut=abc">Shop</a></div>
<div class="result"><a class="result__a" href="https://www.youtube.com/watch?v=1">Video</a></div>
<div class="result"><a class="result__a" href="https://shop.example/laptops">Dup</a></div>
<div class="result"><a class="result__a" href="https://review.example/best">Review</a></div>
<a href="/settings">Settings</a>
<a href="https://blog.example/post">Blog</a>
</body></html>`

func newTestEngine(t *testing.T, page string) *DuckDuckGoClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/html/", r.URL.Path)
		assert.Equal(t, "best laptops", r.URL.Query().Get("q"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	return NewDuckDuckGoClient(&config.SearchConfig{
		BaseURL:       srv.URL,
		ExcludedHosts: []string{"google.", "youtube."},
	}, "test-agent")
}

func TestDuckDuckGoClient_TopSites(t *testing.T) {
	engine := newTestEngine(t, resultsPage)

	sites, err := engine.TopSites(context.Background(), "best laptops", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://shop.example/laptops", "https://review.example/best"}, sites)
}

func TestDuckDuckGoClient_TopSitesFallsBackToAllLinks(t *testing.T) {
	engine := newTestEngine(t, resultsPage)

	sites, err := engine.TopSites(context.Background(), "best laptops", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://shop.example/laptops",
		"https://review.example/best",
		"https://blog.example/post",
	}, sites)
}

func TestDuckDuckGoClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	engine := NewDuckDuckGoClient(&config.SearchConfig{BaseURL: srv.URL}, "ua")
	_, err := engine.TopSites(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "status 403")
}

func TestFilterSites(t *testing.T) {
	sites := FilterSites([]string{
		"ftp://files.example",
		"https://a.example",
		"https://A.example",
		"https://a.example",
		"https://www.Facebook.com/page",
		"https://b.example",
		"https://c.example",
	}, []string{"facebook."}, 3)

	assert.Equal(t, []string{"https://a.example", "https://A.example", "https://b.example"}, sites)
}

func TestMockSearchEngine(t *testing.T) {
	sites, err := MockSearchEngine{}.TopSites(context.Background(), "Best Laptops", 3)
	require.NoError(t, err)
	assert.Len(t, sites, 3)
	assert.Equal(t, "https://source1.example.com/best-laptops", sites[0])
}
