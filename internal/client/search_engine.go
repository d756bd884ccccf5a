package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/searchai/api/internal/config"
)

// SearchEngine finds the top result URLs for a query
type SearchEngine interface {
	TopSites(ctx context.Context, query string, n int) ([]string, error)
}

// DuckDuckGoClient queries the DuckDuckGo HTML endpoint
type DuckDuckGoClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	excluded   []string
}

// NewDuckDuckGoClient creates a new search engine client
func NewDuckDuckGoClient(cfg *config.SearchConfig, userAgent string) *DuckDuckGoClient {
	return &DuckDuckGoClient{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: userAgent,
		excluded:  cfg.ExcludedHosts,
	}
}

// TopSites returns up to n result URLs, skipping excluded hosts and duplicates
func (c *DuckDuckGoClient) TopSites(ctx context.Context, query string, n int) ([]string, error) {
	slog.InfoContext(ctx, "searching", "query", query)

	endpoint := fmt.Sprintf("%s/html/?q=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search engine error (status %d): %s", resp.StatusCode, string(body))
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	primary, all := extractLinks(doc)
	sites := FilterSites(primary, c.excluded, n)

	// Fall back to every link on the page when the result markup changed
	if len(sites) < n {
		slog.InfoContext(ctx, "trying alternate link extraction", "found", len(sites))
		sites = FilterSites(append(primary, all...), c.excluded, n)
	}

	if len(sites) == 0 {
		slog.WarnContext(ctx, "no results found", "query", query)
	}
	return sites, nil
}

// extractLinks returns result anchors (class result__a) and all anchors, both
// with redirect wrappers resolved.
func extractLinks(doc *html.Node) (primary, all []string) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := resolveRedirect(attr(n, "href"))
			if href != "" {
				if hasClass(n, "result__a") {
					primary = append(primary, href)
				} else {
					all = append(all, href)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return primary, all
}

// resolveRedirect unwraps //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Path, "/l/") {
		return target
	}
	return href
}

// FilterSites keeps http(s) URLs whose host does not contain any excluded
// fragment, dropping duplicates, up to n entries.
func FilterSites(candidates, excluded []string, n int) []string {
	seen := make(map[string]bool)
	var sites []string

	for _, raw := range candidates {
		if len(sites) >= n {
			break
		}
		if !strings.HasPrefix(raw, "http") || seen[raw] {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		if isExcluded(strings.ToLower(u.Host), excluded) {
			continue
		}
		seen[raw] = true
		sites = append(sites, raw)
	}

	return sites
}

func isExcluded(host string, excluded []string) bool {
	for _, frag := range excluded {
		if frag != "" && strings.Contains(host, strings.ToLower(frag)) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// MockSearchEngine returns canned sites for development without network access
type MockSearchEngine struct{}

// TopSites returns n deterministic example URLs for the query
func (MockSearchEngine) TopSites(_ context.Context, query string, n int) ([]string, error) {
	slug := url.PathEscape(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(query)), " ", "-"))
	sites := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		sites = append(sites, fmt.Sprintf("https://source%d.example.com/%s", i, slug))
	}
	return sites, nil
}
