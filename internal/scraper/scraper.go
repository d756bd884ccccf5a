// Package scraper fetches web pages and extracts their readable text.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/searchai/api/internal/config"
)

const maxBodyBytes = 5 << 20

// Page is the outcome of scraping one URL
type Page struct {
	URL       string
	Content   string
	ScrapedAt time.Time
	Err       error
}

// Usable reports whether the page produced more than minLen characters.
func (p Page) Usable(minLen int) bool {
	return p.Err == nil && utf8.RuneCountInString(strings.TrimSpace(p.Content)) > minLen
}

// Fetcher extracts the text of a single page
type Fetcher interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// Scraper fetches pages over HTTP, politely rate limited
type Scraper struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
}

// New creates a scraper from configuration
func New(cfg *config.ScraperConfig) *Scraper {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Scraper{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Scrape downloads url and returns its extracted text
func (s *Scraper) Scrape(ctx context.Context, url string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	content, err := Extract(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "scraped page", "url", url, "length", len(content))
	return content, nil
}

// ScrapeAll scrapes urls concurrently with fetcher and returns one Page per
// url in input order. onDone is called after each page with the number
// finished so far; it is never called concurrently.
func ScrapeAll(ctx context.Context, fetcher Fetcher, urls []string, concurrency int, onDone func(done, total int)) []Page {
	pages := make([]Page, len(urls))
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, u := range urls {
		g.Go(func() error {
			content, err := fetcher.Scrape(gctx, u)
			if err != nil {
				slog.WarnContext(ctx, "error scraping", "url", u, "error", err)
			}
			pages[i] = Page{URL: u, Content: content, ScrapedAt: time.Now(), Err: err}

			mu.Lock()
			done++
			if onDone != nil {
				onDone(done, len(urls))
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return pages
}

var removedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"footer":   true,
	"noscript": true,
	"head":     true,
}

// Price and product markers commonly found on e-commerce pages
var priceMarkers = []string{"price", "product", "amount", "cost", "offer"}

// Extract returns the readable text of an HTML document. Text from
// price-like elements is listed first, one element per line, followed by the
// full page text.
func Extract(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var prices []string
	var body []string

	var walk func(n *html.Node, inPrice bool)
	walk = func(n *html.Node, inPrice bool) {
		if n.Type == html.ElementNode && removedTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := normalizeSpace(n.Data); text != "" {
				body = append(body, text)
			}
			return
		}
		if n.Type == html.ElementNode && !inPrice && isPriceElement(n) {
			if text := normalizeSpace(textOf(n)); text != "" {
				prices = append(prices, text)
			}
			inPrice = true
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inPrice)
		}
	}
	walk(doc, false)

	parts := append(prices, strings.Join(body, " "))
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

func isPriceElement(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "class" && a.Key != "id" {
			continue
		}
		val := strings.ToLower(a.Val)
		for _, marker := range priceMarkers {
			if strings.Contains(val, marker) {
				return true
			}
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && removedTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Mock returns canned page text for development without network access
type Mock struct{}

// Scrape returns deterministic content mentioning the url
func (Mock) Scrape(ctx context.Context, url string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}
	return fmt.Sprintf("Sample content scraped from %s. It lists products with prices between $10 and $50, "+
		"compares their features, and summarizes customer reviews for each of them.", url), nil
}
