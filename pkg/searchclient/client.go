// Package searchclient is a Go client for the search API plus the pieces a
// terminal front end needs: a job tracker that polls active searches and
// renderers for stored results and contextual answers.
package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-2xx response decoded from the error envelope
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// Client calls the search API over HTTP
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithToken sends token as a bearer credential on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a query synchronously
func (c *Client) Search(ctx context.Context, query string) (*RunResult, error) {
	var out RunResult
	q := url.Values{"query": {query}}
	if err := c.do(ctx, http.MethodGet, "/search/?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit starts a query in the background
func (c *Client) Submit(ctx context.Context, query string) (*Submitted, error) {
	var out Submitted
	if err := c.do(ctx, http.MethodPost, "/search", map[string]string{"query": query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, id string) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/search/"+url.PathEscape(id)+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Cancel(ctx context.Context, id string) (*Cancelled, error) {
	var out Cancelled
	if err := c.do(ctx, http.MethodPost, "/cancel/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Results lists every stored search, newest first
func (c *Client) Results(ctx context.Context) ([]Result, error) {
	var out struct {
		Data []Result `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/data/", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// DeleteQuery removes every stored result whose query matches exactly
func (c *Client) DeleteQuery(ctx context.Context, query string) (*Deleted, error) {
	var out Deleted
	if err := c.do(ctx, http.MethodDelete, "/search/"+url.PathEscape(query), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteResult(ctx context.Context, id string) (*Deleted, error) {
	var out Deleted
	if err := c.do(ctx, http.MethodDelete, "/results/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SourceDetail(ctx context.Context, sourceURL string) (*SourceDetail, error) {
	var out SourceDetail
	q := url.Values{"url": {sourceURL}}
	if err := c.do(ctx, http.MethodGet, "/source_detail?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AskContext asks a follow-up question about a stored search
func (c *Client) AskContext(ctx context.Context, originalQuery, question string) (*Answer, error) {
	var out Answer
	body := map[string]string{"originalQuery": originalQuery, "userQuestion": question}
	if err := c.do(ctx, http.MethodPost, "/ask_context", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
