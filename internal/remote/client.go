// Package remote implements the grid data service port over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gnemet/propertygrid"
)

// DefaultTimeout bounds one page request.
const DefaultTimeout = 30 * time.Second

// HTTPClient calls GET {baseURL}/api/v1/grid/{operation} with the
// parameter map as query values.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*HTTPClient)

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *HTTPClient) { c.token = token }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewHTTPClient creates a client for the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents a non-success response from the data service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Execute implements propertygrid.DataService.
func (c *HTTPClient) Execute(ctx context.Context, operation string, params map[string]string) (*propertygrid.Response, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	path := "/api/v1/grid/" + url.PathEscape(operation)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp propertygrid.Response
	if err := c.doJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tables lists the tables the data service describes.
func (c *HTTPClient) Tables(ctx context.Context) ([]json.RawMessage, error) {
	var out struct {
		Tables []json.RawMessage `json:"tables"`
	}
	if err := c.doJSON(ctx, "/api/v1/tables", &out); err != nil {
		return nil, err
	}
	return out.Tables, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response: %w: %w", propertygrid.ErrMalformedResponse, err)
	}
	return nil
}
