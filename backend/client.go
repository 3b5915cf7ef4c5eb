// Package backend provides the HTTP client for the headless CMS content API
// and a health checker that tracks whether the CMS is reachable.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxErrorBody caps how much of a non-2xx response body is kept on HTTPError.
const maxErrorBody = 4 << 10

// HTTPError is returned for non-2xx responses from the content API.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("content api: %s returned status %d", e.URL, e.StatusCode)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the content API root, e.g. "https://cms.example.com/wp-json/wp/v2".
	BaseURL string
	// Timeout bounds a single request attempt. 0 means 10s.
	Timeout time.Duration
	// RetryMax is the number of retries for connection errors and 5xx responses.
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	// Zero values keep the retryablehttp defaults.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client fetches JSON resources from the content API. It never caches; the
// cached accessors in package content sit in front of it.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   20,
		},
		Timeout: timeout,
	}
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = slog.Default()
	// Hand the last response back instead of a generic "giving up" error so
	// callers see the upstream status code.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    rc,
	}
}

// BaseURL returns the content API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// GetJSON fetches GET <base>/<resource>?<query> and decodes the JSON body
// into out. Non-2xx responses are returned as *HTTPError.
func (c *Client) GetJSON(ctx context.Context, resource string, query url.Values, out any) error {
	u := c.buildURL(resource, query)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building content api request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("content api request to %s failed: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, URL: u, Body: body}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding content api response from %s: %w", u, err)
	}
	return nil
}

// Ping issues a GET against the API root and reports whether it answered
// with a non-error status.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("bad url: %w", err)
	}
	// Health checks go straight to the underlying client: retries would only
	// delay detecting an outage.
	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) buildURL(resource string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
