package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client issues calls to the upstream EduAdmin API on behalf of browser
// sessions. Credential cookies are forwarded per request; a 401 on a
// not-yet-retried call triggers exactly one shared refresh episode (see
// refresh.go) followed by exactly one retry.
type Client struct {
	baseURL string
	http    *http.Client
	refresh *refresher
}

type Option func(*Client)

// WithHTTPClient overrides the underlying transport. Mostly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRefreshTimeout bounds the silent refresh call. Expiry counts as a
// refresh failure and drains all waiters.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refresh.timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	c.refresh = newRefresher(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one upstream call. Path is relative to the API origin.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any            // JSON-encoded when non-nil
	Cookies []*http.Cookie // browser credential cookies, forwarded upstream
}

// Response is a successful upstream reply. SetCookies carries every cookie
// the upstream set during the call, including a rotated credential pair
// when a silent refresh happened; callers must propagate them to the
// browser or the rotation is lost.
type Response struct {
	Status     int
	Header     http.Header
	Body       []byte
	SetCookies []*http.Cookie
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Do sends the request. On a 401 it runs the single-flight refresh and, if
// the refresh succeeds, reissues the request exactly once with the rotated
// credentials. A second 401 after the retry is surfaced as-is; it is never
// requeued.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	res, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Status != http.StatusUnauthorized {
		return finish(res)
	}

	origErr := toAPIError(res)

	rotated, err := c.refresh.run(ctx, req.Cookies, origErr)
	if err != nil {
		return nil, err
	}

	// Retry exactly once with the rotated pair.
	retryReq := req
	retryReq.Cookies = mergeCookies(req.Cookies, rotated)
	res, err = c.send(ctx, retryReq)
	if err != nil {
		return nil, err
	}
	// Surface the rotation on the final response regardless of its status.
	res.SetCookies = mergeCookies(rotated, res.SetCookies)
	return finish(res)
}

// Refresh exposes the shared refresh primitive for callers that need it
// directly (the route guard's server-side variant). It participates in the
// same single-flight coordination as Do.
func (c *Client) Refresh(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error) {
	return c.refresh.run(ctx, cookies, ErrRefreshFailed)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, cookies []*http.Cookie) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Cookies: cookies})
}

func (c *Client) Post(ctx context.Context, path string, body any, cookies []*http.Cookie) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Cookies: cookies})
}

func (c *Client) Put(ctx context.Context, path string, body any, cookies []*http.Cookie) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Cookies: cookies})
}

func (c *Client) Patch(ctx context.Context, path string, body any, cookies []*http.Cookie) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body, Cookies: cookies})
}

func (c *Client) Delete(ctx context.Context, path string, cookies []*http.Cookie) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Cookies: cookies})
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range req.Cookies {
		httpReq.AddCookie(ck)
	}

	httpRes, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %s %s: %w", req.Method, req.Path, err)
	}
	defer httpRes.Body.Close()

	data, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read response: %w", err)
	}

	return &Response{
		Status:     httpRes.StatusCode,
		Header:     httpRes.Header,
		Body:       data,
		SetCookies: httpRes.Cookies(),
	}, nil
}

// finish maps non-2xx responses to a uniform APIError carrying the upstream
// status and its best-effort message.
func finish(res *Response) (*Response, error) {
	if res.Status >= 200 && res.Status < 300 {
		return res, nil
	}
	return nil, toAPIError(res)
}

// mergeCookies overlays updates onto base by cookie name. Later values win,
// so a rotated credential pair replaces the stale one.
func mergeCookies(base, updates []*http.Cookie) []*http.Cookie {
	merged := make([]*http.Cookie, 0, len(base)+len(updates))
	seen := make(map[string]int, len(base))
	for _, ck := range base {
		seen[ck.Name] = len(merged)
		merged = append(merged, ck)
	}
	for _, ck := range updates {
		if i, ok := seen[ck.Name]; ok {
			merged[i] = ck
			continue
		}
		seen[ck.Name] = len(merged)
		merged = append(merged, ck)
	}
	return merged
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, ck := range cookies {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
