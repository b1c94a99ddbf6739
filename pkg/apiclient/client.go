// Package apiclient is the calling convention for the marketplace API.
//
// Every call goes through Client.Request, which sends cookies, decodes the
// body whatever the status, and on a 401 performs one silent POST /refresh
// followed by exactly one retry of the original call. A call made with
// RequestOptions.Refreshed set is never retried.
//
// Concurrent calls that each receive a 401 each refresh on their own. Since
// refresh rotates the tokens, the slower refresh can then fail for a session
// that is still valid. WithRefreshCoalescing makes concurrent refreshes share
// a single request instead.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

const (
	refreshPath    = "/refresh"
	defaultTimeout = 30 * time.Second
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestOptions describes one logical call.
type RequestOptions struct {
	Method string
	// Body is encoded as JSON when non-nil.
	Body   any
	Header http.Header
	// Refreshed marks the call as already retried after a refresh.
	Refreshed bool
}

// Response is a successful outcome. HTTP.Body has already been drained.
type Response struct {
	Data json.RawMessage
	HTTP *http.Response
}

type Client struct {
	baseURL  string
	doer     Doer
	log      zerolog.Logger
	coalesce bool
	group    singleflight.Group
}

type Option func(*Client)

// WithDoer replaces the transport, typically with an *http.Client or a fake.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRefreshCoalescing routes concurrent refreshes through one in-flight
// request.
func WithRefreshCoalescing() Option {
	return func(c *Client) { c.coalesce = true }
}

// New returns a Client for the API rooted at baseURL, for example
// "https://marketplace.example/api". Without WithDoer it uses an
// *http.Client with a cookie jar.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		jar, err := NewCookieJar()
		if err != nil {
			return nil, err
		}
		c.doer = &http.Client{Jar: jar, Timeout: defaultTimeout}
	}
	return c, nil
}

// NewCookieJar returns a jar that scopes cookies by public suffix.
func NewCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("apiclient: cookie jar: %w", err)
	}
	return jar, nil
}

// Request performs the call and applies the single-retry protocol:
//
//	send ── 2xx ──────────────────────────────▶ Response
//	  │
//	  ├─ 401, not refreshed ─▶ POST /refresh ── 2xx ─▶ send again (refreshed)
//	  │                              │
//	  │                              └─ fails ─▶ *APIError from the first reply
//	  └─ anything else ────────────────────────▶ *APIError
//
// Transport failures are returned as they are.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	payload, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	for {
		resp, err := c.send(ctx, opts.Method, path, payload, opts.Header)
		if err != nil {
			return nil, err
		}
		if isSuccess(resp.HTTP.StatusCode) {
			return resp, nil
		}

		if resp.HTTP.StatusCode == http.StatusUnauthorized && !opts.Refreshed {
			rerr := c.refresh(ctx)
			if rerr == nil {
				c.log.Debug().Str("path", path).Msg("session refreshed, retrying once")
				opts.Refreshed = true
				continue
			}
			c.log.Debug().Err(rerr).Str("path", path).Msg("silent refresh failed")
		}

		return nil, newAPIError(resp)
	}
}

// refresh issues POST /refresh with no body. The refresh token travels in
// the cookie jar.
func (c *Client) refresh(ctx context.Context) error {
	if !c.coalesce {
		return c.doRefresh(ctx)
	}
	_, err, _ := c.group.Do(refreshPath, func() (any, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

func (c *Client) doRefresh(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, refreshPath, nil, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp.HTTP.StatusCode) {
		return newAPIError(resp)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, header http.Header) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read %s %s: %w", method, path, err)
	}

	resp := &Response{HTTP: httpResp}
	if len(raw) > 0 && json.Valid(raw) {
		resp.Data = raw
	}
	return resp, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode body: %w", err)
	}
	return payload, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code <= 299
}
