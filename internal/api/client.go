package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL        = "http://localhost:8000"
	defaultRequestTimeout = 10 * time.Second
	retryBackoffBase      = 1 * time.Second
	retryBackoffCap       = 30 * time.Second
)

// publicPaths are endpoints requested without a bearer token.
var publicPaths = map[string]bool{
	"/health":       true,
	"/auth/login":   true,
	"/auth/google":  true,
	"/auth/refresh": true,
}

// Client issues authenticated requests against the workout server and
// owns the token lifecycle: bearer attach, single refresh-and-retry on
// 401, sign-out on refresh failure. Every error it returns is either
// ErrSignedOut or an *APIError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenStore
	log        *slog.Logger

	// refreshMu makes token refresh single-flight: concurrent 401s
	// wait for the one outstanding refresh instead of issuing their own.
	refreshMu sync.Mutex

	// backoffBase is overridden in tests to keep the retry path fast.
	backoffBase time.Duration
}

// Options tunes the base-URL resolution and timeouts.
type Options struct {
	// ServerURL is the configured server address. When empty the client
	// falls back to REPSYNC_SERVER_URL, then to localhost with a warning.
	ServerURL string
	// DevHostRewrite replaces a loopback host in the resolved URL, for
	// setups where "localhost" means the container rather than the
	// machine the server runs on.
	DevHostRewrite string
	// RequestTimeout defaults to 10s.
	RequestTimeout time.Duration
}

// New creates a Client. The base URL is resolved once, here: explicit
// config wins, then the REPSYNC_SERVER_URL environment variable, then
// a localhost fallback that is logged as a warning because it only
// works in local development.
func New(opts Options, tokens *TokenStore, log *slog.Logger) *Client {
	base := opts.ServerURL
	if base == "" {
		base = os.Getenv("REPSYNC_SERVER_URL")
	}
	if base == "" {
		base = defaultBaseURL
		log.Warn("no server URL configured, falling back to localhost", "url", base)
	}
	base = strings.TrimRight(base, "/")

	if opts.DevHostRewrite != "" {
		if u, err := url.Parse(base); err == nil {
			host := u.Hostname()
			if host == "localhost" || host == "127.0.0.1" {
				port := u.Port()
				u.Host = opts.DevHostRewrite
				if port != "" {
					u.Host = opts.DevHostRewrite + ":" + port
				}
				base = strings.TrimRight(u.String(), "/")
				log.Info("rewrote loopback server host", "url", base)
			}
		}
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL:     base,
		httpClient:  &http.Client{Timeout: timeout},
		tokens:      tokens,
		log:         log,
		backoffBase: retryBackoffBase,
	}
}

// BaseURL returns the resolved server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SignedIn reports whether a token is currently stored.
func (c *Client) SignedIn() bool {
	_, ok := c.tokens.Token()
	return ok
}

// errorBody is the server's error response shape.
type errorBody struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
}

// request performs one HTTP round trip. Transport failures come back as
// *APIError{Cause: network}; non-2xx responses as *APIError built from
// the response body and status. A 401 on a non-public path triggers at
// most one token refresh followed by one retry of the original request.
func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	return c.requestOnce(ctx, method, path, body, out, true)
}

func (c *Client) requestOnce(ctx context.Context, method, path string, body, out any, allowRefresh bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("encoding request: %v", err), Cause: CauseUnknown}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("creating request: %v", err), Cause: CauseUnknown}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	public := publicPaths[strings.SplitN(path, "?", 2)[0]]
	if !public {
		if tok, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(method+" "+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError("reading response from "+path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !public && allowRefresh {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		return c.requestOnce(ctx, method, path, body, out, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		msg := eb.Detail
		if msg == "" {
			msg = fmt.Sprintf("request to %s failed", path)
		}
		return &APIError{
			Message:    msg,
			HTTPStatus: resp.StatusCode,
			ErrorCode:  eb.ErrorCode,
			Cause:      causeForStatus(resp.StatusCode),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &APIError{Message: fmt.Sprintf("decoding response from %s: %v", path, err), Cause: CauseUnknown}
		}
	}
	return nil
}

// refresh exchanges the stored refresh token for a new pair. Single
// flight: a caller that lost the race re-checks the store and returns
// without a second refresh call. An unrecoverable failure clears all
// tokens and returns ErrSignedOut.
func (c *Client) refresh(ctx context.Context) error {
	tok, ok := c.tokens.Token()
	if !ok {
		return ErrSignedOut
	}
	before := tok.AccessToken

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another request may have finished the refresh while we waited.
	cur, ok := c.tokens.Token()
	if !ok {
		return ErrSignedOut
	}
	if cur.AccessToken != before {
		return nil
	}

	var tr tokenResponse
	err := c.requestOnce(ctx, http.MethodPost, "/auth/refresh",
		map[string]string{"refresh_token": cur.RefreshToken}, &tr, false)
	if err != nil {
		c.log.Warn("token refresh failed, signing out", "error", err)
		c.tokens.Clear()
		return ErrSignedOut
	}

	c.tokens.Set(tr.token())
	c.log.Info("token refreshed")
	return nil
}

// do wraps request with the bounded retry policy for mutations:
// transient failures that are neither network nor auth (in practice
// 5xx) get exactly one retry with exponential backoff. Network errors
// are never retried here; they are deferred to the sync orchestrator's
// reconciliation pass.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	err := c.request(ctx, method, path, body, out)
	if err == nil || method == http.MethodGet {
		return err
	}

	cl := Classify(err)
	if cl.IsNetwork || cl.IsAuth {
		return err
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Cause != CauseServer {
		return err
	}

	backoff := c.backoffBase
	if backoff > retryBackoffCap {
		backoff = retryBackoffCap
	}
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return networkError(method+" "+path, ctx.Err())
	}
	c.log.Info("retrying after server error", "method", method, "path", path, "status", apiErr.HTTPStatus)
	return c.request(ctx, method, path, body, out)
}
