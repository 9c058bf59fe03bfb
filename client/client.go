// Package client is the request dispatcher for the RustMailer backend API.
//
// All requests carry the bearer credential from the injected credential
// store. Responses are mapped onto a small set of error kinds: a 401 clears
// the credential slot and notifies the shell so it can redirect to sign-in, a
// 403 and 5xx surface as sentinel errors, other 4xx responses carry the
// server-supplied message verbatim.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sparklive/rustmailerctl/metrics"
	"github.com/sparklive/rustmailerctl/mlog"
	"github.com/sparklive/rustmailerctl/querycache"
)

var pkglog = mlog.New("client", nil)

// DevBaseURL is the fixed backend origin used in development mode.
const DevBaseURL = "http://localhost:15630"

// RequestTimeout bounds every request.
const RequestTimeout = 30 * time.Second

// Response size limits. Message text can be large, other responses are small.
const (
	jsonResponseLimit  = 3 * 1024 * 1024
	errorResponseLimit = 10 * 1024
)

var (
	ErrUnauthorized = errors.New("unauthorized")    // 401, credential slot cleared.
	ErrForbidden    = errors.New("forbidden")       // 403.
	ErrNotModified  = errors.New("not modified")    // 304.
	ErrServer       = errors.New("server error")    // 5xx.
	ErrNetwork      = errors.New("network error")   // Transport failure.
	ErrAborted      = errors.New("request aborted") // Context canceled, view gone.
)

// Error is a 4xx domain error with the message the server supplied, surfaced
// verbatim.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Message
}

// NoRetry reports errors that must not cause a query retry: authentication
// and authorization failures and cancellations.
func NoRetry(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrAborted)
}

// CredentialStore is the single bearer token slot the dispatcher reads on
// every request and clears on a 401.
type CredentialStore interface {
	Token() string
	SetToken(ctx context.Context, token string) error
}

// MemStore is an in-memory credential slot, for tests and ad hoc use.
type MemStore struct {
	token string
}

func (m *MemStore) Token() string { return m.token }

func (m *MemStore) SetToken(ctx context.Context, token string) error {
	m.token = token
	return nil
}

// Client dispatches requests to the backend.
type Client struct {
	BaseURL string          // Backend origin, e.g. https://mail.example.com.
	Creds   CredentialStore // Required.

	// Optional query cache with its retry policy. When nil, every call goes to
	// the backend.
	Cache  *querycache.Cache
	Policy querycache.Policy

	// Called after a 401 cleared the credential slot, with the URL that was
	// being requested, so the shell can redirect to sign-in and return to it
	// after.
	OnUnauthorized func(currentURL string)

	// Optional, defaults to a client with RequestTimeout.
	HTTPClient *http.Client
}

var defaultHTTPClient = &http.Client{Timeout: RequestTimeout}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

func (c *Client) invalidate(prefix querycache.Key) {
	if c.Cache != nil {
		c.Cache.Invalidate(prefix)
	}
}

// do runs one HTTP transaction and maps the response status onto the error
// kinds. On success the caller must close the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) (*http.Response, error) {
	log := pkglog.WithContext(ctx)
	u := strings.TrimSuffix(c.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	var statusCode int
	if resp != nil {
		statusCode = resp.StatusCode
	}
	metrics.HTTPClientObserve(ctx, "client", method, statusCode, err, start)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrAborted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	switch {
	case resp.StatusCode/100 == 2:
		return resp, nil
	case resp.StatusCode == http.StatusNotModified:
		resp.Body.Close()
		return nil, ErrNotModified
	case resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		// Terminate the session: clear the slot, let the shell redirect to
		// sign-in with the current URL to return to.
		if serr := c.Creds.SetToken(ctx, ""); serr != nil {
			log.Errorx("clearing credential slot", serr)
		}
		if c.Cache != nil {
			c.Cache.Flush()
		}
		if c.OnUnauthorized != nil {
			c.OnUnauthorized(u)
		}
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrForbidden
	case resp.StatusCode/100 == 5:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrServer, resp.Status)
	default:
		defer resp.Body.Close()
		return nil, badResponse(resp)
	}
}

// badResponse parses the {message} payload of a 4xx domain error. The server
// message is surfaced verbatim.
func badResponse(resp *http.Response) error {
	buf, err := io.ReadAll(&limitReader{R: resp.Body, Limit: errorResponseLimit})
	if err != nil {
		return fmt.Errorf("reading error from remote: %v", err)
	}
	var xerr Error
	if err := json.Unmarshal(buf, &xerr); err != nil || xerr.Message == "" {
		if len(buf) > 512 {
			buf = buf[:512]
		}
		return Error{Code: resp.StatusCode, Message: strings.TrimSpace(string(buf))}
	}
	xerr.Code = resp.StatusCode
	return xerr
}

// transact posts req as JSON (GET/DELETE with nil req send no body) and
// decodes the JSON response into T.
func transact[T any](ctx context.Context, c *Client, method, path string, query url.Values, req any) (resp T, rerr error) {
	var body io.Reader
	var contentType string
	if req != nil {
		buf, err := json.Marshal(req)
		if err != nil {
			return resp, fmt.Errorf("marshal request: %v", err)
		}
		body = strings.NewReader(string(buf))
		contentType = "application/json"
	}
	hresp, err := c.do(ctx, method, path, query, contentType, body)
	if err != nil {
		return resp, err
	}
	defer hresp.Body.Close()
	if err := json.NewDecoder(&limitReader{R: hresp.Body, Limit: jsonResponseLimit}).Decode(&resp); err != nil && err != io.EOF {
		return resp, fmt.Errorf("parsing response: %v", err)
	}
	return resp, nil
}

// transactText sends a text/plain body and returns the response body as
// string. Used by the few endpoints that take plain text: login, root
// password reset, proxy URLs and the license.
func transactText(ctx context.Context, c *Client, method, path string, query url.Values, body string) (string, error) {
	hresp, err := c.do(ctx, method, path, query, "text/plain", strings.NewReader(body))
	if err != nil {
		return "", err
	}
	defer hresp.Body.Close()
	buf, err := io.ReadAll(&limitReader{R: hresp.Body, Limit: errorResponseLimit})
	if err != nil {
		return "", fmt.Errorf("reading response: %v", err)
	}
	return strings.TrimSpace(string(buf)), nil
}

// transactBlob returns the response body as an opaque stream, for full
// message and attachment downloads. The caller must close it.
func transactBlob(ctx context.Context, c *Client, method, path string, query url.Values, req any) (io.ReadCloser, error) {
	var body io.Reader
	var contentType string
	if req != nil {
		buf, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %v", err)
		}
		body = strings.NewReader(string(buf))
		contentType = "application/json"
	}
	hresp, err := c.do(ctx, method, path, query, contentType, body)
	if err != nil {
		return nil, err
	}
	return hresp.Body, nil
}

// fetch goes through the query cache when one is configured.
func fetch[T any](ctx context.Context, c *Client, key querycache.Key, stale time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if c.Cache == nil {
		return fn(ctx)
	}
	return querycache.Fetch(ctx, c.Cache, c.Policy, key, stale, NoRetry, fn)
}
