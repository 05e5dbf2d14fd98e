// Package api is the REST client for the talkcents backend.
//
// Every call is attempted exactly once. Non-2xx responses come back as
// *HTTPError carrying the status code and the raw response text; callers
// decide whether to surface or retry.
package api

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

	"github.com/rs/zerolog"

	"github.com/talkcents/talkcents/internal/buildinfo"
	"github.com/talkcents/talkcents/internal/id"
	"github.com/talkcents/talkcents/internal/model"
	"github.com/talkcents/talkcents/internal/tokenstore"
)

// DefaultTimeout bounds a single request when no other timeout is set.
const DefaultTimeout = 15 * time.Second

// TokenSource supplies the bearer token. Returning tokenstore.ErrNoToken
// (or an empty token) sends the request unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the backend rooted at a base URL such as
// "https://host/api".
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client. tokens may be nil for a client that never
// authenticates.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(e.Body))
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 or 403 response.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	anonymous   bool // never attach a token
}

func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	uri := c.baseURL + r.path
	if len(r.query) > 0 {
		uri += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, uri, r.body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	contentType := r.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	reqID := id.NewRequestID()
	req.Header.Set("X-Request-ID", reqID)

	if !r.anonymous {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", r.method).Str("path", r.path).Str("request_id", reqID).Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", r.method, r.path, err)
	}

	c.log.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", reqID).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Method: r.method, Path: r.path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.Token(ctx)
	if errors.Is(err, tokenstore.ErrNoToken) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return token, nil
}

// doJSON sends in (if non-nil) as JSON and decodes the response into out
// (if non-nil). An empty response body leaves out untouched.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	r := request{method: method, path: path, query: query}
	if in != nil {
		data, err := encodeJSON(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		r.body = data
	}

	body, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := decode(body, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func encodeJSON(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// decodeRecord decodes a single-record response. Bodies that are empty
// or not a JSON object yield an empty record.
func decodeRecord(data []byte) (model.Raw, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return model.Raw{}, nil
	}
	var raw model.Raw
	if err := decode(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// decode unmarshals with UseNumber so amounts and IDs keep their text.
func decode(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// errNotList is returned when a list response is an object without a
// well-known array key.
var errNotList = errors.New("response is not a list of records")

// decodeRecords accepts a JSON array of records or an envelope object
// holding the array under a well-known key.
func decodeRecords(data []byte) ([]model.Raw, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []model.Raw{}, nil
	}

	if data[0] == '[' {
		var raws []model.Raw
		if err := decode(data, &raws); err != nil {
			return nil, err
		}
		if raws == nil {
			raws = []model.Raw{}
		}
		return raws, nil
	}

	var obj model.Raw
	if err := decode(data, &obj); err != nil {
		return nil, err
	}
	for _, k := range []string{"expenditures", "items", "data", "results"} {
		list, ok := obj[k].([]any)
		if !ok {
			continue
		}
		raws := make([]model.Raw, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				raws = append(raws, model.Raw(m))
			}
		}
		return raws, nil
	}
	return nil, errNotList
}

// decodeRecordsOrOne is decodeRecords that also accepts a bare record,
// for endpoints that answer with one object when they extract one item.
func decodeRecordsOrOne(data []byte) ([]model.Raw, error) {
	raws, err := decodeRecords(data)
	if !errors.Is(err, errNotList) {
		return raws, err
	}
	raw, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	return []model.Raw{raw}, nil
}

func dateParam(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
