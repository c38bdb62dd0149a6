// Package cms is the HTTP client of the content-management backend (Strapi).
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// TokenSource yields the bearer token to send, or "" for none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always yields the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	Status  int
	Body    []byte
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cms: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("cms: %d %s", e.Status, http.StatusText(e.Status))
}

// Unauthorized reports whether the backend rejected the credentials (401 or 403).
func (e *HTTPError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsUnauthorized reports whether err wraps a 401/403 HTTPError.
func IsUnauthorized(err error) bool {
	var hErr *HTTPError
	return errors.As(err, &hErr) && hErr.Unauthorized()
}

// IsUnavailable reports whether err is a network failure or a 5xx answer: the page may be retried.
func IsUnavailable(err error) bool {
	var hErr *HTTPError
	if errors.As(err, &hErr) {
		return hErr.Status >= http.StatusInternalServerError
	}
	var uErr *url.Error
	return errors.As(err, &uErr) && !errors.Is(err, context.Canceled)
}

// Client sends JSON requests to the CMS.
// It has no timeout and no retry: the request context is the only way to give up.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient returns a Client without credentials. httpClient defaults to a client without timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// WithTokens returns a copy of c that authenticates with ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// Request sends body (JSON-encoded when not nil) and decodes the response into out (when not nil).
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return errors.Wrap(err, "getting token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Body: respBody, Message: errorMessage(respBody)}
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err = json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.Request(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Request(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Request(ctx, http.MethodPut, path, nil, body, out)
}

// errorMessage extracts the message of a Strapi error payload: {"error": {"message": ...}} or {"message": ...}.
func errorMessage(body []byte) string {
	var payload struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return payload.Message
}
