// Package upstream talks to the REST API that owns users, roles and settings.
package upstream

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
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Observer receives one call per upstream round trip.
type Observer interface {
	ObserveUpstream(operation string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. https://api.example.com/api.
	BaseURL string
	// AppURL is this dashboard's public URL, used to build reset links.
	AppURL  string
	Timeout time.Duration
	// CatalogTTL and CatalogSize bound the per-token permission catalog cache.
	CatalogTTL  time.Duration
	CatalogSize int
	Logger      *slog.Logger
	Observer    Observer
	HTTPClient  *http.Client
}

// Client wraps interactions with the upstream API.
type Client struct {
	baseURL    *url.URL
	appURL     string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer

	catalog      *lru.LRU[string, []byte]
	catalogGroup singleflight.Group
}

// NewClient constructs a new client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("upstream: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream: base URL %q must be absolute", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.CatalogSize
	if size <= 0 {
		size = 256
	}
	ttl := opts.CatalogTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Client{
		baseURL:    base,
		appURL:     strings.TrimRight(opts.AppURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		observer:   opts.Observer,
		catalog:    lru.NewLRU[string, []byte](size, nil, ttl),
	}, nil
}

// Request describes one upstream call.
type Request struct {
	// Operation names the call in logs and metrics.
	Operation     string
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	ContentType   string
	Accept        string
	Body          any
	// Fallback is the error message used when upstream gives none.
	Fallback string
}

// Response is an upstream reply with a 2xx status.
type Response struct {
	Status int
	Body   []byte
}

// Empty reports whether the reply carried no body, as with 204.
func (r *Response) Empty() bool {
	return r == nil || len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the body into target.
func (r *Response) Decode(target any) error {
	if r.Empty() {
		return errors.New("upstream: empty response body")
	}
	return json.Unmarshal(r.Body, target)
}

// Do performs req. Non-2xx replies become *Error carrying the upstream status
// and message; transport failures become *Error with status 500.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	status := 0
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream(req.Operation, status, time.Since(start))
		}
	}()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Message: req.fallback(), Err: err}
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("upstream request failed",
			slog.String("operation", req.Operation),
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Any("error", err),
		)
		return nil, &Error{Status: http.StatusInternalServerError, Message: req.fallback(), Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	status = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Status: http.StatusInternalServerError, Message: req.fallback(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := messageFrom(body)
		if message == "" {
			message = req.fallback()
		}
		c.logger.Warn("upstream rejected request",
			slog.String("operation", req.Operation),
			slog.Int("status", resp.StatusCode),
			slog.String("message", message),
		)
		return nil, &Error{Status: resp.StatusCode, Message: message}
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := *c.baseURL
	target.Path = joinPath(c.baseURL.Path, req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("upstream: encode %s body: %w", req.Operation, err)
		}
		body = bytes.NewReader(data)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", accept)
	if auth := BearerToken(req.Authorization); auth != "" {
		httpReq.Header.Set("Authorization", auth)
	}
	return httpReq, nil
}

func (req Request) fallback() string {
	if req.Fallback != "" {
		return req.Fallback
	}
	return "Internal Server Error"
}

// BearerToken normalises a raw token or Authorization value to "Bearer <token>".
// Repeated scheme prefixes collapse to one.
func BearerToken(value string) string {
	value = strings.TrimSpace(value)
	for {
		lower := strings.ToLower(value)
		if !strings.HasPrefix(lower, "bearer ") {
			break
		}
		value = strings.TrimSpace(value[len("bearer "):])
	}
	if value == "" || strings.EqualFold(value, "bearer") || value == "null" || value == "undefined" {
		return ""
	}
	return "Bearer " + value
}

func joinPath(base, path string) string {
	switch {
	case path == "":
		return base
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	default:
		return base + path
	}
}

func messageFrom(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
