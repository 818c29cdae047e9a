// Package apiclient wraps outbound calls to the calorie backend.
//
// It only builds and sends requests: the identity header, content type and
// base URL are decided here, while decoding and status interpretation belong
// to the caller. There are no retries.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/logger"
)

const (
	InitDataHeader  = "X-Telegram-Init-Data"
	RequestIDHeader = "X-Request-ID"
)

// Credentials supplies the host identity string. host.Adapter satisfies it.
type Credentials interface {
	InitData() string
}

// Options describes one call.
type Options struct {
	Method  string // GET when empty
	Body    io.Reader
	Headers http.Header
}

// Client sends requests to the backend.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	log        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = logger.OrNop(l) }
}

// New creates a client. An empty baseURL keeps paths relative.
// creds may be nil, which means anonymous calls.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: http.DefaultClient,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends the request and returns the raw response.
func (c *Client) Call(ctx context.Context, path string, opts Options) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, opts.Body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}

	if form, ok := opts.Body.(*Form); ok {
		if err := form.Close(); err != nil {
			return nil, fmt.Errorf("finish form: %w", err)
		}
		req.Header.Set("Content-Type", form.ContentType())
		req.ContentLength = int64(form.Len())
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.creds != nil {
		if initData := c.creds.InitData(); initData != "" {
			req.Header.Set(InitDataHeader, initData)
		}
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())

	for key, values := range opts.Headers {
		req.Header[http.CanonicalHeaderKey(key)] = values
	}

	c.log.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", req.Header.Get(RequestIDHeader)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// JSONBody encodes v for use as Options.Body.
func JSONBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
