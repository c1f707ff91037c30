// Package backend is the client of the Farmily REST API. Every role has its
// own base path under /api and every call carries the role's bearer token.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/benomayebu/Farmily-Docs/internal/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBaseURL is the local development backend.
const DefaultBaseURL = "http://localhost:3000"

// Roles served by the backend.
const (
	RoleFarmer      = "farmer"
	RoleDistributor = "distributor"
	RoleRetailer    = "retailer"
	RoleConsumer    = "consumer"
)

// Request is one REST call relative to a role's base path.
type Request struct {
	Role   string      `json:"role"`
	Method string      `json:"method"`
	Path   string      `json:"path"`
	Body   interface{} `json:"body,omitempty"`
}

// EncodeBody returns the JSON body, nil when there is none.
func (r Request) EncodeBody() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	if raw, ok := r.Body.(jsoniter.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(r.Body)
}

func (r Request) String() string {
	return r.Method + " /api/" + r.Role + r.Path
}

// Response is a successful reply.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// HTTPError is a non-2xx reply. Message carries the server's own text.
type HTTPError struct {
	Status  int
	Message string
	Request string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.Request, e.Status, e.Message)
}

// Client calls the REST backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMetrics counts failed calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for baseURL (scheme and host, no /api).
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the absolute URL of req.
func (c *Client) URL(req Request) string {
	return c.baseURL + "/api/" + req.Role + req.Path
}

// Authorize reports whether role has a usable bearer token, without
// sending anything.
func (c *Client) Authorize(ctx context.Context, role string) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	_, err := c.tokens.Token(ctx, role)
	return err
}

// Do sends req and returns the reply, or *HTTPError for non-2xx statuses.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if !ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, req.Role)
	}
	token, err := c.tokens.Token(ctx, req.Role)
	if err != nil {
		return nil, err
	}
	body, err := req.EncodeBody()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.URL(req), reader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.BackendError(req.Role, "transport")
		return nil, fmt.Errorf("%s: %w", req, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.BackendError(req.Role, strconv.Itoa(resp.StatusCode))
		httpErr := &HTTPError{Status: resp.StatusCode, Message: serverMessage(payload, resp.StatusCode), Request: req.String()}
		c.log.Warn().Str("request", req.String()).Int("status", resp.StatusCode).Str("message", httpErr.Message).Msg("backend call failed")
		return nil, httpErr
	}

	c.log.Debug().Str("request", req.String()).Int("status", resp.StatusCode).Msg("backend call")
	return &Response{Status: resp.StatusCode, Body: payload}, nil
}

// DoJSON sends req and decodes the reply into out when out is not nil.
func (c *Client) DoJSON(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req, err)
	}
	return nil
}

func serverMessage(body []byte, status int) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(status)
}
