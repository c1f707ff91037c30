// Package backendtest provides an in-process stand-in for the REST backend.
package backendtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/benomayebu/Farmily-Docs/internal/backend"
)

// Handler answers one request.
type Handler func(req backend.Request) (*backend.Response, error)

// Recorder records every request and answers from registered handlers,
// 200 {} by default.
type Recorder struct {
	mu       sync.Mutex
	requests []backend.Request
	handlers map[string]Handler
	fail     error
	noToken  map[string]bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{handlers: make(map[string]Handler)}
}

func key(method, role, path string) string {
	return method + " /api/" + role + path
}

// Handle registers fn for one exact route.
func (r *Recorder) Handle(method, role, path string, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key(method, role, path)] = fn
}

// Reply registers a fixed answer. Non-2xx statuses become *backend.HTTPError.
func (r *Recorder) Reply(method, role, path string, status int, body string) {
	r.Handle(method, role, path, func(req backend.Request) (*backend.Response, error) {
		if status < 200 || status > 299 {
			return nil, &backend.HTTPError{Status: status, Message: body, Request: req.String()}
		}
		return &backend.Response{Status: status, Body: []byte(body)}, nil
	})
}

// FailWith makes every request fail with err; nil restores normal answers.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

// RevokeToken makes Authorize and Do fail with backend.ErrTokenMissing for
// role.
func (r *Recorder) RevokeToken(role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.noToken == nil {
		r.noToken = make(map[string]bool)
	}
	r.noToken[role] = true
}

// Authorize fails for roles whose token was revoked.
func (r *Recorder) Authorize(_ context.Context, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.noToken[role] {
		return fmt.Errorf("%w %s", backend.ErrTokenMissing, role)
	}
	return nil
}

// Do records req and answers it.
func (r *Recorder) Do(_ context.Context, req backend.Request) (*backend.Response, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	fail := r.fail
	h := r.handlers[req.String()]
	revoked := r.noToken[req.Role]
	r.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	if revoked {
		return nil, fmt.Errorf("%w %s", backend.ErrTokenMissing, req.Role)
	}
	if h != nil {
		return h(req)
	}
	return &backend.Response{Status: http.StatusOK, Body: []byte("{}")}, nil
}

// Requests returns every recorded request in order.
func (r *Recorder) Requests() []backend.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]backend.Request(nil), r.requests...)
}

// Count returns how many times a route was called.
func (r *Recorder) Count(method, role, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.String() == key(method, role, path) {
			n++
		}
	}
	return n
}

// Last returns the last request to a route and whether there was one.
func (r *Recorder) Last(method, role, path string) (backend.Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.requests) - 1; i >= 0; i-- {
		if r.requests[i].String() == key(method, role, path) {
			return r.requests[i], true
		}
	}
	return backend.Request{}, false
}

// BodyMap decodes the JSON body of req.
func BodyMap(req backend.Request) map[string]interface{} {
	raw, err := req.EncodeBody()
	if err != nil || raw == nil {
		return nil
	}
	var m map[string]interface{}
	if err := jsoniter.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
