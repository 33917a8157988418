// Package googletest provides a fake Google REST endpoint for tests.
//
// Routes match on HTTP method and path suffix, so the same handler answers
// whether or not the client prefixes the path with the API's base path.
package googletest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
)

// Request is a recorded call to the fake server.
type Request struct {
	Method string
	Path   string
	Query  map[string][]string
	Body   []byte
}

type route struct {
	method string
	suffix string
	match  func(*http.Request) bool
	bodies []response
	calls  int
}

type response struct {
	status int
	body   any
}

// Server is an httptest server answering Google REST calls from canned responses.
type Server struct {
	*httptest.Server

	t        *testing.T
	mu       sync.Mutex
	routes   []*route
	requests []Request
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{t: t}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Config returns client configuration pointing at the server without authentication.
func (s *Server) Config() google.Config {
	return google.Config{Endpoint: s.URL + "/", NoAuth: true}
}

// Retryer returns a retryer with no rate limiting and no retries.
func (s *Server) Retryer() *google.Retryer {
	return google.NewRetryer(google.RetryConfig{}, nil)
}

// JSON answers method+suffix with body encoded as JSON.
// Passing several bodies answers successive calls in order; the last one repeats.
func (s *Server) JSON(method, suffix string, bodies ...any) {
	resps := make([]response, len(bodies))
	for i, b := range bodies {
		resps[i] = response{status: http.StatusOK, body: b}
	}
	s.add(&route{method: method, suffix: suffix, bodies: resps})
}

// JSONWhen is JSON restricted to requests for which match returns true.
func (s *Server) JSONWhen(method, suffix string, match func(*http.Request) bool, bodies ...any) {
	resps := make([]response, len(bodies))
	for i, b := range bodies {
		resps[i] = response{status: http.StatusOK, body: b}
	}
	s.add(&route{method: method, suffix: suffix, match: match, bodies: resps})
}

// Error answers method+suffix with a Google-style error payload.
func (s *Server) Error(method, suffix string, status int, reason string) {
	s.add(&route{method: method, suffix: suffix, bodies: []response{{status: status, body: ErrorBody(status, reason)}}})
}

// Sequence answers successive calls with the given status/body pairs.
func (s *Server) Sequence(method, suffix string, statuses []int, bodies []any) {
	resps := make([]response, len(statuses))
	for i := range statuses {
		resps[i] = response{status: statuses[i], body: bodies[i]}
	}
	s.add(&route{method: method, suffix: suffix, bodies: resps})
}

// ErrorBody builds the JSON error envelope Google APIs return.
func ErrorBody(status int, reason string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": http.StatusText(status),
			"errors": []map[string]any{
				{"reason": reason, "message": http.StatusText(status)},
			},
		},
	}
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many calls matched method+suffix.
func (s *Server) Count(method, suffix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, suffix) {
			n++
		}
	}
	return n
}

// Last returns the most recent call matching method+suffix.
func (s *Server) Last(method, suffix string) (Request, bool) {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && strings.HasSuffix(reqs[i].Path, suffix) {
			return reqs[i], true
		}
	}
	return Request{}, false
}

func (s *Server) add(r *route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, r)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Body:   body,
	})

	var matched *route
	for i := len(s.routes) - 1; i >= 0; i-- {
		rt := s.routes[i]
		if rt.method == r.Method && strings.HasSuffix(r.URL.Path, rt.suffix) && (rt.match == nil || rt.match(r)) {
			matched = rt
			break
		}
	}
	var resp response
	if matched != nil {
		idx := matched.calls
		if idx >= len(matched.bodies) {
			idx = len(matched.bodies) - 1
		}
		matched.calls++
		resp = matched.bodies[idx]
	}
	s.mu.Unlock()

	if matched == nil {
		s.t.Logf("googletest: no route for %s %s", r.Method, r.URL.Path)
		resp = response{status: http.StatusNotFound, body: ErrorBody(http.StatusNotFound, "notFound")}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	switch b := resp.body.(type) {
	case nil:
	case []byte:
		_, _ = w.Write(b)
	case string:
		_, _ = w.Write([]byte(b))
	default:
		_ = json.NewEncoder(w).Encode(b)
	}
}
