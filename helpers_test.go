package vrm

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// recorder remembers the requests a test server received.
type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func (r *recorder) add(req *http.Request, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	r.bodies = append(r.bodies, body)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// newTestClient starts a server for handler and returns a client pointing
// at its /api/ path.
func newTestClient(t *testing.T, handler http.Handler, opts ...ClientOption) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL + "/api")
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}

	opts = append([]ClientOption{WithBaseURL(u), WithHTTPClient(srv.Client())}, opts...)
	return New("test-token", "test-appkey", opts...)
}

// writeEnvelope writes an ok envelope around the raw JSON data.
func writeEnvelope(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","message":"","data":%s}`, data)
}

// writeFailure writes an error envelope with the given message.
func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":"error","message":%q,"data":null}`, message)
}
