package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockResponse defines one canned response of the mock SP-API server.
type MockResponse struct {
	StatusCode int
	Body       string
}

// MockSPAPI is a configurable mock SP-API server. It always serves the LWA
// token endpoint; everything else is routed through per-path handlers with
// optional queued responses, so a path can answer 429 once and then succeed.
type MockSPAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	queues   map[string][]MockResponse
	counts   map[string]int
}

// NewMockSPAPI starts a mock server.
func NewMockSPAPI() *MockSPAPI {
	mock := &MockSPAPI{
		handlers: make(map[string]http.HandlerFunc),
		queues:   make(map[string][]MockResponse),
		counts:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/o2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "mock-token", "expires_in": 3600}`))
	})
	mux.HandleFunc("/", mock.dispatch)

	mock.server = httptest.NewServer(mux)
	return mock
}

// URL returns the mock server base URL.
func (m *MockSPAPI) URL() string {
	return m.server.URL
}

// AuthURL returns the mock token endpoint URL.
func (m *MockSPAPI) AuthURL() string {
	return m.server.URL + "/auth/o2/token"
}

// Close shuts down the mock server.
func (m *MockSPAPI) Close() {
	m.server.Close()
}

// SetHandler installs a handler for a path.
func (m *MockSPAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetJSON installs a fixed 200 JSON response for a path.
func (m *MockSPAPI) SetJSON(path, body string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

// QueueResponses queues responses consumed one request at a time before the
// path's handler is consulted.
func (m *MockSPAPI) QueueResponses(path string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[path] = append(m.queues[path], responses...)
}

// RequestCount returns how many requests hit the given path.
func (m *MockSPAPI) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[path]
}

// ThrottleOnce is the canned 429 rejection.
func ThrottleOnce() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"errors": [{"code": "QuotaExceeded", "message": "You exceeded your quota"}]}`,
	}
}

func (m *MockSPAPI) dispatch(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	m.mu.Lock()
	m.counts[path]++
	if queue := m.queues[path]; len(queue) > 0 {
		resp := queue[0]
		m.queues[path] = queue[1:]
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		w.Write([]byte(resp.Body))
		return
	}
	handler := m.handlers[path]
	m.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	http.NotFound(w, r)
}
