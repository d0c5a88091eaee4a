// Package testutil provides testing utilities for the gallery API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock API response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock of the paged JSON API.
//
// Responses registered with SetPage match the full request URI (path and
// query), those registered with SetResponse or SetHandler match the path
// only. Exact URI matches win.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	pages    map[string]MockResponse
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requests          []string
	lastRequestHeader http.Header
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		pages:    make(map[string]MockResponse),
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, r.URL.RequestURI())
		mock.lastRequestHeader = r.Header.Clone()
		page, pageExists := mock.pages[r.URL.RequestURI()]
		handler, handlerExists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		switch {
		case pageExists:
			writeResponse(w, page)
		case handlerExists:
			handler(w, r)
		default:
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"message":"not found"}}`))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears the recorded requests.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetPage configures the response for an exact request URI such as
// "/v1/illust/ranking?filter=for_android&mode=day&date=2024-06-01".
func (m *MockAPI) SetPage(requestURI string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[requestURI] = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns the request URIs in arrival order.
func (m *MockAPI) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requests...)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader.Clone()
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// Work describes one record of an illustration page.
type Work struct {
	ID        int64
	Type      string
	Bookmarks int
	Tags      []string
	Created   time.Time
}

// IllustPage renders an illustration page body with the given continuation URL.
func IllustPage(next string, works ...Work) string {
	illusts := make([]map[string]any, 0, len(works))
	for _, w := range works {
		typ := w.Type
		if typ == "" {
			typ = "illust"
		}
		created := w.Created
		if created.IsZero() {
			created = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		tags := make([]map[string]string, 0, len(w.Tags))
		for _, t := range w.Tags {
			tags = append(tags, map[string]string{"name": t})
		}
		illusts = append(illusts, map[string]any{
			"id":              w.ID,
			"title":           fmt.Sprintf("work %d", w.ID),
			"type":            typ,
			"user":            map[string]any{"id": 1, "name": "artist"},
			"tags":            tags,
			"create_date":     created.Format(time.RFC3339),
			"page_count":      1,
			"total_bookmarks": w.Bookmarks,
		})
	}

	body, err := json.Marshal(map[string]any{"illusts": illusts, "next_url": next})
	if err != nil {
		panic(err)
	}
	return string(body)
}

// NewPageResponse creates a 200 OK response carrying body.
func NewPageResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"message":"Rate Limit"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  strconv.Itoa(int(retryAfter.Seconds())),
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":{"message":"Internal server error"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error":{"message":"Not Found"}}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
