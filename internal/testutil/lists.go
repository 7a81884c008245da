package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ListServer serves rule list documents by path and records hits.
type ListServer struct {
	URL string

	mu     sync.Mutex
	hits   map[string]int
	status map[string]int
	lists  map[string]string
}

// StartListServer serves each entry of lists at its path. Unknown paths get
// 404; SetStatus overrides the response code of a path.
func StartListServer(t *testing.T, lists map[string]string) *ListServer {
	t.Helper()

	s := &ListServer{
		hits:   make(map[string]int),
		status: make(map[string]int),
		lists:  lists,
	}
	server := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(server.Close)
	s.URL = server.URL
	return s
}

// SetStatus makes path answer with code and no body.
func (s *ListServer) SetStatus(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = code
}

// Hits returns how often path was requested.
func (s *ListServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *ListServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	code, forced := s.status[r.URL.Path]
	body, ok := s.lists[r.URL.Path]
	s.mu.Unlock()

	if forced {
		w.WriteHeader(code)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
