package client_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// chatServer is an in-process stand-in for the chat server: a user
// directory plus the realtime endpoint.
type chatServer struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]string
	requests []string
	frames   []string // sent to every client on connect
	history  string   // body of GET /messages

	inbox chan string
}

func newChatServer(t *testing.T, frames ...string) *chatServer {
	t.Helper()
	s := &chatServer{
		users:  map[string]string{},
		frames: frames,
		inbox:  make(chan string, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{username}", s.lookup)
	mux.HandleFunc("POST /users", s.register)
	mux.HandleFunc("GET /messages", s.messages)
	mux.HandleFunc("GET /ws/{username}", s.realtime)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) url(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(s.URL)
	require.NoError(t, err)
	return u
}

func (s *chatServer) record(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := r.Method + " " + r.URL.Path
	if r.URL.RawQuery != "" {
		line += "?" + r.URL.RawQuery
	}
	s.requests = append(s.requests, line)
}

func (s *chatServer) log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *chatServer) lookup(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	name := r.PathValue("username")

	s.mu.Lock()
	id, ok := s.users[name]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"User not found"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "username": name})
}

func (s *chatServer) register(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	name := r.URL.Query().Get("username")

	s.mu.Lock()
	_, exists := s.users[name]
	if !exists {
		s.users[name] = "u-" + name
	}
	s.mu.Unlock()
	if exists {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"Username already exists"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"id": "u-" + name, "username": name})
}

func (s *chatServer) setHistory(body string) {
	s.mu.Lock()
	s.history = body
	s.mu.Unlock()
}

func (s *chatServer) messages(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	s.mu.Lock()
	body := s.history
	s.mu.Unlock()
	if body == "" {
		body = "[]"
	}
	_, _ = w.Write([]byte(body))
}

var upgrader = websocket.Upgrader{}

func (s *chatServer) realtime(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	for _, f := range s.frames {
		if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			return
		}
	}
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		s.inbox <- string(msg)
	}
}

// syncBuffer is an io.Writer safe for concurrent use.
type syncBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}
