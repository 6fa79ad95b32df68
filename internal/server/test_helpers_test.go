package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cards-chaos/internal/config"
	"cards-chaos/internal/game"
)

const testPackID = "standard"

var testUserIDs = []string{
	"user-ada", "user-ben", "user-cy", "user-dee", "user-late", "user-zed",
	"user-b", "user-c", "user-d", "user-e", "user-f", "user-g", "user-h", "user-i",
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

// newTestApp returns an in-memory server with the default pack seeded and a
// running HTTP listener.
func newTestApp(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(nil, config.Default())
	seedTestPack(t, srv, testPackID, 10, 40)
	registerUsers(srv, testUserIDs...)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

// registerUsers issues identities with fixed ids, each bound to its own
// session key.
func registerUsers(srv *Server, ids ...string) {
	registry := srv.sessions
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, id := range ids {
		identity := &Identity{ID: id, SessionKey: "session-" + id, CreatedAt: timeNowUTC()}
		registry.byID[id] = identity
		registry.bySession[identity.SessionKey] = identity
	}
}

func seedTestPack(t *testing.T, srv *Server, packID string, questions, answers int) {
	t.Helper()
	black := make([]string, 0, questions)
	for i := 0; i < questions; i++ {
		black = append(black, fmt.Sprintf("Question %d: ____.", i))
	}
	white := make([]string, 0, answers)
	for i := 0; i < answers; i++ {
		white = append(white, fmt.Sprintf("Answer %d", i))
	}
	if _, err := srv.catalog.Import(context.Background(), packID, "Test Pack", black, white); err != nil {
		t.Fatalf("seed pack: %v", err)
	}
}

func loadRoom(t *testing.T, srv *Server, code string) *game.Room {
	t.Helper()
	room, err := srv.rooms.Get(context.Background(), code)
	if err != nil {
		t.Fatalf("load room %s: %v", code, err)
	}
	return room
}

// advanceClock moves the server clock forward by d.
func advanceClock(srv *Server, d time.Duration) {
	current := srv.now()
	srv.now = func() time.Time { return current.Add(d) }
}
