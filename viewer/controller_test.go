package viewer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"crowdview/stream"
)

type resetCounter struct{ n int }

func (r *resetCounter) Reset() { r.n++ }

func TestController_ReloadStartsFreshSession(t *testing.T) {
	server := mockProducer(t, func(conn *websocket.Conn) {
		data, _ := stream.Encode(nil, stream.Sample{Timestamp: 1, Count: 4})
		conn.WriteMessage(websocket.TextMessage, data)
		conn.ReadMessage()
	})
	defer server.Close()

	store := NewStore()
	boundary := &resetCounter{}
	c := NewController(SessionConfig{
		Stream:        stream.ClientConfig{URL: wsURL(server)},
		BatchInterval: 10 * time.Millisecond,
	}, store, boundary, zaptest.NewLogger(t))

	if err := c.Reload(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Reload() before Start error = %v, want ErrNotStarted", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Shutdown(context.Background())

	first := c.Session()
	waitFor(t, "first point", func() bool { return store.Get().Series.Len() == 1 })

	if err := c.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	second := c.Session()

	if second.ID() == first.ID() {
		t.Error("Reload() reused the session ID")
	}
	if first.IsLive() {
		t.Error("old session still live after Reload")
	}
	if boundary.n != 1 {
		t.Errorf("boundary reset %d times, want 1", boundary.n)
	}
	if c.Reloads() != 1 {
		t.Errorf("Reloads() = %d, want 1", c.Reloads())
	}

	// The new session starts from empty series, then receives its own point.
	waitFor(t, "new session state", func() bool { return store.Get().SessionID == second.ID() })
	waitFor(t, "new session point", func() bool { return store.Get().Series.Len() == 1 })
}

func TestController_ShutdownBeforeStart(t *testing.T) {
	c := NewController(SessionConfig{}, NewStore(), nil, nil)
	if err := c.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestStore_SubscribersSeeCommits(t *testing.T) {
	store := NewStore()
	var seen []string
	store.Subscribe(func(s ViewState) { seen = append(seen, s.SessionID) })

	store.Commit(ViewState{SessionID: "a"})
	store.Commit(ViewState{SessionID: "b"})

	if len(seen) != 2 || seen[1] != "b" {
		t.Errorf("seen = %v, want [a b]", seen)
	}
	if got := store.Get().SessionID; got != "b" {
		t.Errorf("Get() = %q, want b", got)
	}
}

func TestController_ReloadDoesNotBlockReaders(t *testing.T) {
	release := make(chan struct{})
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) > 1 {
			<-release
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer server.Close()
	defer close(release)

	c := NewController(SessionConfig{Stream: stream.ClientConfig{
		URL:              wsURL(server),
		HandshakeTimeout: 10 * time.Second,
	}}, NewStore(), nil, zap.NewNop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer c.Shutdown(context.Background())
	first := c.Session()

	reloaded := make(chan error, 1)
	go func() { reloaded <- c.Reload() }()

	// The second dial is held open; readers must still get through.
	waitFor(t, "new session visible", func() bool {
		s := c.Session()
		return s != nil && s.ID() != first.ID()
	})
	if c.Reloads() != 1 {
		t.Errorf("Reloads() = %d, want 1", c.Reloads())
	}
	select {
	case err := <-reloaded:
		t.Fatalf("Reload() returned %v before the dial completed", err)
	default:
	}

	release <- struct{}{}
	select {
	case err := <-reloaded:
		if err != nil {
			t.Errorf("Reload() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Reload() did not return")
	}
}
