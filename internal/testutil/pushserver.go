package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// Frame is one event on the push channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PushServer is an in-process push channel endpoint. It records every frame
// clients send and can push events to all connected clients.
type PushServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []Frame
	accepts  int
	reject   bool
	delay    time.Duration
}

func NewPushServer(t *testing.T) *PushServer {
	t.Helper()

	s := &PushServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// URL is the ws:// address of the endpoint.
func (s *PushServer) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
}

// SetReject makes new handshakes fail with 503.
func (s *PushServer) SetReject(reject bool) {
	s.mu.Lock()
	s.reject = reject
	s.mu.Unlock()
}

// SetDelay holds every handshake for d before accepting it.
func (s *PushServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

func (s *PushServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	reject, delay := s.reject, s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if reject {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.accepts++
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	defer s.forget(conn)

	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		var f Frame
		if json.Unmarshal(data, &f) != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, f)
		s.mu.Unlock()
	}
}

func (s *PushServer) forget(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}

// Send pushes an event to every connected client.
func (s *PushServer) Send(t *testing.T, event string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	s.SendRaw(t, event, data)
}

// SendRaw pushes an event with a pre-encoded payload.
func (s *PushServer) SendRaw(t *testing.T, event string, data []byte) {
	t.Helper()

	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}

	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			t.Logf("push to client failed: %v", err)
		}
	}
}

// DropAll closes every client connection without a close handshake.
func (s *PushServer) DropAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.CloseNow()
	}
}

// Received returns every frame received so far.
func (s *PushServer) Received() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.received...)
}

// Events returns "event:data" strings for received frames, in order.
func (s *PushServer) Events() []string {
	frames := s.Received()
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event+":"+string(f.Data))
	}
	return out
}

func (s *PushServer) ResetReceived() {
	s.mu.Lock()
	s.received = nil
	s.mu.Unlock()
}

func (s *PushServer) Accepts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts
}

func (s *PushServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *PushServer) Close() {
	s.DropAll()
	s.srv.Close()
}
