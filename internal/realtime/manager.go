// Package realtime owns the process-wide push channel connection: a single
// websocket, opened lazily, shared by every consumer and torn down on logout.
//
// Every message is a JSON text frame {"event": "<name>", "data": <payload>}.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BuzzLyutic/task-sync-client/internal/model"
)

// Lifecycle events delivered to handlers registered with On.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

var ErrNotConnected = errors.New("push channel not connected")

type State int

const (
	StateAbsent State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "absent"
}

// Handler receives the raw data of one event. Handlers run on the read
// goroutine, one at a time, in arrival order.
type Handler func(data json.RawMessage)

type TokenSource interface {
	Token() string
}

type Config struct {
	URL          string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type handlerEntry struct {
	id uint64
	fn Handler
}

type Manager struct {
	cfg    Config
	tokens TokenSource
	logger *zap.Logger
	flight singleflight.Group

	mu         sync.Mutex
	conn       *websocket.Conn
	connID     string
	connecting bool
	epoch      uint64
	stopRead   context.CancelFunc
	handlers   map[string][]handlerEntry
	nextID     uint64
	rooms      map[string]Room
}

func NewManager(cfg Config, tokens TokenSource, logger *zap.Logger) *Manager {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 1 << 20
	}
	return &Manager{
		cfg:      cfg,
		tokens:   tokens,
		logger:   logger,
		handlers: make(map[string][]handlerEntry),
		rooms:    make(map[string]Room),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.conn != nil:
		return StateOpen
	case m.connecting:
		return StateConnecting
	}
	return StateAbsent
}

func (m *Manager) IsOpen() bool { return m.State() == StateOpen }

// ConnID identifies the current connection in logs; empty when not open.
func (m *Manager) ConnID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connID
}

// Connect returns nil once the connection is open. Concurrent callers share
// one attempt. ctx bounds only the caller's wait; the dial itself is bounded
// by Config.DialTimeout.
func (m *Manager) Connect(ctx context.Context) error {
	if m.IsOpen() {
		return nil
	}

	ch := m.flight.DoChan("connect", func() (any, error) {
		return nil, m.open()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) open() error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	epoch := m.epoch
	m.mu.Unlock()

	m.logger.Info("connecting push channel", zap.String("url", m.cfg.URL))

	dialCtx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, m.cfg.URL, nil)
	if err != nil {
		m.mu.Lock()
		m.conn = nil
		m.connecting = false
		m.mu.Unlock()

		m.logger.Error("push channel connection error", zap.Error(err))
		m.dispatch(EventConnectError, encodeReason(err.Error()))
		return fmt.Errorf("connect %s: %w", m.cfg.URL, err)
	}
	conn.SetReadLimit(m.cfg.ReadLimit)
	id := uuid.NewString()

	if tok := m.token(); tok != "" {
		if err := m.write(conn, model.EventAuthenticate, tok); err != nil {
			m.logger.Warn("push channel authentication failed", zap.String("conn_id", id), zap.Error(err))
		}
	}

	readCtx, stopRead := context.WithCancel(context.Background())

	m.mu.Lock()
	if m.epoch != epoch {
		// Disconnect was called while dialing.
		m.connecting = false
		m.mu.Unlock()
		stopRead()
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return fmt.Errorf("connect %s: %w", m.cfg.URL, ErrNotConnected)
	}
	m.conn = conn
	m.connID = id
	m.connecting = false
	m.stopRead = stopRead
	rooms := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	go m.readLoop(readCtx, conn)

	m.logger.Info("push channel connected", zap.String("conn_id", id))
	for _, r := range rooms {
		if err := m.write(conn, r.joinEvent, r.ID); err != nil {
			m.logger.Warn("room replay failed", zap.String("room", r.Name), zap.Error(err))
			continue
		}
		m.logger.Info("room rejoined", zap.String("room", r.Name))
	}
	m.dispatch(EventConnect, nil)
	return nil
}

// Disconnect closes the connection if open and forgets joined rooms. Safe to
// call when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn, stopRead := m.conn, m.stopRead
	m.conn = nil
	m.connID = ""
	m.stopRead = nil
	m.epoch++
	m.rooms = make(map[string]Room)
	m.mu.Unlock()

	if conn == nil {
		return
	}
	m.logger.Info("disconnecting push channel")
	_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	if stopRead != nil {
		stopRead()
	}
	m.dispatch(EventDisconnect, encodeReason("client disconnect"))
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			m.dropped(conn, err)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			m.logger.Warn("malformed push frame dropped", zap.Int("bytes", len(data)))
			continue
		}
		switch f.Event {
		case "joined_message", "user_joined":
			m.logger.Info("push channel notice", zap.String("event", f.Event), zap.ByteString("data", f.Data))
		}
		m.dispatch(f.Event, f.Data)
	}
}

// dropped handles a transport-level disconnect. Rooms are kept so the next
// successful Connect rejoins them.
func (m *Manager) dropped(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	stopRead := m.stopRead
	m.conn = nil
	m.connID = ""
	m.stopRead = nil
	m.mu.Unlock()

	if stopRead != nil {
		stopRead()
	}
	_ = conn.CloseNow()

	m.logger.Warn("push channel disconnected", zap.Error(err))
	m.dispatch(EventDisconnect, encodeReason(err.Error()))
}

// On registers fn for event and returns a function that removes it.
// Registrations live on the manager, so they survive reconnects.
func (m *Manager) On(event string, fn Handler) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.handlers[event] = append(m.handlers[event], handlerEntry{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.off(event, id) })
	}
}

func (m *Manager) off(event string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.handlers[event]
	for i, e := range entries {
		if e.id == id {
			m.handlers[event] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(m.handlers[event]) == 0 {
		delete(m.handlers, event)
	}
}

func (m *Manager) dispatch(event string, data json.RawMessage) {
	m.mu.Lock()
	entries := append([]handlerEntry(nil), m.handlers[event]...)
	m.mu.Unlock()

	for _, e := range entries {
		e.fn(data)
	}
}

// Emit sends one event on the open connection.
func (m *Manager) Emit(ctx context.Context, event string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	return m.writeCtx(ctx, conn, event, payload)
}

func (m *Manager) write(conn *websocket.Conn, event string, payload any) error {
	return m.writeCtx(context.Background(), conn, event, payload)
}

func (m *Manager) writeCtx(ctx context.Context, conn *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	b, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.WriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (m *Manager) token() string {
	if m.tokens == nil {
		return ""
	}
	return m.tokens.Token()
}

func encodeReason(reason string) json.RawMessage {
	b, _ := json.Marshal(reason)
	return b
}
