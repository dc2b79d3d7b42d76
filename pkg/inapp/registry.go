package inapp

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one live realtime connection. *websocket.Conn satisfies it;
// tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// Frame is the JSON envelope pushed over a connection.
type Frame struct {
	Type string `json:"type"` // "notification" or "unread_count"
	Data any    `json:"data"`
}

// Registry maps user ids to their live connections. A user may hold
// several at once, one per device or tab. The registry is process
// local: scaling past one instance needs an external fan-out layer in
// front of it.
type Registry struct {
	mu           sync.RWMutex
	conns        map[string]map[Conn]struct{}
	writeTimeout time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithWriteTimeout sets the per-write deadline. A connection missing
// the deadline is pruned.
func WithWriteTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// NewRegistry creates an empty connection registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:        make(map[string]map[Conn]struct{}),
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers a live connection for a user.
func (r *Registry) Add(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[userID] = set
	}
	set[conn] = struct{}{}
}

// Remove drops a connection from the registry. The caller owns closing
// the connection.
func (r *Registry) Remove(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(userID, conn)
}

func (r *Registry) remove(userID string, conn Conn) {
	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
}

// ConnectionCount returns the number of live connections for a user.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// WriteTo writes a frame to one specific connection, used for replay on
// connect so other tabs are not re-sent history.
func (r *Registry) WriteTo(conn Conn, frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Push writes a frame to every live connection of a user and returns
// how many received it. Connections that fail the write are pruned and
// closed; a user with no connections receives zero without error.
func (r *Registry) Push(userID string, frame Frame) (int, error) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	targets := make([]Conn, 0, len(r.conns[userID]))
	for conn := range r.conns[userID] {
		targets = append(targets, conn)
	}
	r.mu.Unlock()

	var delivered int
	var stale []Conn
	deadline := time.Now().Add(r.writeTimeout)
	for _, conn := range targets {
		_ = conn.SetWriteDeadline(deadline)
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			stale = append(stale, conn)
			continue
		}
		delivered++
	}

	if len(stale) > 0 {
		r.mu.Lock()
		for _, conn := range stale {
			r.remove(userID, conn)
		}
		r.mu.Unlock()
		for _, conn := range stale {
			_ = conn.Close()
		}
	}
	return delivered, nil
}
