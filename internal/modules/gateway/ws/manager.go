// Package ws manages the websocket connections of room members.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ndthang0000/bau-cua-server/internal/metrics"
	"github.com/ndthang0000/bau-cua-server/pkg/logger"
)

type CloseReason string

const (
	ReasonWriteError CloseReason = "write_error"
	ReasonPingError  CloseReason = "ping_error"
	ReasonReadError  CloseReason = "read_error"
	ReasonReplaced   CloseReason = "replaced_by_new_connection"
	ReasonShutdown   CloseReason = "server_shutdown"
	ReasonBufferFull CloseReason = "buffer_full"
	ReasonTimeout    CloseReason = "timeout"
)

// Connection is one websocket client. RoomID and MemberID are empty until
// the client joins a room.
type Connection struct {
	ConnID   string
	RoomID   string
	MemberID string
	Conn     *websocket.Conn
	Send     chan []byte

	manager   *Manager
	closeOnce sync.Once
}

// Manager indexes connections by room so events reach only that room's
// members.
type Manager struct {
	conns map[string]*Connection            // connID -> connection
	rooms map[string]map[string]*Connection // roomID -> memberID -> connection
	mu    sync.RWMutex
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
	}
}

// Register tracks a freshly upgraded connection, not yet in any room.
func (m *Manager) Register(conn *websocket.Conn) *Connection {
	c := &Connection{
		ConnID:  uuid.NewString(),
		Conn:    conn,
		Send:    make(chan []byte, 1024),
		manager: m,
	}

	m.mu.Lock()
	m.conns[c.ConnID] = c
	m.mu.Unlock()

	metrics.ConnOpened()
	return c
}

// Bind attaches the connection to a room member after a successful join. A
// member's previous connection, if any, is replaced and closed.
func (m *Manager) Bind(c *Connection, roomID, memberID string) {
	m.mu.Lock()
	room := m.rooms[roomID]
	if room == nil {
		room = make(map[string]*Connection)
		m.rooms[roomID] = room
	}
	old := room[memberID]
	room[memberID] = c
	c.RoomID = roomID
	c.MemberID = memberID
	m.mu.Unlock()

	if old != nil && old != c {
		old.CloseWithReason(ReasonReplaced, nil)
	}
}

// Unbind detaches the connection from its room without closing it. Returns
// false when the member has since been bound to a newer connection.
func (m *Manager) Unbind(c *Connection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.RoomID == "" {
		return false
	}
	room := m.rooms[c.RoomID]
	if room == nil || room[c.MemberID] != c {
		return false
	}
	delete(room, c.MemberID)
	if len(room) == 0 {
		delete(m.rooms, c.RoomID)
	}
	return true
}

// Unregister drops the connection entirely. Returns true when it was still
// the member's current connection, which is the signal to mark the member
// offline.
func (m *Manager) Unregister(c *Connection) bool {
	m.mu.Lock()
	delete(m.conns, c.ConnID)
	m.mu.Unlock()

	current := m.Unbind(c)
	metrics.ConnClosed()
	return current
}

// BroadcastRoom sends a message to every connection in a room.
func (m *Manager) BroadcastRoom(roomID string, message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.rooms[roomID] {
		select {
		case client.Send <- message:
		default:
			// Buffer full; drop the client rather than block the room.
			client.CloseWithReason(ReasonBufferFull, nil)
		}
	}
}

// SendToMember sends a message to one member of a room.
func (m *Manager) SendToMember(roomID, memberID string, message []byte) {
	m.mu.RLock()
	client, ok := m.rooms[roomID][memberID]
	m.mu.RUnlock()

	if !ok {
		return
	}

	select {
	case client.Send <- message:
		return
	default:
	}

	select {
	case client.Send <- message:
	case <-time.After(5 * time.Second):
		// Client too slow to drain its buffer; cut it loose.
		client.CloseWithReason(ReasonTimeout, nil)
	}
}

// SendDirect enqueues a message on this connection regardless of room
// binding; used for command responses.
func (c *Connection) SendDirect(message []byte) {
	select {
	case c.Send <- message:
	default:
		c.CloseWithReason(ReasonBufferFull, nil)
	}
}

// Shutdown closes every connection.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.conns {
		client.CloseWithReason(ReasonShutdown, nil)
	}
}

// CloseWithReason closes the connection once, logging the reason.
func (c *Connection) CloseWithReason(r CloseReason, err error) {
	c.closeOnce.Do(func() {
		logger.Info(context.Background()).
			Str("conn_id", c.ConnID).
			Str("member_id", c.MemberID).
			Str("reason", string(r)).
			Err(err).
			Msg("ws connection closed")
		c.Conn.Close()
	})
}

// WritePump drains the send buffer to the socket and keeps the ping cycle.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				c.CloseWithReason(ReasonWriteError, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.CloseWithReason(ReasonPingError, err)
				return
			}
		}
	}
}

// ReadPump feeds inbound messages to handleMessage until the socket drops,
// then runs onClose.
func (c *Connection) ReadPump(handleMessage func(*Connection, []byte), onClose func(*Connection)) {
	var readErr error
	defer func() {
		c.CloseWithReason(ReasonReadError, readErr)
		onClose(c)
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				readErr = err
			}
			break
		}
		handleMessage(c, message)
	}
}
