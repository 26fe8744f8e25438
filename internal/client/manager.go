// Package client implements the relay's client-side counterpart: a
// reconnecting connection manager that keeps local chat, code, and
// presence state in step with the room.
package client

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Souhar-dya/Cohesion/internal/protocol"
)

const (
	// Reconnection backoff: starts at the base, doubles per attempt, and
	// is capped. Reset to the base on the next successful open.
	baseBackoff = time.Second
	maxBackoff  = 10 * time.Second

	// codeQuiet is how long the local buffer must sit untouched before an
	// edit is transmitted.
	codeQuiet = 250 * time.Millisecond

	// Application-level liveness probe. If nothing (pong included)
	// arrives within pongWait the link is treated as half-open and torn
	// down, which feeds the reconnect path.
	pingInterval = 20 * time.Second
	pongWait     = 50 * time.Second

	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024

	frameBufferSize = 256
)

var (
	ErrClosed       = errors.New("connection manager closed")
	ErrNotConnected = errors.New("not connected")
)

// State is the logical connection state.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Manager owns the logical connection to one room. At most one of the
// live socket and the pending reconnect timer exists at any time; gen
// invalidates whichever of the two a superseded attempt left behind.
type Manager struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	attempt int
	gen     int
	retry   *time.Timer
	closed  bool

	// Room state mirrored from the relay.
	id        string
	peers     []string
	code      string
	codeTimer *time.Timer

	// writeMu serializes socket writes; gorilla allows one writer.
	writeMu sync.Mutex

	frames chan *protocol.Frame
	states chan State
	done   chan struct{}
}

// New creates a manager for the given websocket URL (room included as a
// query parameter). Call Start to begin connecting.
func New(url string) *Manager {
	return &Manager{
		url:    url,
		dialer: websocket.DefaultDialer,
		frames: make(chan *protocol.Frame, frameBufferSize),
		states: make(chan State, 8),
		done:   make(chan struct{}),
	}
}

// Start kicks off the first connection attempt.
func (m *Manager) Start() {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	go m.connect(gen)
}

// Frames delivers inbound frames after the manager's own bookkeeping has
// been applied. Consumers must also select on Done.
func (m *Manager) Frames() <-chan *protocol.Frame { return m.frames }

// States delivers logical state transitions.
func (m *Manager) States() <-chan State { return m.states }

// Done is closed when the manager is torn down.
func (m *Manager) Done() <-chan struct{} { return m.done }

// ID returns the server-assigned client id, empty until init arrives.
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Peers returns the other current room members.
func (m *Manager) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	peers := make([]string, len(m.peers))
	copy(peers, m.peers)
	return peers
}

// Code returns the local view of the shared buffer.
func (m *Manager) Code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

// State returns the current logical connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// connect dials once. On failure it schedules the next attempt; on
// success it resets the backoff and starts the per-connection loops.
func (m *Manager) connect(gen int) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	conn, _, err := m.dialer.Dial(m.url, nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.gen {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		slog.Debug("client: dial failed", "err", err)
		m.setStateLocked(StateReconnecting)
		m.scheduleReconnectLocked()
		return
	}

	conn.SetReadLimit(maxMessageSize)
	m.conn = conn
	m.attempt = 0
	m.setStateLocked(StateConnected)

	go m.readLoop(conn)
	go m.pingLoop(conn)
}

// readLoop is the sole reader for one socket. Any read error, including
// the liveness deadline, ends the connection and hands control back to
// the reconnect machinery.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		m.handleFrame(data)
	}
	conn.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.conn != conn {
		// Superseded by teardown or a manual reconnect.
		return
	}
	m.conn = nil
	m.setStateLocked(StateReconnecting)
	m.scheduleReconnectLocked()
}

// pingLoop probes liveness with protocol pings so a half-open link is
// noticed before the transport reports closure.
func (m *Manager) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			current := m.conn == conn
			m.mu.Unlock()
			if !current {
				return
			}
			if err := m.writeFrame(conn, &protocol.Frame{Type: protocol.TypePing}); err != nil {
				return
			}
		case <-m.done:
			return
		}
	}
}

// scheduleReconnectLocked arms the retry timer. Callers hold mu. The
// captured gen makes a timer that fires after teardown or a manual
// reconnect a no-op.
func (m *Manager) scheduleReconnectLocked() {
	delay := backoffDelay(m.attempt)
	m.attempt++
	gen := m.gen
	m.retry = time.AfterFunc(delay, func() {
		m.connect(gen)
	})
	slog.Debug("client: reconnect scheduled", "delay", delay, "attempt", m.attempt)
}

// Reconnect abandons the current connection or pending timer and dials
// immediately with a fresh backoff.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	conn := m.conn
	m.conn = nil
	m.attempt = 0
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	go m.connect(gen)
}

// Close tears the manager down: the socket and any pending timer die
// here and nothing outlives the call. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.codeTimer != nil {
		m.codeTimer.Stop()
		m.codeTimer = nil
	}
	conn := m.conn
	m.conn = nil
	m.setStateLocked(StateClosed)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	close(m.done)
}

// SendChat transmits a chat line. The relay echoes it back, so the local
// render path is the same as for remote messages.
func (m *Manager) SendChat(text string) error {
	return m.send(&protocol.Frame{Type: protocol.TypeChat, Text: text})
}

// Signal transmits a directed signaling frame on behalf of the call
// layer.
func (m *Manager) Signal(f *protocol.Frame) error {
	return m.send(f)
}

// SetCode records a local edit and transmits it once the buffer has been
// quiet for the debounce window. Only the latest value goes out.
func (m *Manager) SetCode(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.code = content
	if m.codeTimer != nil {
		m.codeTimer.Stop()
	}
	m.codeTimer = time.AfterFunc(codeQuiet, func() {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		content := m.code
		m.mu.Unlock()
		m.send(&protocol.Frame{Type: protocol.TypeCode, Content: content})
	})
}

func (m *Manager) send(f *protocol.Frame) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return m.writeFrame(conn, f)
}

func (m *Manager) writeFrame(conn *websocket.Conn, f *protocol.Frame) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

// handleFrame applies local bookkeeping, then hands the frame to the
// consumer. Malformed frames are dropped; a code frame that originated
// here or matches the current buffer is applied nowhere and not emitted.
func (m *Manager) handleFrame(data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		return
	}

	m.mu.Lock()
	switch f.Type {
	case protocol.TypeInit:
		m.id = f.ID
		m.peers = append([]string(nil), f.Peers...)
		if f.Code != "" {
			m.code = f.Code
		}

	case protocol.TypePeerJoin:
		if !containsPeer(m.peers, f.ID) {
			m.peers = append(m.peers, f.ID)
		}

	case protocol.TypePeerLeft:
		m.peers = removePeer(m.peers, f.ID)

	case protocol.TypeCode:
		if f.ID == m.id || f.Content == m.code {
			m.mu.Unlock()
			return
		}
		m.code = f.Content
	}
	m.mu.Unlock()

	m.emit(f)
}

// emit never blocks; a consumer that has fallen frameBufferSize behind
// loses frames rather than stalling the read loop.
func (m *Manager) emit(f *protocol.Frame) {
	select {
	case m.frames <- f:
	default:
		slog.Debug("client: frame buffer full, dropping", "type", f.Type)
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	select {
	case m.states <- s:
	default:
	}
}

func backoffDelay(attempt int) time.Duration {
	if attempt > 4 {
		return maxBackoff
	}
	d := baseBackoff << uint(attempt)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func containsPeer(peers []string, id string) bool {
	for _, p := range peers {
		if p == id {
			return true
		}
	}
	return false
}

func removePeer(peers []string, id string) []string {
	out := peers[:0]
	for _, p := range peers {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}
