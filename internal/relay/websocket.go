package relay

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Generous enough for a full
	// code buffer plus SDP payloads.
	maxMessageSize = 512 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The relay performs no authorization; any origin that can reach
		// the handshake may join.
		return true
	},
}

// ServeWS upgrades an HTTP request and attaches the connection to the
// hub. The target room comes from the "room" query parameter, defaulting
// to "main". A request without the upgrade handshake is rejected by the
// upgrader before any room state is touched.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	roomName := r.URL.Query().Get("room")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("relay: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	hub.ServeTransport(roomName, newWSTransport(conn))
}

// wsTransport adapts a gorilla connection to the Transport interface.
// Transport-level liveness (control ping/pong, deadlines) lives here;
// the dispatcher above it only sees frames.
type wsTransport struct {
	conn    *websocket.Conn
	done    chan struct{}
	closing sync.Once
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	t := &wsTransport{conn: conn, done: make(chan struct{})}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go t.pingLoop()
	return t
}

// pingLoop keeps the connection's read deadline honest with control
// pings. WriteControl is safe concurrently with the session's writes.
func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.closing.Do(func() { close(t.done) })
	return t.conn.Close()
}
