package relay

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Souhar-dya/Cohesion/internal/protocol"
)

// inboundFrame pairs a raw frame with the session it arrived on.
type inboundFrame struct {
	session *Session
	data    []byte
}

// Hub owns the room registry and routes every frame between members.
//
// All state lives behind a single run-loop goroutine fed by channels, so
// registration, dispatch, and teardown for any room are serialized with
// respect to each other. Broadcast sends only queue onto per-session
// buffers and never block the loop.
type Hub struct {
	rooms map[string]*Room

	register   chan *Session
	unregister chan *Session
	inbound    chan inboundFrame

	roomCount   atomic.Int64
	clientCount atomic.Int64
}

// NewHub creates a hub with an empty registry. Call Run in its own
// goroutine before serving connections.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		inbound:    make(chan inboundFrame),
	}
}

// ServeTransport attaches one client connection to the named room. It
// registers the session and starts its pumps; it returns once the
// session is live. The transport is owned by the session from here on.
func (h *Hub) ServeTransport(roomName string, t Transport) *Session {
	if roomName == "" {
		roomName = "main"
	}
	s := &Session{
		ID:        uuid.NewString(),
		hub:       h,
		roomName:  roomName,
		transport: t,
		send:      make(chan []byte, sendBufferSize),
	}

	h.register <- s

	go s.writePump()
	go s.readPump()
	return s
}

// Run is the hub's main processing loop. Handler bodies run to
// completion before the next event is taken, which is what keeps room
// mutation and broadcast iteration atomic without per-room locks.
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.register:
			h.handleRegister(s)
		case s := <-h.unregister:
			h.handleUnregister(s)
		case in := <-h.inbound:
			h.handleFrame(in.session, in.data)
		}
	}
}

// RoomCount reports the number of live rooms.
func (h *Hub) RoomCount() int {
	return int(h.roomCount.Load())
}

// ClientCount reports the number of connected clients across all rooms.
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// handleRegister adds the session to its room, announces it to the
// existing members, and sends the newcomer its init frame. The id is in
// the room map before the announcement goes out, so a member that
// replies to peer-join immediately can already reach the newcomer.
func (h *Hub) handleRegister(s *Session) {
	room, ok := h.rooms[s.roomName]
	if !ok {
		room = newRoom(s.roomName)
		h.rooms[s.roomName] = room
		h.roomCount.Add(1)
		activeRooms.Inc()
	}
	room.Clients[s.ID] = s
	h.clientCount.Add(1)
	activeClients.Inc()

	h.broadcast(room, &protocol.Frame{Type: protocol.TypePeerJoin, ID: s.ID}, s.ID)

	h.send(s, &protocol.Frame{
		Type:  protocol.TypeInit,
		ID:    s.ID,
		Code:  room.Code,
		Peers: room.peersExcept(s.ID),
	})

	slog.Info("relay: client joined", "room", room.Name, "session", s.ID, "members", len(room.Clients))
}

// handleUnregister removes the session, tells the remaining members, and
// drops the room the moment it is empty. These effects happen in one
// loop step, so a new connection for the same room observes either the
// old member or a clean registry, never a half-torn room.
func (h *Hub) handleUnregister(s *Session) {
	room, ok := h.rooms[s.roomName]
	if !ok || room.Clients[s.ID] != s {
		return
	}

	delete(room.Clients, s.ID)
	close(s.send)
	h.clientCount.Add(-1)
	activeClients.Dec()

	h.broadcast(room, &protocol.Frame{Type: protocol.TypePeerLeft, ID: s.ID}, "")

	if len(room.Clients) == 0 {
		delete(h.rooms, room.Name)
		h.roomCount.Add(-1)
		activeRooms.Dec()
		slog.Info("relay: room closed", "room", room.Name)
		return
	}
	slog.Info("relay: client left", "room", room.Name, "session", s.ID, "members", len(room.Clients))
}

// handleFrame parses one inbound frame and applies its kind's relay
// rule. Anything that cannot be parsed or routed is dropped without a
// reply; the relay favors availability over strict validation.
func (h *Hub) handleFrame(s *Session, data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		framesMalformed.Inc()
		slog.Debug("relay: dropping malformed frame", "session", s.ID)
		return
	}

	room, ok := h.rooms[s.roomName]
	if !ok {
		// A live session always has a live room; the unregister path is
		// the only thing that removes either, and it removes both.
		panic("relay: session " + s.ID + " references unknown room " + s.roomName)
	}

	framesTotal.WithLabelValues(f.Type).Inc()

	switch f.Type {
	case protocol.TypeChat:
		f.ID = s.ID
		f.TS = room.stamp()
		h.broadcast(room, f, "")

	case protocol.TypeCode:
		room.Code = f.Content
		f.ID = s.ID
		f.TS = room.stamp()
		h.broadcast(room, f, s.ID)

	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICE:
		if f.To == "" {
			return
		}
		target, ok := room.Clients[f.To]
		if !ok {
			// Stale target: the peer raced a disconnect. Best-effort
			// signaling tolerates the loss.
			return
		}
		f.From = s.ID
		h.send(target, f)

	case protocol.TypePing:
		h.send(s, &protocol.Frame{Type: protocol.TypePong, TS: time.Now().UnixMilli()})

	default:
		slog.Debug("relay: ignoring unknown frame type", "type", f.Type, "session", s.ID)
	}
}

// broadcast fans a frame out to the room's members, skipping excludeID
// when set. Delivery is queue-and-forget.
func (h *Hub) broadcast(room *Room, f *protocol.Frame, excludeID string) {
	data, err := protocol.Encode(f)
	if err != nil {
		return
	}
	for id, member := range room.Clients {
		if id == excludeID {
			continue
		}
		member.deliver(data)
	}
}

// send queues a frame for a single session.
func (h *Hub) send(s *Session, f *protocol.Frame) {
	data, err := protocol.Encode(f)
	if err != nil {
		return
	}
	s.deliver(data)
}
