package relay

import "log/slog"

const sendBufferSize = 256

// Session is one live client: its server-assigned id, the room it
// belongs to for its whole lifetime, and exclusive ownership of the
// underlying transport.
type Session struct {
	// ID is the opaque, collision-resistant identifier handed to the
	// client in its init frame.
	ID string

	hub       *Hub
	roomName  string
	transport Transport

	// send buffers outbound frames for the write pump. The hub is the
	// only writer and the only closer, so a send after close cannot
	// happen as long as the hub removes the session from its room before
	// closing the channel.
	send chan []byte
}

// readPump pumps frames from the transport into the hub. It runs in a
// per-connection goroutine; all reads on a transport happen here. When
// the transport reports closure the session unregisters, which is the
// sole disconnect path.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.transport.Close()
	}()

	for {
		data, err := s.transport.ReadMessage()
		if err != nil {
			return
		}
		s.hub.inbound <- inboundFrame{session: s, data: data}
	}
}

// writePump drains the send buffer onto the transport. It runs in a
// per-connection goroutine; all writes on a transport happen here. Write
// errors are swallowed: sends are fire-and-forget and a dead handle is
// reported through the read side.
func (s *Session) writePump() {
	defer s.transport.Close()

	for data := range s.send {
		if err := s.transport.WriteMessage(data); err != nil {
			slog.Debug("relay: write failed", "session", s.ID, "err", err)
		}
	}
}

// deliver queues a frame without blocking. A full buffer drops the frame;
// there is no flow control or acknowledgment between relay and client.
func (s *Session) deliver(data []byte) {
	select {
	case s.send <- data:
	default:
		framesDropped.Inc()
	}
}
