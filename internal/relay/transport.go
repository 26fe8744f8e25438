package relay

import (
	"errors"
	"sync"
	"time"
)

// Transport is the bidirectional, message-oriented pipe a session owns.
// The dispatcher is written against this interface once; each concrete
// socket kind supplies a thin adapter.
type Transport interface {
	// ReadMessage blocks for the next inbound frame. It returns an error
	// when the peer is gone; that error is the only disconnect signal.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one frame. Sends are best effort; an error means
	// the handle is no longer writable.
	WriteMessage(data []byte) error

	// Close tears the pipe down. Safe to call more than once.
	Close() error
}

var errTransportClosed = errors.New("transport closed")

// memTransport is an in-memory Transport half, paired with another by
// crossed channels. Tests drive the dispatcher through these.
type memTransport struct {
	in      chan []byte
	out     chan []byte
	closed  chan struct{}
	closing *sync.Once
}

// NewMemPair returns two connected transports. Frames written to one are
// read from the other. Closing either side unblocks both.
func NewMemPair() (Transport, Transport) {
	a := make(chan []byte, 64)
	b := make(chan []byte, 64)
	closed := make(chan struct{})
	once := &sync.Once{}
	return &memTransport{in: a, out: b, closed: closed, closing: once},
		&memTransport{in: b, out: a, closed: closed, closing: once}
}

func (t *memTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-t.in:
		return data, nil
	case <-t.closed:
		// Drain frames delivered before the close.
		select {
		case data := <-t.in:
			return data, nil
		default:
			return nil, errTransportClosed
		}
	}
}

func (t *memTransport) WriteMessage(data []byte) error {
	select {
	case <-t.closed:
		return errTransportClosed
	default:
	}
	select {
	case t.out <- data:
		return nil
	case <-t.closed:
		return errTransportClosed
	case <-time.After(time.Second):
		return errors.New("transport buffer full")
	}
}

func (t *memTransport) Close() error {
	t.closing.Do(func() { close(t.closed) })
	return nil
}
