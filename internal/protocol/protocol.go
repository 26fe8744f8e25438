package protocol

import (
	"encoding/json"
	"errors"
)

// Frame type constants. Every frame on the wire is a single JSON object
// whose "type" field selects one of these.
const (
	TypeInit     = "init"
	TypePeerJoin = "peer-join"
	TypePeerLeft = "peer-left"
	TypeChat     = "chat"
	TypeCode     = "code"
	TypeOffer    = "rtc-offer"
	TypeAnswer   = "rtc-answer"
	TypeICE      = "rtc-ice"
	TypePing     = "ping"
	TypePong     = "pong"
)

// ErrMalformed marks a payload that is not a typed JSON object.
var ErrMalformed = errors.New("malformed frame")

// Frame is the envelope for all relay traffic. A field is populated only
// when its kind uses it; everything else stays at the zero value and is
// omitted from the encoding.
type Frame struct {
	Type string `json:"type"`

	// ID identifies the client the frame is about: the newcomer's own id
	// in init, the joining/leaving member in peer-join/peer-left, and the
	// sender in chat and code.
	ID string `json:"id,omitempty"`

	// Init payload.
	Code  string   `json:"code,omitempty"`
	Peers []string `json:"peers,omitempty"`

	// Chat body and code buffer contents.
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`

	// TS is the server receive time in Unix milliseconds.
	TS int64 `json:"ts,omitempty"`

	// Directed signaling. To names the single target; From is stamped by
	// the server with the sender's id before forwarding.
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`

	// Signaling payloads are relayed opaque; neither side of the relay
	// inspects them.
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Scope describes who receives a frame relayed through a room.
type Scope int

const (
	// ScopeAll delivers to every member including the sender. Chat echoes
	// back so a single local render path suffices.
	ScopeAll Scope = iota

	// ScopeOthers delivers to every member except the sender, which
	// already holds the authoritative local value.
	ScopeOthers

	// ScopeDirected delivers to exactly one member named by To.
	ScopeDirected

	// ScopeNone is answered point-to-point and never relayed.
	ScopeNone
)

// ScopeOf returns the broadcast scope for a client-originated frame kind.
func ScopeOf(kind string) Scope {
	switch kind {
	case TypeChat:
		return ScopeAll
	case TypeCode:
		return ScopeOthers
	case TypeOffer, TypeAnswer, TypeICE:
		return ScopeDirected
	default:
		return ScopeNone
	}
}

// Directed reports whether the kind must carry a To field.
func Directed(kind string) bool {
	return ScopeOf(kind) == ScopeDirected
}

// Decode parses a wire frame. A payload that is not a JSON object or has
// no type discriminator is malformed; callers drop such frames silently.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ErrMalformed
	}
	if f.Type == "" {
		return nil, ErrMalformed
	}
	return &f, nil
}

// Encode renders a frame for the wire.
func Encode(f *Frame) ([]byte, error) {
	return json.Marshal(f)
}
