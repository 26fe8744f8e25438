// Package call keeps the client-side table of peer-to-peer links and
// drives the signaling handshakes through the relay.
package call

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/Souhar-dya/Cohesion/internal/config"
	"github.com/Souhar-dya/Cohesion/internal/protocol"
)

// Signaler carries directed frames to the relay. The connection manager
// satisfies it.
type Signaler interface {
	Signal(f *protocol.Frame) error
}

// Manager maps remote client ids to live peer connections. Entries are
// created on call initiation or on the first inbound signal from a peer,
// and removed when the peer leaves or the call ends.
type Manager struct {
	mu     sync.Mutex
	peers  map[string]*pion.PeerConnection
	active bool

	cfg    pion.Configuration
	signal Signaler
}

// New builds a manager with ICE servers drawn from the configuration.
func New(cfg *config.Config, signal Signaler) *Manager {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	return &Manager{
		peers:  make(map[string]*pion.PeerConnection),
		cfg:    pion.Configuration{ICEServers: iceServers},
		signal: signal,
	}
}

// Active reports whether a call is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// PeerCount reports the number of live peer links.
func (m *Manager) PeerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// Start begins a call: every current room member gets an offer.
func (m *Manager) Start(peerIDs []string) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return nil
	}
	m.active = true
	m.mu.Unlock()

	for _, id := range peerIDs {
		if _, err := m.ensurePeer(id, true); err != nil {
			return err
		}
	}
	return nil
}

// Stop ends the call and discards every link.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	for id, pc := range m.peers {
		pc.Close()
		delete(m.peers, id)
	}
}

// HandlePeerJoin offers to a newcomer, but only while a call is active.
func (m *Manager) HandlePeerJoin(id string) {
	if !m.Active() {
		return
	}
	if _, err := m.ensurePeer(id, true); err != nil {
		slog.Warn("call: offer to joining peer failed", "peer", id, "err", err)
	}
}

// HandlePeerLeft closes and discards the departed peer's link.
func (m *Manager) HandlePeerLeft(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pc, ok := m.peers[id]; ok {
		pc.Close()
		delete(m.peers, id)
	}
}

// HandleSignal processes one directed frame from a peer. A signal from a
// peer with no existing link creates one in non-initiator mode first.
func (m *Manager) HandleSignal(f *protocol.Frame) error {
	pc, err := m.ensurePeer(f.From, false)
	if err != nil {
		return err
	}

	switch f.Type {
	case protocol.TypeOffer:
		var sdp pion.SessionDescription
		if err := json.Unmarshal(f.SDP, &sdp); err != nil {
			return fmt.Errorf("decode offer from %s: %w", f.From, err)
		}
		if err := pc.SetRemoteDescription(sdp); err != nil {
			return fmt.Errorf("apply offer from %s: %w", f.From, err)
		}
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer for %s: %w", f.From, err)
		}
		if err := pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set answer for %s: %w", f.From, err)
		}
		return m.sendDescription(protocol.TypeAnswer, f.From, pc.LocalDescription())

	case protocol.TypeAnswer:
		if pc.CurrentRemoteDescription() != nil {
			// Duplicate or late answer; the first one won.
			return nil
		}
		var sdp pion.SessionDescription
		if err := json.Unmarshal(f.SDP, &sdp); err != nil {
			return fmt.Errorf("decode answer from %s: %w", f.From, err)
		}
		if err := pc.SetRemoteDescription(sdp); err != nil {
			return fmt.Errorf("apply answer from %s: %w", f.From, err)
		}
		return nil

	case protocol.TypeICE:
		var candidate pion.ICECandidateInit
		if err := json.Unmarshal(f.Candidate, &candidate); err != nil {
			return nil
		}
		if err := pc.AddICECandidate(candidate); err != nil {
			// Late or duplicate candidates are common and harmless.
			slog.Debug("call: candidate rejected", "peer", f.From, "err", err)
		}
		return nil

	default:
		return nil
	}
}

// ensurePeer returns the existing link for id or builds one. Initiators
// immediately produce an offer.
func (m *Manager) ensurePeer(id string, initiator bool) (*pion.PeerConnection, error) {
	m.mu.Lock()
	if pc, ok := m.peers[id]; ok {
		m.mu.Unlock()
		return pc, nil
	}
	m.mu.Unlock()

	pc, err := pion.NewPeerConnection(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection for %s: %w", id, err)
	}

	// Headless clients receive media; they do not capture any.
	for _, kind := range []pion.RTPCodecType{pion.RTPCodecTypeAudio, pion.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s transceiver for %s: %w", kind, id, err)
		}
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		m.signal.Signal(&protocol.Frame{
			Type:      protocol.TypeICE,
			To:        id,
			Candidate: payload,
		})
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		slog.Debug("call: ice state", "peer", id, "state", state)
	})

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		slog.Info("call: receiving track", "peer", id, "kind", track.Kind())
	})

	m.mu.Lock()
	if existing, ok := m.peers[id]; ok {
		// Lost a race with another goroutine building the same link.
		m.mu.Unlock()
		pc.Close()
		return existing, nil
	}
	m.peers[id] = pc
	m.mu.Unlock()

	if initiator {
		offer, err := pc.CreateOffer(nil)
		if err != nil {
			return nil, fmt.Errorf("create offer for %s: %w", id, err)
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			return nil, fmt.Errorf("set offer for %s: %w", id, err)
		}
		if err := m.sendDescription(protocol.TypeOffer, id, pc.LocalDescription()); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func (m *Manager) sendDescription(kind, to string, desc *pion.SessionDescription) error {
	payload, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode %s for %s: %w", kind, to, err)
	}
	return m.signal.Signal(&protocol.Frame{Type: kind, To: to, SDP: payload})
}
