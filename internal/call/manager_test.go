package call

import (
	"encoding/json"
	"sync"
	"testing"

	pion "github.com/pion/webrtc/v4"

	"github.com/Souhar-dya/Cohesion/internal/config"
	"github.com/Souhar-dya/Cohesion/internal/protocol"
)

// recordingSignaler captures outbound frames instead of sending them.
type recordingSignaler struct {
	mu     sync.Mutex
	frames []*protocol.Frame
}

func (s *recordingSignaler) Signal(f *protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSignaler) byType(kind string) []*protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*protocol.Frame
	for _, f := range s.frames {
		if f.Type == kind {
			out = append(out, f)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{STUNServer: config.DefaultSTUN}
}

func newTestManager(t *testing.T) (*Manager, *recordingSignaler) {
	t.Helper()
	sig := &recordingSignaler{}
	m := New(testConfig(), sig)
	t.Cleanup(m.Stop)
	return m, sig
}

func TestStartOffersToEveryPeer(t *testing.T) {
	m, sig := newTestManager(t)

	if err := m.Start([]string{"p1", "p2"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.Active() {
		t.Error("manager should be active after Start")
	}
	if n := m.PeerCount(); n != 2 {
		t.Errorf("peer count = %d, want 2", n)
	}

	offers := sig.byType(protocol.TypeOffer)
	if len(offers) != 2 {
		t.Fatalf("offers sent = %d, want 2", len(offers))
	}
	targets := map[string]bool{}
	for _, f := range offers {
		targets[f.To] = true
		var sdp pion.SessionDescription
		if err := json.Unmarshal(f.SDP, &sdp); err != nil {
			t.Fatalf("offer payload is not a session description: %v", err)
		}
		if sdp.Type != pion.SDPTypeOffer {
			t.Errorf("sdp type = %s, want offer", sdp.Type)
		}
	}
	if !targets["p1"] || !targets["p2"] {
		t.Errorf("offer targets = %v", targets)
	}
}

func TestStartTwiceIsIdempotent(t *testing.T) {
	m, sig := newTestManager(t)

	if err := m.Start([]string{"p1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start([]string{"p1", "p2"}); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if n := m.PeerCount(); n != 1 {
		t.Errorf("peer count = %d, want 1", n)
	}
	if got := len(sig.byType(protocol.TypeOffer)); got != 1 {
		t.Errorf("offers sent = %d, want 1", got)
	}
}

func TestJoinDuringCallGetsOffer(t *testing.T) {
	m, sig := newTestManager(t)

	// Before any call, a join is ignored.
	m.HandlePeerJoin("early")
	if n := m.PeerCount(); n != 0 {
		t.Fatalf("peer count = %d before call, want 0", n)
	}

	if err := m.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.HandlePeerJoin("late")
	if n := m.PeerCount(); n != 1 {
		t.Errorf("peer count = %d, want 1", n)
	}
	offers := sig.byType(protocol.TypeOffer)
	if len(offers) != 1 || offers[0].To != "late" {
		t.Errorf("offers = %+v, want one to the newcomer", offers)
	}
}

func TestInboundOfferProducesAnswer(t *testing.T) {
	m, sig := newTestManager(t)

	// A second real peer connection plays the remote caller.
	remote, err := pion.NewPeerConnection(pion.Configuration{})
	if err != nil {
		t.Fatalf("remote pc: %v", err)
	}
	defer remote.Close()
	if _, err := remote.CreateDataChannel("probe", nil); err != nil {
		t.Fatalf("data channel: %v", err)
	}
	offer, err := remote.CreateOffer(nil)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	if err := remote.SetLocalDescription(offer); err != nil {
		t.Fatalf("set local: %v", err)
	}
	payload, err := json.Marshal(remote.LocalDescription())
	if err != nil {
		t.Fatalf("marshal offer: %v", err)
	}

	if err := m.HandleSignal(&protocol.Frame{
		Type: protocol.TypeOffer,
		From: "caller",
		SDP:  payload,
	}); err != nil {
		t.Fatalf("handle offer: %v", err)
	}

	if n := m.PeerCount(); n != 1 {
		t.Errorf("peer count = %d, want 1", n)
	}
	answers := sig.byType(protocol.TypeAnswer)
	if len(answers) != 1 {
		t.Fatalf("answers sent = %d, want 1", len(answers))
	}
	if answers[0].To != "caller" {
		t.Errorf("answer addressed to %q, want caller", answers[0].To)
	}
	var sdp pion.SessionDescription
	if err := json.Unmarshal(answers[0].SDP, &sdp); err != nil {
		t.Fatalf("answer payload: %v", err)
	}
	if sdp.Type != pion.SDPTypeAnswer {
		t.Errorf("sdp type = %s, want answer", sdp.Type)
	}

	// Completing the handshake on the remote side must succeed.
	if err := remote.SetRemoteDescription(sdp); err != nil {
		t.Errorf("remote could not apply the answer: %v", err)
	}
}

func TestDuplicateAnswerIgnored(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Start([]string{"callee"}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The callee side answers the offer we produced.
	m.mu.Lock()
	local := m.peers["callee"]
	m.mu.Unlock()

	remote, err := pion.NewPeerConnection(pion.Configuration{})
	if err != nil {
		t.Fatalf("remote pc: %v", err)
	}
	defer remote.Close()
	if err := remote.SetRemoteDescription(*local.LocalDescription()); err != nil {
		t.Fatalf("remote apply offer: %v", err)
	}
	answer, err := remote.CreateAnswer(nil)
	if err != nil {
		t.Fatalf("create answer: %v", err)
	}
	if err := remote.SetLocalDescription(answer); err != nil {
		t.Fatalf("set local answer: %v", err)
	}
	payload, err := json.Marshal(remote.LocalDescription())
	if err != nil {
		t.Fatalf("marshal answer: %v", err)
	}

	frame := &protocol.Frame{Type: protocol.TypeAnswer, From: "callee", SDP: payload}
	if err := m.HandleSignal(frame); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	// A replay must be a no-op, not an error.
	if err := m.HandleSignal(frame); err != nil {
		t.Errorf("duplicate answer: %v", err)
	}
}

func TestInboundSignalCreatesNonInitiatorEntry(t *testing.T) {
	m, sig := newTestManager(t)

	// An ICE frame from an unknown peer creates the link without offering.
	candidate, _ := json.Marshal(pion.ICECandidateInit{Candidate: ""})
	if err := m.HandleSignal(&protocol.Frame{
		Type:      protocol.TypeICE,
		From:      "stranger",
		Candidate: candidate,
	}); err != nil {
		t.Fatalf("handle ice: %v", err)
	}
	if n := m.PeerCount(); n != 1 {
		t.Errorf("peer count = %d, want 1", n)
	}
	if got := len(sig.byType(protocol.TypeOffer)); got != 0 {
		t.Errorf("offers sent = %d, want none for an inbound-created link", got)
	}
}

func TestPeerLeftRemovesLink(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Start([]string{"p1", "p2"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.HandlePeerLeft("p1")
	if n := m.PeerCount(); n != 1 {
		t.Errorf("peer count = %d, want 1", n)
	}
	m.HandlePeerLeft("p1") // already gone
	if n := m.PeerCount(); n != 1 {
		t.Errorf("peer count = %d after repeat, want 1", n)
	}
}

func TestStopClearsEverything(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Start([]string{"p1", "p2"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Stop()
	if m.Active() {
		t.Error("manager still active after Stop")
	}
	if n := m.PeerCount(); n != 0 {
		t.Errorf("peer count = %d, want 0", n)
	}
}
