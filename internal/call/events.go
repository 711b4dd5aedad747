package call

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/yok-tottii/EzCall/internal/history"
	"github.com/yok-tottii/EzCall/internal/route"
	"github.com/yok-tottii/EzCall/internal/signaling"
)

// signalingEvents re-posts relay callbacks onto the controller goroutine
type signalingEvents struct{ c *Controller }

func (s signalingEvents) OnConnectionEstablished() {
	s.c.deps.Post(s.c.onConnectionEstablished)
}

func (s signalingEvents) OnOfferReceived(from string, desc webrtc.SessionDescription) {
	s.c.deps.Post(func() { s.c.onOffer(from, desc) })
}

func (s signalingEvents) OnAnswerReceived(from string, desc webrtc.SessionDescription) {
	s.c.deps.Post(func() { s.c.onAnswer(from, desc) })
}

func (s signalingEvents) OnICECandidateReceived(from string, candidate webrtc.ICECandidateInit) {
	s.c.deps.Post(func() { s.c.onRemoteCandidate(from, candidate) })
}

func (s signalingEvents) OnPeerLeft(peer string) {
	s.c.deps.Post(func() { s.c.onPeerLeft(peer) })
}

// engineEvents re-posts media engine callbacks onto the controller goroutine.
// Events from the engine of an earlier call are dropped when they run.
type engineEvents struct {
	c    *Controller
	call uint64
}

func (e engineEvents) post(what string, f func()) {
	e.c.deps.Post(func() {
		if e.c.engine == nil || e.c.generation != e.call {
			e.c.log.Debug("dropping %s from a finished call", what)
			return
		}
		f()
	})
}

func (e engineEvents) OnSessionDescription(desc webrtc.SessionDescription) {
	e.post("session description", func() { e.c.onLocalDescription(desc) })
}

func (e engineEvents) OnICECandidate(candidate webrtc.ICECandidateInit) {
	e.post("local candidate", func() { e.c.onLocalCandidate(candidate) })
}

func (e engineEvents) OnConnectionState(state webrtc.PeerConnectionState) {
	e.post("connection state "+state.String(), func() { e.c.onConnectionState(state) })
}

func (e engineEvents) OnRemoteTrack(kind webrtc.RTPCodecType, id string) {
	e.c.log.Info("remote %s track %s", kind, id)
}

// routeEvents forwards route changes to the UI; the route manager already
// calls it on the controller goroutine
type routeEvents struct{ c *Controller }

func (r routeEvents) OnAudioDeviceChanged(active route.AudioDevice, available route.DeviceSet) {
	r.c.log.Info("audio device: %s (available %s)", active, available)
	if r.c.hooks.OnAudioDevice != nil {
		r.c.hooks.OnAudioDevice(active, available)
	}
}

func (c *Controller) onConnectionEstablished() {
	if c.signaling == nil {
		return
	}
	c.ready = true
	c.log.Info("signaling ready")
	if c.hooks.OnReady != nil {
		c.hooks.OnReady()
	}
}

func (c *Controller) onOffer(from string, desc webrtc.SessionDescription) {
	c.count("in", signaling.TypeOffer)
	if c.State() != StateIdle {
		c.log.Warn("ignoring offer from %s while %s", from, c.State())
		return
	}
	if err := c.begin(history.RoleCallee, eventRing); err != nil {
		c.fail(err)
		return
	}
	c.setRemote(from)
	if err := c.engine.OnRemoteSession(desc); err != nil {
		c.fail(err)
		c.end(ReasonError)
		return
	}
	if err := c.engine.Answer(c.ctx); err != nil {
		c.fail(err)
		c.end(ReasonError)
	}
}

func (c *Controller) onAnswer(from string, desc webrtc.SessionDescription) {
	c.count("in", signaling.TypeAnswer)
	if c.engine == nil || c.role != history.RoleCaller {
		c.log.Warn("ignoring unexpected answer from %s", from)
		return
	}
	c.setRemote(from)
	if err := c.engine.OnRemoteSession(desc); err != nil {
		c.fail(err)
		c.end(ReasonError)
	}
}

func (c *Controller) onRemoteCandidate(from string, candidate webrtc.ICECandidateInit) {
	c.count("in", signaling.TypeCandidate)
	if c.engine == nil {
		c.log.Debug("dropping candidate outside a call")
		return
	}
	if !c.fromRemote(from) {
		c.log.Debug("dropping candidate from %s, talking to %s", from, c.remote)
		return
	}
	if err := c.engine.AddICECandidate(candidate); err != nil {
		c.log.Warn("add remote candidate: %v", err)
	}
}

// setRemote records the other side of the call once it is known
func (c *Controller) setRemote(peer string) {
	if peer == "" || c.remote != "" {
		return
	}
	c.remote = peer
	if c.deps.History == nil || c.historyID == 0 {
		return
	}
	if err := c.deps.History.SetPeer(c.ctx, c.historyID, peer); err != nil {
		c.log.Warn("record peer: %v", err)
	}
}

// fromRemote reports whether a message sent by peer belongs to the current
// call. Until the other side is known every room member qualifies.
func (c *Controller) fromRemote(peer string) bool {
	return c.remote == "" || peer == c.remote
}

func (c *Controller) onPeerLeft(peer string) {
	c.count("in", signaling.TypeBye)
	c.log.Info("peer %s left", peer)
	if !c.inCall() || !c.fromRemote(peer) {
		return
	}
	c.end(ReasonRemote)
	if c.hooks.OnPeerLeft != nil {
		c.hooks.OnPeerLeft(peer)
	}
}

func (c *Controller) onLocalDescription(desc webrtc.SessionDescription) {
	t := signaling.TypeOffer
	if desc.Type == webrtc.SDPTypeAnswer {
		t = signaling.TypeAnswer
	}
	c.send(func(ctx context.Context) error { return c.signaling.SendSession(ctx, desc) }, t)
}

// onLocalCandidate sends the candidate to the peer and also adds it to the
// local engine.
func (c *Controller) onLocalCandidate(candidate webrtc.ICECandidateInit) {
	c.send(func(ctx context.Context) error { return c.signaling.SendCandidate(ctx, candidate) }, signaling.TypeCandidate)
	if c.engine != nil {
		if err := c.engine.AddICECandidate(candidate); err != nil {
			c.log.Debug("add local candidate: %v", err)
		}
	}
}

func (c *Controller) onConnectionState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if c.State() == StateConnecting {
			if err := c.machine.Event(c.ctx, eventEstablished); err != nil {
				c.log.Error("established transition failed: %v", err)
			}
		}
	case webrtc.PeerConnectionStateFailed:
		c.end(ReasonFailed)
	}
}
