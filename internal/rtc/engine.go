// Package rtc adapts a pion PeerConnection to the operations a call needs:
// offer, answer, remote descriptions, ICE candidates and track enable flags.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/yok-tottii/EzCall/internal/logger"
)

// ErrClosed is returned by operations on a closed engine
var ErrClosed = errors.New("media engine closed")

// Observer receives engine events. Methods are called from pion goroutines.
type Observer interface {
	OnSessionDescription(desc webrtc.SessionDescription)
	OnICECandidate(candidate webrtc.ICECandidateInit)
	OnConnectionState(state webrtc.PeerConnectionState)
	OnRemoteTrack(kind webrtc.RTPCodecType, id string)
}

// Config holds engine construction options
type Config struct {
	// ICEServers are STUN/TURN URLs
	ICEServers []string
	// Video adds a camera track next to the microphone track
	Video  bool
	Logger *logger.Logger
}

// Engine owns one PeerConnection and its local tracks
type Engine struct {
	pc       *webrtc.PeerConnection
	observer Observer
	log      *logger.Logger

	audioTrack  *webrtc.TrackLocalStaticSample
	videoTrack  *webrtc.TrackLocalStaticSample
	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender

	mu           sync.Mutex
	audioEnabled bool
	videoEnabled bool
	pending      []webrtc.ICECandidateInit
	closed       bool
}

// New creates an engine with a sendrecv audio transceiver and, when
// configured, a sendrecv video transceiver.
func New(cfg Config, observer Observer) (*Engine, error) {
	log := cfg.Logger.Component("rtc")

	settings := webrtc.SettingEngine{
		LoggerFactory: NewLoggerFactory(cfg.Logger),
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))

	var iceServers []webrtc.ICEServer
	if len(cfg.ICEServers) > 0 {
		iceServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	e := &Engine{
		pc:           pc,
		observer:     observer,
		log:          log,
		audioEnabled: true,
		videoEnabled: cfg.Video,
	}

	// Nothing writes samples here; microphone capture and Opus encoding are
	// not part of the engine, so muting only swaps the sender's track.
	e.audioTrack, err = webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "ezcall")
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	audio, err := pc.AddTransceiverFromTrack(e.audioTrack, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	})
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio transceiver: %w", err)
	}
	e.audioSender = audio.Sender()
	go drainRTCP(e.audioSender)

	if cfg.Video {
		e.videoTrack, err = webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "ezcall")
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("create video track: %w", err)
		}
		video, err := pc.AddTransceiverFromTrack(e.videoTrack, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add video transceiver: %w", err)
		}
		e.videoSender = video.Sender()
		go drainRTCP(e.videoSender)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			e.log.Debug("ICE gathering complete")
			return
		}
		if e.observer != nil {
			e.observer.OnICECandidate(c.ToJSON())
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.log.Info("connection state: %s", state)
		if e.observer != nil {
			e.observer.OnConnectionState(state)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.log.Info("remote track: kind=%s codec=%s id=%s", track.Kind(), track.Codec().MimeType, track.ID())
		if e.observer != nil {
			e.observer.OnRemoteTrack(track.Kind(), track.ID())
		}
		go drainRemote(track)
	})

	return e, nil
}

// Call creates an offer, applies it locally and emits it
func (e *Engine) Call(ctx context.Context) error {
	if e.isClosed() {
		return ErrClosed
	}
	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	return e.setLocal(ctx, offer)
}

// Answer creates an answer to the applied remote offer and emits it
func (e *Engine) Answer(ctx context.Context) error {
	if e.isClosed() {
		return ErrClosed
	}
	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	return e.setLocal(ctx, answer)
}

func (e *Engine) setLocal(ctx context.Context, desc webrtc.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local %s: %w", desc.Type, err)
	}
	if s, err := Summarize(desc.SDP); err == nil {
		e.log.Debug("local %s %s", desc.Type, s)
	}
	if e.observer != nil {
		e.observer.OnSessionDescription(desc)
	}
	return nil
}

// OnRemoteSession applies a description received from the peer and
// flushes candidates that arrived before it.
func (e *Engine) OnRemoteSession(desc webrtc.SessionDescription) error {
	if e.isClosed() {
		return ErrClosed
	}
	if s, err := Summarize(desc.SDP); err == nil {
		e.log.Debug("remote %s %s", desc.Type, s)
	} else {
		e.log.Warn("remote %s: %v", desc.Type, err)
	}
	if err := e.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote %s: %w", desc.Type, err)
	}

	e.mu.Lock()
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, c := range pending {
		if err := e.pc.AddICECandidate(c); err != nil {
			e.log.Warn("add queued candidate: %v", err)
		}
	}
	return nil
}

// AddICECandidate adds a remote candidate, queueing it until a remote
// description is present.
func (e *Engine) AddICECandidate(c webrtc.ICECandidateInit) error {
	if e.isClosed() {
		return ErrClosed
	}
	if e.pc.RemoteDescription() == nil {
		e.mu.Lock()
		e.pending = append(e.pending, c)
		e.mu.Unlock()
		return nil
	}
	if err := e.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

// PendingCandidates returns how many candidates wait for a remote description
func (e *Engine) PendingCandidates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// EnableAudio attaches or detaches the microphone track from its sender
func (e *Engine) EnableAudio(enabled bool) error {
	return e.enable(e.audioSender, e.audioTrack, &e.audioEnabled, enabled, "audio")
}

// EnableVideo attaches or detaches the camera track from its sender
func (e *Engine) EnableVideo(enabled bool) error {
	if e.videoSender == nil {
		return fmt.Errorf("video not configured")
	}
	return e.enable(e.videoSender, e.videoTrack, &e.videoEnabled, enabled, "video")
}

func (e *Engine) enable(sender *webrtc.RTPSender, track webrtc.TrackLocal, flag *bool, enabled bool, kind string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if *flag == enabled {
		return nil
	}
	var next webrtc.TrackLocal
	if enabled {
		next = track
	}
	if err := sender.ReplaceTrack(next); err != nil {
		return fmt.Errorf("enable %s=%t: %w", kind, enabled, err)
	}
	*flag = enabled
	e.log.Debug("%s enabled=%t", kind, enabled)
	return nil
}

// AudioEnabled reports whether the microphone track is attached
func (e *Engine) AudioEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audioEnabled
}

// VideoEnabled reports whether the camera track is attached
func (e *Engine) VideoEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.videoEnabled
}

// LocalDescription returns the applied local description, if any
func (e *Engine) LocalDescription() *webrtc.SessionDescription {
	return e.pc.LocalDescription()
}

// SignalingState returns the PeerConnection signaling state
func (e *Engine) SignalingState() webrtc.SignalingState {
	return e.pc.SignalingState()
}

// Close tears down the PeerConnection. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.pending = nil
	e.mu.Unlock()

	if err := e.pc.Close(); err != nil {
		return fmt.Errorf("close peer connection: %w", err)
	}
	return nil
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// drainRTCP reads RTCP so interceptors (NACK, reports) keep running
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// drainRemote consumes remote RTP; playback is outside the engine
func drainRemote(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
