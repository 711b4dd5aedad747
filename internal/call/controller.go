// Package call drives one EzCall session: permissions, signaling, the media
// engine, the audio route and the call log.
//
// A Controller is not safe for concurrent use. Every exported method must run
// on the goroutine behind Deps.Post (a dispatch.Loop in the app). Engine and
// signaling callbacks are re-posted there before they touch any state.
package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/pion/webrtc/v4"

	"github.com/yok-tottii/EzCall/internal/history"
	"github.com/yok-tottii/EzCall/internal/logger"
	"github.com/yok-tottii/EzCall/internal/permissions"
	"github.com/yok-tottii/EzCall/internal/route"
	"github.com/yok-tottii/EzCall/internal/rtc"
	"github.com/yok-tottii/EzCall/internal/signaling"
)

var (
	// ErrNotReady is returned when signaling is not connected yet
	ErrNotReady = errors.New("signaling not connected")
	// ErrBusy is returned when a call is already in progress
	ErrBusy = errors.New("call already in progress")
	// ErrNoCall is returned when there is no call to act on
	ErrNoCall = errors.New("no active call")
)

const sendTimeout = 5 * time.Second

// End reasons stored in the call log
const (
	ReasonHangup = "hangup"
	ReasonRemote = "remote"
	ReasonFailed = "failed"
	ReasonError  = "error"
)

// Engine is the media engine used for one call
type Engine interface {
	Call(ctx context.Context) error
	Answer(ctx context.Context) error
	OnRemoteSession(desc webrtc.SessionDescription) error
	AddICECandidate(c webrtc.ICECandidateInit) error
	EnableAudio(enabled bool) error
	Close() error
}

// Signaling is the connection to the relay
type Signaling interface {
	Connect(ctx context.Context) error
	SendSession(ctx context.Context, desc webrtc.SessionDescription) error
	SendCandidate(ctx context.Context, c webrtc.ICECandidateInit) error
	SendBye(ctx context.Context) error
	Close() error
	ID() string
}

// Router is the audio route selector
type Router interface {
	Start(listener route.Listener)
	Stop()
	SetDefaultDevice(device route.AudioDevice)
	SelectDevice(device route.AudioDevice)
	ActiveDevice() route.AudioDevice
	Snapshot() route.Snapshot
}

// Gate runs the permission flow
type Gate interface {
	Ensure(onGranted func(), onDenied func(missing []permissions.Permission))
}

// History stores the call log
type History interface {
	Begin(ctx context.Context, room string, role history.Role, startedAt time.Time) (int64, error)
	SetPeer(ctx context.Context, id int64, peer string) error
	End(ctx context.Context, id int64, e history.Ending) error
}

// Metrics counts call events
type Metrics interface {
	CallTransition(from, to string)
	SignalingMessage(direction, msgType string)
}

// Deps are the collaborators of a Controller
type Deps struct {
	Post         func(func())
	Router       Router
	Gate         Gate
	NewEngine    func(observer rtc.Observer) (Engine, error)
	NewSignaling func(listener signaling.Listener) Signaling
	// Optional
	History        History
	Metrics        Metrics
	RouteListeners []route.Listener
	Logger         *logger.Logger
}

// Options are user settings applied to every call
type Options struct {
	Room       string
	StartMuted bool
	// DefaultOutput is SpeakerPhone or Earpiece; None means SpeakerPhone
	DefaultOutput route.AudioDevice
}

// Hooks notify the UI. They run on the controller goroutine.
type Hooks struct {
	OnState            func(from, to State)
	OnAudioDevice      func(active route.AudioDevice, available route.DeviceSet)
	OnReady            func()
	OnPermissionDenied func(missing []permissions.Permission)
	OnPeerLeft         func(peer string)
	OnError            func(err error)
}

// Status is a snapshot for the UI and API
type Status struct {
	State   State          `json:"state"`
	Ready   bool           `json:"ready"`
	Muted   bool           `json:"muted"`
	Speaker bool           `json:"speaker"`
	Room    string         `json:"room"`
	PeerID  string         `json:"peer_id,omitempty"`
	Remote  string         `json:"remote,omitempty"`
	Role    history.Role   `json:"role,omitempty"`
	Route   route.Snapshot `json:"route"`
}

// Controller is the call screen logic
type Controller struct {
	deps  Deps
	opts  Options
	hooks Hooks
	log   *logger.Logger

	ctx     context.Context
	machine *fsm.FSM

	signaling Signaling
	ready     bool
	engine    Engine
	role      history.Role
	remote    string
	// generation numbers calls; engine events carry the one they belong to
	generation uint64

	muted       bool
	speakerMode bool
	muteToggles int
	historyID   int64
}

// New creates a controller and applies the initial route policy: the default
// output, speaker phone unless configured otherwise, both as default and as
// the user's selection.
func New(deps Deps, opts Options, hooks Hooks) *Controller {
	if opts.DefaultOutput != route.Earpiece {
		opts.DefaultOutput = route.SpeakerPhone
	}
	c := &Controller{
		deps:        deps,
		opts:        opts,
		hooks:       hooks,
		log:         deps.Logger.Component("call"),
		ctx:         context.Background(),
		muted:       opts.StartMuted,
		speakerMode: opts.DefaultOutput == route.SpeakerPhone,
	}
	c.machine = newMachine(c.onTransition)

	deps.Router.SetDefaultDevice(opts.DefaultOutput)
	deps.Router.SelectDevice(opts.DefaultOutput)
	return c
}

// State returns the call state
func (c *Controller) State() State {
	return State(c.machine.Current())
}

// Ready reports whether signaling is connected
func (c *Controller) Ready() bool { return c.ready }

// Muted reports whether the microphone is muted
func (c *Controller) Muted() bool { return c.muted }

// SpeakerMode reports whether the speaker is the default route
func (c *Controller) SpeakerMode() bool { return c.speakerMode }

// Status returns a snapshot of the controller
func (c *Controller) Status() Status {
	s := Status{
		State:   c.State(),
		Ready:   c.ready,
		Muted:   c.muted,
		Speaker: c.speakerMode,
		Room:    c.opts.Room,
		Route:   c.deps.Router.Snapshot(),
	}
	if c.State() != StateIdle {
		s.Role = c.role
		s.Remote = c.remote
	}
	if c.signaling != nil {
		s.PeerID = c.signaling.ID()
	}
	return s
}

// Start checks permissions and connects to signaling. ctx bounds the whole
// session; the dial itself runs off the controller goroutine.
func (c *Controller) Start(ctx context.Context) {
	if c.signaling != nil {
		c.log.Debug("start ignored: already started")
		return
	}
	c.ctx = ctx

	c.deps.Gate.Ensure(c.onPermissionGranted, func(missing []permissions.Permission) {
		c.log.Warn("permission denied: %v", missing)
		if c.hooks.OnPermissionDenied != nil {
			c.hooks.OnPermissionDenied(missing)
		}
	})
}

func (c *Controller) onPermissionGranted() {
	c.log.Info("permissions granted, connecting to room %q", c.opts.Room)
	c.signaling = c.deps.NewSignaling(signalingEvents{c})

	sig := c.signaling
	ctx := c.ctx
	go func() {
		err := sig.Connect(ctx)
		if err == nil {
			return
		}
		c.deps.Post(func() {
			if c.signaling != sig {
				return
			}
			c.signaling = nil
			c.fail(fmt.Errorf("connect signaling: %w", err))
		})
	}()
}

// Call places an offer into the room
func (c *Controller) Call(ctx context.Context) error {
	if !c.ready {
		return ErrNotReady
	}
	if c.State() != StateIdle {
		return ErrBusy
	}
	if err := c.begin(history.RoleCaller, eventDial); err != nil {
		return err
	}
	if err := c.engine.Call(ctx); err != nil {
		c.end(ReasonError)
		return fmt.Errorf("create offer: %w", err)
	}
	return nil
}

// Hangup ends the current call and tells the peer
func (c *Controller) Hangup(ctx context.Context) error {
	if !c.inCall() {
		return ErrNoCall
	}
	if c.signaling != nil {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		if err := c.signaling.SendBye(sctx); err != nil {
			c.log.Warn("send bye: %v", err)
		} else {
			c.count("out", signaling.TypeBye)
		}
		cancel()
	}
	c.end(ReasonHangup)
	return nil
}

// ToggleMute flips the microphone and returns the new mute state
func (c *Controller) ToggleMute() bool {
	c.muted = !c.muted
	c.muteToggles++
	if c.engine != nil {
		if err := c.engine.EnableAudio(!c.muted); err != nil {
			c.log.Warn("enable audio: %v", err)
		}
	}
	c.log.Info("microphone muted=%t", c.muted)
	return c.muted
}

// ToggleSpeaker flips the default route between speaker phone and earpiece
// and returns the new speaker mode
func (c *Controller) ToggleSpeaker() bool {
	c.speakerMode = !c.speakerMode
	if c.speakerMode {
		c.deps.Router.SetDefaultDevice(route.SpeakerPhone)
	} else {
		c.deps.Router.SetDefaultDevice(route.Earpiece)
	}
	c.log.Info("speaker mode=%t", c.speakerMode)
	return c.speakerMode
}

// SelectOutput records the user's choice of output device
func (c *Controller) SelectOutput(device route.AudioDevice) {
	c.deps.Router.SelectDevice(device)
}

// SetDefaultOutput changes the default route directly
func (c *Controller) SetDefaultOutput(device route.AudioDevice) {
	switch device {
	case route.SpeakerPhone:
		c.speakerMode = true
	case route.Earpiece:
		c.speakerMode = false
	}
	c.deps.Router.SetDefaultDevice(device)
}

// Stop hangs up any call and disconnects signaling
func (c *Controller) Stop() {
	if c.inCall() {
		_ = c.Hangup(context.Background())
	}
	if c.signaling != nil {
		if err := c.signaling.Close(); err != nil {
			c.log.Warn("close signaling: %v", err)
		}
		c.signaling = nil
	}
	c.ready = false
}

func (c *Controller) inCall() bool {
	s := c.State()
	return s == StateConnecting || s == StateConnected
}

// begin creates the engine and starts routing for a new call
func (c *Controller) begin(role history.Role, event string) error {
	c.generation++
	engine, err := c.deps.NewEngine(engineEvents{c: c, call: c.generation})
	if err != nil {
		return fmt.Errorf("create media engine: %w", err)
	}
	c.engine = engine
	c.role = role
	c.remote = ""
	c.muteToggles = 0

	if err := c.machine.Event(c.ctx, event); err != nil {
		_ = engine.Close()
		c.engine = nil
		return fmt.Errorf("%s: %w", event, err)
	}

	if c.muted {
		if err := engine.EnableAudio(false); err != nil {
			c.log.Warn("enable audio: %v", err)
		}
	}

	listeners := append(route.Listeners{routeEvents{c}}, c.deps.RouteListeners...)
	c.deps.Router.Start(listeners)

	c.historyID = 0
	if c.deps.History != nil {
		id, err := c.deps.History.Begin(c.ctx, c.opts.Room, role, time.Now())
		if err != nil {
			c.log.Warn("record call start: %v", err)
		} else {
			c.historyID = id
		}
	}
	return nil
}

// end tears the call down and returns to idle
func (c *Controller) end(reason string) {
	if !c.inCall() {
		return
	}
	device := c.deps.Router.ActiveDevice()

	if c.engine != nil {
		if err := c.engine.Close(); err != nil {
			c.log.Warn("close media engine: %v", err)
		}
		c.engine = nil
	}
	c.deps.Router.Stop()

	if c.deps.History != nil && c.historyID != 0 {
		err := c.deps.History.End(c.ctx, c.historyID, history.Ending{
			EndedAt:     time.Now(),
			AudioDevice: device.String(),
			MuteToggles: c.muteToggles,
			Reason:      reason,
		})
		if err != nil {
			c.log.Warn("record call end: %v", err)
		}
	}

	c.log.Info("call ended: %s", reason)
	if err := c.machine.Event(c.ctx, eventEnd); err != nil {
		c.log.Error("end transition failed: %v", err)
	}
	if err := c.machine.Event(c.ctx, eventReset); err != nil {
		c.log.Error("reset transition failed: %v", err)
	}
}

func (c *Controller) fail(err error) {
	c.log.Error("%v", err)
	if c.hooks.OnError != nil {
		c.hooks.OnError(err)
	}
}

func (c *Controller) count(direction string, t signaling.MessageType) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.SignalingMessage(direction, string(t))
	}
}

func (c *Controller) send(f func(ctx context.Context) error, t signaling.MessageType) {
	if c.signaling == nil {
		c.log.Warn("drop outgoing %s: signaling closed", t)
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, sendTimeout)
	defer cancel()
	if err := f(ctx); err != nil {
		c.fail(fmt.Errorf("send %s: %w", t, err))
		return
	}
	c.count("out", t)
}

func (c *Controller) onTransition(from, to string) {
	c.log.Debug("call state %s -> %s", from, to)
	if c.deps.Metrics != nil {
		c.deps.Metrics.CallTransition(from, to)
	}
	if c.hooks.OnState != nil {
		c.hooks.OnState(State(from), State(to))
	}
}
