// Package route decides which audio path (speaker, earpiece, wired headset)
// is active during a call.
//
// A Manager is not safe for concurrent use. All methods must be called from
// one goroutine; internal/dispatch provides the loop EzCall uses for that.
// Hardware events from the platform are re-posted through Config.Post.
package route

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/yok-tottii/EzCall/internal/logger"
)

const (
	eventStart = "start"
	eventStop  = "stop"
)

// Config holds the construction-time policy of a Manager.
type Config struct {
	// DefaultDevice is the initial default route: SpeakerPhone or Earpiece.
	// Anything else, or Earpiece on hardware without one, becomes SpeakerPhone.
	DefaultDevice AudioDevice
	// Post marshals platform callbacks onto the caller's goroutine.
	// When nil, callbacks run wherever the platform delivers them.
	Post   func(func())
	Logger *logger.Logger
}

// Snapshot is a copy of the Manager's observable state.
type Snapshot struct {
	State           ManagerState `json:"state"`
	Active          AudioDevice  `json:"active"`
	Available       DeviceSet    `json:"available"`
	Default         AudioDevice  `json:"default"`
	UserSelected    AudioDevice  `json:"user_selected"`
	HasWiredHeadset bool         `json:"has_wired_headset"`
	HasEarpiece     bool         `json:"has_earpiece"`
}

// Manager tracks available audio devices and resolves the active one.
type Manager struct {
	platform Platform
	log      *logger.Logger
	post     func(func())
	machine  *fsm.FSM
	listener Listener

	savedMode           Mode
	savedSpeakerphone   bool
	savedMicrophoneMute bool
	hasWiredHeadset     bool

	defaultDevice      AudioDevice
	activeDevice       AudioDevice
	userSelectedDevice AudioDevice
	available          DeviceSet

	unsubscribe func()
	// session counts Starts so that headset events from an earlier
	// subscription are recognized
	session uint64
}

// New creates a Manager in the Uninitialized state.
func New(platform Platform, cfg Config) *Manager {
	m := &Manager{
		platform:  platform,
		log:       cfg.Logger.Component("route"),
		post:      cfg.Post,
		savedMode: ModeInvalid,
	}

	m.defaultDevice = SpeakerPhone
	if cfg.DefaultDevice == Earpiece && platform.HasEarpiece() {
		m.defaultDevice = Earpiece
	}

	m.machine = fsm.NewFSM(
		stateUninitialized,
		fsm.Events{
			{Name: eventStart, Src: []string{stateUninitialized, statePreInitialized}, Dst: stateRunning},
			{Name: eventStop, Src: []string{stateRunning}, Dst: stateUninitialized},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.log.Debug("state %s -> %s", e.Src, e.Dst)
			},
		},
	)
	return m
}

// State returns the lifecycle state
func (m *Manager) State() ManagerState {
	return parseState(m.machine.Current())
}

// ActiveDevice returns the currently applied device
func (m *Manager) ActiveDevice() AudioDevice { return m.activeDevice }

// AvailableDevices returns the devices usable right now
func (m *Manager) AvailableDevices() DeviceSet { return m.available }

// DefaultDevice returns the policy default
func (m *Manager) DefaultDevice() AudioDevice { return m.defaultDevice }

// UserSelectedDevice returns the last explicit user choice, or None
func (m *Manager) UserSelectedDevice() AudioDevice { return m.userSelectedDevice }

// Snapshot returns a copy of the current state
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		State:           m.State(),
		Active:          m.activeDevice,
		Available:       m.available,
		Default:         m.defaultDevice,
		UserSelected:    m.userSelectedDevice,
		HasWiredHeadset: m.hasWiredHeadset,
		HasEarpiece:     m.platform.HasEarpiece(),
	}
}

// Start captures the platform's audio settings, takes audio focus and begins
// tracking headset changes. listener receives every subsequent change.
// Calling Start while running does nothing.
func (m *Manager) Start(listener Listener) {
	if m.machine.Current() == stateRunning {
		m.log.Debug("start ignored: already running")
		return
	}
	if err := m.machine.Event(context.Background(), eventStart); err != nil {
		m.log.Error("start transition failed: %v", err)
		return
	}
	m.listener = listener
	m.session++

	m.savedMode = m.platform.Mode()
	m.savedSpeakerphone = m.platform.SpeakerphoneOn()
	m.savedMicrophoneMute = m.platform.MicrophoneMute()
	m.hasWiredHeadset = m.platform.HasWiredHeadset()

	if err := m.platform.RequestFocus(m.onFocusChange); err != nil {
		m.log.Warn("audio focus request failed: %v", err)
	} else {
		m.log.Debug("audio focus granted")
	}

	if err := m.platform.SetMode(ModeInCommunication); err != nil {
		m.log.Warn("set mode %s: %v", ModeInCommunication, err)
	}
	m.setMicrophoneMute(false)
	m.userSelectedDevice = None
	m.available = 0

	m.update()

	session := m.session
	unsubscribe, err := m.platform.SubscribeHeadset(func(plugged bool) {
		m.onHeadsetEvent(session, plugged)
	})
	if err != nil {
		m.log.Warn("headset events unavailable: %v", err)
		return
	}
	m.unsubscribe = unsubscribe
}

// Stop restores the settings captured by Start and releases audio focus.
// Calling Stop when not running does nothing.
func (m *Manager) Stop() {
	if m.machine.Current() != stateRunning {
		return
	}
	if err := m.machine.Event(context.Background(), eventStop); err != nil {
		m.log.Error("stop transition failed: %v", err)
		return
	}

	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}

	m.setSpeakerphoneOn(m.savedSpeakerphone)
	m.setMicrophoneMute(m.savedMicrophoneMute)
	if err := m.platform.SetMode(m.savedMode); err != nil {
		m.log.Warn("restore mode %s: %v", m.savedMode, err)
	}
	if err := m.platform.AbandonFocus(); err != nil {
		m.log.Warn("abandon audio focus: %v", err)
	}
	m.listener = nil
}

// SetDefaultDevice changes the default route. Only SpeakerPhone and Earpiece
// are accepted; Earpiece falls back to SpeakerPhone on hardware without one.
func (m *Manager) SetDefaultDevice(device AudioDevice) {
	switch device {
	case SpeakerPhone:
		m.defaultDevice = device
	case Earpiece:
		if m.platform.HasEarpiece() {
			m.defaultDevice = device
		} else {
			m.defaultDevice = SpeakerPhone
		}
	default:
		m.log.Error("invalid default audio device selection: %s", device)
	}
	m.log.Debug("setDefaultDevice(device=%s)", m.defaultDevice)
	m.update()
}

// SelectDevice records an explicit user choice. A device that is not
// currently available is logged but still recorded.
func (m *Manager) SelectDevice(device AudioDevice) {
	if !m.available.Has(device) {
		m.log.Error("can not select %s from available %s", device, m.available)
	}
	m.userSelectedDevice = device
	m.update()
}

// OnHardwareChanged updates wired headset presence.
func (m *Manager) OnHardwareChanged(hasWiredHeadset bool) {
	m.log.Debug("hardware changed: wired headset=%t", hasWiredHeadset)
	m.hasWiredHeadset = hasWiredHeadset
	m.update()
}

// onHeadsetEvent runs on the watcher goroutine. The event may still be queued
// when Stop runs, so it is dropped unless the subscribing session is current.
func (m *Manager) onHeadsetEvent(session uint64, plugged bool) {
	apply := func() {
		if m.machine.Current() != stateRunning || m.session != session {
			m.log.Debug("dropping stale headset event: plugged=%t", plugged)
			return
		}
		m.OnHardwareChanged(plugged)
	}
	if m.post != nil {
		m.post(apply)
		return
	}
	apply()
}

func (m *Manager) onFocusChange(change FocusChange) {
	m.log.Debug("onAudioFocusChange: %s", change)
}

// update recomputes the available set and the active device and notifies
// the listener when either changed.
func (m *Manager) update() {
	var next DeviceSet
	if m.hasWiredHeadset {
		next = next.With(WiredHeadset)
	} else {
		next = next.With(SpeakerPhone)
		if m.platform.HasEarpiece() {
			next = next.With(Earpiece)
		}
	}

	setChanged := next != m.available
	m.available = next

	if m.hasWiredHeadset && m.userSelectedDevice == SpeakerPhone {
		m.userSelectedDevice = WiredHeadset
	}
	if !m.hasWiredHeadset && m.userSelectedDevice == WiredHeadset {
		m.userSelectedDevice = SpeakerPhone
	}

	resolved := m.defaultDevice
	if m.hasWiredHeadset {
		resolved = WiredHeadset
	}

	if resolved != m.activeDevice || setChanged {
		m.apply(resolved)
		if m.listener != nil {
			m.listener.OnAudioDeviceChanged(m.activeDevice, m.available)
		}
	}
}

func (m *Manager) apply(device AudioDevice) {
	m.log.Debug("setAudioDeviceInternal(device=%s)", device)
	if m.available.Has(device) {
		switch device {
		case SpeakerPhone:
			m.setSpeakerphoneOn(true)
		case Earpiece, WiredHeadset:
			m.setSpeakerphoneOn(false)
		}
	}
	m.activeDevice = device
}

func (m *Manager) setSpeakerphoneOn(on bool) {
	if m.platform.SpeakerphoneOn() == on {
		return
	}
	if err := m.platform.SetSpeakerphoneOn(on); err != nil {
		m.log.Warn("set speakerphone %t: %v", on, err)
	}
}

func (m *Manager) setMicrophoneMute(mute bool) {
	if m.platform.MicrophoneMute() == mute {
		return
	}
	if err := m.platform.SetMicrophoneMute(mute); err != nil {
		m.log.Warn("set microphone mute %t: %v", mute, err)
	}
}
