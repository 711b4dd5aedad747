package audio

import (
	"fmt"
	"sync"

	"github.com/yok-tottii/EzCall/internal/logger"
	"github.com/yok-tottii/EzCall/internal/route"
)

// EarpiecePolicy decides whether the machine is treated as having a receiver.
type EarpiecePolicy int

const (
	// EarpieceAuto looks for a receiver-class output device
	EarpieceAuto EarpiecePolicy = iota
	// EarpieceAlways reports an earpiece regardless of devices
	EarpieceAlways
	// EarpieceNever reports no earpiece
	EarpieceNever
)

// ParseEarpiecePolicy parses "auto", "yes" or "no".
func ParseEarpiecePolicy(s string) (EarpiecePolicy, error) {
	switch s {
	case "", "auto":
		return EarpieceAuto, nil
	case "yes", "true":
		return EarpieceAlways, nil
	case "no", "false":
		return EarpieceNever, nil
	}
	return EarpieceAuto, fmt.Errorf("invalid earpiece policy: %q", s)
}

// HeadsetWatcher delivers wired headset plug events.
type HeadsetWatcher interface {
	// Watch calls onChange with the new presence until stop is called.
	// initial is the presence known when the watch starts.
	Watch(initial bool, onChange func(plugged bool)) (stop func(), err error)
}

// SystemOptions configures a System
type SystemOptions struct {
	Earpiece EarpiecePolicy
	// FocusPath overrides the focus lock file location
	FocusPath string
	// Watcher overrides the platform headset watcher
	Watcher HeadsetWatcher
	Logger  *logger.Logger
}

// System is the desktop audio platform driven by route.Manager. It keeps the
// speakerphone flag, mute and mode in process and maps the speakerphone flag
// onto an output device from the driver's device list.
type System struct {
	driver   AudioDriver
	focus    *Focus
	watcher  HeadsetWatcher
	earpiece EarpiecePolicy
	log      *logger.Logger

	mu           sync.Mutex
	speakerphone bool
	micMute      bool
	mode         route.Mode
	output       *Device
}

var _ route.Platform = (*System)(nil)

// NewSystem creates a platform over driver.
func NewSystem(driver AudioDriver, opts SystemOptions) *System {
	focusPath := opts.FocusPath
	if focusPath == "" {
		focusPath = DefaultFocusPath()
	}
	watcher := opts.Watcher
	if watcher == nil {
		watcher = newUdevWatcher(opts.Logger)
	}
	return &System{
		driver:   driver,
		focus:    NewFocus(focusPath),
		watcher:  watcher,
		earpiece: opts.Earpiece,
		log:      opts.Logger.Component("audio"),
		mode:     route.ModeNormal,
	}
}

// Devices lists every device known to the driver
func (s *System) Devices() ([]Device, error) {
	return s.driver.ListDevices()
}

func (s *System) devices() []Device {
	devices, err := s.driver.ListDevices()
	if err != nil {
		s.log.Warn("list devices: %v", err)
		return nil
	}
	return devices
}

// SpeakerphoneOn reports the speakerphone flag
func (s *System) SpeakerphoneOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakerphone
}

// SetSpeakerphoneOn switches the preferred output between the loudspeaker
// and the private path (headset, then receiver).
func (s *System) SetSpeakerphoneOn(on bool) error {
	out := pickOutput(s.devices(), on)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakerphone = on
	s.output = out
	if out != nil {
		s.log.Info("speakerphone=%t output=%q (%s)", on, out.Name, out.Kind)
	} else {
		s.log.Info("speakerphone=%t output=<none>", on)
	}
	return nil
}

// pickOutput chooses the output device for the speakerphone flag.
// Falls back to the default output when nothing matches.
func pickOutput(devices []Device, speakerphone bool) *Device {
	var preferred []DeviceKind
	if speakerphone {
		preferred = []DeviceKind{KindBuiltinSpeaker}
	} else {
		preferred = []DeviceKind{KindWiredHeadset, KindUSB, KindBuiltinReceiver}
	}
	for _, kind := range preferred {
		for i := range devices {
			if devices[i].IsOutput() && devices[i].Kind == kind {
				return &devices[i]
			}
		}
	}
	for i := range devices {
		if devices[i].IsOutput() && devices[i].IsDefaultOutput {
			return &devices[i]
		}
	}
	return nil
}

// OutputDevice returns the output chosen by the last SetSpeakerphoneOn
func (s *System) OutputDevice() (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output == nil {
		return Device{}, false
	}
	return *s.output, true
}

// MicrophoneMute reports whether capture is muted
func (s *System) MicrophoneMute() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.micMute
}

// SetMicrophoneMute mutes or unmutes capture
func (s *System) SetMicrophoneMute(mute bool) error {
	s.mu.Lock()
	s.micMute = mute
	s.mu.Unlock()
	s.driver.SetInputMuted(mute)
	return nil
}

// Mode returns the audio mode
func (s *System) Mode() route.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode sets the audio mode
func (s *System) SetMode(mode route.Mode) error {
	if mode == route.ModeInvalid {
		return fmt.Errorf("invalid audio mode")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// RequestFocus takes the cross-process focus lock
func (s *System) RequestFocus(onChange func(route.FocusChange)) error {
	return s.focus.Request(onChange)
}

// AbandonFocus releases the focus lock
func (s *System) AbandonFocus() error {
	return s.focus.Abandon()
}

// FocusHeld reports whether this process holds audio focus
func (s *System) FocusHeld() bool {
	return s.focus.Held()
}

// HasEarpiece applies the earpiece policy
func (s *System) HasEarpiece() bool {
	switch s.earpiece {
	case EarpieceAlways:
		return true
	case EarpieceNever:
		return false
	}
	for _, d := range s.devices() {
		if d.IsOutput() && d.Kind == KindBuiltinReceiver {
			return true
		}
	}
	return false
}

// HasWiredHeadset enumerates devices for a headset or USB audio device
func (s *System) HasWiredHeadset() bool {
	return HasHeadset(s.devices())
}

// SubscribeHeadset starts the headset watcher
func (s *System) SubscribeHeadset(onChange func(plugged bool)) (func(), error) {
	return s.watcher.Watch(s.HasWiredHeadset(), onChange)
}
