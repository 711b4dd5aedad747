package route

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AudioDevice is a selectable physical audio path.
type AudioDevice int

const (
	// None means no device is selected
	None AudioDevice = iota
	// SpeakerPhone routes output to the built-in loudspeaker
	SpeakerPhone
	// WiredHeadset routes output to a plugged headset (3.5mm or USB)
	WiredHeadset
	// Earpiece routes output to the built-in receiver
	Earpiece
)

// allDevices lists the selectable devices in iteration order.
var allDevices = [...]AudioDevice{SpeakerPhone, WiredHeadset, Earpiece}

var deviceNames = map[AudioDevice]string{
	None:         "none",
	SpeakerPhone: "speaker_phone",
	WiredHeadset: "wired_headset",
	Earpiece:     "earpiece",
}

// String returns the wire name of the device
func (d AudioDevice) String() string {
	if name, ok := deviceNames[d]; ok {
		return name
	}
	return fmt.Sprintf("AudioDevice(%d)", int(d))
}

// Valid reports whether d is one of the declared devices (None included).
func (d AudioDevice) Valid() bool {
	_, ok := deviceNames[d]
	return ok
}

// ParseAudioDevice converts a wire name back into an AudioDevice.
// "speaker" and "headset" are accepted as short forms.
func ParseAudioDevice(s string) (AudioDevice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return None, nil
	case "speaker_phone", "speakerphone", "speaker":
		return SpeakerPhone, nil
	case "wired_headset", "headset":
		return WiredHeadset, nil
	case "earpiece":
		return Earpiece, nil
	}
	return None, fmt.Errorf("unknown audio device: %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (d AudioDevice) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *AudioDevice) UnmarshalText(b []byte) error {
	v, err := ParseAudioDevice(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// DeviceSet is a set of audio devices. The zero value is the empty set and
// two sets compare equal with == exactly when they hold the same devices.
type DeviceSet uint8

func bit(d AudioDevice) DeviceSet {
	if d == None || !d.Valid() {
		return 0
	}
	return 1 << uint(d)
}

// NewDeviceSet builds a set from the given devices. None is ignored.
func NewDeviceSet(devices ...AudioDevice) DeviceSet {
	var s DeviceSet
	for _, d := range devices {
		s |= bit(d)
	}
	return s
}

// Has reports whether d is in the set
func (s DeviceSet) Has(d AudioDevice) bool {
	b := bit(d)
	return b != 0 && s&b != 0
}

// With returns the set with d added
func (s DeviceSet) With(d AudioDevice) DeviceSet { return s | bit(d) }

// Len returns the number of devices in the set
func (s DeviceSet) Len() int {
	n := 0
	for _, d := range allDevices {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Empty reports whether the set has no devices
func (s DeviceSet) Empty() bool { return s == 0 }

// Devices returns the members in stable order.
func (s DeviceSet) Devices() []AudioDevice {
	out := make([]AudioDevice, 0, len(allDevices))
	for _, d := range allDevices {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s DeviceSet) String() string {
	names := make([]string, 0, len(allDevices))
	for _, d := range s.Devices() {
		names = append(names, d.String())
	}
	return "[" + strings.Join(names, " ") + "]"
}

// MarshalJSON encodes the set as a list of device names
func (s DeviceSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Devices())
}

// UnmarshalJSON decodes a list of device names
func (s *DeviceSet) UnmarshalJSON(b []byte) error {
	var devices []AudioDevice
	if err := json.Unmarshal(b, &devices); err != nil {
		return err
	}
	*s = NewDeviceSet(devices...)
	return nil
}

// ManagerState is the lifecycle state of a Manager.
type ManagerState int

const (
	// Uninitialized is the state before Start and after Stop
	Uninitialized ManagerState = iota
	// PreInitialized is reserved for platforms that prepare before Start
	PreInitialized
	// Running means platform settings are captured and focus is held
	Running
)

const (
	stateUninitialized  = "uninitialized"
	statePreInitialized = "preinitialized"
	stateRunning        = "running"
)

// String returns the state name
func (s ManagerState) String() string {
	switch s {
	case Uninitialized:
		return stateUninitialized
	case PreInitialized:
		return statePreInitialized
	case Running:
		return stateRunning
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s ManagerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode as
// Uninitialized.
func (s *ManagerState) UnmarshalText(b []byte) error {
	*s = parseState(string(b))
	return nil
}

func parseState(name string) ManagerState {
	switch name {
	case stateRunning:
		return Running
	case statePreInitialized:
		return PreInitialized
	default:
		return Uninitialized
	}
}
