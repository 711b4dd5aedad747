package audio

import "strings"

// DeviceKind classifies a device by the physical path it represents
type DeviceKind int

const (
	KindUnknown DeviceKind = iota
	// KindBuiltinSpeaker is the internal loudspeaker
	KindBuiltinSpeaker
	// KindBuiltinReceiver is a phone-style earpiece receiver
	KindBuiltinReceiver
	// KindBuiltinMicrophone is the internal microphone
	KindBuiltinMicrophone
	// KindWiredHeadset is a headset or headphones on the analog jack
	KindWiredHeadset
	// KindUSB is a USB audio interface or USB headset
	KindUSB
)

func (k DeviceKind) String() string {
	switch k {
	case KindBuiltinSpeaker:
		return "builtin_speaker"
	case KindBuiltinReceiver:
		return "builtin_receiver"
	case KindBuiltinMicrophone:
		return "builtin_microphone"
	case KindWiredHeadset:
		return "wired_headset"
	case KindUSB:
		return "usb"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k DeviceKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// IsHeadset reports whether the kind counts as a wired headset for routing.
// USB audio devices are treated as headsets.
func (k DeviceKind) IsHeadset() bool {
	return k == KindWiredHeadset || k == KindUSB
}

// Device represents an audio device
type Device struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	HostAPI           string     `json:"host_api,omitempty"`
	Kind              DeviceKind `json:"kind"`
	MaxInputChannels  int        `json:"max_input_channels"`
	MaxOutputChannels int        `json:"max_output_channels"`
	IsDefaultInput    bool       `json:"is_default_input"`
	IsDefaultOutput   bool       `json:"is_default_output"`
}

// IsInput reports whether the device can capture
func (d Device) IsInput() bool { return d.MaxInputChannels > 0 }

// IsOutput reports whether the device can play back
func (d Device) IsOutput() bool { return d.MaxOutputChannels > 0 }

// ClassifyDevice guesses the kind of a device from its name.
// Host APIs do not expose the jack type, so names are all we have.
func ClassifyDevice(name string) DeviceKind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "usb"):
		return KindUSB
	case strings.Contains(n, "headset"),
		strings.Contains(n, "headphone"),
		strings.Contains(n, "earphone"),
		strings.Contains(n, "external"):
		return KindWiredHeadset
	case strings.Contains(n, "receiver"), strings.Contains(n, "earpiece"):
		return KindBuiltinReceiver
	case strings.Contains(n, "speaker"):
		return KindBuiltinSpeaker
	case strings.Contains(n, "microphone"), strings.Contains(n, "mic"):
		return KindBuiltinMicrophone
	}
	return KindUnknown
}

// HasHeadset reports whether any device in the list is a headset.
func HasHeadset(devices []Device) bool {
	for _, d := range devices {
		if d.Kind.IsHeadset() {
			return true
		}
	}
	return false
}

// LatencyMode defines the latency priority
type LatencyMode int

const (
	// LowLatency prioritizes low latency (real-time)
	LowLatency LatencyMode = iota
	// HighStability prioritizes stability (larger buffer)
	HighStability
)

// Config holds audio configuration
type Config struct {
	// InputDeviceID selects the capture device; -1 uses the system default
	InputDeviceID int
	SampleRate    int
	Channels      int
	Latency       LatencyMode
}

// DefaultConfig returns the default capture configuration:
// 48kHz mono (the Opus call rate), low latency.
func DefaultConfig() Config {
	return Config{
		InputDeviceID: -1,
		SampleRate:    48000,
		Channels:      1,
		Latency:       LowLatency,
	}
}

// AudioDriver is the interface for device enumeration and capture
type AudioDriver interface {
	// ListDevices returns every input and output device
	ListDevices() ([]Device, error)

	// Initialize opens the capture stream with the given configuration
	Initialize(config Config) error

	// StartRecording starts capturing audio
	StartRecording() error

	// StopRecording stops capturing and returns 16-bit little-endian PCM
	StopRecording() ([]byte, error)

	// IsRecording returns whether capture is active
	IsRecording() bool

	// SetInputMuted makes the capture callback record silence
	SetInputMuted(muted bool)

	// Close releases all resources
	Close() error
}
