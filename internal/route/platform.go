package route

// Mode is the platform audio mode.
type Mode int

const (
	// ModeInvalid is reported before any mode has been captured
	ModeInvalid Mode = iota - 1
	// ModeNormal is regular media playback
	ModeNormal
	// ModeInCommunication is the mode used during a call
	ModeInCommunication
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeInCommunication:
		return "in_communication"
	default:
		return "invalid"
	}
}

// FocusChange is delivered by the platform when audio focus moves.
type FocusChange int

const (
	FocusInvalid FocusChange = iota
	FocusGain
	FocusGainTransient
	FocusGainTransientExclusive
	FocusGainTransientMayDuck
	FocusLoss
	FocusLossTransient
	FocusLossTransientCanDuck
)

func (f FocusChange) String() string {
	switch f {
	case FocusGain:
		return "AUDIOFOCUS_GAIN"
	case FocusGainTransient:
		return "AUDIOFOCUS_GAIN_TRANSIENT"
	case FocusGainTransientExclusive:
		return "AUDIOFOCUS_GAIN_TRANSIENT_EXCLUSIVE"
	case FocusGainTransientMayDuck:
		return "AUDIOFOCUS_GAIN_TRANSIENT_MAY_DUCK"
	case FocusLoss:
		return "AUDIOFOCUS_LOSS"
	case FocusLossTransient:
		return "AUDIOFOCUS_LOSS_TRANSIENT"
	case FocusLossTransientCanDuck:
		return "AUDIOFOCUS_LOSS_TRANSIENT_CAN_DUCK"
	default:
		return "AUDIOFOCUS_INVALID"
	}
}

// Platform is the audio service the Manager drives. Implementations live
// outside this package (internal/audio for desktops, fakes in tests).
type Platform interface {
	SpeakerphoneOn() bool
	SetSpeakerphoneOn(on bool) error

	MicrophoneMute() bool
	SetMicrophoneMute(mute bool) error

	Mode() Mode
	SetMode(mode Mode) error

	// RequestFocus asks for transient exclusive use of the audio path.
	// onChange may be called from any goroutine.
	RequestFocus(onChange func(FocusChange)) error
	AbandonFocus() error

	// HasEarpiece reports whether the hardware has a receiver.
	HasEarpiece() bool
	// HasWiredHeadset enumerates connected devices for a headset or USB audio device.
	HasWiredHeadset() bool
	// SubscribeHeadset delivers plug/unplug events until the returned
	// function is called. Events may arrive on any goroutine.
	SubscribeHeadset(onChange func(plugged bool)) (unsubscribe func(), err error)
}

// Listener receives the resolved device whenever it or the available set changes.
type Listener interface {
	OnAudioDeviceChanged(active AudioDevice, available DeviceSet)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(active AudioDevice, available DeviceSet)

// OnAudioDeviceChanged calls f(active, available)
func (f ListenerFunc) OnAudioDeviceChanged(active AudioDevice, available DeviceSet) {
	f(active, available)
}

// Listeners fans a notification out to several listeners in order.
type Listeners []Listener

// OnAudioDeviceChanged calls every non-nil listener
func (ls Listeners) OnAudioDeviceChanged(active AudioDevice, available DeviceSet) {
	for _, l := range ls {
		if l != nil {
			l.OnAudioDeviceChanged(active, available)
		}
	}
}
