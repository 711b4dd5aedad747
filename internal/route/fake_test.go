package route

import "errors"

// fakePlatform records every call the Manager makes.
type fakePlatform struct {
	earpiece     bool
	headset      bool
	speakerphone bool
	micMute      bool
	mode         Mode

	focusRequests  int
	focusAbandons  int
	subscriptions  int
	unsubscribed   int
	speakerToggles []bool
	subscribeErr   error

	onHeadset func(bool)
	onFocus   func(FocusChange)
}

func newFakePlatform(earpiece bool) *fakePlatform {
	return &fakePlatform{earpiece: earpiece, mode: ModeNormal}
}

func (f *fakePlatform) SpeakerphoneOn() bool { return f.speakerphone }

func (f *fakePlatform) SetSpeakerphoneOn(on bool) error {
	f.speakerphone = on
	f.speakerToggles = append(f.speakerToggles, on)
	return nil
}

func (f *fakePlatform) MicrophoneMute() bool { return f.micMute }

func (f *fakePlatform) SetMicrophoneMute(mute bool) error {
	f.micMute = mute
	return nil
}

func (f *fakePlatform) Mode() Mode { return f.mode }

func (f *fakePlatform) SetMode(mode Mode) error {
	f.mode = mode
	return nil
}

func (f *fakePlatform) RequestFocus(onChange func(FocusChange)) error {
	f.focusRequests++
	f.onFocus = onChange
	return nil
}

func (f *fakePlatform) AbandonFocus() error {
	f.focusAbandons++
	return nil
}

func (f *fakePlatform) HasEarpiece() bool     { return f.earpiece }
func (f *fakePlatform) HasWiredHeadset() bool { return f.headset }

func (f *fakePlatform) SubscribeHeadset(onChange func(bool)) (func(), error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscriptions++
	f.onHeadset = onChange
	return func() {
		f.unsubscribed++
		f.onHeadset = nil
	}, nil
}

var errNoUdev = errors.New("no udev")

// recorder is a Listener that keeps every notification.
type recorder struct {
	calls []notification
}

type notification struct {
	active    AudioDevice
	available DeviceSet
}

func (r *recorder) OnAudioDeviceChanged(active AudioDevice, available DeviceSet) {
	r.calls = append(r.calls, notification{active, available})
}

func (r *recorder) last() notification {
	if len(r.calls) == 0 {
		return notification{}
	}
	return r.calls[len(r.calls)-1]
}

func (r *recorder) reset() { r.calls = nil }
