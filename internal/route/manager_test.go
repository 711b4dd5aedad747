package route

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedManager(t *testing.T, p *fakePlatform, def AudioDevice) (*Manager, *recorder) {
	t.Helper()
	m := New(p, Config{DefaultDevice: def})
	rec := &recorder{}
	m.Start(rec)
	require.Equal(t, Running, m.State())
	return m, rec
}

func TestNewAppliesDefaultPolicy(t *testing.T) {
	tests := []struct {
		name     string
		earpiece bool
		def      AudioDevice
		want     AudioDevice
	}{
		{"speaker", true, SpeakerPhone, SpeakerPhone},
		{"earpiece with receiver", true, Earpiece, Earpiece},
		{"earpiece without receiver", false, Earpiece, SpeakerPhone},
		{"headset is not a default", true, WiredHeadset, SpeakerPhone},
		{"zero value", true, None, SpeakerPhone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(newFakePlatform(tt.earpiece), Config{DefaultDevice: tt.def})
			assert.Equal(t, tt.want, m.DefaultDevice())
			assert.Equal(t, Uninitialized, m.State())
			assert.Equal(t, None, m.ActiveDevice())
			assert.True(t, m.AvailableDevices().Empty())
		})
	}
}

func TestStartNotifiesOnce(t *testing.T) {
	p := newFakePlatform(true)
	m, rec := startedManager(t, p, SpeakerPhone)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, SpeakerPhone, rec.last().active)
	assert.Equal(t, NewDeviceSet(SpeakerPhone, Earpiece), rec.last().available)
	assert.Equal(t, SpeakerPhone, m.ActiveDevice())
	assert.Equal(t, None, m.UserSelectedDevice())
	assert.True(t, p.speakerphone)
	assert.Equal(t, ModeInCommunication, p.mode)
}

func TestSetDefaultEarpieceScenario(t *testing.T) {
	p := newFakePlatform(true)
	m, rec := startedManager(t, p, SpeakerPhone)
	rec.reset()

	m.SetDefaultDevice(Earpiece)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, Earpiece, m.ActiveDevice())
	assert.Equal(t, NewDeviceSet(SpeakerPhone, Earpiece), m.AvailableDevices())
	assert.Equal(t, notification{Earpiece, NewDeviceSet(SpeakerPhone, Earpiece)}, rec.last())
	assert.False(t, p.speakerphone)
}

func TestSetDefaultEarpieceWithoutReceiverFallsBack(t *testing.T) {
	p := newFakePlatform(false)
	m, rec := startedManager(t, p, SpeakerPhone)
	rec.reset()

	m.SetDefaultDevice(Earpiece)

	assert.Equal(t, SpeakerPhone, m.DefaultDevice())
	assert.Equal(t, SpeakerPhone, m.ActiveDevice())
	assert.Equal(t, NewDeviceSet(SpeakerPhone), m.AvailableDevices())
	assert.Empty(t, rec.calls)
}

func TestSetDefaultRejectsInvalidDevices(t *testing.T) {
	p := newFakePlatform(true)
	m, rec := startedManager(t, p, Earpiece)
	rec.reset()

	m.SetDefaultDevice(WiredHeadset)
	m.SetDefaultDevice(None)
	m.SetDefaultDevice(AudioDevice(99))

	assert.Equal(t, Earpiece, m.DefaultDevice())
	assert.Equal(t, Earpiece, m.ActiveDevice())
	assert.Empty(t, rec.calls)
}

func TestHeadsetPlugAndUnplug(t *testing.T) {
	p := newFakePlatform(true)
	m, rec := startedManager(t, p, SpeakerPhone)
	rec.reset()

	m.OnHardwareChanged(true)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, WiredHeadset, m.ActiveDevice())
	assert.Equal(t, NewDeviceSet(WiredHeadset), m.AvailableDevices())
	assert.False(t, p.speakerphone)

	rec.reset()
	m.OnHardwareChanged(false)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, SpeakerPhone, m.ActiveDevice())
	assert.Equal(t, NewDeviceSet(SpeakerPhone, Earpiece), m.AvailableDevices())
	assert.True(t, p.speakerphone)
}

func TestHeadsetOverridesEarpieceDefault(t *testing.T) {
	p := newFakePlatform(true)
	m, _ := startedManager(t, p, Earpiece)

	m.OnHardwareChanged(true)
	assert.Equal(t, WiredHeadset, m.ActiveDevice())

	m.SetDefaultDevice(SpeakerPhone)
	assert.Equal(t, WiredHeadset, m.ActiveDevice(), "headset keeps precedence over a new default")

	m.OnHardwareChanged(false)
	assert.Equal(t, SpeakerPhone, m.ActiveDevice())
}

func TestHeadsetPresentAtStart(t *testing.T) {
	p := newFakePlatform(true)
	p.headset = true
	m, rec := startedManager(t, p, SpeakerPhone)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, WiredHeadset, m.ActiveDevice())
	assert.Equal(t, NewDeviceSet(WiredHeadset), m.AvailableDevices())
}

func TestUserSelectionFollowsHardware(t *testing.T) {
	p := newFakePlatform(true)
	m, _ := startedManager(t, p, SpeakerPhone)

	m.SelectDevice(SpeakerPhone)
	assert.Equal(t, SpeakerPhone, m.UserSelectedDevice())

	m.OnHardwareChanged(true)
	assert.Equal(t, WiredHeadset, m.UserSelectedDevice())

	m.OnHardwareChanged(false)
	assert.Equal(t, SpeakerPhone, m.UserSelectedDevice())
}

func TestSelectUnavailableDeviceIsStillRecorded(t *testing.T) {
	p := newFakePlatform(false)
	m, rec := startedManager(t, p, SpeakerPhone)
	rec.reset()

	m.SelectDevice(Earpiece)

	assert.Equal(t, Earpiece, m.UserSelectedDevice())
	assert.Equal(t, SpeakerPhone, m.ActiveDevice())
	assert.Empty(t, rec.calls)
}

func TestNoNotificationWithoutChange(t *testing.T) {
	p := newFakePlatform(true)
	m, rec := startedManager(t, p, SpeakerPhone)
	rec.reset()

	m.SetDefaultDevice(SpeakerPhone)
	m.SelectDevice(SpeakerPhone)
	m.OnHardwareChanged(false)

	assert.Empty(t, rec.calls)
}

func TestStartIsIdempotent(t *testing.T) {
	p := newFakePlatform(true)
	m, rec := startedManager(t, p, SpeakerPhone)

	other := &recorder{}
	m.Start(other)

	assert.Equal(t, 1, p.focusRequests)
	assert.Equal(t, 1, p.subscriptions)
	assert.Len(t, rec.calls, 1)
	assert.Empty(t, other.calls)
}

func TestStopRestoresPlatform(t *testing.T) {
	p := newFakePlatform(true)
	p.micMute = true
	p.speakerphone = false
	p.mode = ModeNormal

	m, rec := startedManager(t, p, SpeakerPhone)
	assert.False(t, p.micMute)
	assert.True(t, p.speakerphone)

	m.Stop()

	assert.Equal(t, Uninitialized, m.State())
	assert.True(t, p.micMute)
	assert.False(t, p.speakerphone)
	assert.Equal(t, ModeNormal, p.mode)
	assert.Equal(t, 1, p.focusAbandons)
	assert.Equal(t, 1, p.unsubscribed)

	// stop again is a no-op
	m.Stop()
	assert.Equal(t, 1, p.focusAbandons)

	// the listener is detached
	rec.reset()
	m.OnHardwareChanged(true)
	assert.Empty(t, rec.calls)
}

func TestRestartAfterStop(t *testing.T) {
	p := newFakePlatform(true)
	m, _ := startedManager(t, p, SpeakerPhone)
	m.SelectDevice(Earpiece)
	m.Stop()

	rec := &recorder{}
	m.Start(rec)

	assert.Equal(t, Running, m.State())
	assert.Equal(t, 2, p.focusRequests)
	assert.Equal(t, 2, p.subscriptions)
	assert.Equal(t, None, m.UserSelectedDevice(), "start resets the user selection")
	require.Len(t, rec.calls, 1, "start always reports the freshly computed set")
}

func TestStopWithoutStart(t *testing.T) {
	p := newFakePlatform(true)
	m := New(p, Config{})
	m.Stop()
	assert.Equal(t, 0, p.focusAbandons)
	assert.Equal(t, Uninitialized, m.State())
}

func TestHeadsetEventsArePosted(t *testing.T) {
	p := newFakePlatform(true)
	var queue []func()
	m := New(p, Config{DefaultDevice: SpeakerPhone, Post: func(f func()) { queue = append(queue, f) }})
	rec := &recorder{}
	m.Start(rec)
	rec.reset()

	require.NotNil(t, p.onHeadset)
	p.onHeadset(true)

	assert.Equal(t, SpeakerPhone, m.ActiveDevice(), "event must not apply before the loop runs it")
	require.Len(t, queue, 1)
	queue[0]()
	assert.Equal(t, WiredHeadset, m.ActiveDevice())
	assert.Len(t, rec.calls, 1)
}

func TestQueuedHeadsetEventsAfterStopAreDropped(t *testing.T) {
	p := newFakePlatform(true)
	p.speakerphone = false
	var queue []func()
	m := New(p, Config{DefaultDevice: SpeakerPhone, Post: func(f func()) { queue = append(queue, f) }})
	rec := &recorder{}
	m.Start(rec)

	onHeadset := p.onHeadset
	require.NotNil(t, onHeadset)
	onHeadset(true)
	onHeadset(false)
	require.Len(t, queue, 2)

	m.Stop()
	require.False(t, p.speakerphone, "Stop restores the saved speakerphone flag")
	toggles := len(p.speakerToggles)
	rec.reset()

	for _, f := range queue {
		f()
	}
	assert.Equal(t, Uninitialized, m.State())
	assert.False(t, p.speakerphone)
	assert.Len(t, p.speakerToggles, toggles)
	assert.Empty(t, rec.calls)
}

func TestHeadsetEventsFromEarlierSessionAreDropped(t *testing.T) {
	p := newFakePlatform(true)
	var queue []func()
	m := New(p, Config{DefaultDevice: SpeakerPhone, Post: func(f func()) { queue = append(queue, f) }})
	m.Start(&recorder{})

	stale := p.onHeadset
	stale(true)
	m.Stop()
	m.Start(&recorder{})

	for _, f := range queue {
		f()
	}
	assert.Equal(t, SpeakerPhone, m.ActiveDevice())
	assert.False(t, m.Snapshot().HasWiredHeadset)
}

func TestSubscribeFailureKeepsRunning(t *testing.T) {
	p := newFakePlatform(true)
	p.subscribeErr = errNoUdev
	m, rec := startedManager(t, p, SpeakerPhone)

	assert.Len(t, rec.calls, 1)
	m.Stop()
	assert.Equal(t, 0, p.unsubscribed)
	assert.Equal(t, 1, p.focusAbandons)
}

func TestFocusChangesAreAccepted(t *testing.T) {
	p := newFakePlatform(true)
	startedManager(t, p, SpeakerPhone)
	require.NotNil(t, p.onFocus)
	p.onFocus(FocusLossTransient)
}

func TestSnapshot(t *testing.T) {
	p := newFakePlatform(true)
	m, _ := startedManager(t, p, SpeakerPhone)
	m.OnHardwareChanged(true)

	s := m.Snapshot()
	assert.Equal(t, Running, s.State)
	assert.Equal(t, WiredHeadset, s.Active)
	assert.Equal(t, NewDeviceSet(WiredHeadset), s.Available)
	assert.Equal(t, SpeakerPhone, s.Default)
	assert.True(t, s.HasWiredHeadset)
	assert.True(t, s.HasEarpiece)
}

// Random operation sequences never leave the active device outside the
// available set, and a present headset always wins.
func TestActiveDeviceAlwaysAvailable(t *testing.T) {
	devices := []AudioDevice{None, SpeakerPhone, WiredHeadset, Earpiece}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		p := newFakePlatform(rng.Intn(2) == 0)
		p.headset = rng.Intn(3) == 0
		m, _ := startedManager(t, p, devices[rng.Intn(len(devices))])

		headset := p.headset
		for step := 0; step < 50; step++ {
			switch rng.Intn(3) {
			case 0:
				m.SetDefaultDevice(devices[rng.Intn(len(devices))])
			case 1:
				m.SelectDevice(devices[rng.Intn(len(devices))])
			case 2:
				headset = rng.Intn(2) == 0
				m.OnHardwareChanged(headset)
			}

			avail := m.AvailableDevices()
			require.False(t, avail.Empty())
			require.True(t, avail.Has(m.ActiveDevice()),
				"run %d step %d: active %s not in %s", run, step, m.ActiveDevice(), avail)
			if headset {
				require.Equal(t, WiredHeadset, m.ActiveDevice())
			}
		}
	}
}

func TestListenersFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var fromFunc AudioDevice
	ls := Listeners{a, nil, b, ListenerFunc(func(active AudioDevice, _ DeviceSet) { fromFunc = active })}

	ls.OnAudioDeviceChanged(Earpiece, NewDeviceSet(Earpiece))

	assert.Len(t, a.calls, 1)
	assert.Len(t, b.calls, 1)
	assert.Equal(t, Earpiece, fromFunc)
}
