package tray

import (
	"sync"
	"testing"

	"github.com/yok-tottii/EzCall/internal/call"
	"github.com/yok-tottii/EzCall/internal/i18n"
	"github.com/yok-tottii/EzCall/internal/route"
)

func newTestManager() *Manager {
	return NewManager(Config{Translator: i18n.NewDefaultTranslator(i18n.LanguageEnglish)})
}

func TestNewManager(t *testing.T) {
	manager := newTestManager()

	if manager == nil {
		t.Fatal("Expected manager to be created")
	}

	if manager.state != call.StateIdle {
		t.Errorf("Expected initial state to be idle, got %v", manager.state)
	}

	if len(manager.iconIdle) == 0 || len(manager.iconConnecting) == 0 || len(manager.iconInCall) == 0 {
		t.Error("Expected icons to be loaded or fall back")
	}
}

func TestNilTranslatorDefaultsToJapanese(t *testing.T) {
	manager := NewManager(Config{})

	if got := manager.view().tooltip; got != "EzCall - 待機中" {
		t.Errorf("Unexpected tooltip %q", got)
	}
}

func TestViewFollowsCallState(t *testing.T) {
	manager := newTestManager()

	tests := []struct {
		state       call.State
		ready       bool
		tooltip     string
		callEnabled bool
		hangup      bool
		icon        []byte
	}{
		{call.StateIdle, false, "EzCall - Idle", false, false, manager.iconIdle},
		{call.StateIdle, true, "EzCall - Idle", true, false, manager.iconIdle},
		{call.StateConnecting, true, "EzCall - Connecting", false, true, manager.iconConnecting},
		{call.StateConnected, true, "EzCall - In Call", false, true, manager.iconInCall},
		{call.StateEnded, true, "EzCall - Ended", false, false, manager.iconIdle},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			manager.SetState(tt.state, tt.ready)
			v := manager.view()

			if v.tooltip != tt.tooltip {
				t.Errorf("Expected tooltip %q, got %q", tt.tooltip, v.tooltip)
			}
			if v.callEnabled != tt.callEnabled {
				t.Errorf("Expected call enabled=%v, got %v", tt.callEnabled, v.callEnabled)
			}
			if v.hangup != tt.hangup {
				t.Errorf("Expected hangup enabled=%v, got %v", tt.hangup, v.hangup)
			}
			if string(v.icon) != string(tt.icon) {
				t.Error("Unexpected icon")
			}
		})
	}
}

func TestViewOutputs(t *testing.T) {
	manager := newTestManager()

	manager.SetAudioDevices(route.WiredHeadset, route.NewDeviceSet(route.SpeakerPhone, route.WiredHeadset))
	v := manager.view()

	if !v.outputs[route.SpeakerPhone].visible || v.outputs[route.SpeakerPhone].checked {
		t.Errorf("Unexpected speaker phone item %+v", v.outputs[route.SpeakerPhone])
	}

	if !v.outputs[route.WiredHeadset].visible || !v.outputs[route.WiredHeadset].checked {
		t.Errorf("Unexpected headset item %+v", v.outputs[route.WiredHeadset])
	}

	if v.outputs[route.Earpiece].visible {
		t.Error("Expected earpiece to be hidden")
	}
}

func TestMuteAndSpeaker(t *testing.T) {
	manager := newTestManager()

	manager.SetMuted(true)
	manager.SetSpeaker(true)
	v := manager.view()

	if !v.muted || !v.speaker {
		t.Errorf("Expected muted and speaker, got %+v", v)
	}

	manager.SetMuted(false)
	if manager.view().muted {
		t.Error("Expected unmuted")
	}
}

func TestFallbackIconsDiffer(t *testing.T) {
	idle := idleFallback()
	connecting := connectingFallback()
	inCall := inCallFallback()

	if string(idle) == string(connecting) || string(idle) == string(inCall) || string(connecting) == string(inCall) {
		t.Error("Expected fallback icons to be different")
	}
}

func TestInvoke(t *testing.T) {
	invoke(nil)

	called := false
	invoke(func() { called = true })
	if !called {
		t.Error("Expected callback to be called")
	}
}

func TestConcurrentStateUpdates(t *testing.T) {
	manager := newTestManager()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			manager.SetState(call.StateConnecting, true)
			manager.SetAudioDevices(route.SpeakerPhone, route.NewDeviceSet(route.SpeakerPhone))
			manager.SetState(call.StateIdle, true)
		}()
	}
	wg.Wait()

	if manager.view().tooltip != "EzCall - Idle" {
		t.Errorf("Unexpected final tooltip %q", manager.view().tooltip)
	}
}
