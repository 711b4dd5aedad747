// Package hotkey registers the global mute and speaker toggles.
package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"github.com/yok-tottii/EzCall/internal/config"
)

// Action is what a hotkey toggles
type Action int

const (
	// ToggleMute flips the microphone mute
	ToggleMute Action = iota
	// ToggleSpeaker flips between speaker phone and earpiece
	ToggleSpeaker
)

func (a Action) String() string {
	switch a {
	case ToggleMute:
		return "mute"
	case ToggleSpeaker:
		return "speaker"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Binding maps a key combination to an action
type Binding struct {
	Action    Action
	Modifiers []hotkey.Modifier
	Key       hotkey.Key
}

// String returns the display form, e.g. "⌃⌥M"
func (b Binding) String() string {
	return FormatHotkey(b.Modifiers, b.Key)
}

// Bindings converts the configured hotkeys. Empty entries are skipped.
func Bindings(cfg config.HotkeysConfig) ([]Binding, error) {
	var bindings []Binding
	for _, entry := range []struct {
		action Action
		hk     config.HotkeyConfig
	}{
		{ToggleMute, cfg.Mute},
		{ToggleSpeaker, cfg.Speaker},
	} {
		if entry.hk.IsEmpty() {
			continue
		}
		mods, key, err := Parse(entry.hk)
		if err != nil {
			return nil, fmt.Errorf("%s hotkey: %w", entry.action, err)
		}
		bindings = append(bindings, Binding{Action: entry.action, Modifiers: mods, Key: key})
	}
	if len(bindings) == 2 && shortcutOf(bindings[0].Modifiers, bindings[0].Key) == shortcutOf(bindings[1].Modifiers, bindings[1].Key) {
		return nil, fmt.Errorf("mute and speaker hotkeys are identical: %s", bindings[0])
	}
	return bindings, nil
}

// Parse converts a configured hotkey to library modifiers and key
func Parse(h config.HotkeyConfig) ([]hotkey.Modifier, hotkey.Key, error) {
	key, ok := ParseKey(h.Key)
	if !ok {
		return nil, 0, fmt.Errorf("unknown key: %q", h.Key)
	}

	var mods []hotkey.Modifier
	if h.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if h.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if h.Alt {
		mods = append(mods, modAlt)
	}
	if h.Cmd {
		mods = append(mods, modSuper)
	}
	return mods, key, nil
}

// Manager manages global hotkey registration and events
type Manager struct {
	hks       []*hotkey.Hotkey
	bindings  []Binding
	eventChan chan Action
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates a new hotkey manager with the default bindings
// Default: Ctrl+Alt+M (mute), Ctrl+Alt+S (speaker)
func New() *Manager {
	return &Manager{
		bindings: []Binding{
			{Action: ToggleMute, Modifiers: []hotkey.Modifier{hotkey.ModCtrl, modAlt}, Key: hotkey.KeyM},
			{Action: ToggleSpeaker, Modifiers: []hotkey.Modifier{hotkey.ModCtrl, modAlt}, Key: hotkey.KeyS},
		},
		eventChan: make(chan Action, 10),
		stopChan:  make(chan struct{}),
	}
}

// Register registers the bindings with the system. Either all of them are
// registered or none.
func (m *Manager) Register(bindings []Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkeys are already running, call Close() first")
	}

	var hks []*hotkey.Hotkey
	for _, b := range bindings {
		hk := hotkey.New(b.Modifiers, b.Key)
		if err := hk.Register(); err != nil {
			for _, registered := range hks {
				_ = registered.Unregister()
			}
			return fmt.Errorf("failed to register %s hotkey %s: %w", b.Action, b, err)
		}
		hks = append(hks, hk)
	}

	m.bindings = append([]Binding(nil), bindings...)
	m.hks = hks

	// Recreate channels (they may have been closed by a previous Close())
	m.stopChan = make(chan struct{})
	m.eventChan = make(chan Action, 10)
	m.running = true

	for i, hk := range hks {
		m.wg.Add(1)
		go m.listen(hk, bindings[i].Action)
	}

	return nil
}

// RegisterDefault registers the current bindings
func (m *Manager) RegisterDefault() error {
	return m.Register(m.GetBindings())
}

// listen forwards key presses of one hotkey as actions
func (m *Manager) listen(hk *hotkey.Hotkey, action Action) {
	defer m.wg.Done()

	for {
		select {
		case <-hk.Keydown():
			select {
			case m.eventChan <- action:
			default:
				// drop while the consumer is behind
			}
		case <-hk.Keyup():
		case <-m.stopChan:
			return
		}
	}
}

// Events returns the event channel for receiving hotkey actions
func (m *Manager) Events() <-chan Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventChan
}

// Close unregisters the hotkeys and stops listening
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	close(m.stopChan)
	m.wg.Wait()

	// 注意: エラーが発生しても続行し、必ずクリーンアップを実行する
	var unregisterErr error
	for _, hk := range m.hks {
		if err := hk.Unregister(); err != nil && unregisterErr == nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
	}
	m.hks = nil

	close(m.eventChan)

	// Unregister() が失敗しても次の Register() が可能になる
	m.running = false

	return unregisterErr
}

// IsRunning returns whether the hotkeys are currently registered
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetBindings returns a deep copy of the current bindings
func (m *Manager) GetBindings() []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Binding, len(m.bindings))
	for i, b := range m.bindings {
		out[i] = b
		out[i].Modifiers = append([]hotkey.Modifier(nil), b.Modifiers...)
	}
	return out
}
