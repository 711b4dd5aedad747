// Package tray shows the call controls in the system tray.
package tray

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/yok-tottii/EzCall/internal/call"
	"github.com/yok-tottii/EzCall/internal/i18n"
	"github.com/yok-tottii/EzCall/internal/logger"
	"github.com/yok-tottii/EzCall/internal/route"
)

// outputDevices are the routes offered in the audio output submenu
var outputDevices = []route.AudioDevice{route.SpeakerPhone, route.WiredHeadset, route.Earpiece}

// Manager manages the system tray icon and menu
type Manager struct {
	mu         sync.RWMutex
	state      call.State
	ready      bool
	muted      bool
	speaker    bool
	active     route.AudioDevice
	available  route.DeviceSet
	translator *i18n.Translator
	log        *logger.Logger
	config     Config

	menuCall       *systray.MenuItem
	menuHangup     *systray.MenuItem
	menuMute       *systray.MenuItem
	menuSpeaker    *systray.MenuItem
	menuOutput     *systray.MenuItem
	outputItems    map[route.AudioDevice]*systray.MenuItem
	menuMicTest    *systray.MenuItem
	menuInvite     *systray.MenuItem
	menuSettings   *systray.MenuItem
	menuQuit       *systray.MenuItem
	shown          bool
	cancelHandlers context.CancelFunc

	// Icon cache
	iconIdle       []byte
	iconConnecting []byte
	iconInCall     []byte
}

// Config holds tray manager configuration
type Config struct {
	OnReady         func() // Called when systray is ready for initialization
	OnCall          func()
	OnHangup        func()
	OnToggleMute    func()
	OnToggleSpeaker func()
	OnSelectOutput  func(device route.AudioDevice)
	OnMicTest       func()
	OnCopyInvite    func()
	OnSettings      func()
	OnQuit          func()
	Translator      *i18n.Translator
	Logger          *logger.Logger
}

// NewManager creates a new tray manager
func NewManager(config Config) *Manager {
	translator := config.Translator
	if translator == nil {
		translator = i18n.NewDefaultTranslator(i18n.LanguageJapanese)
	}
	log := config.Logger
	if log == nil {
		log = logger.Discard()
	}

	m := &Manager{
		state:      call.StateIdle,
		translator: translator,
		log:        log.Component("tray"),
		config:     config,
	}

	// Load icons once at initialization
	m.iconIdle = m.loadIconData("call_idle.png", idleFallback())
	m.iconConnecting = m.loadIconData("call_connecting.png", connectingFallback())
	m.iconInCall = m.loadIconData("call_active.png", inCallFallback())

	return m
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// onReady is called when systray is ready
func (m *Manager) onReady() {
	t := m.translator

	m.menuCall = systray.AddMenuItem(t.Translate("menu.call"), "Call the other side of the room")
	m.menuHangup = systray.AddMenuItem(t.Translate("menu.hangup"), "End the current call")
	systray.AddSeparator()
	m.menuMute = systray.AddMenuItemCheckbox(t.Translate("menu.mute"), "Mute the microphone", false)
	m.menuSpeaker = systray.AddMenuItemCheckbox(t.Translate("menu.speaker"), "Prefer the speaker phone", false)
	m.menuOutput = systray.AddMenuItem(t.Translate("menu.output"), "Select the audio output")
	m.outputItems = make(map[route.AudioDevice]*systray.MenuItem, len(outputDevices))
	for _, d := range outputDevices {
		item := m.menuOutput.AddSubMenuItemCheckbox(t.DeviceLabel(d.String()), "", false)
		item.Hide()
		m.outputItems[d] = item
	}
	systray.AddSeparator()
	m.menuMicTest = systray.AddMenuItem(t.Translate("menu.mic_test"), "Record a few seconds and report the level")
	m.menuInvite = systray.AddMenuItem(t.Translate("menu.copy_invite"), "Copy the room link")
	m.menuSettings = systray.AddMenuItem(t.Translate("menu.settings"), "Open settings page")
	systray.AddSeparator()
	m.menuQuit = systray.AddMenuItem(t.Translate("menu.quit"), "Quit the application")

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.shown = true
	m.cancelHandlers = cancel
	m.mu.Unlock()

	m.refresh()

	// Start event loop
	go m.handleMenuEvents(ctx)
	for d, item := range m.outputItems {
		go m.handleOutputEvents(ctx, d, item)
	}

	// Call the OnReady callback if provided
	if m.config.OnReady != nil {
		m.config.OnReady()
	}
}

// onExit is called when systray is exiting
func (m *Manager) onExit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelHandlers != nil {
		m.cancelHandlers()
	}
	m.shown = false
}

// handleMenuEvents handles menu item clicks
func (m *Manager) handleMenuEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.menuCall.ClickedCh:
			invoke(m.config.OnCall)
		case <-m.menuHangup.ClickedCh:
			invoke(m.config.OnHangup)
		case <-m.menuMute.ClickedCh:
			invoke(m.config.OnToggleMute)
		case <-m.menuSpeaker.ClickedCh:
			invoke(m.config.OnToggleSpeaker)
		case <-m.menuMicTest.ClickedCh:
			invoke(m.config.OnMicTest)
		case <-m.menuInvite.ClickedCh:
			invoke(m.config.OnCopyInvite)
		case <-m.menuSettings.ClickedCh:
			invoke(m.config.OnSettings)
		case <-m.menuQuit.ClickedCh:
			invoke(m.config.OnQuit)
			systray.Quit()
			return
		}
	}
}

func (m *Manager) handleOutputEvents(ctx context.Context, device route.AudioDevice, item *systray.MenuItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-item.ClickedCh:
			if m.config.OnSelectOutput != nil {
				m.config.OnSelectOutput(device)
			}
		}
	}
}

func invoke(f func()) {
	if f != nil {
		f()
	}
}

// SetState updates the icon and the call items for a call state
func (m *Manager) SetState(state call.State, ready bool) {
	m.mu.Lock()
	m.state = state
	m.ready = ready
	m.mu.Unlock()
	m.refresh()
}

// SetMuted updates the mute checkbox
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
	m.refresh()
}

// SetSpeaker updates the speaker checkbox
func (m *Manager) SetSpeaker(on bool) {
	m.mu.Lock()
	m.speaker = on
	m.mu.Unlock()
	m.refresh()
}

// SetAudioDevices updates the audio output submenu
func (m *Manager) SetAudioDevices(active route.AudioDevice, available route.DeviceSet) {
	m.mu.Lock()
	m.active = active
	m.available = available
	m.mu.Unlock()
	m.refresh()
}

// view is what the menu shows for the current state
type view struct {
	icon        []byte
	tooltip     string
	callEnabled bool
	hangup      bool
	muted       bool
	speaker     bool
	outputs     map[route.AudioDevice]outputView
}

type outputView struct {
	visible bool
	checked bool
}

func (m *Manager) view() view {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v := view{
		tooltip:     "EzCall - " + m.translator.Translate("status."+string(m.state)),
		callEnabled: m.ready && m.state == call.StateIdle,
		hangup:      m.state == call.StateConnecting || m.state == call.StateConnected,
		muted:       m.muted,
		speaker:     m.speaker,
		outputs:     make(map[route.AudioDevice]outputView, len(outputDevices)),
	}
	switch m.state {
	case call.StateConnecting:
		v.icon = m.iconConnecting
	case call.StateConnected:
		v.icon = m.iconInCall
	default:
		v.icon = m.iconIdle
	}
	for _, d := range outputDevices {
		v.outputs[d] = outputView{visible: m.available.Has(d), checked: m.active == d}
	}
	return v
}

// refresh applies the current view to the tray once it is shown
func (m *Manager) refresh() {
	m.mu.RLock()
	shown := m.shown
	m.mu.RUnlock()
	if !shown {
		return
	}

	v := m.view()
	systray.SetIcon(v.icon)
	systray.SetTooltip(v.tooltip)
	setEnabled(m.menuCall, v.callEnabled)
	setEnabled(m.menuHangup, v.hangup)
	setChecked(m.menuMute, v.muted)
	setChecked(m.menuSpeaker, v.speaker)
	for d, item := range m.outputItems {
		ov := v.outputs[d]
		if ov.visible {
			item.Show()
		} else {
			item.Hide()
		}
		setChecked(item, ov.checked)
	}
}

func setEnabled(item *systray.MenuItem, enabled bool) {
	if enabled {
		item.Enable()
	} else {
		item.Disable()
	}
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// Quit quits the system tray
func (m *Manager) Quit() {
	systray.Quit()
}

// loadIconData loads an icon from the assets directory
// If the file cannot be loaded, it returns a fallback placeholder icon
func (m *Manager) loadIconData(filename string, fallback []byte) []byte {
	exe, err := os.Executable()
	if err != nil {
		m.log.Warn("実行ファイルのパスを取得できませんでした: %v", err)
		return fallback
	}

	// Try to load icon from assets/icon/ relative to executable
	iconPath := filepath.Join(filepath.Dir(exe), "assets", "icon", filename)
	data, err := os.ReadFile(iconPath)
	if err != nil {
		m.log.Debug("アイコンファイルを読み込めませんでした (%s): %v", iconPath, err)
		return fallback
	}

	return data
}

// idleFallback is the placeholder icon for an idle line
func idleFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x18, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xff, 0xff, 0x3f, 0x03, 0x00, 0x00,
		0x00, 0xff, 0xff, 0x03, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60,
		0x82,
	}
}

// inCallFallback is the placeholder icon during a call
func inCallFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xcf, 0xc0, 0xc0, 0xc0, 0xf0, 0x9f,
		0x81, 0x81, 0x81, 0x81, 0xff, 0x19, 0x18, 0x18,
		0x18, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0x03,
		0x00, 0x0c, 0x10, 0x02, 0x01, 0x8b, 0xd5, 0xf8,
		0x23, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
		0x44, 0xae, 0x42, 0x60, 0x82,
	}
}

// connectingFallback is the placeholder icon while a call is set up
func connectingFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xcf, 0xf0, 0x9f, 0xc1, 0xc8, 0xc0,
		0xc0, 0xc0, 0xff, 0x0c, 0x0c, 0x0c, 0xfc, 0xcf,
		0xc0, 0xc0, 0xc0, 0x00, 0x00, 0x00, 0x00, 0xff,
		0xff, 0x03, 0x00, 0x0c, 0x50, 0x02, 0x01, 0x3e,
		0x0a, 0xe4, 0x5b, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
}
