package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yok-tottii/EzCall/internal/route"
)

// Speakerphone preference values
const (
	SpeakerphoneAuto  = "auto"
	SpeakerphoneTrue  = "true"
	SpeakerphoneFalse = "false"
)

// Config holds application configuration
type Config struct {
	SignalingURL        string        `json:"signaling_url"`
	Room                string        `json:"room"`
	ICEServers          []string      `json:"ice_servers"`
	Speakerphone        string        `json:"speakerphone"` // "auto", "true" or "false"
	Earpiece            string        `json:"earpiece"`     // "auto", "yes" or "no"
	AudioInputDeviceID  int           `json:"audio_input_device_id"`
	AudioOutputDeviceID int           `json:"audio_output_device_id"`
	StartMuted          bool          `json:"start_muted"`
	Video               bool          `json:"video"`
	Hotkeys             HotkeysConfig `json:"hotkeys"`
	UILanguage          string        `json:"ui_language"`      // "ja" or "en"
	MicTestSeconds      int           `json:"mic_test_seconds"` // seconds
	HistoryPath         string        `json:"history_path"`     // empty means the default location
	SettingsPort        int           `json:"settings_port"`
	mu                  sync.RWMutex
}

// HotkeysConfig holds the global toggles
type HotkeysConfig struct {
	Mute    HotkeyConfig `json:"mute"`
	Speaker HotkeyConfig `json:"speaker"`
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Cmd   bool   `json:"cmd"` // Command on macOS, Super elsewhere
	Key   string `json:"key"` // e.g., "M"
}

// IsEmpty reports whether no key is bound
func (h HotkeyConfig) IsEmpty() bool {
	return h.Key == ""
}

// HasModifier reports whether at least one modifier is set
func (h HotkeyConfig) HasModifier() bool {
	return h.Ctrl || h.Shift || h.Alt || h.Cmd
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SignalingURL: "http://127.0.0.1:8088/ws",
		Room:         "default",
		ICEServers:   []string{"stun:stun.l.google.com:19302"},
		Speakerphone: SpeakerphoneAuto,
		Earpiece:     "auto",
		Hotkeys: HotkeysConfig{
			Mute:    HotkeyConfig{Ctrl: true, Alt: true, Key: "M"},
			Speaker: HotkeyConfig{Ctrl: true, Alt: true, Key: "S"},
		},
		AudioInputDeviceID:  -1, // -1 means use system default device
		AudioOutputDeviceID: -1,
		UILanguage:          "ja",
		MicTestSeconds:      5,
		SettingsPort:        18765,
	}
}

// Load loads configuration from the specified path
func Load(path string) (*Config, error) {
	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields missing from the file keep their defaults
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Speakerphone == "" {
		config.Speakerphone = SpeakerphoneAuto
	}

	return config, nil
}

// Save saves configuration to the specified path
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		homeDir, _ := os.UserHomeDir()
		dir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(dir, "EzCall", "config.json")
}

// Update updates configuration fields from a decoded JSON object
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range updates {
		switch key {
		case "signaling_url":
			if v, ok := value.(string); ok {
				if err := validateSignalingURL(v); err != nil {
					return err
				}
				c.SignalingURL = v
			}
		case "room":
			if v, ok := value.(string); ok {
				if strings.TrimSpace(v) == "" {
					return fmt.Errorf("room cannot be empty")
				}
				c.Room = v
			}
		case "ice_servers":
			if v, ok := value.([]interface{}); ok {
				servers := make([]string, 0, len(v))
				for _, s := range v {
					if str, ok := s.(string); ok && str != "" {
						servers = append(servers, str)
					}
				}
				c.ICEServers = servers
			}
		case "speakerphone":
			if v, ok := value.(string); ok {
				if !validSpeakerphone(v) {
					return fmt.Errorf("invalid speakerphone: %s", v)
				}
				c.Speakerphone = v
			}
		case "earpiece":
			if v, ok := value.(string); ok {
				if !validEarpiece(v) {
					return fmt.Errorf("invalid earpiece: %s", v)
				}
				c.Earpiece = v
			}
		case "audio_input_device_id":
			if v, ok := value.(float64); ok {
				c.AudioInputDeviceID = int(v)
			}
		case "audio_output_device_id":
			if v, ok := value.(float64); ok {
				c.AudioOutputDeviceID = int(v)
			}
		case "start_muted":
			if v, ok := value.(bool); ok {
				c.StartMuted = v
			}
		case "video":
			if v, ok := value.(bool); ok {
				c.Video = v
			}
		case "ui_language":
			if v, ok := value.(string); ok {
				if v != "ja" && v != "en" {
					return fmt.Errorf("invalid ui_language: %s", v)
				}
				c.UILanguage = v
			}
		case "mic_test_seconds":
			if v, ok := value.(float64); ok {
				c.MicTestSeconds = int(v)
			}
		case "history_path":
			if v, ok := value.(string); ok {
				c.HistoryPath = v
			}
		case "hotkeys":
			if v, ok := value.(map[string]interface{}); ok {
				if m, ok := v["mute"].(map[string]interface{}); ok {
					updateHotkey(&c.Hotkeys.Mute, m)
				}
				if s, ok := v["speaker"].(map[string]interface{}); ok {
					updateHotkey(&c.Hotkeys.Speaker, s)
				}
			}
		}
	}

	return nil
}

func updateHotkey(h *HotkeyConfig, v map[string]interface{}) {
	if ctrl, ok := v["ctrl"].(bool); ok {
		h.Ctrl = ctrl
	}
	if shift, ok := v["shift"].(bool); ok {
		h.Shift = shift
	}
	if alt, ok := v["alt"].(bool); ok {
		h.Alt = alt
	}
	if cmd, ok := v["cmd"].(bool); ok {
		h.Cmd = cmd
	}
	if key, ok := v["key"].(string); ok {
		h.Key = key
	}
}

// SetHotkey replaces one of the hotkeys. name is "mute" or "speaker".
func (c *Config) SetHotkey(name string, h HotkeyConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch name {
	case "mute":
		c.Hotkeys.Mute = h
	case "speaker":
		c.Hotkeys.Speaker = h
	default:
		return fmt.Errorf("unknown hotkey: %s", name)
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		SignalingURL:        c.SignalingURL,
		Room:                c.Room,
		ICEServers:          append([]string(nil), c.ICEServers...),
		Speakerphone:        c.Speakerphone,
		Earpiece:            c.Earpiece,
		AudioInputDeviceID:  c.AudioInputDeviceID,
		AudioOutputDeviceID: c.AudioOutputDeviceID,
		StartMuted:          c.StartMuted,
		Video:               c.Video,
		Hotkeys:             c.Hotkeys,
		UILanguage:          c.UILanguage,
		MicTestSeconds:      c.MicTestSeconds,
		HistoryPath:         c.HistoryPath,
		SettingsPort:        c.SettingsPort,
	}
}

// DefaultOutput maps the speakerphone preference to the default route.
// "false" selects the earpiece; "auto" and "true" select the speaker.
func (c *Config) DefaultOutput() route.AudioDevice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Speakerphone == SpeakerphoneFalse {
		return route.Earpiece
	}
	return route.SpeakerPhone
}

// InviteURL returns the signaling URL with the room attached
func (c *Config) InviteURL() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, err := url.Parse(c.SignalingURL)
	if err != nil {
		return "", fmt.Errorf("invalid signaling_url: %w", err)
	}
	q := u.Query()
	q.Set("room", c.Room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// GetHistoryPath returns the expanded history path, or "" for the default
func (c *Config) GetHistoryPath() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return ExpandPath(c.HistoryPath)
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := validateSignalingURL(c.SignalingURL); err != nil {
		return err
	}

	if strings.TrimSpace(c.Room) == "" {
		return fmt.Errorf("room cannot be empty")
	}

	for _, s := range c.ICEServers {
		if !strings.HasPrefix(s, "stun:") && !strings.HasPrefix(s, "turn:") && !strings.HasPrefix(s, "turns:") {
			return fmt.Errorf("invalid ice server: %s (must start with stun:, turn: or turns:)", s)
		}
	}

	if !validSpeakerphone(c.Speakerphone) {
		return fmt.Errorf("invalid speakerphone: %s (must be 'auto', 'true' or 'false')", c.Speakerphone)
	}

	if !validEarpiece(c.Earpiece) {
		return fmt.Errorf("invalid earpiece: %s (must be 'auto', 'yes' or 'no')", c.Earpiece)
	}

	if c.UILanguage != "ja" && c.UILanguage != "en" {
		return fmt.Errorf("invalid ui_language: %s (must be 'ja' or 'en')", c.UILanguage)
	}

	if c.MicTestSeconds <= 0 || c.MicTestSeconds > 30 {
		return fmt.Errorf("invalid mic_test_seconds: %d (must be between 1 and 30 seconds)", c.MicTestSeconds)
	}

	if c.SettingsPort < 0 || c.SettingsPort > 65535 {
		return fmt.Errorf("invalid settings_port: %d", c.SettingsPort)
	}

	return nil
}

func validateSignalingURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid signaling_url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("invalid signaling_url: %s (scheme must be http, https, ws or wss)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid signaling_url: %s (missing host)", raw)
	}
	return nil
}

func validSpeakerphone(v string) bool {
	return v == SpeakerphoneAuto || v == SpeakerphoneTrue || v == SpeakerphoneFalse
}

func validEarpiece(v string) bool {
	switch v {
	case "", "auto", "yes", "no", "true", "false":
		return true
	}
	return false
}
