// Package i18n holds the ja/en UI strings.
package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Language represents a supported language
type Language string

const (
	// Japanese language
	LanguageJapanese Language = "ja"
	// English language
	LanguageEnglish Language = "en"
)

// Translator manages translations for the application
type Translator struct {
	currentLanguage Language
	translations    map[Language]map[string]string
	mu              sync.RWMutex
}

// NewTranslator creates a new translator with default language
func NewTranslator(language Language) *Translator {
	return &Translator{
		currentLanguage: language,
		translations:    make(map[Language]map[string]string),
	}
}

// SetLanguage sets the current language
func (t *Translator) SetLanguage(language Language) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentLanguage = language
}

// GetLanguage returns the current language
func (t *Translator) GetLanguage() Language {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentLanguage
}

// Translate translates a key in the current language
func (t *Translator) Translate(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if translations, ok := t.translations[t.currentLanguage]; ok {
		if text, ok := translations[key]; ok {
			return text
		}
	}

	// Fallback to English if translation not found
	if t.currentLanguage != LanguageEnglish {
		if translations, ok := t.translations[LanguageEnglish]; ok {
			if text, ok := translations[key]; ok {
				return text
			}
		}
	}

	// Return key itself if no translation found
	return key
}

// TranslateWithFormat translates a key and formats with parameters
func (t *Translator) TranslateWithFormat(key string, params map[string]string) string {
	text := t.Translate(key)

	// Simple string replacement for parameters
	for param, value := range params {
		placeholder := fmt.Sprintf("{%s}", param)
		text = strings.ReplaceAll(text, placeholder, value)
	}

	return text
}

// GetAllTranslations returns all translations for the current language
func (t *Translator) GetAllTranslations() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if translations, ok := t.translations[t.currentLanguage]; ok {
		// Return a copy to prevent external modifications
		result := make(map[string]string)
		for k, v := range translations {
			result[k] = v
		}
		return result
	}

	return make(map[string]string)
}

// ValidateLanguage validates that a language is supported
func ValidateLanguage(language string) bool {
	return language == string(LanguageJapanese) || language == string(LanguageEnglish)
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Japanese})

// MatchLanguage picks the supported language closest to an Accept-Language
// style list or a locale such as "ja_JP.UTF-8". It returns English when
// nothing matches.
func MatchLanguage(preferred string) Language {
	preferred = strings.TrimSpace(preferred)
	if i := strings.IndexAny(preferred, ".@"); i >= 0 {
		preferred = preferred[:i]
	}
	preferred = strings.ReplaceAll(preferred, "_", "-")
	if preferred == "" || preferred == "C" || preferred == "POSIX" {
		return LanguageEnglish
	}

	tags, _, err := language.ParseAcceptLanguage(preferred)
	if err != nil || len(tags) == 0 {
		return LanguageEnglish
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return LanguageEnglish
	}
	if index == 1 {
		return LanguageJapanese
	}
	return LanguageEnglish
}

// DetectSystemLanguage reads the locale environment (LC_ALL, LC_MESSAGES,
// LANG) and matches it against the supported languages
func DetectSystemLanguage() Language {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" {
			return MatchLanguage(v)
		}
	}
	return LanguageEnglish
}

// GetSupportedLanguages returns a list of supported languages
func GetSupportedLanguages() []Language {
	return []Language{LanguageJapanese, LanguageEnglish}
}

// NewDefaultTranslator creates a translator loaded with the built-in strings
func NewDefaultTranslator(lang Language) *Translator {
	t := NewTranslator(lang)
	t.LoadMap(LanguageEnglish, DefaultEnglishTranslations())
	t.LoadMap(LanguageJapanese, DefaultJapaneseTranslations())
	return t
}

// LoadMap merges translations for a language
func (t *Translator) LoadMap(language Language, translations map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.translations[language]
	if !ok {
		current = make(map[string]string, len(translations))
		t.translations[language] = current
	}
	for k, v := range translations {
		current[k] = v
	}
}

var titleCaser = cases.Title(language.English)

// DeviceLabel returns the display name of an audio route. Unknown names are
// title-cased from their wire form.
func (t *Translator) DeviceLabel(device string) string {
	key := "device." + device
	if text := t.Translate(key); text != key {
		return text
	}
	return titleCaser.String(strings.ReplaceAll(device, "_", " "))
}

// DefaultEnglishTranslations returns default English translations
func DefaultEnglishTranslations() map[string]string {
	return map[string]string{
		// Menu items
		"menu.call":        "Call",
		"menu.hangup":      "Hang Up",
		"menu.mute":        "Mute Microphone",
		"menu.speaker":     "Speaker",
		"menu.output":      "Audio Output",
		"menu.mic_test":    "Test Microphone",
		"menu.copy_invite": "Copy Invite",
		"menu.settings":    "Open Settings...",
		"menu.quit":        "Quit",

		// Devices
		"device.speaker_phone": "Speaker",
		"device.wired_headset": "Headset",
		"device.earpiece":      "Earpiece",
		"device.none":          "None",

		// Settings
		"settings.title":        "EzCall Settings",
		"settings.signaling":    "Signaling Server",
		"settings.room":         "Room",
		"settings.speakerphone": "Speakerphone",
		"settings.audio_device": "Audio Device",
		"settings.hotkeys":      "Hotkeys",
		"settings.ui_language":  "UI Language",
		"settings.save":         "Save",

		// Permissions
		"permission.camera":     "Camera",
		"permission.microphone": "Microphone",
		"permission.granted":    "✓ Granted",
		"permission.denied":     "✗ Denied",
		"permission.request":    "Open Settings",

		// Errors
		"error.permission_denied": "Camera and microphone access is required: {missing}",
		"error.signaling_failed":  "Could not connect to the signaling server",
		"error.call_failed":       "Call failed",
		"error.mic_test_failed":   "Microphone test failed",
		"error.not_ready":         "Not connected to the room yet",
		"error.busy":              "A call is already in progress",
		"error.mic_muted":         "Unmute the microphone first",

		// Notifications
		"notification.ready":         "Connected to room {room}",
		"notification.call_started":  "Call connected",
		"notification.call_ended":    "Call ended",
		"notification.peer_left":     "The other side hung up",
		"notification.device":        "Audio output: {device}",
		"notification.invite_copied": "Invite copied to clipboard",
		"notification.mic_test":      "Peak {peak} dBFS over {duration}",
		"notification.mic_silent":    "No sound was picked up",

		// Status
		"status.idle":       "Idle",
		"status.connecting": "Connecting",
		"status.connected":  "In Call",
		"status.ended":      "Ended",
	}
}

// DefaultJapaneseTranslations returns default Japanese translations
func DefaultJapaneseTranslations() map[string]string {
	return map[string]string{
		// Menu items
		"menu.call":        "発信",
		"menu.hangup":      "通話を終了",
		"menu.mute":        "マイクをミュート",
		"menu.speaker":     "スピーカー",
		"menu.output":      "音声出力",
		"menu.mic_test":    "マイクテスト",
		"menu.copy_invite": "招待リンクをコピー",
		"menu.settings":    "設定を開く...",
		"menu.quit":        "終了",

		// Devices
		"device.speaker_phone": "スピーカー",
		"device.wired_headset": "ヘッドセット",
		"device.earpiece":      "受話口",
		"device.none":          "なし",

		// Settings
		"settings.title":        "EzCall 設定",
		"settings.signaling":    "シグナリングサーバー",
		"settings.room":         "ルーム",
		"settings.speakerphone": "スピーカーフォン",
		"settings.audio_device": "オーディオデバイス",
		"settings.hotkeys":      "ホットキー",
		"settings.ui_language":  "UI言語",
		"settings.save":         "保存",

		// Permissions
		"permission.camera":     "カメラ",
		"permission.microphone": "マイク",
		"permission.granted":    "✓ 許可済み",
		"permission.denied":     "✗ 拒否",
		"permission.request":    "設定を開く",

		// Errors
		"error.permission_denied": "カメラとマイクへのアクセスが必要です: {missing}",
		"error.signaling_failed":  "シグナリングサーバーに接続できませんでした",
		"error.call_failed":       "通話に失敗しました",
		"error.mic_test_failed":   "マイクテストに失敗しました",
		"error.not_ready":         "まだルームに接続していません",
		"error.busy":              "すでに通話中です",
		"error.mic_muted":         "マイクのミュートを解除してください",

		// Notifications
		"notification.ready":         "ルーム {room} に接続しました",
		"notification.call_started":  "通話がつながりました",
		"notification.call_ended":    "通話が終了しました",
		"notification.peer_left":     "相手が通話を終了しました",
		"notification.device":        "音声出力: {device}",
		"notification.invite_copied": "招待リンクをクリップボードにコピーしました",
		"notification.mic_test":      "ピーク {peak} dBFS ({duration})",
		"notification.mic_silent":    "音声が検出されませんでした",

		// Status
		"status.idle":       "待機中",
		"status.connecting": "接続中",
		"status.connected":  "通話中",
		"status.ended":      "終了",
	}
}
