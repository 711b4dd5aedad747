package hotkey

import (
	"strings"

	"golang.design/x/hotkey"
)

type keyName struct {
	name    string
	display string
	key     hotkey.Key
}

// keyNames lists the keys accepted in the config. Key codes are not
// contiguous on every platform, so letters and digits are listed one by one.
var keyNames = []keyName{
	{"Space", "", hotkey.KeySpace},
	{"Return", "", hotkey.KeyReturn},
	{"Escape", "Esc", hotkey.KeyEscape},
	{"Tab", "", hotkey.KeyTab},
	{"Delete", "", hotkey.KeyDelete},
	{"A", "", hotkey.KeyA}, {"B", "", hotkey.KeyB}, {"C", "", hotkey.KeyC},
	{"D", "", hotkey.KeyD}, {"E", "", hotkey.KeyE}, {"F", "", hotkey.KeyF},
	{"G", "", hotkey.KeyG}, {"H", "", hotkey.KeyH}, {"I", "", hotkey.KeyI},
	{"J", "", hotkey.KeyJ}, {"K", "", hotkey.KeyK}, {"L", "", hotkey.KeyL},
	{"M", "", hotkey.KeyM}, {"N", "", hotkey.KeyN}, {"O", "", hotkey.KeyO},
	{"P", "", hotkey.KeyP}, {"Q", "", hotkey.KeyQ}, {"R", "", hotkey.KeyR},
	{"S", "", hotkey.KeyS}, {"T", "", hotkey.KeyT}, {"U", "", hotkey.KeyU},
	{"V", "", hotkey.KeyV}, {"W", "", hotkey.KeyW}, {"X", "", hotkey.KeyX},
	{"Y", "", hotkey.KeyY}, {"Z", "", hotkey.KeyZ},
	{"0", "", hotkey.Key0}, {"1", "", hotkey.Key1}, {"2", "", hotkey.Key2},
	{"3", "", hotkey.Key3}, {"4", "", hotkey.Key4}, {"5", "", hotkey.Key5},
	{"6", "", hotkey.Key6}, {"7", "", hotkey.Key7}, {"8", "", hotkey.Key8},
	{"9", "", hotkey.Key9},
	{"F1", "", hotkey.KeyF1}, {"F2", "", hotkey.KeyF2}, {"F3", "", hotkey.KeyF3},
	{"F4", "", hotkey.KeyF4}, {"F5", "", hotkey.KeyF5}, {"F6", "", hotkey.KeyF6},
	{"F7", "", hotkey.KeyF7}, {"F8", "", hotkey.KeyF8}, {"F9", "", hotkey.KeyF9},
	{"F10", "", hotkey.KeyF10}, {"F11", "", hotkey.KeyF11}, {"F12", "", hotkey.KeyF12},
}

// ParseKey looks a key up by its config name, case-insensitively
func ParseKey(name string) (hotkey.Key, bool) {
	// NBSP正規化: macOS IMEでスペースキーを押すとNBSP（U+00A0）が送信されることがあるため
	if name == "\u00a0" {
		name = "Space"
	}
	if strings.EqualFold(name, "Esc") {
		name = "Escape"
	}
	for _, k := range keyNames {
		if strings.EqualFold(k.name, name) {
			return k.key, true
		}
	}
	return 0, false
}
