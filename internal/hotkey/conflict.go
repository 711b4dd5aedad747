package hotkey

import (
	"strings"

	"golang.design/x/hotkey"
)

// modOrder is the display order of modifiers and the bit order of a modMask
var modOrder = []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift, modAlt, modSuper}

// modMask is a set of modifiers, independent of the order they were given in
type modMask uint8

func maskOf(mods []hotkey.Modifier) modMask {
	var m modMask
	for _, mod := range mods {
		for i, known := range modOrder {
			if mod == known {
				m |= 1 << i
			}
		}
	}
	return m
}

// shortcut is a key combination in comparable form
type shortcut struct {
	mods modMask
	key  hotkey.Key
}

func shortcutOf(mods []hotkey.Modifier, key hotkey.Key) shortcut {
	return shortcut{mods: maskOf(mods), key: key}
}

// Conflict is a shortcut that the desktop or another call app already claims
type Conflict struct {
	Name  string
	Owner string
	at    shortcut
}

var knownConflicts = []Conflict{
	{Name: "Spotlight", Owner: "system", at: shortcutOf([]hotkey.Modifier{modSuper}, hotkey.KeySpace)},
	{Name: "IME Switch", Owner: "system", at: shortcutOf([]hotkey.Modifier{hotkey.ModCtrl}, hotkey.KeySpace)},
	{Name: "Force Quit", Owner: "system", at: shortcutOf([]hotkey.Modifier{modSuper, modAlt}, hotkey.KeyEscape)},
	{Name: "Minimize", Owner: "system", at: shortcutOf([]hotkey.Modifier{modSuper}, hotkey.KeyM)},
	{Name: "Meeting Mute", Owner: "Zoom", at: shortcutOf([]hotkey.Modifier{modSuper, hotkey.ModShift}, hotkey.KeyA)},
	{Name: "Meeting Mute", Owner: "Teams", at: shortcutOf([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyM)},
	{Name: "Meeting Mute", Owner: "Meet", at: shortcutOf([]hotkey.Modifier{modSuper}, hotkey.KeyD)},
}

// CheckConflicts lists the known shortcuts that use the same combination
func CheckConflicts(modifiers []hotkey.Modifier, key hotkey.Key) []Conflict {
	want := shortcutOf(modifiers, key)
	var conflicts []Conflict
	for _, known := range knownConflicts {
		if known.at == want {
			conflicts = append(conflicts, known)
		}
	}
	return conflicts
}

// FormatHotkey renders a combination with modifiers in a fixed order, e.g.
// "Ctrl+Alt+M" or "⌃⌥M" on macOS
func FormatHotkey(modifiers []hotkey.Modifier, key hotkey.Key) string {
	mask := maskOf(modifiers)

	var b strings.Builder
	for i, mod := range modOrder {
		if mask&(1<<i) != 0 {
			b.WriteString(modSymbols[mod])
		}
	}
	b.WriteString(keyLabel(key))
	return b.String()
}

func keyLabel(key hotkey.Key) string {
	for _, k := range keyNames {
		if k.key != key {
			continue
		}
		if k.display != "" {
			return k.display
		}
		return k.name
	}
	return "Unknown"
}
