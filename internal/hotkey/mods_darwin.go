package hotkey

import "golang.design/x/hotkey"

const (
	modAlt   = hotkey.ModOption
	modSuper = hotkey.ModCmd
)

var modSymbols = map[hotkey.Modifier]string{
	hotkey.ModCtrl:   "⌃",
	hotkey.ModShift:  "⇧",
	hotkey.ModOption: "⌥",
	hotkey.ModCmd:    "⌘",
}
