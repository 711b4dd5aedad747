package hotkey

import "golang.design/x/hotkey"

const (
	modAlt   = hotkey.ModAlt
	modSuper = hotkey.ModWin
)

var modSymbols = map[hotkey.Modifier]string{
	hotkey.ModCtrl:  "Ctrl+",
	hotkey.ModShift: "Shift+",
	hotkey.ModAlt:   "Alt+",
	hotkey.ModWin:   "Win+",
}
