package hotkey

import "golang.design/x/hotkey"

// Mod1 is Alt and Mod4 is Super on common X11 keymaps
const (
	modAlt   = hotkey.Mod1
	modSuper = hotkey.Mod4
)

var modSymbols = map[hotkey.Modifier]string{
	hotkey.ModCtrl:  "Ctrl+",
	hotkey.ModShift: "Shift+",
	hotkey.Mod1:     "Alt+",
	hotkey.Mod4:     "Super+",
}
