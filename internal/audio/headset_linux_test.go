package audio

import (
	"testing"

	"github.com/pilebones/go-udev/netlink"
	"github.com/stretchr/testify/assert"
)

func cardEvent(action netlink.KObjAction, devpath string, env map[string]string) netlink.UEvent {
	full := map[string]string{"DEVPATH": devpath, "SUBSYSTEM": "sound"}
	for k, v := range env {
		full[k] = v
	}
	return netlink.UEvent{Action: action, KObj: devpath, Env: full}
}

func TestCardTrackerUSBPlug(t *testing.T) {
	tr := newCardTracker(false)
	usbCard := "/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/sound/card2"

	plugged, changed := tr.handle(cardEvent(netlink.ADD, usbCard, map[string]string{"ID_BUS": "usb"}))
	assert.True(t, plugged)
	assert.True(t, changed)

	// PCM nodes under the card are ignored.
	plugged, changed = tr.handle(cardEvent(netlink.ADD, usbCard+"/pcmC2D0p", nil))
	assert.True(t, plugged)
	assert.False(t, changed)

	plugged, changed = tr.handle(cardEvent(netlink.REMOVE, usbCard, nil))
	assert.False(t, plugged)
	assert.True(t, changed)
}

func TestCardTrackerIgnoresBuiltinCards(t *testing.T) {
	tr := newCardTracker(false)
	plugged, changed := tr.handle(cardEvent(netlink.ADD, "/devices/pci0000:00/0000:00:1f.3/sound/card0", nil))
	assert.False(t, plugged)
	assert.False(t, changed)
}

func TestCardTrackerBaselineRemoved(t *testing.T) {
	tr := newCardTracker(true)
	plugged, changed := tr.handle(cardEvent(netlink.REMOVE, "/devices/platform/usb/sound/card1", nil))
	assert.False(t, plugged)
	assert.True(t, changed)

	plugged, changed = tr.handle(cardEvent(netlink.REMOVE, "/devices/platform/usb/sound/card1", nil))
	assert.False(t, plugged)
	assert.False(t, changed)
}

func TestCardTrackerTwoCards(t *testing.T) {
	tr := newCardTracker(false)
	a := "/devices/usb1/1-1/sound/card1"
	b := "/devices/usb1/1-2/sound/card2"

	_, changed := tr.handle(cardEvent(netlink.ADD, a, nil))
	assert.True(t, changed)
	_, changed = tr.handle(cardEvent(netlink.ADD, b, nil))
	assert.False(t, changed)
	plugged, changed := tr.handle(cardEvent(netlink.REMOVE, a, nil))
	assert.True(t, plugged)
	assert.False(t, changed)
}

func TestCardTrackerAnalogJackKeepsBaseline(t *testing.T) {
	// A 3.5 mm headset present at start; the jack switch shows up as an input
	// device under the built-in card, not as a card of its own.
	tr := newCardTracker(true)
	builtin := "/devices/pci0000:00/0000:00:1f.3/sound/card0"

	plugged, changed := tr.handle(cardEvent(netlink.ADD, builtin+"/input12", nil))
	assert.True(t, plugged)
	assert.False(t, changed)

	plugged, changed = tr.handle(cardEvent(netlink.ADD, builtin, nil))
	assert.True(t, plugged)
	assert.False(t, changed)
}
