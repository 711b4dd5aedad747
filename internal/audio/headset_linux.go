package audio

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"github.com/yok-tottii/EzCall/internal/logger"
)

// udevWatcher listens for sound card add/remove uevents over netlink.
// USB sound cards are headsets. Inserting a plug into an analog jack raises
// no card uevent (the codec reports it as an evdev switch), so an analog
// headset is only seen through the initial presence taken at Start.
type udevWatcher struct {
	log *logger.Logger
}

func newUdevWatcher(log *logger.Logger) HeadsetWatcher {
	return &udevWatcher{log: log.Component("udev")}
}

// Watch connects to the udev netlink socket and reports presence changes
func (w *udevWatcher) Watch(initial bool, onChange func(plugged bool)) (func(), error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("connect netlink socket: %w", err)
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, soundCardMatcher())

	tracker := newCardTracker(initial)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-quit:
				close(monitorQuit)
				return
			case uevent := <-queue:
				if plugged, changed := tracker.handle(uevent); changed {
					w.log.Info("wired headset %s", pluggedWord(plugged))
					onChange(plugged)
				}
			case err := <-errs:
				w.log.Warn("netlink monitor error: %v", err)
			}
		}
	}()

	w.log.Debug("udev headset watch started (initial=%t)", initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			_ = conn.Close()
			w.log.Debug("udev headset watch stopped")
		})
	}, nil
}

// soundCardMatcher matches SUBSYSTEM=sound, ACTION=add|remove
func soundCardMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "sound",
		},
	})
	return rules
}

// cardTracker folds card uevents into a single plugged flag.
type cardTracker struct {
	baseline bool
	cards    map[string]struct{}
}

func newCardTracker(initial bool) *cardTracker {
	return &cardTracker{baseline: initial, cards: make(map[string]struct{})}
}

func (t *cardTracker) plugged() bool {
	return t.baseline || len(t.cards) > 0
}

// handle applies one uevent and reports the new presence and whether it changed.
// Only card-level events count; each PCM node also emits a uevent.
func (t *cardTracker) handle(uevent netlink.UEvent) (bool, bool) {
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		devpath = uevent.KObj
	}
	if !strings.HasPrefix(path.Base(devpath), "card") {
		return t.plugged(), false
	}

	before := t.plugged()
	switch uevent.Action {
	case netlink.ADD:
		if uevent.Env["ID_BUS"] == "usb" || strings.Contains(devpath, "/usb") {
			t.cards[devpath] = struct{}{}
		}
	case netlink.REMOVE:
		if _, ok := t.cards[devpath]; ok {
			delete(t.cards, devpath)
		} else {
			// A card we never saw added was present at start.
			t.baseline = false
		}
	}
	after := t.plugged()
	return after, after != before
}

func pluggedWord(plugged bool) string {
	if plugged {
		return "plugged"
	}
	return "unplugged"
}
