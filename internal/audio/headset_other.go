//go:build !linux

package audio

import "github.com/yok-tottii/EzCall/internal/logger"

// noopWatcher never reports changes; presence is only checked at start.
type noopWatcher struct {
	log *logger.Logger
}

func newUdevWatcher(log *logger.Logger) HeadsetWatcher {
	return &noopWatcher{log: log.Component("headset")}
}

// Watch returns a subscription that never fires
func (w *noopWatcher) Watch(initial bool, _ func(plugged bool)) (func(), error) {
	w.log.Debug("headset events unsupported on this platform (initial=%t)", initial)
	return func() {}, nil
}
