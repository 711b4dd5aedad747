package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/yok-tottii/EzCall/internal/route"
)

// ErrFocusHeld is returned when another process owns the audio focus lock.
var ErrFocusHeld = errors.New("audio focus held by another process")

// Focus is an exclusive, cross-process claim on the call audio path.
// Only one EzCall instance on a machine can hold it at a time.
type Focus struct {
	path string

	mu       sync.Mutex
	lock     *flock.Flock
	held     bool
	onChange func(route.FocusChange)
}

// DefaultFocusPath returns the lock file location shared by all instances.
func DefaultFocusPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "EzCall", "audio-focus.lock")
}

// NewFocus creates a focus handle backed by the lock file at path.
func NewFocus(path string) *Focus {
	return &Focus{
		path: path,
		lock: flock.New(path),
	}
}

// Request takes the focus lock without blocking. onChange receives
// FocusGainTransient on success.
func (f *Focus) Request(onChange func(route.FocusChange)) error {
	f.mu.Lock()
	if f.held {
		f.onChange = onChange
		f.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("failed to create focus directory: %w", err)
	}

	ok, err := f.lock.TryLock()
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("acquire focus lock: %w", err)
	}
	if !ok {
		f.mu.Unlock()
		return ErrFocusHeld
	}
	f.held = true
	f.onChange = onChange
	f.mu.Unlock()

	if onChange != nil {
		onChange(route.FocusGainTransient)
	}
	return nil
}

// Abandon releases the focus lock. It is a no-op when focus is not held.
func (f *Focus) Abandon() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.held {
		return nil
	}
	f.held = false
	f.onChange = nil
	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("release focus lock: %w", err)
	}
	return nil
}

// Held reports whether this handle owns the focus
func (f *Focus) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held
}

// Path returns the lock file path
func (f *Focus) Path() string {
	return f.path
}
