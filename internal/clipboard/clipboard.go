// Package clipboard copies call invites to the system clipboard.
package clipboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"
)

// Backend reads and writes the system clipboard
type Backend interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type robotgoBackend struct{}

func (robotgoBackend) ReadAll() (string, error) { return robotgo.ReadAll() }

func (robotgoBackend) WriteAll(text string) error { return robotgo.WriteAll(text) }

// Manager manages clipboard operations
type Manager struct {
	backend       Backend
	verifyTimeout time.Duration
	pollInterval  time.Duration
}

// Config holds clipboard manager configuration
type Config struct {
	VerifyTimeout time.Duration // How long to wait for the write to show up (default: 500ms)
	PollInterval  time.Duration // Interval between read-backs (default: 10ms)
}

// DefaultConfig returns the default clipboard configuration
func DefaultConfig() Config {
	return Config{
		VerifyTimeout: 500 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	}
}

// NewManager creates a clipboard manager on the system clipboard
func NewManager(config Config) *Manager {
	return NewManagerWithBackend(config, robotgoBackend{})
}

// NewManagerWithBackend creates a clipboard manager on the given backend
func NewManagerWithBackend(config Config, backend Backend) *Manager {
	return &Manager{
		backend:       backend,
		verifyTimeout: config.VerifyTimeout,
		pollInterval:  config.PollInterval,
	}
}

// Copy writes text and waits until the clipboard reads it back
func (m *Manager) Copy(text string) error {
	if err := m.backend.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	deadline := time.Now().Add(m.verifyTimeout)
	for {
		current, err := m.backend.ReadAll()
		if err == nil && current == text {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("failed to verify clipboard: %w", err)
			}
			return fmt.Errorf("clipboard was changed before the copy could be verified")
		}
		time.Sleep(m.pollInterval)
	}
}

// CopyInvite copies an invite built by FormatInvite
func (m *Manager) CopyInvite(room, inviteURL string) error {
	return m.Copy(FormatInvite(room, inviteURL))
}

// FormatInvite returns the text shared with the other side of a call
func FormatInvite(room, inviteURL string) string {
	var b strings.Builder
	b.WriteString("EzCall")
	if room != "" {
		b.WriteString(" room: " + room)
	}
	b.WriteString("\n")
	b.WriteString(inviteURL)
	return b.String()
}
