package clipboard

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeBackend struct {
	content  string
	writes   []string
	readErr  error
	writeErr error
	// ignoreWrites simulates another app owning the clipboard
	ignoreWrites bool
}

func (f *fakeBackend) ReadAll() (string, error) {
	return f.content, f.readErr
}

func (f *fakeBackend) WriteAll(text string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, text)
	if !f.ignoreWrites {
		f.content = text
	}
	return nil
}

func testConfig() Config {
	return Config{VerifyTimeout: 20 * time.Millisecond, PollInterval: time.Millisecond}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.VerifyTimeout != 500*time.Millisecond {
		t.Errorf("Expected VerifyTimeout 500ms, got %v", config.VerifyTimeout)
	}

	if config.PollInterval != 10*time.Millisecond {
		t.Errorf("Expected PollInterval 10ms, got %v", config.PollInterval)
	}
}

func TestCopy(t *testing.T) {
	backend := &fakeBackend{content: "old"}
	manager := NewManagerWithBackend(testConfig(), backend)

	if err := manager.Copy("hello"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	if backend.content != "hello" {
		t.Errorf("Expected clipboard 'hello', got '%s'", backend.content)
	}
}

func TestCopyWriteError(t *testing.T) {
	backend := &fakeBackend{writeErr: errors.New("no display")}
	manager := NewManagerWithBackend(testConfig(), backend)

	if err := manager.Copy("hello"); err == nil {
		t.Error("Expected error when the write fails")
	}
}

func TestCopyNotVerified(t *testing.T) {
	backend := &fakeBackend{content: "other", ignoreWrites: true}
	manager := NewManagerWithBackend(testConfig(), backend)

	err := manager.Copy("hello")
	if err == nil {
		t.Fatal("Expected error when the clipboard never shows the text")
	}

	if !strings.Contains(err.Error(), "changed") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestCopyInvite(t *testing.T) {
	backend := &fakeBackend{}
	manager := NewManagerWithBackend(testConfig(), backend)

	if err := manager.CopyInvite("standup", "https://relay.example.com/ws?room=standup"); err != nil {
		t.Fatalf("CopyInvite failed: %v", err)
	}

	if !strings.Contains(backend.content, "standup") || !strings.HasSuffix(backend.content, "room=standup") {
		t.Errorf("Unexpected invite %q", backend.content)
	}
}

func TestFormatInvite(t *testing.T) {
	invite := FormatInvite("team", "wss://relay/ws?room=team")
	if invite != "EzCall room: team\nwss://relay/ws?room=team" {
		t.Errorf("Unexpected invite %q", invite)
	}

	invite = FormatInvite("", "wss://relay/ws")
	if invite != "EzCall\nwss://relay/ws" {
		t.Errorf("Unexpected invite without room %q", invite)
	}
}
