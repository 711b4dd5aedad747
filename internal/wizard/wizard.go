// Package wizard tracks the first-run setup: permissions, the signaling
// server, hotkeys and a microphone test.
package wizard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Step is one item of the setup checklist
type Step string

const (
	StepPermissions Step = "permissions"
	StepSignaling   Step = "signaling"
	StepHotkeys     Step = "hotkeys"
	StepMicTest     Step = "mic_test"
)

// Steps lists the checklist in display order
var Steps = []Step{StepPermissions, StepSignaling, StepHotkeys, StepMicTest}

// ValidStep reports whether s names a checklist step
func ValidStep(s string) bool {
	for _, step := range Steps {
		if string(step) == s {
			return true
		}
	}
	return false
}

// SetupWizard manages the initial application setup flow
type SetupWizard struct {
	configDir     string
	configPath    string
	setupFlagFile string
	progressFile  string
	mu            sync.RWMutex
}

// NewSetupWizard creates a setup wizard next to the given config file
func NewSetupWizard(configPath string) (*SetupWizard, error) {
	configDir := filepath.Dir(configPath)

	// Ensure config directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return &SetupWizard{
		configDir:     configDir,
		configPath:    configPath,
		setupFlagFile: filepath.Join(configDir, ".setup_completed"),
		progressFile:  filepath.Join(configDir, ".setup_progress.json"),
	}, nil
}

// IsFirstRun checks if this is the first run of the application
func (w *SetupWizard) IsFirstRun() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	// First run if config doesn't exist
	_, err := os.Stat(w.configPath)
	return os.IsNotExist(err)
}

// IsSetupCompleted checks if the initial setup wizard has been completed
func (w *SetupWizard) IsSetupCompleted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, err := os.Stat(w.setupFlagFile)
	return !os.IsNotExist(err)
}

// MarkSetupCompleted marks the setup wizard as completed
func (w *SetupWizard) MarkSetupCompleted() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.markCompleted()
}

func (w *SetupWizard) markCompleted() error {
	file, err := os.Create(w.setupFlagFile)
	if err != nil {
		return fmt.Errorf("failed to create setup flag file: %w", err)
	}
	return file.Close()
}

// ShouldShowWizard returns true if the setup wizard should be shown
// This is true if:
// 1. The application is running for the first time, OR
// 2. The setup has not been completed yet
func (w *SetupWizard) ShouldShowWizard() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	// Check if config exists
	_, configErr := os.Stat(w.configPath)
	if os.IsNotExist(configErr) {
		return true
	}

	// Check if setup is completed
	_, setupErr := os.Stat(w.setupFlagFile)
	return os.IsNotExist(setupErr)
}

// SetupProgress holds completion status of each wizard step
type SetupProgress struct {
	PermissionsSetup bool `json:"permissions_setup"`
	SignalingSet     bool `json:"signaling_configured"`
	HotkeyConfigured bool `json:"hotkey_configured"`
	TestCompleted    bool `json:"test_completed"`
}

// Done reports whether every step is complete
func (p SetupProgress) Done() bool {
	return p.PermissionsSetup && p.SignalingSet && p.HotkeyConfigured && p.TestCompleted
}

func (p *SetupProgress) set(step Step) {
	switch step {
	case StepPermissions:
		p.PermissionsSetup = true
	case StepSignaling:
		p.SignalingSet = true
	case StepHotkeys:
		p.HotkeyConfigured = true
	case StepMicTest:
		p.TestCompleted = true
	}
}

// GetProgress returns the current setup progress
func (w *SetupWizard) GetProgress() SetupProgress {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.readProgress()
}

func (w *SetupWizard) readProgress() SetupProgress {
	var progress SetupProgress
	data, err := os.ReadFile(w.progressFile)
	if err != nil {
		return progress
	}
	// A corrupt file counts as no progress
	_ = json.Unmarshal(data, &progress)
	return progress
}

// MarkStep records a completed step. Completing the last step also marks the
// whole setup as completed.
func (w *SetupWizard) MarkStep(step Step) (SetupProgress, error) {
	if !ValidStep(string(step)) {
		return SetupProgress{}, fmt.Errorf("unknown setup step: %q", step)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	progress := w.readProgress()
	progress.set(step)

	data, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return progress, fmt.Errorf("failed to marshal setup progress: %w", err)
	}
	if err := os.WriteFile(w.progressFile, data, 0600); err != nil {
		return progress, fmt.Errorf("failed to write setup progress: %w", err)
	}

	if progress.Done() {
		if err := w.markCompleted(); err != nil {
			return progress, err
		}
	}
	return progress, nil
}

// ResetSetup resets the setup state (for testing or manual reset)
func (w *SetupWizard) ResetSetup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range []string{w.setupFlagFile, w.progressFile} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

// GetConfigDir returns the configuration directory
func (w *SetupWizard) GetConfigDir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.configDir
}

// GetConfigPath returns the configuration file path
func (w *SetupWizard) GetConfigPath() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.configPath
}
