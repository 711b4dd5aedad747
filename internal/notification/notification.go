// Package notification shows desktop notifications for call events.
package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/yok-tottii/EzCall/internal/i18n"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	// TypeInfo is an informational notification
	TypeInfo NotificationType = "info"
	// TypeWarning is a warning notification
	TypeWarning NotificationType = "warning"
	// TypeError is an error notification
	TypeError NotificationType = "error"
	// TypeSuccess is a success notification
	TypeSuccess NotificationType = "success"
)

// Notification represents a desktop notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
}

// Runner executes a notification command. It is replaced in tests.
type Runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// NotificationManager handles sending notifications to the user
type NotificationManager struct {
	appName    string
	translator *i18n.Translator
	run        Runner
	goos       string
}

// NewNotificationManager creates a new notification manager. A nil
// translator falls back to the built-in Japanese strings.
func NewNotificationManager(appName string, translator *i18n.Translator) *NotificationManager {
	if translator == nil {
		translator = i18n.NewDefaultTranslator(i18n.LanguageJapanese)
	}
	return &NotificationManager{
		appName:    appName,
		translator: translator,
		run:        execRunner,
		goos:       runtime.GOOS,
	}
}

// Send sends a notification through the platform notification center:
// osascript on macOS, notify-send elsewhere.
func (nm *NotificationManager) Send(notification *Notification) error {
	if notification == nil {
		return fmt.Errorf("notification cannot be nil")
	}

	var err error
	switch nm.goos {
	case "darwin":
		script := fmt.Sprintf(
			`display notification "%s" with title "%s"`,
			escapeAppleScript(notification.Message),
			escapeAppleScript(notification.Title),
		)
		err = nm.run("osascript", "-e", script)
	case "windows":
		return fmt.Errorf("notifications are not supported on %s", nm.goos)
	default:
		urgency := "normal"
		switch notification.Type {
		case TypeError:
			urgency = "critical"
		case TypeInfo:
			urgency = "low"
		}
		err = nm.run("notify-send", "-a", nm.appName, "-u", urgency, notification.Title, notification.Message)
	}
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

// escapeAppleScript escapes special characters for AppleScript
func escapeAppleScript(s string) string {
	// Escape backslashes first to avoid double-escaping
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

func (nm *NotificationManager) send(t NotificationType, message string) error {
	return nm.Send(&Notification{Title: nm.appName, Message: message, Type: t})
}

// SendInfo sends an informational notification
func (nm *NotificationManager) SendInfo(message string) error {
	return nm.send(TypeInfo, message)
}

// SendWarning sends a warning notification
func (nm *NotificationManager) SendWarning(message string) error {
	return nm.send(TypeWarning, message)
}

// SendError sends an error notification
func (nm *NotificationManager) SendError(message string) error {
	return nm.send(TypeError, message)
}

// SendSuccess sends a success notification
func (nm *NotificationManager) SendSuccess(message string) error {
	return nm.send(TypeSuccess, message)
}

// Ready sends a notification that the room is joined
func (nm *NotificationManager) Ready(room string) error {
	return nm.SendInfo(nm.translator.TranslateWithFormat("notification.ready", map[string]string{"room": room}))
}

// CallStarted sends a notification that media is flowing
func (nm *NotificationManager) CallStarted() error {
	return nm.SendSuccess(nm.translator.Translate("notification.call_started"))
}

// CallEnded sends a notification that the call is over
func (nm *NotificationManager) CallEnded() error {
	return nm.SendInfo(nm.translator.Translate("notification.call_ended"))
}

// PeerLeft sends a notification that the other side hung up
func (nm *NotificationManager) PeerLeft() error {
	return nm.SendInfo(nm.translator.Translate("notification.peer_left"))
}

// DeviceChanged sends a notification with the new audio output
func (nm *NotificationManager) DeviceChanged(device string) error {
	label := nm.translator.DeviceLabel(device)
	return nm.SendInfo(nm.translator.TranslateWithFormat("notification.device", map[string]string{"device": label}))
}

// InviteCopied sends a notification that the invite is on the clipboard
func (nm *NotificationManager) InviteCopied() error {
	return nm.SendSuccess(nm.translator.Translate("notification.invite_copied"))
}

// PermissionDenied sends a notification listing the missing permissions
func (nm *NotificationManager) PermissionDenied(missing []string) error {
	labels := make([]string, len(missing))
	for i, p := range missing {
		labels[i] = nm.translator.Translate("permission." + p)
	}
	return nm.SendError(nm.translator.TranslateWithFormat("error.permission_denied", map[string]string{
		"missing": strings.Join(labels, ", "),
	}))
}

// SignalingFailed sends a notification that the relay is unreachable
func (nm *NotificationManager) SignalingFailed(reason string) error {
	message := nm.translator.Translate("error.signaling_failed")
	if reason != "" {
		message += "：" + reason
	}
	return nm.SendError(message)
}

// CallFailed sends a notification that the call broke
func (nm *NotificationManager) CallFailed(reason string) error {
	message := nm.translator.Translate("error.call_failed")
	if reason != "" {
		message += "：" + reason
	}
	return nm.SendError(message)
}

// MicTestResult sends the outcome of a microphone test
func (nm *NotificationManager) MicTestResult(silent bool, peakDBFS float64, duration time.Duration) error {
	if silent {
		return nm.SendWarning(nm.translator.Translate("notification.mic_silent"))
	}
	return nm.SendSuccess(nm.translator.TranslateWithFormat("notification.mic_test", map[string]string{
		"peak":     fmt.Sprintf("%.1f", peakDBFS),
		"duration": duration.Round(100 * time.Millisecond).String(),
	}))
}

// MicTestFailed sends a notification that the microphone test broke
func (nm *NotificationManager) MicTestFailed(reason string) error {
	message := nm.translator.Translate("error.mic_test_failed")
	if reason != "" {
		message += "：" + reason
	}
	return nm.SendError(message)
}
