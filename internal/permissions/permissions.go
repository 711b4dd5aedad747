// Package permissions checks the system privacy permissions a call needs and
// runs the grant/request/deny flow before a call starts.
package permissions

import "strings"

// PermissionStatus represents the status of a system permission
type PermissionStatus int

const (
	// PermissionNotDetermined means the user hasn't been asked yet
	PermissionNotDetermined PermissionStatus = 0
	// PermissionRestricted means the permission is restricted by parental controls
	PermissionRestricted PermissionStatus = 1
	// PermissionDenied means the user has explicitly denied the permission
	PermissionDenied PermissionStatus = 2
	// PermissionAuthorized means the user has authorized the permission
	PermissionAuthorized PermissionStatus = 3
)

// PermissionStatus string representation
func (ps PermissionStatus) String() string {
	switch ps {
	case PermissionNotDetermined:
		return "NotDetermined"
	case PermissionRestricted:
		return "Restricted"
	case PermissionDenied:
		return "Denied"
	case PermissionAuthorized:
		return "Authorized"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (ps PermissionStatus) MarshalText() ([]byte, error) {
	return []byte(ps.String()), nil
}

// Permission identifies a system permission
type Permission string

const (
	Camera        Permission = "camera"
	Microphone    Permission = "microphone"
	Accessibility Permission = "accessibility"
)

// CallPermissions are required before a call can start
var CallPermissions = []Permission{Camera, Microphone}

// Label returns the display name used in messages
func (p Permission) Label() string {
	switch p {
	case Camera:
		return "カメラ (Camera)"
	case Microphone:
		return "マイク (Microphone)"
	case Accessibility:
		return "アクセシビリティ (Accessibility)"
	}
	return string(p)
}

// Checker reads and requests permissions
type Checker interface {
	Status(p Permission) PermissionStatus
	// Request asks the user to grant p. On macOS it opens System Settings.
	Request(p Permission) error
}

// IsAuthorized returns whether p is granted
func IsAuthorized(c Checker, p Permission) bool {
	return c.Status(p) == PermissionAuthorized
}

// CheckAll returns the grant state of each permission
func CheckAll(c Checker, perms []Permission) map[Permission]bool {
	result := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		result[p] = IsAuthorized(c, p)
	}
	return result
}

// Missing returns the permissions in perms that are not granted, in order
func Missing(c Checker, perms []Permission) []Permission {
	var missing []Permission
	for _, p := range perms {
		if !IsAuthorized(c, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// GetPermissionStatusMessage returns a human-readable message for a permission status
func GetPermissionStatusMessage(status PermissionStatus) string {
	switch status {
	case PermissionNotDetermined:
		return "Permission not yet determined"
	case PermissionRestricted:
		return "Permission restricted by parental controls"
	case PermissionDenied:
		return "Permission denied"
	case PermissionAuthorized:
		return "Permission authorized"
	default:
		return "Unknown permission status"
	}
}

// GetMissingPermissionsMessage returns a message listing missing permissions
func GetMissingPermissionsMessage(missing []Permission) string {
	if len(missing) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("以下の権限が必要です:\n")
	for _, p := range missing {
		b.WriteString("  • " + p.Label() + "\n")
	}
	return b.String()
}
