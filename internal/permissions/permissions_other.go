//go:build !darwin || !cgo

package permissions

// SystemChecker reports every permission as authorized; this platform has
// no per-app privacy prompts for capture devices.
type SystemChecker struct{}

// NewSystemChecker creates a checker for this platform
func NewSystemChecker() *SystemChecker {
	return &SystemChecker{}
}

// Status always returns PermissionAuthorized
func (sc *SystemChecker) Status(Permission) PermissionStatus {
	return PermissionAuthorized
}

// Request does nothing
func (sc *SystemChecker) Request(Permission) error {
	return nil
}
