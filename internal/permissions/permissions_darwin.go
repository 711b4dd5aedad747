//go:build darwin && cgo

package permissions

/*
#cgo CFLAGS: -x objective-c -fmodules
#cgo LDFLAGS: -framework AVFoundation -framework ApplicationServices

#import <AVFoundation/AVFoundation.h>
#import <ApplicationServices/ApplicationServices.h>

int check_microphone_permission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

int check_camera_permission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeVideo];
    return (int)status;
}

int check_accessibility_permission() {
    Boolean isAccessibilityEnabled = AXIsProcessTrusted();
    return isAccessibilityEnabled ? 1 : 0;
}
*/
import "C"

import (
	"fmt"
	"os/exec"
)

var settingsURLs = map[Permission]string{
	Camera:        "x-apple.systempreferences:com.apple.preference.security?Privacy_Camera",
	Microphone:    "x-apple.systempreferences:com.apple.preference.security?Privacy_Microphone",
	Accessibility: "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility",
}

// SystemChecker reads AVFoundation authorization state
type SystemChecker struct{}

// NewSystemChecker creates a checker for this platform
func NewSystemChecker() *SystemChecker {
	return &SystemChecker{}
}

// Status returns the authorization status of p
func (sc *SystemChecker) Status(p Permission) PermissionStatus {
	switch p {
	case Camera:
		return PermissionStatus(C.check_camera_permission())
	case Microphone:
		return PermissionStatus(C.check_microphone_permission())
	case Accessibility:
		if C.check_accessibility_permission() == 1 {
			return PermissionAuthorized
		}
		return PermissionDenied
	}
	return PermissionNotDetermined
}

// Request opens the privacy pane for p in System Settings
func (sc *SystemChecker) Request(p Permission) error {
	url, ok := settingsURLs[p]
	if !ok {
		return fmt.Errorf("unknown permission: %s", p)
	}
	return exec.Command("open", url).Run()
}
