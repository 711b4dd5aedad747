package permissions

import "github.com/yok-tottii/EzCall/internal/logger"

// Gate runs the pre-call permission flow: when everything is granted the
// call proceeds; otherwise each missing permission is requested once and
// anything still missing afterwards denies the call.
type Gate struct {
	checker  Checker
	required []Permission
	log      *logger.Logger
}

// NewGate creates a gate for the given permissions
func NewGate(checker Checker, required []Permission, log *logger.Logger) *Gate {
	return &Gate{
		checker:  checker,
		required: required,
		log:      log.Component("permissions"),
	}
}

// Ensure calls onGranted or onDenied exactly once.
func (g *Gate) Ensure(onGranted func(), onDenied func(missing []Permission)) {
	missing := Missing(g.checker, g.required)
	if len(missing) == 0 {
		onGranted()
		return
	}

	for _, p := range missing {
		g.log.Info("requesting %s permission (status %s)", p, g.checker.Status(p))
		if err := g.checker.Request(p); err != nil {
			g.log.Warn("request %s permission: %v", p, err)
		}
	}

	missing = Missing(g.checker, g.required)
	if len(missing) == 0 {
		onGranted()
		return
	}
	g.log.Warn("permissions denied: %v", missing)
	onDenied(missing)
}

// Status reports every required permission
func (g *Gate) Status() map[Permission]PermissionStatus {
	result := make(map[Permission]PermissionStatus, len(g.required))
	for _, p := range g.required {
		result[p] = g.checker.Status(p)
	}
	return result
}
