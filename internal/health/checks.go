package health

import (
	"fmt"
	"sync"
	"time"
)

// RoutesCheck is unhealthy while count reports an empty route table.
func RoutesCheck(count func() int) CheckFunc {
	return func() Check {
		n := count()
		if n == 0 {
			return Check{Status: StatusUnhealthy, Message: "no routes loaded"}
		}
		return Check{Status: StatusHealthy, Message: fmt.Sprintf("%d routes", n)}
	}
}

// DestinationsCheck is degraded while no destination is registered. Local
// resources and project files are still served in that state.
func DestinationsCheck(count func() int) CheckFunc {
	return func() Check {
		n := count()
		if n == 0 {
			return Check{Status: StatusDegraded, Message: "no destinations loaded"}
		}
		return Check{Status: StatusHealthy, Message: fmt.Sprintf("%d destinations", n)}
	}
}

// ReloadTracker remembers the outcome of the last reload.
type ReloadTracker struct {
	mu      sync.RWMutex
	lastErr error
	lastAt  time.Time
}

// Record stores the result of a reload attempt.
func (t *ReloadTracker) Record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastErr = err
	t.lastAt = time.Now()
}

// Check is degraded after a failed reload: the previous routing state is
// still being served.
func (t *ReloadTracker) Check() Check {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case t.lastAt.IsZero():
		return Check{Status: StatusHealthy}
	case t.lastErr != nil:
		return Check{
			Status:  StatusDegraded,
			Message: "last reload failed: " + t.lastErr.Error(),
		}
	default:
		return Check{Status: StatusHealthy, Message: "reloaded at " + t.lastAt.UTC().Format(time.RFC3339)}
	}
}
