package health

import "context"

// HealthPinger is implemented by components that can cheaply verify their
// backing dependency is reachable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
