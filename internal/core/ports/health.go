package ports

import "context"

// HealthChecker reports on an external dependency for the deep health endpoint.
type HealthChecker interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name identifies the dependency in the health response, e.g. "postgresql".
	Name() string
}
