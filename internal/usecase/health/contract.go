package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an external provider's availability (embedding or
// LLM endpoints).
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
