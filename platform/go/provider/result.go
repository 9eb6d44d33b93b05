package provider

// Outcome tells whether a create call made a new resource or adopted an existing one.
type Outcome string

const (
	Created       Outcome = "created"
	AlreadyExists Outcome = "already_exists"
)

// CreateResult is returned by every idempotent create call.
type CreateResult struct {
	ExternalID string
	Outcome    Outcome
}

// Health is the readiness of a provider resource.
type Health string

const (
	HealthReady   Health = "ready"
	HealthPending Health = "pending"
	HealthError   Health = "error"
)
