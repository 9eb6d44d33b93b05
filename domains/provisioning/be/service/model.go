package service

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status of a provisioning request.
type Status string

const (
	StatusPending      Status = "pending"
	StatusProvisioning Status = "provisioning"
	StatusApproved     Status = "approved"
	StatusFailed       Status = "failed"
	StatusTimeout      Status = "timeout"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProvisioning, StatusApproved, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// Resettable reports whether an operator may reset a request in this status.
func (s Status) Resettable() bool {
	return s == StatusFailed || s == StatusTimeout
}

// Tier is the plan a workspace is provisioned on.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// ParseTier validates a tier name.
func ParseTier(v string) (Tier, error) {
	switch Tier(v) {
	case TierStandard, TierPremium:
		return Tier(v), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTier, v)
}

// ResourceKind identifies the external resource type.
type ResourceKind string

const (
	ResourceDatabase   ResourceKind = "database"
	ResourceDeployment ResourceKind = "deployment"
)

// ResourceStatus mirrors the provider-side lifecycle of a resource.
type ResourceStatus string

const (
	ResourceCreating ResourceStatus = "creating"
	ResourceReady    ResourceStatus = "ready"
	ResourceFailed   ResourceStatus = "failed"
	ResourceTornDown ResourceStatus = "torn_down"
)

// ErrorClass is the classified reason surfaced to operators.
type ErrorClass string

const (
	ClassTransient      ErrorClass = "transient"
	ClassPermanent      ErrorClass = "permanent"
	ClassUnknown        ErrorClass = "unknown"
	ClassTimeout        ErrorClass = "timeout"
	ClassPartialSuccess ErrorClass = "partial_success"
)

// Secret is a provider-issued credential. It never prints its value.
type Secret string

const redacted = "[redacted]"

func (Secret) String() string   { return redacted }
func (Secret) GoString() string { return redacted }

func (Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}

// Reveal returns the plaintext. Callers must not log it.
func (s Secret) Reveal() string { return string(s) }

// Secrets is a named set of credentials owned by one resource.
type Secrets map[string]Secret

// Reveal returns a plaintext copy for sealing.
func (s Secrets) Reveal() map[string]string {
	if len(s) == 0 {
		return nil
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = string(v)
	}
	return out
}

// SecretsFrom wraps plaintext values.
func SecretsFrom(values map[string]string) Secrets {
	if len(values) == 0 {
		return nil
	}
	out := make(Secrets, len(values))
	for k, v := range values {
		out[k] = Secret(v)
	}
	return out
}

// ProvisionedResource is one external object created for a request.
type ProvisionedResource struct {
	Kind           ResourceKind
	Name           string
	ExternalID     string
	Status         ResourceStatus
	Endpoint       string
	Secrets        Secrets
	SecretRef      string
	SecretsVersion int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Supersede returns a copy carrying a new secrets version. Existing secrets are never
// modified in place.
func (r ProvisionedResource) Supersede(requestID uuid.UUID, secrets Secrets) ProvisionedResource {
	next := r
	next.SecretsVersion = r.SecretsVersion + 1
	next.Secrets = maps.Clone(secrets)
	next.SecretRef = SecretRef(requestID, r.Kind, next.SecretsVersion)
	return next
}

// SecretRef builds the opaque reference used wherever a resource's secrets are mentioned.
func SecretRef(requestID uuid.UUID, kind ResourceKind, version int) string {
	return fmt.Sprintf("secret://provisioning/%s/%s/v%d", requestID, kind, version)
}

// StepRecord timestamps a step's execution.
type StepRecord struct {
	Step        string     `json:"step"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Attempts    int        `json:"attempts"`
	Result      string     `json:"result,omitempty"`
}

// Failure records why a run stopped.
type Failure struct {
	Step   string     `json:"step"`
	Class  ErrorClass `json:"class"`
	Reason string     `json:"reason"`
	At     time.Time  `json:"at"`
}

// Warning records a non-fatal problem.
type Warning struct {
	Step    string     `json:"step"`
	Class   ErrorClass `json:"class"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

// Metadata accumulates step outputs. Entries are appended, and only Failure is cleared by a reset
// (after being moved to PastFailures).
type Metadata struct {
	InstanceURL          string       `json:"instanceUrl,omitempty"`
	DatabaseKeysRef      string       `json:"databaseKeysRef,omitempty"`
	MigrationBundle      string       `json:"migrationBundle,omitempty"`
	AppliedMigrations    []string     `json:"appliedMigrations,omitempty"`
	MigrationsComplete   bool         `json:"migrationsComplete,omitempty"`
	EnvSecretsVersion    int          `json:"envSecretsVersion,omitempty"`
	DeploymentID         string       `json:"deploymentId,omitempty"`
	DeploymentIDs        []string     `json:"deploymentIds,omitempty"`
	AdminIdentityID      string       `json:"adminIdentityId,omitempty"`
	AdminIdentityCreated bool         `json:"adminIdentityCreated,omitempty"`
	CredentialsDelivered bool         `json:"credentialsDelivered,omitempty"`
	CredentialPending    bool         `json:"credentialPending,omitempty"`
	Steps                []StepRecord `json:"steps,omitempty"`
	Warnings             []Warning    `json:"warnings,omitempty"`
	Failure              *Failure     `json:"failure,omitempty"`
	PastFailures         []Failure    `json:"pastFailures,omitempty"`
	Resets               int          `json:"resets,omitempty"`
}

// ProvisioningRequest is one tenant onboarding attempt.
type ProvisioningRequest struct {
	ID          uuid.UUID
	TenantName  string
	TenantSlug  string
	AdminEmail  string
	Tier        Tier
	Status      Status
	CurrentStep int
	Attempts    int
	Metadata    Metadata
	Resources   map[ResourceKind]ProvisionedResource
	// PendingCredential is an undelivered temporary admin credential, released once through
	// credential resend.
	PendingCredential Secret
	Version           int64
	ApprovedBy        *string
	ApprovedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Resource returns the resource of kind k and whether it exists.
func (r *ProvisioningRequest) Resource(k ResourceKind) (ProvisionedResource, bool) {
	res, ok := r.Resources[k]
	return res, ok
}

// SetResource stores res under its kind.
func (r *ProvisioningRequest) SetResource(res ProvisionedResource) {
	if r.Resources == nil {
		r.Resources = make(map[ResourceKind]ProvisionedResource)
	}
	r.Resources[res.Kind] = res
}

// Clone returns a deep copy.
func (r ProvisioningRequest) Clone() ProvisioningRequest {
	out := r
	if r.Resources != nil {
		out.Resources = make(map[ResourceKind]ProvisionedResource, len(r.Resources))
		for k, v := range r.Resources {
			v.Secrets = maps.Clone(v.Secrets)
			out.Resources[k] = v
		}
	}
	out.Metadata = r.Metadata.clone()
	if r.ApprovedBy != nil {
		v := *r.ApprovedBy
		out.ApprovedBy = &v
	}
	if r.ApprovedAt != nil {
		v := *r.ApprovedAt
		out.ApprovedAt = &v
	}
	return out
}

// WithoutSecrets returns a deep copy with every resource's plaintext secrets removed.
func (r ProvisioningRequest) WithoutSecrets() ProvisioningRequest {
	out := r.Clone()
	out.PendingCredential = ""
	for k, v := range out.Resources {
		v.Secrets = nil
		out.Resources[k] = v
	}
	return out
}

func (m Metadata) clone() Metadata {
	out := m
	out.AppliedMigrations = slices.Clone(m.AppliedMigrations)
	out.DeploymentIDs = slices.Clone(m.DeploymentIDs)
	out.Steps = make([]StepRecord, len(m.Steps))
	for i, s := range m.Steps {
		if s.CompletedAt != nil {
			v := *s.CompletedAt
			s.CompletedAt = &v
		}
		out.Steps[i] = s
	}
	if m.Steps == nil {
		out.Steps = nil
	}
	out.Warnings = slices.Clone(m.Warnings)
	out.PastFailures = slices.Clone(m.PastFailures)
	if m.Failure != nil {
		f := *m.Failure
		out.Failure = &f
	}
	return out
}

// AttemptRecord is one executor attempt, stored append-only.
type AttemptRecord struct {
	RequestID  uuid.UUID
	Step       string
	Attempt    int
	Outcome    string
	ErrorClass string
	Error      string
	StartedAt  time.Time
	Duration   time.Duration
}

// ListOptions captures filters and pagination.
type ListOptions struct {
	Page     int
	PageSize int
	Status   *Status
}

// ListResult wraps a page of requests.
type ListResult struct {
	Requests   []ProvisioningRequest
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Repository abstracts the durable status store.
type Repository interface {
	Create(ctx context.Context, req ProvisioningRequest) (ProvisioningRequest, error)
	// Get returns the full request including resource secrets, for the pipeline.
	Get(ctx context.Context, id uuid.UUID) (ProvisioningRequest, error)
	// Read returns a consistent view of the request (secrets stripped) and its most recent attempts.
	Read(ctx context.Context, id uuid.UUID, attemptLimit int) (ProvisioningRequest, []AttemptRecord, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	ListIDsByStatus(ctx context.Context, status Status) ([]uuid.UUID, error)
	// FindPendingCredential returns the newest request for adminEmail (case-insensitive) that
	// holds an undelivered credential, or ErrNotFound.
	FindPendingCredential(ctx context.Context, adminEmail string) (ProvisioningRequest, error)
	// Update writes req when req.Version matches the stored version and returns the stored
	// result with Version incremented.
	Update(ctx context.Context, req ProvisioningRequest) (ProvisioningRequest, error)
	AppendAttempt(ctx context.Context, rec AttemptRecord) error
}
