package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/requesttrace"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound            = errors.New("provisioning request not found")
	ErrAlreadyProvisioning = errors.New("provisioning already started")
	ErrNotResettable       = errors.New("provisioning request is not resettable")
	ErrInvalidTier         = errors.New("invalid tier")
	ErrVersionConflict     = errors.New("provisioning request was modified concurrently")
	ErrValidation          = errors.New("validation failed")
)

// DefaultRecentAttempts is how many attempt records a snapshot carries.
const DefaultRecentAttempts = 20

// SubmitInput is an onboarding request coming from intake.
type SubmitInput struct {
	TenantName string `validate:"required,max=200"`
	AdminEmail string `validate:"required,email,max=254"`
	// Tier is the requested plan; the approver has the final say.
	Tier string `validate:"omitempty,oneof=standard premium"`
}

// Options tunes the Service.
type Options struct {
	Now            func() time.Time
	RecentAttempts int
	Logger         *zap.Logger
}

// Service exposes the operator-facing provisioning operations.
type Service struct {
	repo           Repository
	scheduler      Scheduler
	credentials    CredentialSender
	validate       *validator.Validate
	now            func() time.Time
	recentAttempts int
	logger         *zap.Logger
}

// New constructs a Service with required dependencies.
func New(repo Repository, scheduler Scheduler, credentials CredentialSender, opts Options) *Service {
	if repo == nil {
		panic("provisioning repo is required")
	}
	if scheduler == nil {
		panic("scheduler is required")
	}
	if credentials == nil {
		panic("credential sender is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RecentAttempts <= 0 {
		opts.RecentAttempts = DefaultRecentAttempts
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		repo:           repo,
		scheduler:      scheduler,
		credentials:    credentials,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		now:            opts.Now,
		recentAttempts: opts.RecentAttempts,
		logger:         opts.Logger,
	}
}

// Submit stores a new pending request.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (Snapshot, error) {
	if err := s.validate.Struct(input); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrValidation, describeValidation(err))
	}
	slug, err := tenant.Slugify(input.TenantName)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: tenantName: %s", ErrValidation, err)
	}

	now := s.now().UTC()
	req := ProvisioningRequest{
		ID:         uuid.New(),
		TenantName: input.TenantName,
		TenantSlug: slug,
		AdminEmail: input.AdminEmail,
		Tier:       Tier(input.Tier),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Tier == "" {
		req.Tier = TierStandard
	}

	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return Snapshot{}, err
	}
	return BuildSnapshot(created, nil), nil
}

// Approve moves a pending request into provisioning and starts the pipeline in the background.
// An empty tier keeps the tier requested at intake.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, tier string) (Snapshot, error) {
	var chosen Tier
	if tier != "" {
		var err error
		if chosen, err = ParseTier(tier); err != nil {
			return Snapshot{}, err
		}
	}

	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if req.Status != StatusPending {
		return Snapshot{}, fmt.Errorf("%w: request is %s", ErrAlreadyProvisioning, req.Status)
	}

	if chosen != "" {
		req.Tier = chosen
	}
	if req.Tier == "" {
		req.Tier = TierStandard
	}
	s.stampActor(ctx, &req)
	req.Status = StatusProvisioning
	req.CurrentStep = 0

	stored, err := s.repo.Update(ctx, req)
	if errors.Is(err, ErrVersionConflict) {
		return Snapshot{}, fmt.Errorf("%w: request changed while approving", ErrAlreadyProvisioning)
	}
	if err != nil {
		return Snapshot{}, err
	}

	s.schedule(stored.ID)
	return BuildSnapshot(stored.WithoutSecrets(), nil), nil
}

// GetStatus returns a consistent snapshot of the request.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	req, attempts, err := s.repo.Read(ctx, id, s.recentAttempts)
	if err != nil {
		return Snapshot{}, err
	}
	return BuildSnapshot(req, attempts), nil
}

// SnapshotPage wraps paginated snapshots.
type SnapshotPage struct {
	Items      []Snapshot `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalItems int        `json:"totalItems"`
	TotalPages int        `json:"totalPages"`
}

// List returns requests newest first with an optional status filter.
func (s *Service) List(ctx context.Context, opts ListOptions) (SnapshotPage, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return SnapshotPage{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *opts.Status)
	}
	res, err := s.repo.List(ctx, opts)
	if err != nil {
		return SnapshotPage{}, err
	}
	page := SnapshotPage{
		Items:      make([]Snapshot, 0, len(res.Requests)),
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalItems: res.TotalItems,
		TotalPages: res.TotalPages,
	}
	for _, req := range res.Requests {
		page.Items = append(page.Items, BuildSnapshot(req, nil))
	}
	return page, nil
}

// Reset re-enters provisioning for a failed or timed out request. The pipeline resumes at the
// first step whose side effect is not recorded; completed work is never redone.
func (s *Service) Reset(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if !req.Status.Resettable() {
		return Snapshot{}, fmt.Errorf("%w: request is %s", ErrNotResettable, req.Status)
	}

	if req.Metadata.Failure != nil {
		req.Metadata.PastFailures = append(req.Metadata.PastFailures, *req.Metadata.Failure)
		req.Metadata.Failure = nil
	}
	req.Metadata.Resets++
	req.CurrentStep = ResumePoint(&req)
	req.Status = StatusProvisioning
	s.stampActor(ctx, &req)

	stored, err := s.repo.Update(ctx, req)
	if errors.Is(err, ErrVersionConflict) {
		return Snapshot{}, fmt.Errorf("%w: request changed while resetting", ErrNotResettable)
	}
	if err != nil {
		return Snapshot{}, err
	}

	s.schedule(stored.ID)
	return BuildSnapshot(stored.WithoutSecrets(), nil), nil
}

// ResendCredentials re-delivers admin credentials for email. A credential held back by an
// undelivered run is handed out once instead; later calls go to the credential sender.
func (s *Service) ResendCredentials(ctx context.Context, email string) (Delivery, error) {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return Delivery{}, fmt.Errorf("%w: email must be a valid email address", ErrValidation)
	}

	held, err := s.repo.FindPendingCredential(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.credentials.Resend(ctx, email)
	case err != nil:
		return Delivery{}, err
	}

	credential := held.PendingCredential.Reveal()
	held.PendingCredential = ""
	held.Metadata.CredentialPending = false
	if _, err := s.repo.Update(ctx, held); err != nil {
		return Delivery{}, err
	}
	s.logger.Info("released held admin credential", zap.String("request_id", held.ID.String()))
	return Delivery{TemporaryCredential: credential}, nil
}

func (s *Service) schedule(id uuid.UUID) {
	if !s.scheduler.Enqueue(id) {
		s.logger.Warn("scheduler is shutting down; the request resumes on the next start",
			zap.String("request_id", id.String()))
	}
}

func (s *Service) stampActor(ctx context.Context, req *ProvisioningRequest) {
	actor := requesttrace.FromContextOrAnonymous(ctx).Actor()
	now := s.now().UTC()
	req.ApprovedBy = &actor
	req.ApprovedAt = &now
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "max":
		return field + " is too long"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	}
	return field + " is invalid"
}
