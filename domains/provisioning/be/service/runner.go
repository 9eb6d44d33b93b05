package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/requesttrace"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/retry"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/tenant"
)

// RunnerConfig tunes the pipeline.
type RunnerConfig struct {
	// EnvKey prefixes every provider-facing resource name.
	EnvKey         string
	Policy         retry.Policy
	DatabasePoll   retry.PollPolicy
	DeploymentPoll retry.PollPolicy
	// DeliveryPolicy bounds credential delivery after the admin identity exists.
	DeliveryPolicy retry.Policy
	// Observers receive every executor attempt in addition to the attempt store.
	Observers       []retry.Observer
	ExecutorOptions []retry.Option
	Logger          *zap.Logger
	Now             func() time.Time
	// Password generates the admin's temporary password.
	Password func() (string, error)
}

// Runner drives one request through the ordered steps.
type Runner struct {
	repo     Repository
	deps     ProvisioningDeps
	cfg      RunnerConfig
	exec     *retry.Executor
	delivery *retry.Executor
	logger   *zap.Logger
	now      func() time.Time
}

// NewRunner wires the executor, attempt persistence and providers.
func NewRunner(repo Repository, deps ProvisioningDeps, cfg RunnerConfig) *Runner {
	if repo == nil {
		panic("provisioning repo is required")
	}
	if deps.Database == nil || deps.Deployment == nil || deps.Migrations == nil || deps.Credentials == nil {
		panic("provisioning deps are required")
	}
	if cfg.EnvKey == "" {
		panic("envKey is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Password == nil {
		cfg.Password = GeneratePassword
	}

	r := &Runner{repo: repo, deps: deps, cfg: cfg, logger: cfg.Logger, now: cfg.Now}

	opts := []retry.Option{retry.WithLogger(cfg.Logger), retry.WithObserver(r.recordAttempt)}
	for _, o := range cfg.Observers {
		opts = append(opts, retry.WithObserver(o))
	}
	opts = append(opts, cfg.ExecutorOptions...)
	r.exec = retry.New(cfg.Policy, opts...)
	r.delivery = retry.New(cfg.DeliveryPolicy, opts...)
	return r
}

func (r *Runner) recordAttempt(ctx context.Context, a retry.Attempt) {
	audit, ok := requesttrace.FromContext(ctx)
	if !ok || audit.ProvisioningID == uuid.Nil {
		return
	}
	rec := AttemptRecord{
		RequestID:  audit.ProvisioningID,
		Step:       a.Step,
		Attempt:    a.Number,
		Outcome:    string(a.Outcome),
		ErrorClass: string(a.Class),
		StartedAt:  a.StartedAt.UTC(),
		Duration:   a.Duration,
	}
	if a.Err != nil {
		rec.Error = a.Err.Error()
	}
	// attempts are history; losing one must not stop the step
	if err := r.repo.AppendAttempt(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("append attempt failed", zap.String("request_id", audit.ProvisioningID.String()), zap.String("step", a.Step), zap.Error(err))
	}
}

// stepContext is the working copy a step mutates. Outputs reach the store when the step
// completes, fails, or calls checkpoint.
type stepContext struct {
	runner   *Runner
	req      ProvisioningRequest
	password string
	storeErr error
}

// checkpoint persists progress made inside a step.
func (sc *stepContext) checkpoint(ctx context.Context) error {
	stored, err := sc.runner.repo.Update(ctx, sc.req)
	if err != nil {
		sc.storeErr = err
		return provider.NewPermanent("store", "checkpoint", err)
	}
	sc.req = stored
	return nil
}

// Run executes the request from its CurrentStep until it reaches a terminal status or ctx is
// cancelled. It returns the last persisted status. A cancelled run leaves the request
// untouched so it resumes from the same step.
func (r *Runner) Run(ctx context.Context, id uuid.UUID) (Status, error) {
	req, err := r.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if req.Status != StatusProvisioning {
		return req.Status, nil
	}

	audit := requesttrace.FromContextOr(ctx, requesttrace.System("")).ForRun(id)
	ctx = requesttrace.IntoContext(ctx, audit)
	log := r.logger.With(append(audit.Fields(), zap.String("tenant_slug", req.TenantSlug))...)
	log.Info("provisioning run started", zap.String("step", StepName(req.CurrentStep)))

	// store writes outlive cancellation so a finished step is never lost
	wctx := context.WithoutCancel(ctx)

	for req.CurrentStep < len(steps) {
		if err := ctx.Err(); err != nil {
			log.Info("provisioning run interrupted", zap.String("step", StepName(req.CurrentStep)))
			return req.Status, err
		}

		idx := req.CurrentStep
		info := steps[idx]
		req.Metadata.Steps = append(req.Metadata.Steps, StepRecord{Step: info.Name, StartedAt: r.now().UTC()})
		if req, err = r.repo.Update(wctx, req); err != nil {
			return StatusProvisioning, fmt.Errorf("record start of %s: %w", info.Name, err)
		}

		sctx := requesttrace.IntoContext(ctx, audit.AtStep(info.Name))
		sc := &stepContext{runner: r, req: req.Clone()}
		res := r.execute(sctx, info, sc)
		if sc.storeErr != nil {
			return StatusProvisioning, fmt.Errorf("checkpoint %s: %w", info.Name, sc.storeErr)
		}

		next := sc.req
		next.Attempts += res.Attempts
		stepLog := log.With(zap.String("step", info.Name), zap.Int("attempts", res.Attempts))

		switch res.Kind {
		case retry.KindOK:
			next.completeStep(info.Name, res.Attempts, string(res.Kind), r.now().UTC())
			next.CurrentStep = idx + 1
			if req, err = r.repo.Update(wctx, next); err != nil {
				return StatusProvisioning, fmt.Errorf("complete %s: %w", info.Name, err)
			}
			stepLog.Info("step completed")
			if info.Name == StepCreateAdminIdentity {
				if req, err = r.deliverCredentials(sctx, req, sc.password); err != nil {
					return StatusProvisioning, err
				}
			}

		case retry.KindFailed, retry.KindTimeout:
			class := classOf(res)
			next.completeStep(info.Name, res.Attempts, string(res.Kind), r.now().UTC())
			next.Status = StatusFailed
			if res.Kind == retry.KindTimeout {
				next.Status = StatusTimeout
			}
			next.Metadata.Failure = &Failure{Step: info.Name, Class: class, Reason: reasonOf(res.Err), At: r.now().UTC()}
			if req, err = r.repo.Update(wctx, next); err != nil {
				return StatusProvisioning, fmt.Errorf("record failure of %s: %w", info.Name, err)
			}
			stepLog.Warn("provisioning stopped", zap.String("status", string(req.Status)), zap.String("error_class", string(class)), zap.Error(res.Err))
			return req.Status, nil

		case retry.KindCancelled:
			stepLog.Info("provisioning run interrupted")
			return req.Status, res.Err
		}
	}

	log.Info("provisioning completed", zap.String("instance_url", req.Metadata.InstanceURL))
	return req.Status, nil
}

func (r *Runner) execute(ctx context.Context, info StepInfo, sc *stepContext) retry.Result {
	switch info.Name {
	case StepCreateDatabase:
		return r.exec.Do(ctx, info.Name, sc.createDatabase)
	case StepAwaitDatabaseHealthy:
		return r.exec.Poll(ctx, info.Name, r.cfg.DatabasePoll, sc.databaseHealthy)
	case StepFetchDatabaseCredentials:
		return r.exec.Do(ctx, info.Name, sc.fetchDatabaseCredentials)
	case StepApplySchemaMigrations:
		return r.exec.Do(ctx, info.Name, sc.applyMigrations)
	case StepCreateDeployment:
		return r.exec.Do(ctx, info.Name, sc.createDeployment)
	case StepConfigureDeploymentEnv:
		return r.exec.Do(ctx, info.Name, sc.configureDeploymentEnv)
	case StepTriggerDeployment:
		return r.exec.Do(ctx, info.Name, sc.triggerDeployment)
	case StepAwaitDeploymentLive:
		return r.exec.Poll(ctx, info.Name, r.cfg.DeploymentPoll, sc.deploymentLive)
	case StepCreateAdminIdentity:
		return r.exec.Do(ctx, info.Name, sc.createAdminIdentity)
	case StepFinalize:
		return r.exec.Do(ctx, info.Name, sc.finalize)
	}
	return retry.Result{Kind: retry.KindFailed, Class: provider.Permanent, Err: fmt.Errorf("unknown step %q", info.Name)}
}

// deliverCredentials hands the temporary password to the admin. Failures become warnings; the
// request still completes and holds the credential for a single pickup through resend.
func (r *Runner) deliverCredentials(ctx context.Context, req ProvisioningRequest, password string) (ProvisioningRequest, error) {
	now := r.now().UTC()
	if password == "" {
		req.Metadata.Warnings = append(req.Metadata.Warnings, Warning{
			Step:    StepCreateAdminIdentity,
			Class:   ClassPartialSuccess,
			Message: "admin identity already existed; credentials were not sent, use resend credentials",
			At:      now,
		})
		return r.saveDelivery(ctx, req)
	}

	var delivery Delivery
	res := r.delivery.Do(ctx, "deliver_credentials", func(actx context.Context) error {
		var err error
		delivery, err = r.deps.Credentials.Deliver(actx, req.AdminEmail, password)
		return err
	})

	switch {
	case !res.OK():
		req.hold(password, "credential delivery failed: "+reasonOf(res.Err), now)
	case !delivery.Delivered:
		credential := delivery.TemporaryCredential
		if credential == "" {
			credential = password
		}
		req.hold(credential, "credentials were not delivered automatically", now)
	default:
		req.Metadata.CredentialsDelivered = true
	}
	return r.saveDelivery(ctx, req)
}

// hold keeps an undelivered credential on req until resend credentials releases it.
func (req *ProvisioningRequest) hold(credential, reason string, at time.Time) {
	req.PendingCredential = Secret(credential)
	req.Metadata.CredentialPending = true
	req.Metadata.Warnings = append(req.Metadata.Warnings, Warning{
		Step:    StepCreateAdminIdentity,
		Class:   ClassPartialSuccess,
		Message: reason + "; resend credentials returns the held credential once",
		At:      at,
	})
}

func (r *Runner) saveDelivery(ctx context.Context, req ProvisioningRequest) (ProvisioningRequest, error) {
	stored, err := r.repo.Update(context.WithoutCancel(ctx), req)
	if err != nil {
		return req, fmt.Errorf("record credential delivery: %w", err)
	}
	return stored, nil
}

func (r *Runner) resourceName(req ProvisioningRequest) string {
	return tenant.ResourceName(r.cfg.EnvKey, req.TenantSlug, tenant.ShortID(req.ID))
}

func (req *ProvisioningRequest) completeStep(step string, attempts int, result string, at time.Time) {
	for i := len(req.Metadata.Steps) - 1; i >= 0; i-- {
		rec := &req.Metadata.Steps[i]
		if rec.Step == step && rec.CompletedAt == nil {
			rec.CompletedAt = &at
			rec.Attempts = attempts
			rec.Result = result
			return
		}
	}
}

func classOf(res retry.Result) ErrorClass {
	if res.Kind == retry.KindTimeout {
		return ClassTimeout
	}
	switch res.Class {
	case provider.Transient:
		return ClassTransient
	case provider.Permanent:
		return ClassPermanent
	}
	return ClassUnknown
}

// reasonOf renders err for operators. Provider errors already carry a classified message.
func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	var pErr *provider.Error
	if errors.As(err, &pErr) && pErr.Message != "" {
		return fmt.Sprintf("%s %s: %s", pErr.Provider, pErr.Op, pErr.Message)
	}
	return err.Error()
}
