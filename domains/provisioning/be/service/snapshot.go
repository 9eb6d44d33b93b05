package service

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the operator view of a request. It never carries secrets.
type Snapshot struct {
	ID                uuid.UUID      `json:"id"`
	TenantName        string         `json:"tenantName"`
	TenantSlug        string         `json:"tenantSlug"`
	AdminEmail        string         `json:"adminEmail"`
	Tier              Tier           `json:"tier"`
	Status            Status         `json:"status"`
	CurrentStep       int            `json:"currentStep"`
	CurrentStepName   string         `json:"currentStepName,omitempty"`
	CurrentStepLabel  string         `json:"currentStepLabel"`
	TotalSteps        int            `json:"totalSteps"`
	Error             string         `json:"error,omitempty"`
	ErrorStep         string         `json:"errorStep,omitempty"`
	ErrorClass        ErrorClass     `json:"errorClass,omitempty"`
	Action            string         `json:"action,omitempty"`
	InstanceURL       string         `json:"instanceUrl,omitempty"`
	Warnings          []Warning      `json:"warnings"`
	Resources         []ResourceView `json:"resources"`
	RecentAttempts    []AttemptView  `json:"recentAttempts"`
	Steps             []StepRecord   `json:"steps"`
	Resets            int            `json:"resets"`
	CredentialPending bool           `json:"credentialPending"`
	Version           int64          `json:"version"`
	ApprovedBy        *string        `json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time     `json:"approvedAt,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// ResourceView is a resource without its secrets.
type ResourceView struct {
	Kind           ResourceKind   `json:"kind"`
	Name           string         `json:"name"`
	ExternalID     string         `json:"externalId,omitempty"`
	Status         ResourceStatus `json:"status"`
	Endpoint       string         `json:"endpoint,omitempty"`
	SecretRef      string         `json:"secretRef,omitempty"`
	SecretsVersion int            `json:"secretsVersion"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// AttemptView is one executor attempt.
type AttemptView struct {
	Step       string    `json:"step"`
	Attempt    int       `json:"attempt"`
	Outcome    string    `json:"outcome"`
	ErrorClass string    `json:"errorClass,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}

const (
	labelAwaitingApproval = "Awaiting approval"
	labelCompleted        = "Completed"
)

// Operator hints per failure class.
const (
	ActionPermanent = "Fix the reported problem with the provider account or the request data, then reset the request."
	ActionTransient = "The provider kept failing temporarily. Check the provider status page, then reset the request to retry."
	ActionTimeout   = "The resource did not become ready in time. Check it in the provider console, then reset the request to resume waiting."
	ActionResend    = "Resend credentials to the workspace admin."
	ActionPickup    = "Resend credentials once to collect the held temporary credential and pass it to the workspace admin."
)

// BuildSnapshot renders req and its recent attempts. Both must come from the same read.
func BuildSnapshot(req ProvisioningRequest, attempts []AttemptRecord) Snapshot {
	snap := Snapshot{
		ID:                req.ID,
		TenantName:        req.TenantName,
		TenantSlug:        req.TenantSlug,
		AdminEmail:        req.AdminEmail,
		Tier:              req.Tier,
		Status:            req.Status,
		CurrentStep:       req.CurrentStep,
		TotalSteps:        len(steps),
		InstanceURL:       req.Metadata.InstanceURL,
		Warnings:          slices.Clone(req.Metadata.Warnings),
		Resources:         []ResourceView{},
		RecentAttempts:    []AttemptView{},
		Steps:             slices.Clone(req.Metadata.Steps),
		Resets:            req.Metadata.Resets,
		CredentialPending: req.Metadata.CredentialPending,
		Version:           req.Version,
		ApprovedBy:        req.ApprovedBy,
		ApprovedAt:        req.ApprovedAt,
		CreatedAt:         req.CreatedAt,
		UpdatedAt:         req.UpdatedAt,
	}
	if snap.Warnings == nil {
		snap.Warnings = []Warning{}
	}
	if snap.Steps == nil {
		snap.Steps = []StepRecord{}
	}

	switch req.Status {
	case StatusPending:
		snap.CurrentStepLabel = labelAwaitingApproval
	case StatusApproved:
		snap.CurrentStepLabel = labelCompleted
		switch {
		case req.Metadata.CredentialPending:
			snap.Action = ActionPickup
		case !req.Metadata.CredentialsDelivered && len(req.Metadata.Warnings) > 0:
			snap.Action = ActionResend
		}
	default:
		snap.CurrentStepName = StepName(req.CurrentStep)
		snap.CurrentStepLabel = StepLabel(req.CurrentStep)
	}

	if f := req.Metadata.Failure; f != nil && (req.Status == StatusFailed || req.Status == StatusTimeout) {
		snap.Error = f.Reason
		snap.ErrorStep = f.Step
		snap.ErrorClass = f.Class
		snap.Action = actionFor(f.Class)
		if i := StepIndex(f.Step); i >= 0 {
			snap.CurrentStepName = f.Step
			snap.CurrentStepLabel = StepLabel(i)
		}
	}

	for _, kind := range []ResourceKind{ResourceDatabase, ResourceDeployment} {
		res, ok := req.Resources[kind]
		if !ok {
			continue
		}
		snap.Resources = append(snap.Resources, ResourceView{
			Kind:           res.Kind,
			Name:           res.Name,
			ExternalID:     res.ExternalID,
			Status:         res.Status,
			Endpoint:       res.Endpoint,
			SecretRef:      res.SecretRef,
			SecretsVersion: res.SecretsVersion,
			UpdatedAt:      res.UpdatedAt,
		})
	}

	for _, a := range attempts {
		snap.RecentAttempts = append(snap.RecentAttempts, AttemptView{
			Step:       a.Step,
			Attempt:    a.Attempt,
			Outcome:    a.Outcome,
			ErrorClass: a.ErrorClass,
			Error:      a.Error,
			StartedAt:  a.StartedAt,
			DurationMs: a.Duration.Milliseconds(),
		})
	}
	return snap
}

func actionFor(class ErrorClass) string {
	switch class {
	case ClassPermanent:
		return ActionPermanent
	case ClassTimeout:
		return ActionTimeout
	}
	return ActionTransient
}
