package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	provisioningapi "github.com/zenGate-Global/palmyra-workspaces/generated/go/provisioning"
	platformlogging "github.com/zenGate-Global/palmyra-workspaces/platform/go/logging"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

const (
	problemTypeValidation = "https://workspaces.zengate.global/problems/validation-error"
	problemTypeNotFound   = "https://workspaces.zengate.global/problems/not-found"
	problemTypeConflict   = "https://workspaces.zengate.global/problems/conflict"
	problemTypeUpstream   = "https://workspaces.zengate.global/problems/upstream-error"
	problemTypeInternal   = "https://workspaces.zengate.global/problems/internal-error"
)

// Service is the provisioning behaviour the HTTP layer needs.
type Service interface {
	Submit(ctx context.Context, input service.SubmitInput) (service.Snapshot, error)
	Approve(ctx context.Context, id uuid.UUID, tier string) (service.Snapshot, error)
	GetStatus(ctx context.Context, id uuid.UUID) (service.Snapshot, error)
	List(ctx context.Context, opts service.ListOptions) (service.SnapshotPage, error)
	Reset(ctx context.Context, id uuid.UUID) (service.Snapshot, error)
	ResendCredentials(ctx context.Context, email string) (service.Delivery, error)
}

// Handler wires the provisioning service to the generated HTTP contract.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("provisioning service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// StrictOptions makes the strict adapter answer decoding and encoding failures with problem details.
func (h *Handler) StrictOptions() provisioningapi.StrictHTTPServerOptions {
	return provisioningapi.StrictHTTPServerOptions{
		RequestErrorHandlerFunc:  h.RequestError,
		ResponseErrorHandlerFunc: h.responseError,
	}
}

func (h *Handler) ProvisioningSubmit(ctx context.Context, request provisioningapi.ProvisioningSubmitRequestObject) (provisioningapi.ProvisioningSubmitResponseObject, error) {
	if request.Body == nil {
		status, problem := h.validationProblem("request body is required")
		return provisioningapi.ProvisioningSubmitdefaultApplicationProblemPlusJSONResponse{Body: problem, StatusCode: status}, nil
	}

	input := service.SubmitInput{
		TenantName: strings.TrimSpace(request.Body.TenantName),
		AdminEmail: strings.TrimSpace(string(request.Body.AdminEmail)),
	}
	if request.Body.Tier != nil {
		input.Tier = string(*request.Body.Tier)
	}

	snap, err := h.svc.Submit(ctx, input)
	if err != nil {
		status, problem := h.problemForError(ctx, err, "provisioningSubmit")
		return provisioningapi.ProvisioningSubmitdefaultApplicationProblemPlusJSONResponse{Body: problem, StatusCode: status}, nil
	}

	return provisioningapi.ProvisioningSubmit201JSONResponse{
		Body: toAPISnapshot(snap),
		Headers: provisioningapi.ProvisioningSubmit201ResponseHeaders{
			Location: fmt.Sprintf("/api/v1/admin/provisioning-requests/%s", snap.ID),
		},
	}, nil
}

func (h *Handler) ProvisioningList(ctx context.Context, request provisioningapi.ProvisioningListRequestObject) (provisioningapi.ProvisioningListResponseObject, error) {
	opts := service.ListOptions{}
	if request.Params.Page != nil {
		opts.Page = *request.Params.Page
	}
	if request.Params.PageSize != nil {
		opts.PageSize = *request.Params.PageSize
	}
	if request.Params.Status != nil && *request.Params.Status != "" {
		status := service.Status(*request.Params.Status)
		opts.Status = &status
	}

	page, err := h.svc.List(ctx, opts)
	if err != nil {
		status, problem := h.problemForError(ctx, err, "provisioningList")
		return provisioningapi.ProvisioningListdefaultApplicationProblemPlusJSONResponse{Body: problem, StatusCode: status}, nil
	}

	items := make([]provisioningapi.Snapshot, 0, len(page.Items))
	for _, snap := range page.Items {
		items = append(items, toAPISnapshot(snap))
	}
	return provisioningapi.ProvisioningList200JSONResponse{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	}, nil
}

func (h *Handler) ProvisioningGet(ctx context.Context, request provisioningapi.ProvisioningGetRequestObject) (provisioningapi.ProvisioningGetResponseObject, error) {
	snap, err := h.svc.GetStatus(ctx, uuid.UUID(request.RequestId))
	if err != nil {
		status, problem := h.problemForError(ctx, err, "provisioningGet")
		return provisioningapi.ProvisioningGetdefaultApplicationProblemPlusJSONResponse{Body: problem, StatusCode: status}, nil
	}
	return provisioningapi.ProvisioningGet200JSONResponse(toAPISnapshot(snap)), nil
}

func (h *Handler) ProvisioningApprove(ctx context.Context, request provisioningapi.ProvisioningApproveRequestObject) (provisioningapi.ProvisioningApproveResponseObject, error) {
	tier := ""
	if request.Body != nil && request.Body.Tier != nil {
		tier = string(*request.Body.Tier)
	}

	snap, err := h.svc.Approve(ctx, uuid.UUID(request.RequestId), tier)
	if err != nil {
		status, problem := h.problemForError(ctx, err, "provisioningApprove")
		return provisioningapi.ProvisioningApprovedefaultApplicationProblemPlusJSONResponse{Body: problem, StatusCode: status}, nil
	}
	return provisioningapi.ProvisioningApprove202JSONResponse(toAPISnapshot(snap)), nil
}

func (h *Handler) ProvisioningReset(ctx context.Context, request provisioningapi.ProvisioningResetRequestObject) (provisioningapi.ProvisioningResetResponseObject, error) {
	snap, err := h.svc.Reset(ctx, uuid.UUID(request.RequestId))
	if err != nil {
		status, problem := h.problemForError(ctx, err, "provisioningReset")
		return provisioningapi.ProvisioningResetdefaultApplicationProblemPlusJSONResponse{Body: problem, StatusCode: status}, nil
	}
	return provisioningapi.ProvisioningReset202JSONResponse(toAPISnapshot(snap)), nil
}

func (h *Handler) CredentialsResend(ctx context.Context, request provisioningapi.CredentialsResendRequestObject) (provisioningapi.CredentialsResendResponseObject, error) {
	if request.Body == nil {
		status, problem := h.validationProblem("request body is required")
		return provisioningapi.CredentialsResenddefaultApplicationProblemPlusJSONResponse{Body: problem, StatusCode: status}, nil
	}

	delivery, err := h.svc.ResendCredentials(ctx, strings.TrimSpace(string(request.Body.Email)))
	if err != nil {
		status, problem := h.problemForError(ctx, err, "credentialsResend")
		return provisioningapi.CredentialsResenddefaultApplicationProblemPlusJSONResponse{Body: problem, StatusCode: status}, nil
	}

	out := provisioningapi.CredentialsResend200JSONResponse{Delivered: delivery.Delivered}
	if delivery.TemporaryCredential != "" {
		out.TemporaryCredential = strPtr(delivery.TemporaryCredential)
	}
	return out, nil
}

func toAPISnapshot(snap service.Snapshot) provisioningapi.Snapshot {
	out := provisioningapi.Snapshot{
		Id:                snap.ID,
		TenantName:        snap.TenantName,
		TenantSlug:        snap.TenantSlug,
		AdminEmail:        snap.AdminEmail,
		Tier:              provisioningapi.Tier(snap.Tier),
		Status:            provisioningapi.Status(snap.Status),
		CurrentStep:       snap.CurrentStep,
		CurrentStepLabel:  snap.CurrentStepLabel,
		TotalSteps:        snap.TotalSteps,
		Warnings:          make([]provisioningapi.Warning, 0, len(snap.Warnings)),
		Resources:         make([]provisioningapi.Resource, 0, len(snap.Resources)),
		RecentAttempts:    make([]provisioningapi.Attempt, 0, len(snap.RecentAttempts)),
		Steps:             make([]provisioningapi.StepRecord, 0, len(snap.Steps)),
		Resets:            snap.Resets,
		CredentialPending: snap.CredentialPending,
		Version:           snap.Version,
		ApprovedBy:        snap.ApprovedBy,
		ApprovedAt:        snap.ApprovedAt,
		CreatedAt:         snap.CreatedAt,
		UpdatedAt:         snap.UpdatedAt,
	}
	out.CurrentStepName = optional(snap.CurrentStepName)
	out.Error = optional(snap.Error)
	out.ErrorStep = optional(snap.ErrorStep)
	out.Action = optional(snap.Action)
	out.InstanceUrl = optional(snap.InstanceURL)
	if snap.ErrorClass != "" {
		class := provisioningapi.SnapshotErrorClass(snap.ErrorClass)
		out.ErrorClass = &class
	}

	for _, w := range snap.Warnings {
		out.Warnings = append(out.Warnings, provisioningapi.Warning{Step: w.Step, Class: string(w.Class), Message: w.Message, At: w.At})
	}
	for _, res := range snap.Resources {
		out.Resources = append(out.Resources, provisioningapi.Resource{
			Kind:           provisioningapi.ResourceKind(res.Kind),
			Name:           res.Name,
			ExternalId:     optional(res.ExternalID),
			Status:         provisioningapi.ResourceStatus(res.Status),
			Endpoint:       optional(res.Endpoint),
			SecretRef:      optional(res.SecretRef),
			SecretsVersion: res.SecretsVersion,
			UpdatedAt:      res.UpdatedAt,
		})
	}
	for _, a := range snap.RecentAttempts {
		out.RecentAttempts = append(out.RecentAttempts, provisioningapi.Attempt{
			Step:       a.Step,
			Attempt:    a.Attempt,
			Outcome:    provisioningapi.AttemptOutcome(a.Outcome),
			ErrorClass: optional(a.ErrorClass),
			Error:      optional(a.Error),
			StartedAt:  a.StartedAt,
			DurationMs: int(a.DurationMs),
		})
	}
	for _, s := range snap.Steps {
		out.Steps = append(out.Steps, provisioningapi.StepRecord{
			Step:        s.Step,
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
			Attempts:    s.Attempts,
			Result:      optional(s.Result),
		})
	}
	return out
}

func (h *Handler) validationProblem(detail string) (int, provisioningapi.ProblemDetails) {
	problem := provisioningapi.ProblemDetails{
		Type:   strPtr(problemTypeValidation),
		Title:  "Validation failed",
		Detail: strPtr(detail),
		Status: http.StatusBadRequest,
	}
	return http.StatusBadRequest, problem
}

func (h *Handler) problemForError(ctx context.Context, err error, operation string) (int, provisioningapi.ProblemDetails) {
	problem := classifyError(err)

	logger := platformlogging.FromContextOr(ctx, h.logger)
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Int("status", problem.Status),
		zap.Error(err),
	}
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("provisioning operation failed", fields...)
	case problem.Status == http.StatusNotFound:
		logger.Info("provisioning resource not found", fields...)
	default:
		logger.Warn("provisioning request rejected", fields...)
	}
	return problem.Status, problem
}

func classifyError(err error) provisioningapi.ProblemDetails {
	problem := func(kind, title string, status int, detail string) provisioningapi.ProblemDetails {
		return provisioningapi.ProblemDetails{Type: strPtr(kind), Title: title, Status: status, Detail: strPtr(detail)}
	}

	var pErr *provider.Error
	switch {
	case errors.Is(err, service.ErrValidation):
		return problem(problemTypeValidation, "Validation failed", http.StatusBadRequest, detailOf(err))
	case errors.Is(err, service.ErrInvalidTier):
		return problem(problemTypeValidation, "Validation failed", http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return problem(problemTypeNotFound, "Resource not found", http.StatusNotFound, "provisioning request not found")
	case errors.Is(err, service.ErrAlreadyProvisioning):
		return problem(problemTypeConflict, "Already provisioning", http.StatusConflict, detailOf(err))
	case errors.Is(err, service.ErrNotResettable):
		return problem(problemTypeConflict, "Not resettable", http.StatusConflict, detailOf(err))
	case errors.Is(err, service.ErrVersionConflict):
		return problem(problemTypeConflict, "Concurrent update", http.StatusConflict, "the request changed while it was being updated, retry")
	case errors.As(err, &pErr):
		return problem(problemTypeUpstream, "Upstream provider failed", http.StatusBadGateway, fmt.Sprintf("%s %s: %s", pErr.Provider, pErr.Op, pErr.Class))
	default:
		return problem(problemTypeInternal, "Internal server error", http.StatusInternalServerError, "an unexpected error occurred")
	}
}

// RequestError answers undecodable bodies and malformed parameters.
func (h *Handler) RequestError(w http.ResponseWriter, r *http.Request, err error) {
	detail := "malformed request"
	var paramErr *provisioningapi.InvalidParamFormatError
	if errors.As(err, &paramErr) {
		detail = "invalid " + paramErr.ParamName
	}
	platformlogging.FromContextOr(r.Context(), h.logger).Warn("provisioning request rejected", zap.Error(err))
	status, problem := h.validationProblem(detail)
	writeProblem(w, status, problem)
}

func (h *Handler) responseError(w http.ResponseWriter, r *http.Request, err error) {
	status, problem := h.problemForError(r.Context(), err, "response")
	writeProblem(w, status, problem)
}

func writeProblem(w http.ResponseWriter, status int, problem provisioningapi.ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// detailOf returns the operator-facing part of a sentinel-wrapped error.
func detailOf(err error) string {
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, ": "); ok {
		return after
	}
	return msg
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func strPtr(value string) *string {
	return &value
}

// compile-time assertions to ensure interface compliance
var _ provisioningapi.StrictServerInterface = (*Handler)(nil)
