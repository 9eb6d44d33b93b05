package requesttrace

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "WORKSPACES_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo follows one operation from the operator console down to the provider calls it
// causes. Approvals and resets are stamped with its actor; pipeline runs add the provisioning
// request and the step in progress.
type AuditInfo struct {
	ActorKind ActorKind
	// UserID and Email are set only when ActorKind is user.
	UserID *string
	Email  string
	// RequestID is the HTTP request id; background work has none.
	RequestID      string
	ProvisioningID uuid.UUID
	Step           string
}

// Actor is the value stored in approvedBy: the user id, or the actor kind when there is none.
func (a AuditInfo) Actor() string {
	if a.UserID != nil && *a.UserID != "" {
		return *a.UserID
	}
	if a.ActorKind == "" {
		return string(ActorKindAnonymous)
	}
	return string(a.ActorKind)
}

// ForRun attributes a copy of a to the pipeline run of provisioning request id.
func (a AuditInfo) ForRun(id uuid.UUID) AuditInfo {
	a.ProvisioningID = id
	a.Step = ""
	return a
}

// AtStep returns a copy of a positioned on a pipeline step.
func (a AuditInfo) AtStep(step string) AuditInfo {
	a.Step = step
	return a
}

// CorrelationID is sent to providers as X-Request-Id. Runs use "<provisioning id>/<step>" so
// provider-side logs line up with attempt history; HTTP calls outside a run use the request id.
func (a AuditInfo) CorrelationID() string {
	if a.ProvisioningID == uuid.Nil {
		return a.RequestID
	}
	if a.Step == "" {
		return a.ProvisioningID.String()
	}
	return a.ProvisioningID.String() + "/" + a.Step
}

// Fields renders a as log fields, skipping unset values.
func (a AuditInfo) Fields() []zap.Field {
	fields := []zap.Field{zap.String("actor_kind", string(a.ActorKind))}
	if a.UserID != nil && *a.UserID != "" {
		fields = append(fields, zap.String("user_id", *a.UserID))
	}
	if a.RequestID != "" {
		fields = append(fields, zap.String("http_request_id", a.RequestID))
	}
	if a.ProvisioningID != uuid.Nil {
		fields = append(fields, zap.String("request_id", a.ProvisioningID.String()))
	}
	if a.Step != "" {
		fields = append(fields, zap.String("step", a.Step))
	}
	return fields
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	audit, ok := ctx.Value(ctxAuditInfo).(AuditInfo)
	return audit, ok
}

// FromContextOr returns the AuditInfo stored on the context, or fallback when absent.
func FromContextOr(ctx context.Context, fallback AuditInfo) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return fallback
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	return FromContextOr(ctx, Anonymous(""))
}

// FromCredentials attributes an HTTP request to the authenticated operator.
func FromCredentials(creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.ID == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	id := creds.ID
	return AuditInfo{
		ActorKind: ActorKindUser,
		UserID:    &id,
		Email:     creds.Email,
		RequestID: requestID,
	}, nil
}

// Anonymous builds an AuditInfo for requests without credentials.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for background work such as resumed runs and CLI maintenance.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}
