package provisioning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/errorutils"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

const (
	credentialsProvider = "credentials"
	workspaceAdminRole  = "workspace_admin"
)

// identityClient is the part of the Firebase auth client the sender uses.
type identityClient interface {
	GetUserByEmail(ctx context.Context, email string) (*firebaseauth.UserRecord, error)
	CreateUser(ctx context.Context, user *firebaseauth.UserToCreate) (*firebaseauth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *firebaseauth.UserToUpdate) (*firebaseauth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, claims map[string]interface{}) error
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

// Notice is what a Notifier hands to the admin.
type Notice struct {
	Email             string `json:"email"`
	TemporaryPassword string `json:"temporaryPassword,omitempty"`
	SetupLink         string `json:"setupLink"`
}

// Notifier transports a Notice to the workspace admin.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// FirebaseCredentialSender mirrors the workspace admin as a platform identity and sends a
// password setup link. Without a Notifier the link is returned for manual handover.
type FirebaseCredentialSender struct {
	auth     identityClient
	notifier Notifier
	logger   *zap.Logger
}

// NewFirebaseCredentialSender builds a sender on a Firebase auth client. notifier may be nil.
func NewFirebaseCredentialSender(client identityClient, notifier Notifier, logger *zap.Logger) *FirebaseCredentialSender {
	if client == nil {
		panic("credential sender requires an auth client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirebaseCredentialSender{auth: client, notifier: notifier, logger: logger}
}

func (s *FirebaseCredentialSender) Deliver(ctx context.Context, email, temporaryPassword string) (service.Delivery, error) {
	if temporaryPassword == "" {
		return service.Delivery{}, provider.NewPermanent(credentialsProvider, "deliver", errors.New("temporary password is required"))
	}

	uid, err := s.ensureUser(ctx, email, temporaryPassword)
	if err != nil {
		return service.Delivery{}, err
	}
	if err := s.auth.SetCustomUserClaims(ctx, uid, map[string]interface{}{"role": workspaceAdminRole}); err != nil {
		return service.Delivery{}, classifyFirebase("set claims", err)
	}
	return s.send(ctx, Notice{Email: email, TemporaryPassword: temporaryPassword})
}

func (s *FirebaseCredentialSender) Resend(ctx context.Context, email string) (service.Delivery, error) {
	if _, err := s.auth.GetUserByEmail(ctx, email); err != nil {
		if firebaseauth.IsUserNotFound(err) {
			return service.Delivery{}, fmt.Errorf("%w: no admin identity for %s", service.ErrNotFound, email)
		}
		return service.Delivery{}, classifyFirebase("get user", err)
	}
	return s.send(ctx, Notice{Email: email})
}

func (s *FirebaseCredentialSender) ensureUser(ctx context.Context, email, password string) (string, error) {
	existing, err := s.auth.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if _, err := s.auth.UpdateUser(ctx, existing.UID, (&firebaseauth.UserToUpdate{}).Password(password)); err != nil {
			return "", classifyFirebase("update user", err)
		}
		return existing.UID, nil
	case !firebaseauth.IsUserNotFound(err):
		return "", classifyFirebase("get user", err)
	}

	created, err := s.auth.CreateUser(ctx, (&firebaseauth.UserToCreate{}).Email(email).Password(password).EmailVerified(false))
	if err != nil {
		if firebaseauth.IsEmailAlreadyExists(err) {
			// created by a concurrent attempt; the next attempt takes the update path
			return "", provider.NewTransient(credentialsProvider, "create user", err)
		}
		return "", classifyFirebase("create user", err)
	}
	return created.UID, nil
}

func (s *FirebaseCredentialSender) send(ctx context.Context, n Notice) (service.Delivery, error) {
	link, err := s.auth.PasswordResetLink(ctx, n.Email)
	if err != nil {
		return service.Delivery{}, classifyFirebase("password link", err)
	}
	n.SetupLink = link

	if s.notifier == nil {
		s.logger.Warn("no credential notifier configured, returning setup link for manual handover")
		return service.Delivery{Delivered: false, TemporaryCredential: link}, nil
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return service.Delivery{}, err
	}
	return service.Delivery{Delivered: true}, nil
}

func classifyFirebase(op string, err error) error {
	switch {
	case errorutils.IsInvalidArgument(err), errorutils.IsPermissionDenied(err), errorutils.IsUnauthenticated(err),
		errorutils.IsNotFound(err), firebaseauth.IsConfigurationNotFound(err):
		return provider.NewPermanent(credentialsProvider, op, err)
	case errorutils.IsUnavailable(err), errorutils.IsInternal(err), errorutils.IsDeadlineExceeded(err),
		errorutils.IsResourceExhausted(err):
		return provider.NewTransient(credentialsProvider, op, err)
	}
	return provider.FromTransport(credentialsProvider, op, err)
}

// WebhookNotifier posts notices as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	api *apiClient
	url string
}

// WebhookConfig configures a WebhookNotifier.
type WebhookConfig struct {
	URL        string
	Token      string
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// NewWebhookNotifier validates cfg and builds a notifier.
func NewWebhookNotifier(cfg WebhookConfig) (*WebhookNotifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("webhook url is required")
	}
	return &WebhookNotifier{
		api: newAPIClient(apiClientConfig{
			Provider:   "notifier",
			Token:      cfg.Token,
			HTTPClient: cfg.HTTPClient,
			Metrics:    cfg.Metrics,
		}),
		url: cfg.URL,
	}, nil
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notice) error {
	return w.api.callURL(ctx, "notify", http.MethodPost, w.url, nil, n, nil)
}

// LogCredentialSender is the development sender: it never transmits anything and hands the
// temporary credential back to the operator.
type LogCredentialSender struct {
	logger *zap.Logger
}

func NewLogCredentialSender(logger *zap.Logger) *LogCredentialSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogCredentialSender{logger: logger}
}

func (s *LogCredentialSender) Deliver(_ context.Context, email, temporaryPassword string) (service.Delivery, error) {
	s.logger.Info("admin credentials ready for manual handover", zap.String("email", email))
	return service.Delivery{Delivered: false, TemporaryCredential: temporaryPassword}, nil
}

func (s *LogCredentialSender) Resend(_ context.Context, email string) (service.Delivery, error) {
	s.logger.Info("resend requested without a delivery channel", zap.String("email", email))
	return service.Delivery{Delivered: false}, nil
}

var (
	_ service.CredentialSender = (*FirebaseCredentialSender)(nil)
	_ service.CredentialSender = (*LogCredentialSender)(nil)
	_ Notifier                 = (*WebhookNotifier)(nil)
	_ identityClient           = (*firebaseauth.Client)(nil)
)
