package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/palmyra-workspaces/contracts"
	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/handler"
	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/repo"
	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	provisioningapi "github.com/zenGate-Global/palmyra-workspaces/generated/go/provisioning"
	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
	platformmiddleware "github.com/zenGate-Global/palmyra-workspaces/platform/go/middleware"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

type recordingScheduler struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (s *recordingScheduler) Enqueue(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return true
}

type stubCredentials struct {
	err error
}

func (s stubCredentials) Deliver(context.Context, string, string) (service.Delivery, error) {
	return service.Delivery{Delivered: true}, nil
}

func (s stubCredentials) Resend(_ context.Context, email string) (service.Delivery, error) {
	if s.err != nil {
		return service.Delivery{}, s.err
	}
	if email == "manual@acme.test" {
		return service.Delivery{TemporaryCredential: "https://auth.example/reset"}, nil
	}
	return service.Delivery{Delivered: true}, nil
}

type env struct {
	server    *httptest.Server
	repo      *repo.MemoryRepository
	scheduler *recordingScheduler
}

func newEnv(t *testing.T, creds service.CredentialSender) *env {
	t.Helper()

	memRepo := repo.NewMemoryRepository()
	scheduler := &recordingScheduler{}
	svc := service.New(memRepo, scheduler, creds, service.Options{})
	e := serve(t, svc)
	e.repo, e.scheduler = memRepo, scheduler
	return e
}

// serve mounts svc behind the same auth and validation chain as the API.
func serve(t *testing.T, svc handler.Service) *env {
	t.Helper()
	h := handler.New(svc, zaptest.NewLogger(t))

	spec, err := contracts.GetSwagger()
	require.NoError(t, err)

	root := chi.NewRouter()
	root.Use(platformauth.JWT(func(_ context.Context, token string) (map[string]interface{}, error) {
		return map[string]interface{}{"uid": token, "roles": []interface{}{token}}, nil
	}, nil))

	api := chi.NewRouter()
	api.Use(platformauth.RequireRole(platformauth.RoleAdmin))
	api.Use(oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{AuthenticationFunc: platformmiddleware.ValidateAuthenticationViaSwagger},
	}))
	_ = provisioningapi.HandlerWithOptions(
		provisioningapi.NewStrictHandlerWithOptions(h, nil, h.StrictOptions()),
		provisioningapi.ChiServerOptions{BaseRouter: api, ErrorHandlerFunc: h.RequestError},
	)
	root.Mount("/api/v1", api)

	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return &env{server: srv}
}

type conflictingService struct {
	handler.Service
}

func (conflictingService) ResendCredentials(context.Context, string) (service.Delivery, error) {
	return service.Delivery{}, service.ErrVersionConflict
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (e *env) submit(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests", "admin", map[string]any{
		"tenantName": "Acme Studio",
		"adminEmail": "owner@acme.test",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func TestSubmitAndGet(t *testing.T) {
	e := newEnv(t, stubCredentials{})

	resp, body := e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests", "admin", map[string]any{
		"tenantName": "Acme Studio",
		"adminEmail": "owner@acme.test",
		"tier":       "premium",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "pending", body["status"])
	require.Equal(t, "acme-studio", body["tenantSlug"])
	require.Equal(t, "Awaiting approval", body["currentStepLabel"])
	id := body["id"].(string)
	require.Equal(t, "/api/v1/admin/provisioning-requests/"+id, resp.Header.Get("Location"))

	resp, body = e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests/"+id, "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "premium", body["tier"])
	require.EqualValues(t, 10, body["totalSteps"])
}

func TestApproveEnqueuesAndRejectsSecondApproval(t *testing.T) {
	e := newEnv(t, stubCredentials{})
	id := e.submit(t)

	resp, body := e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests/"+id+"/approve", "admin", map[string]any{"tier": "premium"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "provisioning", body["status"])
	require.Equal(t, "premium", body["tier"])
	require.Equal(t, "admin", body["approvedBy"])
	require.Len(t, e.scheduler.ids, 1)

	resp, body = e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests/"+id+"/approve", "admin", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	require.EqualValues(t, http.StatusConflict, body["status"])
	require.Len(t, e.scheduler.ids, 1)
}

func TestResetRequiresFailedRequest(t *testing.T) {
	e := newEnv(t, stubCredentials{})
	id := e.submit(t)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests/"+id+"/reset", "admin", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	stored, err := e.repo.Get(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	stored.Status = service.StatusFailed
	stored.CurrentStep = 3
	stored.Metadata.Failure = &service.Failure{Step: service.StepApplySchemaMigrations, Class: service.ClassPermanent, Reason: "syntax error"}
	_, err = e.repo.Update(context.Background(), stored)
	require.NoError(t, err)

	resp, body := e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests/"+id+"/reset", "admin", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "provisioning", body["status"])
	require.EqualValues(t, 1, body["resets"])
}

func TestNotFoundAndValidationProblems(t *testing.T) {
	e := newEnv(t, stubCredentials{})

	resp, body := e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests/"+uuid.NewString(), "admin", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Resource not found", body["title"])

	resp, _ = e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests", "admin", map[string]any{"tenantName": "Acme"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests", "admin", map[string]any{
		"tenantName": "Acme", "adminEmail": "a@acme.test", "tier": "gold",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests?status=exploded", "admin", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListFiltersByStatus(t *testing.T) {
	e := newEnv(t, stubCredentials{})
	first := e.submit(t)
	e.submit(t)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/admin/provisioning-requests/"+first+"/approve", "admin", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests?status=pending&page=1&pageSize=10", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["totalItems"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, "pending", items[0].(map[string]any)["status"])
}

func TestResendCredentials(t *testing.T) {
	e := newEnv(t, stubCredentials{})

	resp, body := e.do(t, http.MethodPost, "/api/v1/admin/credentials/resend", "admin", map[string]any{"email": "owner@acme.test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["delivered"])

	resp, body = e.do(t, http.MethodPost, "/api/v1/admin/credentials/resend", "admin", map[string]any{"email": "manual@acme.test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["delivered"])
	require.Equal(t, "https://auth.example/reset", body["temporaryCredential"])
}

func TestResendProviderFailureIsBadGateway(t *testing.T) {
	e := newEnv(t, stubCredentials{err: provider.FromStatus("notifier", "notify", http.StatusServiceUnavailable, nil, "down")})

	resp, body := e.do(t, http.MethodPost, "/api/v1/admin/credentials/resend", "admin", map[string]any{"email": "owner@acme.test"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "notifier notify: transient", body["detail"])
}

func TestAuthIsEnforced(t *testing.T) {
	e := newEnv(t, stubCredentials{})

	resp, _ := e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests", "viewer", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestResendReleasesHeldCredentialOnce(t *testing.T) {
	e := newEnv(t, stubCredentials{})
	id := e.submit(t)

	stored, err := e.repo.Get(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	stored.Status = service.StatusApproved
	stored.PendingCredential = "Temp-Password-1"
	stored.Metadata.CredentialPending = true
	_, err = e.repo.Update(context.Background(), stored)
	require.NoError(t, err)

	resp, body := e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests/"+id, "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["credentialPending"])
	require.NotContains(t, body, "pendingCredential")

	resp, body = e.do(t, http.MethodPost, "/api/v1/admin/credentials/resend", "admin", map[string]any{"email": "owner@acme.test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["delivered"])
	require.Equal(t, "Temp-Password-1", body["temporaryCredential"])

	resp, body = e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests/"+id, "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["credentialPending"])

	resp, body = e.do(t, http.MethodPost, "/api/v1/admin/credentials/resend", "admin", map[string]any{"email": "owner@acme.test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["delivered"])
	require.NotContains(t, body, "temporaryCredential")
}

func TestConcurrentResendIsConflict(t *testing.T) {
	e := serve(t, conflictingService{})

	resp, body := e.do(t, http.MethodPost, "/api/v1/admin/credentials/resend", "admin", map[string]any{"email": "owner@acme.test"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	require.Equal(t, "Concurrent update", body["title"])
}

func TestMalformedRequestsAreProblems(t *testing.T) {
	e := newEnv(t, stubCredentials{})

	resp, _ := e.do(t, http.MethodGet, "/api/v1/admin/provisioning-requests?page=abc", "admin", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/v1/admin/credentials/resend", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer admin")
	raw, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusBadRequest, raw.StatusCode)
}
