package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	platformauth "github.com/zenGate-Global/palmyra-workspaces/platform/go/auth"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/requesttrace"
)

func bearer(payload string) string {
	return "Bearer eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func TestRequestTraceWithAuth(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(platformauth.JWT(platformauth.UnsignedTokenVerifier(), nil))
	r.Use(RequestTrace)

	r.Get("/test", func(w http.ResponseWriter, req *http.Request) {
		audit, ok := requesttrace.FromContext(req.Context())
		require.True(t, ok)
		require.Equal(t, requesttrace.ActorKindUser, audit.ActorKind)
		require.NotNil(t, audit.UserID)
		require.Equal(t, "operator-7", *audit.UserID)
		require.Equal(t, "console-42", audit.RequestID)
		require.Equal(t, "console-42", audit.CorrelationID())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", bearer(`{"uid":"operator-7","roles":["admin"]}`))
	req.Header.Set(RequestIDHeader, "console-42")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "console-42", resp.Header().Get(RequestIDHeader))
}

func TestRequestTraceRejectsCredentialsWithoutUser(t *testing.T) {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := platformauth.WithUser(req.Context(), &platformauth.UserCredentials{Roles: []string{platformauth.RoleAdmin}})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Use(RequestTrace)
	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRequestTraceAnonymous(t *testing.T) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestTrace)

	r.Get("/test", func(w http.ResponseWriter, req *http.Request) {
		audit, ok := requesttrace.FromContext(req.Context())
		require.True(t, ok)
		require.Equal(t, requesttrace.ActorKindAnonymous, audit.ActorKind)
		require.Nil(t, audit.UserID)
		require.NotEmpty(t, audit.RequestID)
		w.WriteHeader(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, resp.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://console.example"}})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/provisioning-requests", nil)
	req.Header.Set("Origin", "https://console.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://console.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestValidateAuthenticationViaSwagger(t *testing.T) {
	validate := func(req *http.Request, scopes ...string) error {
		return ValidateAuthenticationViaSwagger(req.Context(), &openapi3filter.AuthenticationInput{
			RequestValidationInput: &openapi3filter.RequestValidationInput{Request: req},
			SecuritySchemeName:     "bearerAuth",
			Scopes:                 scopes,
		})
	}

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Error(t, validate(anon))

	viewer := anon.WithContext(platformauth.WithUser(anon.Context(), &platformauth.UserCredentials{ID: "u1", Roles: []string{"viewer"}}))
	require.NoError(t, validate(viewer))
	require.Error(t, validate(viewer, platformauth.RoleAdmin))

	admin := anon.WithContext(platformauth.WithUser(anon.Context(), &platformauth.UserCredentials{ID: "u2", Roles: []string{platformauth.RoleAdmin}}))
	require.NoError(t, validate(admin, platformauth.RoleAdmin))
}
