package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

func newTestDatabaseClient(t *testing.T, h http.Handler) (*DatabaseClient, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	m := metrics.New()
	client, err := NewDatabaseClient(DatabaseConfig{
		BaseURL:        srv.URL,
		Token:          "mgmt-token",
		OrganizationID: "org_1",
		Region:         "eu-west-1",
		Plans:          map[service.Tier]string{service.TierStandard: "free", service.TierPremium: "pro"},
		DBPassword:     func() (string, error) { return "db-pass", nil },
		HTTPClient:     srv.Client(),
		Metrics:        m,
	})
	require.NoError(t, err)
	return client, m
}

func TestNewDatabaseClientValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewDatabaseClient(DatabaseConfig{Token: "t", OrganizationID: "o"})
	require.Error(t, err)
	_, err = NewDatabaseClient(DatabaseConfig{BaseURL: "http://x", OrganizationID: "o"})
	require.Error(t, err)
	_, err = NewDatabaseClient(DatabaseConfig{BaseURL: "http://x", Token: "t"})
	require.Error(t, err)
}

func TestDatabaseCreateProject(t *testing.T) {
	t.Parallel()

	var got createDBProjectBody
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer mgmt-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abcd","ref":"abcd","name":"prod-acme-1234abcd","status":"COMING_UP"}`))
	})
	client, m := newTestDatabaseClient(t, mux)

	res, err := client.CreateProject(context.Background(), service.DatabaseSpec{Name: "prod-acme-1234abcd", Tier: service.TierPremium})
	require.NoError(t, err)
	require.Equal(t, provider.CreateResult{ExternalID: "abcd", Outcome: provider.Created}, res)
	require.Equal(t, "pro", got.Plan)
	require.Equal(t, "org_1", got.OrganizationID)
	require.Equal(t, "db-pass", got.DBPass)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("database", "201")))
}

func TestDatabaseCreateProjectAdoptsExistingName(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"project name already taken"}`))
	})
	mux.HandleFunc("GET /v1/projects", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"zzz","name":"other"},{"id":"efgh","ref":"efgh","name":"prod-acme-1234abcd"}]`))
	})
	client, _ := newTestDatabaseClient(t, mux)

	res, err := client.CreateProject(context.Background(), service.DatabaseSpec{Name: "prod-acme-1234abcd", Tier: service.TierStandard})
	require.NoError(t, err)
	require.Equal(t, provider.AlreadyExists, res.Outcome)
	require.Equal(t, "efgh", res.ExternalID)
}

func TestDatabaseErrorsAreClassified(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"message":"organization quota exceeded"}`))
	})
	mux.HandleFunc("GET /v1/projects/{ref}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	client, _ := newTestDatabaseClient(t, mux)

	_, err := client.CreateProject(context.Background(), service.DatabaseSpec{Name: "n", Tier: service.TierStandard})
	require.True(t, provider.IsPermanent(err))
	require.Contains(t, err.Error(), "organization quota exceeded")

	_, err = client.ProjectStatus(context.Background(), "abcd")
	require.Equal(t, provider.Transient, provider.Classify(err))
	require.Positive(t, provider.RetryAfterOf(err))
}

func TestDatabaseProjectStatusMapping(t *testing.T) {
	t.Parallel()

	statuses := map[string]string{"ready": "ACTIVE_HEALTHY", "pending": "COMING_UP", "failed": "INIT_FAILED"}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/projects/{ref}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": r.PathValue("ref"), "status": statuses[r.PathValue("ref")]})
	})
	client, _ := newTestDatabaseClient(t, mux)

	for ref, want := range map[string]provider.Health{"ready": provider.HealthReady, "pending": provider.HealthPending, "failed": provider.HealthError} {
		got, err := client.ProjectStatus(context.Background(), ref)
		require.NoError(t, err)
		require.Equal(t, want, got, ref)
	}
}

func TestDatabaseAPIKeys(t *testing.T) {
	t.Parallel()

	var issued atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/projects/{ref}/api-keys", func(w http.ResponseWriter, r *http.Request) {
		if !issued.Load() {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"name":"anon","api_key":"anon-k"},{"name":"service_role","api_key":"svc-k"}]`))
	})
	client, _ := newTestDatabaseClient(t, mux)

	_, err := client.APIKeys(context.Background(), "abcd")
	require.Equal(t, provider.Transient, provider.Classify(err))

	issued.Store(true)
	keys, err := client.APIKeys(context.Background(), "abcd")
	require.NoError(t, err)
	require.Equal(t, service.DatabaseKeys{Endpoint: "https://abcd.supabase.co", AnonKey: "anon-k", ServiceKey: "svc-k"}, keys)
}

// fakeQueryAPI keeps the migration ledger of one tenant database.
type fakeQueryAPI struct {
	mu      sync.Mutex
	applied map[string]string
	scripts []string
}

func (f *fakeQueryAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasPrefix(body.Query, "CREATE TABLE IF NOT EXISTS"):
		_, _ = w.Write([]byte(`[]`))
	case strings.HasPrefix(body.Query, "SELECT checksum"):
		for id, sum := range f.applied {
			if strings.Contains(body.Query, "'"+id+"'") {
				_ = json.NewEncoder(w).Encode([]ledgerRow{{Checksum: sum}})
				return
			}
		}
		_, _ = w.Write([]byte(`[]`))
	case strings.HasPrefix(body.Query, "BEGIN;"):
		if strings.Contains(body.Query, "syntax error here") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"syntax error at or near \"here\""}`))
			return
		}
		f.scripts = append(f.scripts, body.Query)
		_, _ = w.Write([]byte(`[]`))
	}
}

func TestDatabaseRunMigrationIsIdempotent(t *testing.T) {
	t.Parallel()

	api := &fakeQueryAPI{applied: map[string]string{"001_core": "sum-1"}}
	mux := http.NewServeMux()
	mux.Handle("POST /v1/projects/{ref}/database/query", api)
	client, _ := newTestDatabaseClient(t, mux)
	ctx := context.Background()

	require.NoError(t, client.RunMigration(ctx, "abcd", service.Migration{ID: "001_core", SQL: "create table a(id int)", Checksum: "sum-1"}))
	require.Empty(t, api.scripts)

	require.NoError(t, client.RunMigration(ctx, "abcd", service.Migration{ID: "002_collab", SQL: "create table b(id int)", Checksum: "sum-2"}))
	require.Len(t, api.scripts, 1)
	require.Contains(t, api.scripts[0], "INSERT INTO _workspace_migrations (id, checksum) VALUES ('002_collab', 'sum-2')")

	err := client.RunMigration(ctx, "abcd", service.Migration{ID: "001_core", SQL: "create table a(id int)", Checksum: "changed"})
	require.True(t, provider.IsPermanent(err))

	err = client.RunMigration(ctx, "abcd", service.Migration{ID: "003_bad", SQL: "syntax error here", Checksum: "sum-3"})
	require.True(t, provider.IsPermanent(err))
}

func TestDatabaseCreateAuthUser(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "svc-k", r.Header.Get("apikey"))
		require.Equal(t, "Bearer svc-k", r.Header.Get("Authorization"))
		var body authUserBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Email == "taken@acme.test" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
			return
		}
		require.Equal(t, "workspace_admin", body.AppMetadata["role"])
		_, _ = w.Write([]byte(`{"id":"user-new","email":"` + body.Email + `"}`))
	})
	mux.HandleFunc("GET /auth/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[{"id":"user-old","email":"Taken@acme.test"}]}`))
	})
	client, _ := newTestDatabaseClient(t, mux)
	srvURL := client.api.baseURL

	res, err := client.CreateAuthUser(context.Background(), service.AuthUserSpec{Endpoint: srvURL, ServiceKey: "svc-k", Email: "new@acme.test", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, provider.CreateResult{ExternalID: "user-new", Outcome: provider.Created}, res)

	res, err = client.CreateAuthUser(context.Background(), service.AuthUserSpec{Endpoint: srvURL, ServiceKey: "svc-k", Email: "taken@acme.test", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, provider.CreateResult{ExternalID: "user-old", Outcome: provider.AlreadyExists}, res)
}

func TestQuoteLiteral(t *testing.T) {
	t.Parallel()

	require.Equal(t, "'o''brien'", quoteLiteral("o'brien"))
}
