package provisioning

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/requesttrace"
)

func TestRateLimitWaitIsTransient(t *testing.T) {
	t.Parallel()

	api := newAPIClient(apiClientConfig{
		Provider:          "dbhost",
		BaseURL:           "http://127.0.0.1:1",
		RequestsPerSecond: 0.001,
		Burst:             1,
	})
	require.True(t, api.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := api.call(ctx, "get status", http.MethodGet, "/v1/projects/p1", nil, nil)
	require.Error(t, err)
	require.Equal(t, provider.Transient, provider.Classify(err))
	require.Contains(t, err.Error(), "rate limit wait")
}

func TestProviderCallsCarryRunCorrelation(t *testing.T) {
	t.Parallel()

	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Request-Id")
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	api := newAPIClient(apiClientConfig{Provider: "dbhost", BaseURL: srv.URL})
	id := uuid.New()
	audit := requesttrace.System("").ForRun(id).AtStep("create_database")
	ctx := requesttrace.IntoContext(context.Background(), audit)

	require.NoError(t, api.call(ctx, "create project", http.MethodPost, "/v1/projects", nil, nil))
	require.Equal(t, id.String()+"/create_database", <-got)

	require.NoError(t, api.call(context.Background(), "create project", http.MethodPost, "/v1/projects", nil, nil))
	require.Empty(t, <-got)
}
