package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/requesttrace"
)

// maxErrorBody bounds how much of an error response is kept as the operator-facing message.
const maxErrorBody = 2048

// apiClient is the JSON-over-HTTP plumbing shared by the provider adapters. Every failure
// leaves here as a *provider.Error.
type apiClient struct {
	provider   string
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

type apiClientConfig struct {
	Provider          string
	BaseURL           string
	Token             string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Burst             int
	Metrics           *metrics.Metrics
}

func newAPIClient(cfg apiClientConfig) *apiClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &apiClient{
		provider:   cfg.Provider,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    cfg.Metrics,
	}
}

// call issues method against baseURL+path. in is JSON encoded when non-nil; out is decoded
// from a 2xx body when non-nil.
func (c *apiClient) call(ctx context.Context, op, method, path string, in, out any) error {
	return c.callURL(ctx, op, method, c.baseURL+path, nil, in, out)
}

// callURL is call with an absolute URL and extra headers.
func (c *apiClient) callURL(ctx context.Context, op, method, url string, header http.Header, in, out any) error {
	// the limiter refuses waits that would outlive the attempt deadline without wrapping ctx errors
	if err := c.limiter.Wait(ctx); err != nil {
		return provider.NewTransient(c.provider, op, fmt.Errorf("rate limit wait: %w", err))
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return provider.NewPermanent(c.provider, op, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return provider.NewPermanent(c.provider, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := requesttrace.FromContextOrAnonymous(ctx).CorrelationID(); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("error")
		return provider.FromTransport(c.provider, op, err)
	}
	defer resp.Body.Close()
	c.observe(strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := provider.FromStatus(c.provider, op, resp.StatusCode, resp.Header, errorMessage(raw))
		perr.Code = errorCode(raw)
		return perr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// a 2xx we cannot read is neither safe to retry blindly nor a caller mistake
		return &provider.Error{Provider: c.provider, Op: op, Class: provider.Unknown, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

func (c *apiClient) observe(code string) {
	if c.metrics != nil {
		c.metrics.ProviderCalls.WithLabelValues(c.provider, code).Inc()
	}
}

// errorEnvelope covers the error shapes of the supported providers.
type errorEnvelope struct {
	Message   string `json:"message"`
	Msg       string `json:"msg"`
	Code      any    `json:"code"`
	ErrorCode string `json:"error_code"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(raw []byte) errorEnvelope {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	return env
}

func errorMessage(raw []byte) string {
	env := decodeEnvelope(raw)
	switch {
	case env.Error != nil && env.Error.Message != "":
		return env.Error.Message
	case env.Message != "":
		return env.Message
	case env.Msg != "":
		return env.Msg
	}
	return strings.TrimSpace(string(raw))
}

func errorCode(raw []byte) string {
	env := decodeEnvelope(raw)
	switch {
	case env.Error != nil && env.Error.Code != "":
		return env.Error.Code
	case env.ErrorCode != "":
		return env.ErrorCode
	}
	if s, ok := env.Code.(string); ok {
		return s
	}
	return ""
}
