package provisioning

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

const deploymentProvider = "deployment"

// DeploymentConfig configures the deployment-hosting API client.
type DeploymentConfig struct {
	BaseURL string
	Token   string
	TeamID  string
	// Framework preset of the workspace application.
	Framework string
	// GitRepository is the "owner/name" of the workspace application source.
	GitRepository string
	GitRef        string
	// Regions maps a tier to the function region.
	Regions           map[service.Tier]string
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Metrics           *metrics.Metrics
}

// DeploymentClient manages deployment projects through the provider's REST API.
type DeploymentClient struct {
	api *apiClient
	cfg DeploymentConfig
}

// NewDeploymentClient validates cfg and builds a client.
func NewDeploymentClient(cfg DeploymentConfig) (*DeploymentClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("deployment provider base url is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("deployment provider token is required")
	}
	if cfg.GitRepository == "" {
		return nil, errors.New("deployment git repository is required")
	}
	if cfg.GitRef == "" {
		cfg.GitRef = "main"
	}
	return &DeploymentClient{
		api: newAPIClient(apiClientConfig{
			Provider:          deploymentProvider,
			BaseURL:           cfg.BaseURL,
			Token:             cfg.Token,
			HTTPClient:        cfg.HTTPClient,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Metrics:           cfg.Metrics,
		}),
		cfg: cfg,
	}, nil
}

type gitRepository struct {
	Type string `json:"type"`
	Repo string `json:"repo"`
}

type createDeployProjectBody struct {
	Name                     string         `json:"name"`
	Framework                string         `json:"framework,omitempty"`
	GitRepository            *gitRepository `json:"gitRepository,omitempty"`
	ServerlessFunctionRegion string         `json:"serverlessFunctionRegion,omitempty"`
}

type deployProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *DeploymentClient) CreateProject(ctx context.Context, spec service.DeploymentSpec) (provider.CreateResult, error) {
	var out deployProject
	err := c.api.call(ctx, "create project", http.MethodPost, c.path("/v10/projects", nil), createDeployProjectBody{
		Name:                     spec.Name,
		Framework:                c.cfg.Framework,
		GitRepository:            &gitRepository{Type: "github", Repo: c.cfg.GitRepository},
		ServerlessFunctionRegion: c.cfg.Regions[spec.Tier],
	}, &out)
	if provider.IsAlreadyExists(err) {
		id, found, ferr := c.FindProject(ctx, spec.Name)
		if ferr != nil {
			return provider.CreateResult{}, ferr
		}
		if !found {
			return provider.CreateResult{}, err
		}
		return provider.CreateResult{ExternalID: id, Outcome: provider.AlreadyExists}, nil
	}
	if err != nil {
		return provider.CreateResult{}, err
	}
	return provider.CreateResult{ExternalID: out.ID, Outcome: provider.Created}, nil
}

func (c *DeploymentClient) FindProject(ctx context.Context, name string) (string, bool, error) {
	var out deployProject
	err := c.api.call(ctx, "find project", http.MethodGet, c.path("/v9/projects/"+url.PathEscape(name), nil), nil, &out)
	if provider.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return out.ID, true, nil
}

type envVarBody struct {
	Key    string   `json:"key"`
	Value  string   `json:"value"`
	Type   string   `json:"type"`
	Target []string `json:"target"`
}

func (c *DeploymentClient) SetEnv(ctx context.Context, externalID string, vars []service.EnvVar) error {
	body := make([]envVarBody, 0, len(vars))
	for _, v := range vars {
		kind := "plain"
		if v.Sensitive {
			kind = "sensitive"
		}
		body = append(body, envVarBody{Key: v.Key, Value: v.Value, Type: kind, Target: []string{"production", "preview"}})
	}
	q := url.Values{"upsert": {"true"}}
	return c.api.call(ctx, "set env", http.MethodPost, c.path("/v10/projects/"+url.PathEscape(externalID)+"/env", q), body, nil)
}

type gitSource struct {
	Type string `json:"type"`
	Repo string `json:"repo"`
	Ref  string `json:"ref"`
}

type createDeploymentBody struct {
	Name      string    `json:"name"`
	Project   string    `json:"project"`
	Target    string    `json:"target"`
	GitSource gitSource `json:"gitSource"`
}

type deployment struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	ReadyState string   `json:"readyState"`
	Alias      []string `json:"alias"`
}

func (c *DeploymentClient) TriggerDeploy(ctx context.Context, externalID string) (string, error) {
	var out deployment
	err := c.api.call(ctx, "trigger deploy", http.MethodPost, c.path("/v13/deployments", nil), createDeploymentBody{
		Name:      externalID,
		Project:   externalID,
		Target:    "production",
		GitSource: gitSource{Type: "github", Repo: c.cfg.GitRepository, Ref: c.cfg.GitRef},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *DeploymentClient) DeploymentStatus(ctx context.Context, deploymentID string) (service.DeploymentState, error) {
	var out deployment
	if err := c.api.call(ctx, "deployment status", http.MethodGet, c.path("/v13/deployments/"+url.PathEscape(deploymentID), nil), nil, &out); err != nil {
		return service.DeploymentState{}, err
	}

	state := service.DeploymentState{Health: provider.HealthPending}
	switch strings.ToUpper(out.ReadyState) {
	case "READY":
		state.Health = provider.HealthReady
	case "ERROR", "CANCELED":
		state.Health = provider.HealthError
	}
	host := out.URL
	if len(out.Alias) > 0 {
		host = out.Alias[0]
	}
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	state.URL = host
	return state, nil
}

func (c *DeploymentClient) path(p string, q url.Values) string {
	if c.cfg.TeamID != "" {
		if q == nil {
			q = url.Values{}
		}
		q.Set("teamId", c.cfg.TeamID)
	}
	if len(q) == 0 {
		return p
	}
	return p + "?" + q.Encode()
}

var _ service.DeploymentProvider = (*DeploymentClient)(nil)
