package provisioning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

const databaseProvider = "database"

// migrationLedger records applied migrations inside each tenant database.
const migrationLedger = "_workspace_migrations"

// DatabaseConfig configures the database-hosting management API client.
type DatabaseConfig struct {
	BaseURL        string
	Token          string
	OrganizationID string
	Region         string
	// Plans maps a tier to the provider plan.
	Plans map[service.Tier]string
	// APIDomain is appended to the project ref to form its public endpoint.
	APIDomain string
	// DBPassword returns the postgres password for a new project.
	DBPassword        func() (string, error)
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Metrics           *metrics.Metrics
}

// DatabaseClient manages database projects through the provider's management API.
type DatabaseClient struct {
	api *apiClient
	cfg DatabaseConfig
}

// NewDatabaseClient validates cfg and builds a client.
func NewDatabaseClient(cfg DatabaseConfig) (*DatabaseClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("database provider base url is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("database provider token is required")
	}
	if cfg.OrganizationID == "" {
		return nil, errors.New("database provider organization id is required")
	}
	if cfg.APIDomain == "" {
		cfg.APIDomain = "supabase.co"
	}
	if cfg.DBPassword == nil {
		cfg.DBPassword = service.GeneratePassword
	}
	return &DatabaseClient{
		api: newAPIClient(apiClientConfig{
			Provider:          databaseProvider,
			BaseURL:           cfg.BaseURL,
			Token:             cfg.Token,
			HTTPClient:        cfg.HTTPClient,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Metrics:           cfg.Metrics,
		}),
		cfg: cfg,
	}, nil
}

type dbProject struct {
	ID     string `json:"id"`
	Ref    string `json:"ref"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func (p dbProject) ref() string {
	if p.Ref != "" {
		return p.Ref
	}
	return p.ID
}

type createDBProjectBody struct {
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id"`
	Region         string `json:"region,omitempty"`
	Plan           string `json:"plan,omitempty"`
	DBPass         string `json:"db_pass"`
}

func (c *DatabaseClient) CreateProject(ctx context.Context, spec service.DatabaseSpec) (provider.CreateResult, error) {
	password, err := c.cfg.DBPassword()
	if err != nil {
		return provider.CreateResult{}, provider.NewPermanent(databaseProvider, "create project", err)
	}

	var out dbProject
	err = c.api.call(ctx, "create project", http.MethodPost, "/v1/projects", createDBProjectBody{
		Name:           spec.Name,
		OrganizationID: c.cfg.OrganizationID,
		Region:         c.cfg.Region,
		Plan:           c.cfg.Plans[spec.Tier],
		DBPass:         password,
	}, &out)
	if provider.IsAlreadyExists(err) {
		id, found, ferr := c.FindProject(ctx, spec.Name)
		if ferr != nil {
			return provider.CreateResult{}, ferr
		}
		if !found {
			// the name is taken by something we cannot see
			return provider.CreateResult{}, err
		}
		return provider.CreateResult{ExternalID: id, Outcome: provider.AlreadyExists}, nil
	}
	if err != nil {
		return provider.CreateResult{}, err
	}
	return provider.CreateResult{ExternalID: out.ref(), Outcome: provider.Created}, nil
}

func (c *DatabaseClient) FindProject(ctx context.Context, name string) (string, bool, error) {
	var projects []dbProject
	if err := c.api.call(ctx, "list projects", http.MethodGet, "/v1/projects", nil, &projects); err != nil {
		return "", false, err
	}
	for _, p := range projects {
		if p.Name == name {
			return p.ref(), true, nil
		}
	}
	return "", false, nil
}

func (c *DatabaseClient) ProjectStatus(ctx context.Context, externalID string) (provider.Health, error) {
	var p dbProject
	if err := c.api.call(ctx, "get project", http.MethodGet, "/v1/projects/"+url.PathEscape(externalID), nil, &p); err != nil {
		return "", err
	}
	switch strings.ToUpper(p.Status) {
	case "ACTIVE_HEALTHY":
		return provider.HealthReady, nil
	case "INIT_FAILED", "REMOVED", "INACTIVE", "PAUSE_FAILED", "RESTORE_FAILED":
		return provider.HealthError, nil
	}
	return provider.HealthPending, nil
}

type dbAPIKey struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

func (c *DatabaseClient) APIKeys(ctx context.Context, externalID string) (service.DatabaseKeys, error) {
	var keys []dbAPIKey
	path := "/v1/projects/" + url.PathEscape(externalID) + "/api-keys"
	if err := c.api.call(ctx, "api keys", http.MethodGet, path, nil, &keys); err != nil {
		return service.DatabaseKeys{}, err
	}
	out := service.DatabaseKeys{Endpoint: c.endpoint(externalID)}
	for _, k := range keys {
		switch k.Name {
		case "anon":
			out.AnonKey = k.APIKey
		case "service_role":
			out.ServiceKey = k.APIKey
		}
	}
	if out.AnonKey == "" || out.ServiceKey == "" {
		// keys are issued shortly after the project turns healthy
		return service.DatabaseKeys{}, provider.NewTransient(databaseProvider, "api keys", errors.New("project keys not issued yet"))
	}
	return out, nil
}

type queryBody struct {
	Query string `json:"query"`
}

type ledgerRow struct {
	Checksum string `json:"checksum"`
}

// RunMigration applies m unless the tenant's ledger already lists it. The migration and its
// ledger entry commit together.
func (c *DatabaseClient) RunMigration(ctx context.Context, externalID string, m service.Migration) error {
	path := "/v1/projects/" + url.PathEscape(externalID) + "/database/query"

	ensure := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id text PRIMARY KEY, checksum text NOT NULL, applied_at timestamptz NOT NULL DEFAULT now())`, migrationLedger)
	if err := c.api.call(ctx, "run migration", http.MethodPost, path, queryBody{Query: ensure}, nil); err != nil {
		return err
	}

	var rows []ledgerRow
	lookup := fmt.Sprintf(`SELECT checksum FROM %s WHERE id = %s`, migrationLedger, quoteLiteral(m.ID))
	if err := c.api.call(ctx, "run migration", http.MethodPost, path, queryBody{Query: lookup}, &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		if m.Checksum != "" && rows[0].Checksum != m.Checksum {
			return provider.NewPermanent(databaseProvider, "run migration", fmt.Errorf("migration %s was applied with a different checksum", m.ID))
		}
		return nil
	}

	script := fmt.Sprintf("BEGIN;\n%s\n;\nINSERT INTO %s (id, checksum) VALUES (%s, %s);\nCOMMIT;",
		m.SQL, migrationLedger, quoteLiteral(m.ID), quoteLiteral(m.Checksum))
	return c.api.call(ctx, "run migration", http.MethodPost, path, queryBody{Query: script}, nil)
}

type authUserBody struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authUserList struct {
	Users []authUser `json:"users"`
}

// CreateAuthUser creates the workspace admin in the tenant's auth service.
func (c *DatabaseClient) CreateAuthUser(ctx context.Context, spec service.AuthUserSpec) (provider.CreateResult, error) {
	base := strings.TrimRight(spec.Endpoint, "/") + "/auth/v1/admin/users"
	header := http.Header{}
	header.Set("apikey", spec.ServiceKey)
	header.Set("Authorization", "Bearer "+spec.ServiceKey)

	var created authUser
	err := c.api.callURL(ctx, "create auth user", http.MethodPost, base, header, authUserBody{
		Email:        spec.Email,
		Password:     spec.Password,
		EmailConfirm: true,
		AppMetadata:  map[string]any{"role": "workspace_admin"},
	}, &created)
	if err == nil {
		return provider.CreateResult{ExternalID: created.ID, Outcome: provider.Created}, nil
	}
	if !userExists(err) {
		return provider.CreateResult{}, err
	}

	for page := 1; page <= 10; page++ {
		var list authUserList
		if lerr := c.api.callURL(ctx, "list auth users", http.MethodGet, fmt.Sprintf("%s?page=%d&per_page=100", base, page), header, nil, &list); lerr != nil {
			return provider.CreateResult{}, lerr
		}
		for _, u := range list.Users {
			if strings.EqualFold(u.Email, spec.Email) {
				return provider.CreateResult{ExternalID: u.ID, Outcome: provider.AlreadyExists}, nil
			}
		}
		if len(list.Users) < 100 {
			break
		}
	}
	return provider.CreateResult{Outcome: provider.AlreadyExists}, nil
}

func (c *DatabaseClient) endpoint(ref string) string {
	return "https://" + ref + "." + c.cfg.APIDomain
}

func userExists(err error) bool {
	if provider.IsAlreadyExists(err) {
		return true
	}
	var pErr *provider.Error
	return errors.As(err, &pErr) && pErr.StatusCode == http.StatusUnprocessableEntity && pErr.Code == "email_exists"
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

var _ service.DatabaseProvider = (*DatabaseClient)(nil)
