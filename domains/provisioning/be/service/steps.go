package service

// Step names in execution order.
const (
	StepCreateDatabase           = "create_database"
	StepAwaitDatabaseHealthy     = "await_database_healthy"
	StepFetchDatabaseCredentials = "fetch_database_credentials"
	StepApplySchemaMigrations    = "apply_schema_migrations"
	StepCreateDeployment         = "create_deployment"
	StepConfigureDeploymentEnv   = "configure_deployment_env"
	StepTriggerDeployment        = "trigger_deployment"
	StepAwaitDeploymentLive      = "await_deployment_live"
	StepCreateAdminIdentity      = "create_admin_identity"
	StepFinalize                 = "finalize"
)

// StepInfo describes a pipeline step for operators.
type StepInfo struct {
	Name  string
	Label string
	// Poll steps wait for provider readiness instead of mutating anything.
	Poll bool
	// Done reports whether the step's durable side effect is already recorded on req.
	Done func(req *ProvisioningRequest) bool
}

var steps = []StepInfo{
	{
		Name:  StepCreateDatabase,
		Label: "Creating database project",
		Done: func(req *ProvisioningRequest) bool {
			db, ok := req.Resource(ResourceDatabase)
			return ok && db.ExternalID != ""
		},
	},
	{
		Name:  StepAwaitDatabaseHealthy,
		Label: "Waiting for database to become healthy",
		Poll:  true,
		Done: func(req *ProvisioningRequest) bool {
			db, ok := req.Resource(ResourceDatabase)
			return ok && db.Status == ResourceReady
		},
	},
	{
		Name:  StepFetchDatabaseCredentials,
		Label: "Fetching database credentials",
		Done: func(req *ProvisioningRequest) bool {
			db, ok := req.Resource(ResourceDatabase)
			return ok && db.SecretsVersion > 0 && req.Metadata.DatabaseKeysRef == db.SecretRef
		},
	},
	{
		Name:  StepApplySchemaMigrations,
		Label: "Applying schema migrations",
		Done: func(req *ProvisioningRequest) bool {
			return req.Metadata.MigrationsComplete
		},
	},
	{
		Name:  StepCreateDeployment,
		Label: "Creating deployment project",
		Done: func(req *ProvisioningRequest) bool {
			d, ok := req.Resource(ResourceDeployment)
			return ok && d.ExternalID != ""
		},
	},
	{
		Name:  StepConfigureDeploymentEnv,
		Label: "Configuring deployment environment",
		Done: func(req *ProvisioningRequest) bool {
			db, ok := req.Resource(ResourceDatabase)
			return ok && db.SecretsVersion > 0 && req.Metadata.EnvSecretsVersion == db.SecretsVersion
		},
	},
	{
		Name:  StepTriggerDeployment,
		Label: "Triggering deployment",
		Done: func(req *ProvisioningRequest) bool {
			// a deployment the provider declared failed must be triggered again
			d, ok := req.Resource(ResourceDeployment)
			return req.Metadata.DeploymentID != "" && ok && d.Status != ResourceFailed
		},
	},
	{
		Name:  StepAwaitDeploymentLive,
		Label: "Waiting for deployment to go live",
		Poll:  true,
		Done: func(req *ProvisioningRequest) bool {
			d, ok := req.Resource(ResourceDeployment)
			return ok && d.Status == ResourceReady
		},
	},
	{
		Name:  StepCreateAdminIdentity,
		Label: "Creating workspace admin",
		Done: func(req *ProvisioningRequest) bool {
			return req.Metadata.AdminIdentityCreated
		},
	},
	{
		Name:  StepFinalize,
		Label: "Finalizing",
		Done: func(req *ProvisioningRequest) bool {
			return req.Status == StatusApproved
		},
	},
}

// Steps returns the ordered pipeline.
func Steps() []StepInfo {
	out := make([]StepInfo, len(steps))
	copy(out, steps)
	return out
}

// StepCount is the number of pipeline steps.
func StepCount() int { return len(steps) }

// StepIndex returns the position of name, or -1.
func StepIndex(name string) int {
	for i, s := range steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// StepName returns the name of the step at i, or "" when out of range.
func StepName(i int) string {
	if i < 0 || i >= len(steps) {
		return ""
	}
	return steps[i].Name
}

// StepLabel returns the operator-facing label of the step at i.
func StepLabel(i int) string {
	if i < 0 || i >= len(steps) {
		return ""
	}
	return steps[i].Label
}

// ResumePoint returns the first step whose side effect is not recorded on req.
func ResumePoint(req *ProvisioningRequest) int {
	for i, s := range steps {
		if !s.Done(req) {
			return i
		}
	}
	return len(steps) - 1
}
