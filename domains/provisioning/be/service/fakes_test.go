package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/lock"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/provider"
)

// script hands out queued errors per operation, then nil.
type script struct {
	mu    sync.Mutex
	errs  map[string][]error
	calls map[string]int
	// always returns the error for every call of an operation
	always map[string]error
	// hook runs before every call
	hook func(op string)
}

func newScript() *script {
	return &script{errs: map[string][]error{}, calls: map[string]int{}, always: map[string]error{}}
}

func (s *script) fail(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[op] = append(s.errs[op], errs...)
}

func (s *script) failAlways(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.always, op)
		return
	}
	s.always[op] = err
}

func (s *script) next(op string) error {
	if s.hook != nil {
		s.hook(op)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if err, ok := s.always[op]; ok {
		return err
	}
	if q := s.errs[op]; len(q) > 0 {
		s.errs[op] = q[1:]
		return q[0]
	}
	return nil
}

func (s *script) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

type fakeDatabase struct {
	*script
	mu         sync.Mutex
	projects   map[string]string
	created    int
	health     func(call int) provider.Health
	healthCall int
	applied    []string
	users      map[string]string
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{script: newScript(), projects: map[string]string{}, users: map[string]string{}}
}

func (f *fakeDatabase) CreateProject(ctx context.Context, spec service.DatabaseSpec) (provider.CreateResult, error) {
	if err := f.next("create_project"); err != nil {
		return provider.CreateResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.projects[spec.Name]; ok {
		return provider.CreateResult{ExternalID: id, Outcome: provider.AlreadyExists}, nil
	}
	f.created++
	id := fmt.Sprintf("db_%d", f.created)
	f.projects[spec.Name] = id
	return provider.CreateResult{ExternalID: id, Outcome: provider.Created}, nil
}

func (f *fakeDatabase) FindProject(ctx context.Context, name string) (string, bool, error) {
	if err := f.next("find_project"); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.projects[name]
	return id, ok, nil
}

func (f *fakeDatabase) ProjectStatus(ctx context.Context, externalID string) (provider.Health, error) {
	if err := f.next("project_status"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthCall++
	if f.health != nil {
		return f.health(f.healthCall), nil
	}
	return provider.HealthReady, nil
}

func (f *fakeDatabase) APIKeys(ctx context.Context, externalID string) (service.DatabaseKeys, error) {
	if err := f.next("api_keys"); err != nil {
		return service.DatabaseKeys{}, err
	}
	return service.DatabaseKeys{
		Endpoint:   "https://" + externalID + ".db.example",
		AnonKey:    "anon-" + externalID,
		ServiceKey: "service-" + externalID,
	}, nil
}

func (f *fakeDatabase) RunMigration(ctx context.Context, externalID string, m service.Migration) error {
	if err := f.next("run_migration:" + m.ID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, m.ID)
	return nil
}

func (f *fakeDatabase) CreateAuthUser(ctx context.Context, spec service.AuthUserSpec) (provider.CreateResult, error) {
	if err := f.next("create_auth_user"); err != nil {
		return provider.CreateResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.users[spec.Email]; ok {
		return provider.CreateResult{ExternalID: id, Outcome: provider.AlreadyExists}, nil
	}
	id := fmt.Sprintf("user_%d", len(f.users)+1)
	f.users[spec.Email] = id
	return provider.CreateResult{ExternalID: id, Outcome: provider.Created}, nil
}

func (f *fakeDatabase) projectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects)
}

type fakeDeployment struct {
	*script
	mu       sync.Mutex
	projects map[string]string
	env      map[string][]service.EnvVar
	deploys  int
	health   func(call int) provider.Health
	url      func(call int) string
	calls    int
}

func newFakeDeployment() *fakeDeployment {
	return &fakeDeployment{script: newScript(), projects: map[string]string{}, env: map[string][]service.EnvVar{}}
}

func (f *fakeDeployment) CreateProject(ctx context.Context, spec service.DeploymentSpec) (provider.CreateResult, error) {
	if err := f.next("create_project"); err != nil {
		return provider.CreateResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.projects[spec.Name]; ok {
		return provider.CreateResult{ExternalID: id, Outcome: provider.AlreadyExists}, nil
	}
	id := fmt.Sprintf("prj_%d", len(f.projects)+1)
	f.projects[spec.Name] = id
	return provider.CreateResult{ExternalID: id, Outcome: provider.Created}, nil
}

func (f *fakeDeployment) FindProject(ctx context.Context, name string) (string, bool, error) {
	if err := f.next("find_project"); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.projects[name]
	return id, ok, nil
}

func (f *fakeDeployment) SetEnv(ctx context.Context, externalID string, vars []service.EnvVar) error {
	if err := f.next("set_env"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.env[externalID] = vars
	return nil
}

func (f *fakeDeployment) TriggerDeploy(ctx context.Context, externalID string) (string, error) {
	if err := f.next("trigger_deploy"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deploys++
	return fmt.Sprintf("dpl_%d", f.deploys), nil
}

func (f *fakeDeployment) DeploymentStatus(ctx context.Context, deploymentID string) (service.DeploymentState, error) {
	if err := f.next("deployment_status"); err != nil {
		return service.DeploymentState{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	health := provider.HealthReady
	if f.health != nil {
		health = f.health(f.calls)
	}
	url := "https://" + deploymentID + ".app.example"
	if f.url != nil {
		url = f.url(f.calls)
	}
	return service.DeploymentState{Health: health, URL: url}, nil
}

func (f *fakeDeployment) projectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects)
}

type fakeMigrations struct{}

func (fakeMigrations) Migrations(ctx context.Context, tier service.Tier) (string, []service.Migration, error) {
	ms := []service.Migration{
		{ID: "standard/001_core.sql", SQL: "CREATE TABLE clients (id uuid primary key);"},
		{ID: "standard/002_collaboration.sql", SQL: "CREATE TABLE projects (id uuid primary key);"},
		{ID: "standard/003_access.sql", SQL: "CREATE TABLE workspace_members (id uuid primary key);"},
	}
	if tier == service.TierPremium {
		ms = append(ms, service.Migration{ID: "premium/101_advertising.sql", SQL: "CREATE TABLE advertisements (id uuid primary key);"})
	}
	return string(tier), ms, nil
}

type fakeCredentials struct {
	mu        sync.Mutex
	delivered []string
	resent    []string
	err       error
	// manual hands the password back instead of sending it, like a sender without a mailer.
	manual bool
}

func (f *fakeCredentials) Deliver(ctx context.Context, email, temporaryPassword string) (service.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return service.Delivery{}, f.err
	}
	if temporaryPassword == "" {
		return service.Delivery{}, errors.New("empty password")
	}
	if f.manual {
		return service.Delivery{TemporaryCredential: temporaryPassword}, nil
	}
	f.delivered = append(f.delivered, email)
	return service.Delivery{Delivered: true}, nil
}

func (f *fakeCredentials) Resend(ctx context.Context, email string) (service.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resent = append(f.resent, email)
	return service.Delivery{Delivered: !f.manual}, nil
}

// slowReleaseLocker blocks the first lease release until release is closed.
type slowReleaseLocker struct {
	lock.Locker
	releasing chan struct{}
	release   chan struct{}
	once      sync.Once
}

func newSlowReleaseLocker() *slowReleaseLocker {
	return &slowReleaseLocker{
		Locker:    lock.NewMemoryLocker(),
		releasing: make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (l *slowReleaseLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (lock.Lease, bool, error) {
	lease, ok, err := l.Locker.TryAcquire(ctx, key, ttl)
	if err != nil || !ok {
		return lease, ok, err
	}
	return &slowLease{Lease: lease, locker: l}, true, nil
}

type slowLease struct {
	lock.Lease
	locker *slowReleaseLocker
}

func (s *slowLease) Release(ctx context.Context) error {
	s.locker.once.Do(func() {
		close(s.locker.releasing)
		<-s.locker.release
	})
	return s.Lease.Release(ctx)
}

type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func transient(op string) error {
	return provider.FromStatus("fake", op, http.StatusServiceUnavailable, nil, "temporarily unavailable")
}

func permanent(op, message string) error {
	return provider.FromStatus("fake", op, http.StatusUnprocessableEntity, nil, message)
}
