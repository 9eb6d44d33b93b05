package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
)

// MemoryRepository is an in-memory implementation suitable for tests, the CLI and local development.
// Every read returns a deep copy, so callers never observe a write in progress.
type MemoryRepository struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]service.ProvisioningRequest
	attempts map[uuid.UUID][]service.AttemptRecord
	now      func() time.Time
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[uuid.UUID]service.ProvisioningRequest),
		attempts: make(map[uuid.UUID][]service.AttemptRecord),
		now:      time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, req service.ProvisioningRequest) (service.ProvisioningRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[req.ID]; exists {
		return service.ProvisioningRequest{}, service.ErrVersionConflict
	}
	if req.Status == service.StatusProvisioning && r.slugActive(req.TenantSlug, req.ID) {
		return service.ProvisioningRequest{}, service.ErrAlreadyProvisioning
	}
	req.Version = 1
	r.byID[req.ID] = req.Clone()
	return req.Clone(), nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.ProvisioningRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.byID[id]
	if !ok {
		return service.ProvisioningRequest{}, service.ErrNotFound
	}
	return req.Clone(), nil
}

func (r *MemoryRepository) Read(ctx context.Context, id uuid.UUID, attemptLimit int) (service.ProvisioningRequest, []service.AttemptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.byID[id]
	if !ok {
		return service.ProvisioningRequest{}, nil, service.ErrNotFound
	}
	all := r.attempts[id]
	start := 0
	if attemptLimit > 0 && len(all) > attemptLimit {
		start = len(all) - attemptLimit
	}
	recent := make([]service.AttemptRecord, 0, len(all)-start)
	for i := len(all) - 1; i >= start; i-- {
		recent = append(recent, all[i])
	}
	return req.WithoutSecrets(), recent, nil
}

func (r *MemoryRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.ProvisioningRequest, 0, len(r.byID))
	for _, req := range r.byID {
		if opts.Status != nil && req.Status != *opts.Status {
			continue
		}
		items = append(items, req.WithoutSecrets())
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	page, pageSize := normalizePage(opts)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	return service.ListResult{
		Requests:   items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalItems: len(items),
		TotalPages: (len(items) + pageSize - 1) / pageSize,
	}, nil
}

func (r *MemoryRepository) ListIDsByStatus(ctx context.Context, status service.Status) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for id, req := range r.byID {
		if req.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (r *MemoryRepository) FindPendingCredential(ctx context.Context, adminEmail string) (service.ProvisioningRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		found service.ProvisioningRequest
		ok    bool
	)
	for _, req := range r.byID {
		if req.PendingCredential == "" || !strings.EqualFold(req.AdminEmail, strings.TrimSpace(adminEmail)) {
			continue
		}
		if !ok || req.UpdatedAt.After(found.UpdatedAt) {
			found, ok = req, true
		}
	}
	if !ok {
		return service.ProvisioningRequest{}, service.ErrNotFound
	}
	return found.Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, req service.ProvisioningRequest) (service.ProvisioningRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[req.ID]
	if !ok {
		return service.ProvisioningRequest{}, service.ErrNotFound
	}
	if current.Version != req.Version {
		return service.ProvisioningRequest{}, service.ErrVersionConflict
	}
	if req.Status == service.StatusProvisioning && r.slugActive(req.TenantSlug, req.ID) {
		return service.ProvisioningRequest{}, service.ErrAlreadyProvisioning
	}

	req.Version = current.Version + 1
	req.CreatedAt = current.CreatedAt
	req.UpdatedAt = r.now().UTC()
	r.byID[req.ID] = req.Clone()
	return req.Clone(), nil
}

func (r *MemoryRepository) AppendAttempt(ctx context.Context, rec service.AttemptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[rec.RequestID]; !ok {
		return service.ErrNotFound
	}
	r.attempts[rec.RequestID] = append(r.attempts[rec.RequestID], rec)
	return nil
}

// Attempts returns every attempt recorded for id, oldest first.
func (r *MemoryRepository) Attempts(id uuid.UUID) []service.AttemptRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]service.AttemptRecord(nil), r.attempts[id]...)
}

func (r *MemoryRepository) slugActive(slug string, except uuid.UUID) bool {
	for id, other := range r.byID {
		if id != except && other.TenantSlug == slug && other.Status == service.StatusProvisioning {
			return true
		}
	}
	return false
}

func normalizePage(opts service.ListOptions) (int, int) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
