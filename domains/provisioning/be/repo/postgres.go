package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zenGate-Global/palmyra-workspaces/domains/provisioning/be/service"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-workspaces/platform/go/secrets"
)

const activeSlugIndex = "provisioning_requests_active_slug_uq"

const requestColumns = `request_id, tenant_name, tenant_slug, admin_email, tier, status, current_step,
	attempts, metadata, pending_credential_sealed, version, approved_by, approved_at, created_at, updated_at`

const resourceColumns = `request_id, kind, external_id, name, status, endpoint, secret_ref, secrets_sealed,
	secrets_version, created_at, updated_at`

// PostgresRepository stores requests, their resources and attempt history in the admin schema.
// A request and its resources are always written in one transaction, and reads run in a
// single REPEATABLE READ snapshot.
type PostgresRepository struct {
	db  *persistence.AdminDB
	box *secrets.Box
}

// NewPostgresRepository constructs a repository. box seals resource secrets and held credentials
// at rest.
func NewPostgresRepository(db *persistence.AdminDB, box *secrets.Box) *PostgresRepository {
	if db == nil {
		panic("admin db is required")
	}
	if box == nil {
		panic("secrets box is required")
	}
	return &PostgresRepository{db: db, box: box}
}

func (r *PostgresRepository) Create(ctx context.Context, req service.ProvisioningRequest) (service.ProvisioningRequest, error) {
	metadata, credential, err := r.encodeRequest(req)
	if err != nil {
		return service.ProvisioningRequest{}, err
	}

	var out service.ProvisioningRequest
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO provisioning_requests (request_id, tenant_name, tenant_slug, admin_email, tier, status,
				current_step, attempts, metadata, pending_credential_sealed, version, approved_by, approved_at,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12, $13, $13)
			RETURNING `+requestColumns,
			req.ID, req.TenantName, req.TenantSlug, req.AdminEmail, string(req.Tier), string(req.Status),
			req.CurrentStep, req.Attempts, metadata, credential, req.ApprovedBy, req.ApprovedAt, createdAt(req),
		)
		var err error
		if out, err = r.scanRequest(row, true); err != nil {
			return err
		}
		if err := r.upsertResources(ctx, tx, req); err != nil {
			return err
		}
		out.Resources, err = r.loadResources(ctx, tx, req.ID, true)
		return err
	})
	if err != nil {
		return service.ProvisioningRequest{}, mapConflict(err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.ProvisioningRequest, error) {
	var out service.ProvisioningRequest
	err := r.db.WithSnapshot(ctx, func(tx pgx.Tx) error {
		var err error
		if out, err = r.getRequest(ctx, tx, id, true); err != nil {
			return err
		}
		out.Resources, err = r.loadResources(ctx, tx, id, true)
		return err
	})
	if err != nil {
		return service.ProvisioningRequest{}, err
	}
	return out, nil
}

func (r *PostgresRepository) Read(ctx context.Context, id uuid.UUID, attemptLimit int) (service.ProvisioningRequest, []service.AttemptRecord, error) {
	var (
		out      service.ProvisioningRequest
		attempts []service.AttemptRecord
	)
	err := r.db.WithSnapshot(ctx, func(tx pgx.Tx) error {
		var err error
		if out, err = r.getRequest(ctx, tx, id, false); err != nil {
			return err
		}
		if out.Resources, err = r.loadResources(ctx, tx, id, false); err != nil {
			return err
		}
		attempts, err = loadAttempts(ctx, tx, id, attemptLimit)
		return err
	})
	if err != nil {
		return service.ProvisioningRequest{}, nil, err
	}
	return out, attempts, nil
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	page, size := normalizePage(opts)
	offset := (page - 1) * size

	var statusFilter *string
	if opts.Status != nil {
		s := string(*opts.Status)
		statusFilter = &s
	}

	var (
		items []service.ProvisioningRequest
		total int
	)
	err := r.db.WithSnapshot(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM provisioning_requests WHERE ($1::text IS NULL OR status = $1)`,
			statusFilter,
		).Scan(&total); err != nil {
			return fmt.Errorf("count requests: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT `+requestColumns+`
			FROM provisioning_requests
			WHERE ($1::text IS NULL OR status = $1)
			ORDER BY created_at DESC, request_id
			LIMIT $2 OFFSET $3`,
			statusFilter, size, offset,
		)
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}
		items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (service.ProvisioningRequest, error) {
			return r.scanRequest(row, false)
		})
		if err != nil {
			return fmt.Errorf("scan requests: %w", err)
		}

		for i := range items {
			if items[i].Resources, err = r.loadResources(ctx, tx, items[i].ID, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return service.ListResult{}, err
	}

	totalPages := (total + size - 1) / size
	return service.ListResult{Requests: items, Page: page, PageSize: size, TotalItems: total, TotalPages: totalPages}, nil
}

func (r *PostgresRepository) ListIDsByStatus(ctx context.Context, status service.Status) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithSnapshot(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT request_id FROM provisioning_requests WHERE status = $1 ORDER BY created_at`,
			string(status),
		)
		if err != nil {
			return fmt.Errorf("list request ids: %w", err)
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		return err
	})
	return ids, err
}

func (r *PostgresRepository) Update(ctx context.Context, req service.ProvisioningRequest) (service.ProvisioningRequest, error) {
	metadata, credential, err := r.encodeRequest(req)
	if err != nil {
		return service.ProvisioningRequest{}, err
	}

	var out service.ProvisioningRequest
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE provisioning_requests
			SET tenant_name = $2, tenant_slug = $3, admin_email = $4, tier = $5, status = $6,
				current_step = $7, attempts = $8, metadata = $9, pending_credential_sealed = $10,
				approved_by = $11, approved_at = $12, version = version + 1, updated_at = now()
			WHERE request_id = $1 AND version = $13
			RETURNING `+requestColumns,
			req.ID, req.TenantName, req.TenantSlug, req.AdminEmail, string(req.Tier), string(req.Status),
			req.CurrentStep, req.Attempts, metadata, credential, req.ApprovedBy, req.ApprovedAt, req.Version,
		)
		var err error
		out, err = r.scanRequest(row, true)
		if errors.Is(err, pgx.ErrNoRows) {
			return versionOrMissing(ctx, tx, req.ID)
		}
		if err != nil {
			return err
		}
		if err := r.upsertResources(ctx, tx, req); err != nil {
			return err
		}
		out.Resources, err = r.loadResources(ctx, tx, req.ID, true)
		return err
	})
	if err != nil {
		return service.ProvisioningRequest{}, mapConflict(err)
	}
	return out, nil
}

func (r *PostgresRepository) AppendAttempt(ctx context.Context, rec service.AttemptRecord) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO provisioning_attempts (request_id, step, attempt, outcome, error_class, error, started_at, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.RequestID, rec.Step, rec.Attempt, rec.Outcome, rec.ErrorClass, rec.Error, rec.StartedAt, rec.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("append attempt: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) FindPendingCredential(ctx context.Context, adminEmail string) (service.ProvisioningRequest, error) {
	var out service.ProvisioningRequest
	err := r.db.WithSnapshot(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+requestColumns+`
			FROM provisioning_requests
			WHERE lower(admin_email) = lower($1) AND pending_credential_sealed <> ''
			ORDER BY updated_at DESC
			LIMIT 1`,
			strings.TrimSpace(adminEmail),
		)
		var err error
		out, err = r.scanRequest(row, true)
		if errors.Is(err, pgx.ErrNoRows) {
			return service.ErrNotFound
		}
		if err != nil {
			return err
		}
		out.Resources, err = r.loadResources(ctx, tx, out.ID, true)
		return err
	})
	if err != nil {
		return service.ProvisioningRequest{}, err
	}
	return out, nil
}

func (r *PostgresRepository) getRequest(ctx context.Context, tx pgx.Tx, id uuid.UUID, withSecrets bool) (service.ProvisioningRequest, error) {
	row := tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM provisioning_requests WHERE request_id = $1`, id)
	out, err := r.scanRequest(row, withSecrets)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ProvisioningRequest{}, service.ErrNotFound
	}
	return out, err
}

// upsertResources writes every resource on req. Sealed secrets only move forward: a row keeps
// its stored secrets unless req carries a higher secrets version.
func (r *PostgresRepository) upsertResources(ctx context.Context, tx pgx.Tx, req service.ProvisioningRequest) error {
	for _, res := range req.Resources {
		sealed, err := r.box.SealMap(res.Secrets.Reveal())
		if err != nil {
			return fmt.Errorf("seal %s secrets: %w", res.Kind, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO provisioned_resources (`+resourceColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (request_id, kind) DO UPDATE SET
				external_id = EXCLUDED.external_id,
				name = EXCLUDED.name,
				status = EXCLUDED.status,
				endpoint = EXCLUDED.endpoint,
				secret_ref = CASE WHEN EXCLUDED.secrets_version > provisioned_resources.secrets_version
					THEN EXCLUDED.secret_ref ELSE provisioned_resources.secret_ref END,
				secrets_sealed = CASE WHEN EXCLUDED.secrets_version > provisioned_resources.secrets_version
					THEN EXCLUDED.secrets_sealed ELSE provisioned_resources.secrets_sealed END,
				secrets_version = GREATEST(EXCLUDED.secrets_version, provisioned_resources.secrets_version),
				updated_at = EXCLUDED.updated_at`,
			req.ID, string(res.Kind), res.ExternalID, res.Name, string(res.Status), res.Endpoint,
			res.SecretRef, sealed, res.SecretsVersion, nonZero(res.CreatedAt), nonZero(res.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert %s resource: %w", res.Kind, err)
		}
	}
	return nil
}

func (r *PostgresRepository) loadResources(ctx context.Context, tx pgx.Tx, id uuid.UUID, withSecrets bool) (map[service.ResourceKind]service.ProvisionedResource, error) {
	rows, err := tx.Query(ctx, `SELECT `+resourceColumns+` FROM provisioned_resources WHERE request_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("load resources: %w", err)
	}
	defer rows.Close()

	out := make(map[service.ResourceKind]service.ProvisionedResource)
	for rows.Next() {
		var (
			res       service.ProvisionedResource
			requestID uuid.UUID
			kind      string
			status    string
			sealed    string
		)
		if err := rows.Scan(&requestID, &kind, &res.ExternalID, &res.Name, &status, &res.Endpoint,
			&res.SecretRef, &sealed, &res.SecretsVersion, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		res.Kind = service.ResourceKind(kind)
		res.Status = service.ResourceStatus(status)
		if withSecrets && sealed != "" {
			plain, err := r.box.OpenMap(sealed)
			if err != nil {
				return nil, fmt.Errorf("open %s secrets: %w", kind, err)
			}
			res.Secrets = service.SecretsFrom(plain)
		}
		out[res.Kind] = res
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func loadAttempts(ctx context.Context, tx pgx.Tx, id uuid.UUID, limit int) ([]service.AttemptRecord, error) {
	if limit <= 0 {
		limit = service.DefaultRecentAttempts
	}
	rows, err := tx.Query(ctx, `
		SELECT request_id, step, attempt, outcome, error_class, error, started_at, duration_ms
		FROM provisioning_attempts
		WHERE request_id = $1
		ORDER BY attempt_id DESC
		LIMIT $2`,
		id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (service.AttemptRecord, error) {
		var (
			rec        service.AttemptRecord
			durationMs int64
		)
		err := row.Scan(&rec.RequestID, &rec.Step, &rec.Attempt, &rec.Outcome, &rec.ErrorClass, &rec.Error, &rec.StartedAt, &durationMs)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		return rec, err
	})
}

// encodeRequest returns the metadata document and the sealed pending credential of req.
func (r *PostgresRepository) encodeRequest(req service.ProvisioningRequest) ([]byte, string, error) {
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, "", fmt.Errorf("encode metadata: %w", err)
	}
	if req.PendingCredential == "" {
		return metadata, "", nil
	}
	sealed, err := r.box.Seal([]byte(req.PendingCredential.Reveal()))
	if err != nil {
		return nil, "", fmt.Errorf("seal pending credential: %w", err)
	}
	return metadata, sealed, nil
}

func (r *PostgresRepository) scanRequest(row pgx.Row, withSecrets bool) (service.ProvisioningRequest, error) {
	var (
		out        service.ProvisioningRequest
		tier       string
		status     string
		metadata   []byte
		credential string
	)
	err := row.Scan(&out.ID, &out.TenantName, &out.TenantSlug, &out.AdminEmail, &tier, &status, &out.CurrentStep,
		&out.Attempts, &metadata, &credential, &out.Version, &out.ApprovedBy, &out.ApprovedAt, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return service.ProvisioningRequest{}, err
	}
	out.Tier = service.Tier(tier)
	out.Status = service.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &out.Metadata); err != nil {
			return service.ProvisioningRequest{}, fmt.Errorf("decode metadata of %s: %w", out.ID, err)
		}
	}
	if withSecrets && credential != "" {
		plain, err := r.box.Open(credential)
		if err != nil {
			return service.ProvisioningRequest{}, fmt.Errorf("open pending credential of %s: %w", out.ID, err)
		}
		out.PendingCredential = service.Secret(plain)
	}
	return out, nil
}

func versionOrMissing(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM provisioning_requests WHERE request_id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check request: %w", err)
	}
	if !exists {
		return service.ErrNotFound
	}
	return service.ErrVersionConflict
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.EqualFold(pgErr.ConstraintName, activeSlugIndex) {
			return service.ErrAlreadyProvisioning
		}
		return fmt.Errorf("%w: %s", service.ErrVersionConflict, pgErr.ConstraintName)
	}
	return err
}

func createdAt(req service.ProvisioningRequest) time.Time {
	return nonZero(req.CreatedAt)
}

func nonZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
