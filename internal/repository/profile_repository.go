package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/phuttachad/dormcore/internal/domain"
)

// PostgresProfileRepository implements the profile linker: an idempotent
// upsert keyed by identity id.
type PostgresProfileRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresProfileRepository creates a new profile repository.
func NewPostgresProfileRepository(db *sql.DB, logger *slog.Logger) *PostgresProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProfileRepository{db: db, logger: logger}
}

// Link upserts the profile row. Foreign-key violations are mapped to the
// missing entity: the profiles table references identities(id) and
// tenants(id), so the constraint name tells us which side is absent.
func (r *PostgresProfileRepository) Link(ctx context.Context, identityID, tenantID string) error {
	query := `
		INSERT INTO profiles (id, tenant_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET tenant_id = EXCLUDED.tenant_id, updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query, identityID, tenantID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
			if strings.Contains(pqErr.Constraint, "tenant") {
				return domain.NewNotFoundError("tenant", tenantID)
			}
			return domain.NewNotFoundError("identity", identityID)
		}
		return fmt.Errorf("failed to link profile: %w", err)
	}
	return nil
}

// GetByIdentity retrieves the profile for an identity id.
func (r *PostgresProfileRepository) GetByIdentity(ctx context.Context, identityID string) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id FROM profiles WHERE id = $1`, identityID,
	).Scan(&p.ID, &p.TenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("profile", identityID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}
