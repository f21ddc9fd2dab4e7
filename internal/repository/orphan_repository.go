package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phuttachad/dormcore/internal/domain"
)

// PostgresOrphanRepository persists orphan markers for partially completed
// provisioning workflows. Markers are only ever written and surfaced here;
// reconciliation happens outside the core.
type PostgresOrphanRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresOrphanRepository creates a new orphan marker repository.
func NewPostgresOrphanRepository(db *sql.DB, logger *slog.Logger) *PostgresOrphanRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresOrphanRepository{db: db, logger: logger}
}

// Save inserts an orphan marker.
func (r *PostgresOrphanRepository) Save(ctx context.Context, marker *domain.OrphanMarker) error {
	query := `
		INSERT INTO provision_orphans (email, state, identity_id, tenant_id, detail)
		VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		marker.Email, string(marker.State), marker.IdentityID, marker.TenantID, marker.Detail,
	).Scan(&marker.ID, &marker.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save orphan marker: %w", err)
	}
	return nil
}

// ListUnresolved returns markers that no operator has reconciled yet, oldest
// first.
func (r *PostgresOrphanRepository) ListUnresolved(ctx context.Context) ([]*domain.OrphanMarker, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, state, COALESCE(identity_id::text, ''), COALESCE(tenant_id::text, ''), detail, created_at, resolved_at
		FROM provision_orphans
		WHERE resolved_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan markers: %w", err)
	}
	defer rows.Close()

	var out []*domain.OrphanMarker
	for rows.Next() {
		m := &domain.OrphanMarker{}
		var state string
		var resolvedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.Email, &state, &m.IdentityID, &m.TenantID, &m.Detail, &m.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan orphan marker: %w", err)
		}
		m.State = domain.ProvisionState(state)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			m.ResolvedAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Resolve marks a marker as reconciled.
func (r *PostgresOrphanRepository) Resolve(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE provision_orphans SET resolved_at = now() WHERE id = $1 AND resolved_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve orphan marker: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NewNotFoundError("orphan_marker", id)
	}
	return nil
}
