package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phuttachad/dormcore/internal/domain"
)

// PostgresIdentityRepository mirrors gateway-issued identities locally so
// profiles have something to reference and repeated provisioning for the same
// email can be rejected without a gateway round trip.
type PostgresIdentityRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresIdentityRepository creates a new identity mirror repository.
func NewPostgresIdentityRepository(db *sql.DB, logger *slog.Logger) *PostgresIdentityRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresIdentityRepository{db: db, logger: logger}
}

// Record stores the id, email and role of a gateway-issued identity.
func (r *PostgresIdentityRepository) Record(ctx context.Context, identity *domain.Identity) error {
	query := `
		INSERT INTO identities (id, email, role)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, identity.ID, identity.Email, identity.Role).
		Scan(&identity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record identity: %w", err)
	}
	return nil
}

// GetByEmail retrieves the locally recorded identity for an email.
func (r *PostgresIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	identity := &domain.Identity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, role, created_at FROM identities WHERE email = $1`, email,
	).Scan(&identity.ID, &identity.Email, &identity.Role, &identity.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("identity", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity by email: %w", err)
	}
	return identity, nil
}
