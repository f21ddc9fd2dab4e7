package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phuttachad/dormcore/internal/domain"
)

// PostgresTenantRepository implements domain.TenantRepository using PostgreSQL.
type PostgresTenantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTenantRepository creates a new tenant repository.
func NewPostgresTenantRepository(db *sql.DB, logger *slog.Logger) *PostgresTenantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTenantRepository{db: db, logger: logger}
}

// Create inserts a tenant record.
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (first_name, last_name, email, phone, address, emergency_contact, residents, room_id, room_number)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, NULLIF($8, '')::uuid, NULLIF($9, ''))
		RETURNING id, version, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		tenant.FirstName, tenant.LastName, tenant.Email, tenant.Phone,
		tenant.Address, tenant.EmergencyContact, string(tenant.Residents),
		tenant.RoomID, tenant.RoomNumber,
	).Scan(&tenant.ID, &tenant.Version, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by id.
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	var residents string
	query := `
		SELECT id, first_name, last_name, COALESCE(email, ''), COALESCE(phone, ''),
		       address, emergency_contact, residents, COALESCE(room_id::text, ''), COALESCE(room_number, ''),
		       version, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.FirstName, &t.LastName, &t.Email, &t.Phone,
		&t.Address, &t.EmergencyContact, &residents, &t.RoomID, &t.RoomNumber,
		&t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("tenant", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	t.Residents = domain.ResidentClass(residents)
	return t, nil
}

// Update applies a partial merge. Unset fields keep their stored values. When
// the update carries an expected version, a stale write is rejected inside
// the same statement (compare-and-set on version).
func (r *PostgresTenantRepository) Update(ctx context.Context, id string, update domain.TenantUpdate) (*domain.Tenant, error) {
	set := []string{"updated_at = now()", "version = version + 1"}
	args := []any{}
	n := 1

	add := func(column string, value *string) {
		if value != nil {
			set = append(set, fmt.Sprintf("%s = $%d", column, n))
			args = append(args, *value)
			n++
		}
	}
	add("first_name", update.FirstName)
	add("last_name", update.LastName)
	add("email", update.Email)
	add("phone", update.Phone)
	add("address", update.Address)
	add("emergency_contact", update.EmergencyContact)
	add("room_number", update.RoomNumber)

	query := fmt.Sprintf(`UPDATE tenants SET %s WHERE id = $%d`, strings.Join(set, ", "), n)
	args = append(args, id)
	n++
	if update.ExpectedVersion > 0 {
		query += fmt.Sprintf(" AND version = $%d", n)
		args = append(args, update.ExpectedVersion)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		current, getErr := r.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr // tenant does not exist
		}
		return nil, domain.ErrStaleVersion(id, update.ExpectedVersion, current.Version)
	}
	return r.GetByID(ctx, id)
}

// ExistsByEmail reports whether any tenant record carries the email. Only
// consulted when the strict-email flag is on; the default store is
// permissive about duplicate tenant emails.
func (r *PostgresTenantRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant email: %w", err)
	}
	return exists, nil
}
