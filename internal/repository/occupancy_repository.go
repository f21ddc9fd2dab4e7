package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/phuttachad/dormcore/internal/domain"
)

// PostgresOccupancyRepository implements domain.OccupancyRepository.
//
// The capacity guard lives here: every admit runs in a transaction that takes
// a row lock on the room (SELECT ... FOR UPDATE) before counting current
// occupants, so concurrent admissions on the same room are linearized by the
// database and a naive check-then-insert race cannot overcommit the room.
type PostgresOccupancyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresOccupancyRepository creates a new occupancy repository.
func NewPostgresOccupancyRepository(db *sql.DB, logger *slog.Logger) *PostgresOccupancyRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresOccupancyRepository{db: db, logger: logger}
}

// Admit inserts a current occupancy record for an existing tenant, holding
// the room lock across the capacity check and the insert.
func (r *PostgresOccupancyRepository) Admit(ctx context.Context, tenantID, roomID string, checkIn time.Time) (*domain.OccupancyRecord, error) {
	var record *domain.OccupancyRecord
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.guardRoom(ctx, tx, roomID); err != nil {
			return err
		}

		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check tenant: %w", err)
		}
		if !exists {
			return domain.NewNotFoundError("tenant", tenantID)
		}

		rec, err := r.insertCurrent(ctx, tx, tenantID, roomID, checkIn)
		if err != nil {
			return err
		}

		// Keep the denormalized room reference on the tenant in step with
		// the ledger, matching the persisted schema the UI reads.
		_, err = tx.ExecContext(ctx,
			`UPDATE tenants SET room_id = $1, room_number = (SELECT room_number FROM rooms WHERE id = $1), updated_at = now() WHERE id = $2`,
			roomID, tenantID,
		)
		if err != nil {
			return fmt.Errorf("failed to update tenant room reference: %w", err)
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// AdmitNewTenant creates the tenant row and its first occupancy record inside
// the same guarded transaction, so a tenant is never created for a room that
// turns out to be full.
func (r *PostgresOccupancyRepository) AdmitNewTenant(ctx context.Context, tenant *domain.Tenant, roomID string, checkIn time.Time) (*domain.OccupancyRecord, error) {
	var record *domain.OccupancyRecord
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.guardRoom(ctx, tx, roomID); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO tenants (first_name, last_name, email, phone, address, emergency_contact, residents, room_id, room_number)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, (SELECT room_number FROM rooms WHERE id = $8))
			RETURNING id, room_number, version, created_at, updated_at
		`,
			tenant.FirstName, tenant.LastName, tenant.Email, tenant.Phone,
			tenant.Address, tenant.EmergencyContact, string(tenant.Residents), roomID,
		).Scan(&tenant.ID, &tenant.RoomNumber, &tenant.Version, &tenant.CreatedAt, &tenant.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		tenant.RoomID = roomID

		rec, err := r.insertCurrent(ctx, tx, tenant.ID, roomID, checkIn)
		if err != nil {
			return err
		}
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetByID retrieves one ledger record.
func (r *PostgresOccupancyRepository) GetByID(ctx context.Context, occupancyID string) (*domain.OccupancyRecord, error) {
	rec := &domain.OccupancyRecord{}
	var checkOut sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, room_id, check_in_date, check_out_date, is_current, created_at
		FROM occupancy
		WHERE id = $1
	`, occupancyID).Scan(
		&rec.ID, &rec.TenantID, &rec.RoomID, &rec.CheckInDate, &checkOut, &rec.IsCurrent, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("occupancy", occupancyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get occupancy record: %w", err)
	}
	if checkOut.Valid {
		t := checkOut.Time
		rec.CheckOutDate = &t
	}
	return rec, nil
}

// CheckOut closes a current occupancy record.
func (r *PostgresOccupancyRepository) CheckOut(ctx context.Context, occupancyID string, checkOut time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE occupancy
		SET is_current = false, check_out_date = $1
		WHERE id = $2 AND is_current = true
	`, checkOut, occupancyID)
	if err != nil {
		return fmt.Errorf("failed to check out: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		// Missing and already-closed are the same NotFound to the caller.
		return domain.NewNotFoundError("occupancy", occupancyID)
	}
	return nil
}

// CurrentOccupants returns the room's current tenants, primaries first, each
// group in insertion order (occupancy id is monotonic per insert).
func (r *PostgresOccupancyRepository) CurrentOccupants(ctx context.Context, roomID string) ([]*domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.first_name, t.last_name, COALESCE(t.email, ''), COALESCE(t.phone, ''),
		       t.address, t.emergency_contact, t.residents, COALESCE(t.room_id::text, ''), COALESCE(t.room_number, ''),
		       t.version, t.created_at, t.updated_at
		FROM occupancy o
		JOIN tenants t ON t.id = o.tenant_id
		WHERE o.room_id = $1 AND o.is_current = true
		ORDER BY CASE t.residents WHEN 'primary' THEN 0 ELSE 1 END, o.seq ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query occupants: %w", err)
	}
	defer rows.Close()

	var out []*domain.Tenant
	for rows.Next() {
		t := &domain.Tenant{}
		var residents string
		if err := rows.Scan(
			&t.ID, &t.FirstName, &t.LastName, &t.Email, &t.Phone,
			&t.Address, &t.EmergencyContact, &residents, &t.RoomID, &t.RoomNumber,
			&t.Version, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan occupant: %w", err)
		}
		t.Residents = domain.ResidentClass(residents)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CurrentCount returns the number of current occupancy records in a room.
func (r *PostgresOccupancyRepository) CurrentCount(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM occupancy WHERE room_id = $1 AND is_current = true`, roomID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count occupants: %w", err)
	}
	return count, nil
}

// guardRoom locks the room row and verifies headroom. Must run inside the
// admitting transaction; the lock is held until commit or rollback.
func (r *PostgresOccupancyRepository) guardRoom(ctx context.Context, tx *sql.Tx, roomID string) error {
	var capacity int
	err := tx.QueryRowContext(ctx,
		`SELECT capacity FROM rooms WHERE id = $1 FOR UPDATE`, roomID,
	).Scan(&capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError("room", roomID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock room: %w", err)
	}

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM occupancy WHERE room_id = $1 AND is_current = true`, roomID,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to count current occupancy: %w", err)
	}
	if current >= capacity {
		return domain.ErrRoomFull(roomID, capacity)
	}
	return nil
}

// insertCurrent inserts the current record; the partial unique index on
// (tenant_id) WHERE is_current backs up the duplicate check.
func (r *PostgresOccupancyRepository) insertCurrent(ctx context.Context, tx *sql.Tx, tenantID, roomID string, checkIn time.Time) (*domain.OccupancyRecord, error) {
	var hasCurrent bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM occupancy WHERE tenant_id = $1 AND is_current = true)`, tenantID,
	).Scan(&hasCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to check current occupancy: %w", err)
	}
	if hasCurrent {
		return nil, domain.ErrDuplicateCurrentOccupancy(tenantID)
	}

	rec := &domain.OccupancyRecord{
		TenantID:    tenantID,
		RoomID:      roomID,
		CheckInDate: checkIn,
		IsCurrent:   true,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO occupancy (tenant_id, room_id, check_in_date, is_current)
		VALUES ($1, $2, $3, true)
		RETURNING id, created_at
	`, tenantID, roomID, checkIn).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, mapOccupancyInsertErr(err, tenantID)
	}
	return rec, nil
}

// mapOccupancyInsertErr keeps the conflict shape when the partial unique
// index catches what the EXISTS check missed: two admits of one tenant into
// different rooms lock different room rows, so both can pass the check and
// the loser hits the index instead.
func mapOccupancyInsertErr(err error, tenantID string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "occupancy_one_current_per_tenant" {
		return domain.ErrDuplicateCurrentOccupancy(tenantID)
	}
	return fmt.Errorf("failed to insert occupancy: %w", err)
}

func (r *PostgresOccupancyRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
