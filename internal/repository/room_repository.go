package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phuttachad/dormcore/internal/domain"
)

// PostgresRoomRepository reads room inventory. Rooms are owned by the
// dormitory management side; this core never writes them.
type PostgresRoomRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRoomRepository creates a new room repository.
func NewPostgresRoomRepository(db *sql.DB, logger *slog.Logger) *PostgresRoomRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRoomRepository{db: db, logger: logger}
}

// GetByID retrieves a room by id.
func (r *PostgresRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	room := &domain.Room{}
	query := `
		SELECT id, room_number, COALESCE(room_type, ''), status, capacity, COALESCE(floor, 0), COALESCE(price, 0)
		FROM rooms
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.RoomNumber, &room.RoomType, &room.Status,
		&room.Capacity, &room.Floor, &room.PriceBaht,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("room", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// List returns all rooms ordered by room number.
func (r *PostgresRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_number, COALESCE(room_type, ''), status, capacity, COALESCE(floor, 0), COALESCE(price, 0)
		FROM rooms
		ORDER BY room_number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var out []*domain.Room
	for rows.Next() {
		room := &domain.Room{}
		if err := rows.Scan(
			&room.ID, &room.RoomNumber, &room.RoomType, &room.Status,
			&room.Capacity, &room.Floor, &room.PriceBaht,
		); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}
