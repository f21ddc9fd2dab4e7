package domain

import (
	"context"
	"time"
)

// Room is owned by the dormitory inventory; this core reads it and never
// writes it. Capacity bounds the number of simultaneous current occupants.
type Room struct {
	ID         string
	RoomNumber string
	RoomType   string
	Status     string // vacant, occupied, maintenance
	Capacity   int
	Floor      int
	PriceBaht  float64
}

// OccupancyRecord is one stay of one tenant in one room. At most one record
// per tenant has IsCurrent=true at any time.
type OccupancyRecord struct {
	ID           string
	TenantID     string
	RoomID       string
	CheckInDate  time.Time
	CheckOutDate *time.Time
	IsCurrent    bool
	CreatedAt    time.Time
}

// RoomRepository reads room inventory.
type RoomRepository interface {
	GetByID(ctx context.Context, id string) (*Room, error)
	List(ctx context.Context) ([]*Room, error)
}

// OccupancyRepository is the occupancy ledger. Admit and AdmitNewTenant are
// the capacity-guarded insert path: the capacity check and the insert must
// commit as one atomic unit relative to all concurrent admissions on the same
// room, so two callers racing for the last slot see exactly one winner.
// Implementations serialize per room (row lock or equivalent).
type OccupancyRepository interface {
	// Admit checks the room in a per-room critical section and inserts a
	// current occupancy record for an existing tenant. Returns ErrRoomFull,
	// ErrDuplicateCurrentOccupancy, or a not-found error on denial, with no
	// side effects.
	Admit(ctx context.Context, tenantID, roomID string, checkIn time.Time) (*OccupancyRecord, error)

	// AdmitNewTenant creates the tenant record and its first occupancy record
	// in the same atomic unit as the capacity check.
	AdmitNewTenant(ctx context.Context, tenant *Tenant, roomID string, checkIn time.Time) (*OccupancyRecord, error)

	// GetByID retrieves one ledger record.
	GetByID(ctx context.Context, occupancyID string) (*OccupancyRecord, error)

	// CheckOut closes a current occupancy record. NotFound if the record does
	// not exist or is already closed. The freed slot is visible to the next
	// Admit with no staleness window.
	CheckOut(ctx context.Context, occupancyID string, checkOut time.Time) error

	// CurrentOccupants returns the room's current tenants, primaries before
	// dependents, each group in insertion order.
	CurrentOccupants(ctx context.Context, roomID string) ([]*Tenant, error)

	// CurrentCount returns the number of current occupancy records in a room.
	CurrentCount(ctx context.Context, roomID string) (int, error)
}
