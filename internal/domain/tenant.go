package domain

import (
	"context"
	"time"
)

// ResidentClass orders occupants for display and conceptual room ownership.
// Nothing enforces at most one primary per room; the store is deliberately
// permissive here.
type ResidentClass string

const (
	ResidentPrimary   ResidentClass = "primary"
	ResidentDependent ResidentClass = "dependent"
)

// Tenant is a dormitory tenant demographic record. A tenant persists
// independently of occupancy history: zero or one current occupancy, any
// number of historical ones.
type Tenant struct {
	ID               string
	FirstName        string
	LastName         string
	Email            string // optional, not unique by default
	Phone            string // optional
	Address          string
	EmergencyContact string
	Residents        ResidentClass
	RoomID           string
	RoomNumber       string
	Version          int // bumped on every update
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TenantUpdate is a partial merge: nil fields are left unchanged.
// ExpectedVersion > 0 asks the store to reject the write when the stored
// version differs (only honored when the version-check flag is on).
type TenantUpdate struct {
	FirstName        *string
	LastName         *string
	Email            *string
	Phone            *string
	Address          *string
	EmergencyContact *string
	RoomNumber       *string
	ExpectedVersion  int
}

// TenantRepository is the tenancy record store.
type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	Update(ctx context.Context, id string, update TenantUpdate) (*Tenant, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
