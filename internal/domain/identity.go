package domain

import (
	"context"
	"time"
)

// Identity is issued by the external identity provisioning gateway; this core
// only records the id (and the email it was keyed on) so profiles can
// reference it and duplicate workflows can be rejected locally.
type Identity struct {
	ID        string
	Email     string
	Role      string
	CreatedAt time.Time
}

// Profile binds an externally issued identity to a tenant record. The row is
// keyed by the identity id and upserted, so linking is idempotent.
type Profile struct {
	ID       string // = Identity.ID
	TenantID string
}

// IdentityRequest is the payload forwarded to the gateway. The password is
// never persisted by this core.
type IdentityRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// IdentityGateway is the external identity provisioning collaborator. The
// caller's authorization token is forwarded as-is; the core neither issues
// nor validates it beyond routing. A duplicate email yields a conflict error
// with ReasonDuplicateEmail; unreachability and timeouts yield
// KindDependency errors.
type IdentityGateway interface {
	CreateIdentity(ctx context.Context, authToken string, req IdentityRequest) (identityID string, err error)
}

// IdentityRepository mirrors gateway-issued identities locally.
type IdentityRepository interface {
	Record(ctx context.Context, identity *Identity) error
	GetByEmail(ctx context.Context, email string) (*Identity, error)
}

// ProfileRepository is the profile linker.
type ProfileRepository interface {
	// Link upserts the profile row keyed by identityID. Returns a not-found
	// error when either referenced entity is absent.
	Link(ctx context.Context, identityID, tenantID string) error
	GetByIdentity(ctx context.Context, identityID string) (*Profile, error)
}
