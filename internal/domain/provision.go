package domain

import (
	"context"
	"time"
)

// ProvisionState tracks how far a provisioning workflow got. Failure states
// name the step that failed; everything before it stays committed and is
// reported, never rolled back.
type ProvisionState string

const (
	StateInit            ProvisionState = "init"
	StateIdentityCreated ProvisionState = "identity_created"
	StateTenantCreated   ProvisionState = "tenant_created"
	StateProfileLinked   ProvisionState = "profile_linked"
	StateComplete        ProvisionState = "complete"

	StateIdentityFailed ProvisionState = "identity_failed"
	StateTenantFailed   ProvisionState = "tenant_failed"
	StateProfileFailed  ProvisionState = "profile_failed"
	StateConflict       ProvisionState = "conflict"
)

// Terminal reports whether the state ends a workflow.
func (s ProvisionState) Terminal() bool {
	switch s {
	case StateComplete, StateIdentityFailed, StateTenantFailed, StateProfileFailed, StateConflict:
		return true
	}
	return false
}

// Failed reports whether the state is a failure terminal.
func (s ProvisionState) Failed() bool {
	return s.Terminal() && s != StateComplete
}

// ProvisionOutcome is the structured result of a provisioning workflow.
// On partial failure the ids of already-committed entities are the orphan
// set an operator or retry path needs to reconcile.
type ProvisionOutcome struct {
	State      ProvisionState
	IdentityID string // set once the gateway issued an identity
	TenantID   string // set once the tenant record was created
}

// OrphanMarker persists a partial provisioning failure so an external
// reconciliation job can complete or clean it up. The core only records and
// surfaces markers; it never compensates.
type OrphanMarker struct {
	ID         string
	Email      string
	State      ProvisionState // tenant_failed or profile_failed
	IdentityID string
	TenantID   string
	Detail     string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// OrphanRepository stores orphan markers.
type OrphanRepository interface {
	Save(ctx context.Context, marker *OrphanMarker) error
	ListUnresolved(ctx context.Context) ([]*OrphanMarker, error)
	Resolve(ctx context.Context, id string) error
}
