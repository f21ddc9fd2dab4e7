package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/featureflags"
	"github.com/phuttachad/dormcore/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ProvisionLock serializes concurrent provisioning workflows for the same
// email. Acquire returns false when another workflow already holds the key.
type ProvisionLock interface {
	Acquire(ctx context.Context, email string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, email string) error
}

// ProvisioningService drives the ordered identity → tenant → profile
// workflow. Completed steps are never rolled back: the gateway may not
// support identity deletion and pretending failure would lose an identity
// that does exist. Instead partial completion is reported precisely and an
// orphan marker is persisted for external reconciliation.
type ProvisioningService struct {
	gateway    domain.IdentityGateway
	identities domain.IdentityRepository
	tenants    domain.TenantRepository
	profiles   domain.ProfileRepository
	orphans    domain.OrphanRepository
	lock       ProvisionLock
	lockTTL    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

// ProvisionRequest carries the new user's data. The authorization token is
// forwarded to the gateway untouched; the orchestrator does not validate it.
type ProvisionRequest struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	Phone            string
	Address          string
	EmergencyContact string
	Role             string
	AuthToken        string
}

// NewProvisioningService creates a new provisioning orchestrator.
func NewProvisioningService(
	gateway domain.IdentityGateway,
	identities domain.IdentityRepository,
	tenants domain.TenantRepository,
	profiles domain.ProfileRepository,
	orphans domain.OrphanRepository,
	lock ProvisionLock,
	lockTTL time.Duration,
	logger *slog.Logger,
) *ProvisioningService {
	if logger == nil {
		logger = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &ProvisioningService{
		gateway:    gateway,
		identities: identities,
		tenants:    tenants,
		profiles:   profiles,
		orphans:    orphans,
		lock:       lock,
		lockTTL:    lockTTL,
		logger:     logger,
		tracer:     otel.Tracer("dormcore/provisioning"),
	}
}

// Provision runs the workflow. The returned outcome always reflects how far
// the workflow got; err is nil only in the Complete state.
func (s *ProvisioningService) Provision(ctx context.Context, req ProvisionRequest) (*domain.ProvisionOutcome, error) {
	outcome := &domain.ProvisionOutcome{State: domain.StateInit}
	start := time.Now()
	defer func() {
		metrics.ObserveProvision(string(outcome.State), time.Since(start))
	}()

	ctx, span := s.tracer.Start(ctx, "provision")
	defer span.End()

	if err := s.validate(ctx, req); err != nil {
		return outcome, err
	}

	// Email is the idempotency key. A mirror hit means a previous workflow
	// already created this identity; re-running it must not create another.
	// A mirror outage is not "email unknown": proceeding would mint an
	// identity the mirror cannot record.
	existing, err := s.identities.GetByEmail(ctx, req.Email)
	if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return outcome, domain.NewDependencyError("identity mirror", err)
	}
	if existing != nil {
		outcome.State = domain.StateConflict
		outcome.IdentityID = existing.ID
		return outcome, domain.ErrDuplicateEmail(req.Email)
	}

	// One in-flight workflow per email; a second concurrent caller conflicts
	// instead of racing the gateway.
	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx, req.Email, s.lockTTL)
		if err != nil {
			return outcome, domain.NewDependencyError("provision lock", err)
		}
		if !ok {
			outcome.State = domain.StateConflict
			return outcome, domain.ErrDuplicateEmail(req.Email)
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), req.Email); err != nil {
				s.logger.Warn("failed to release provision lock",
					slog.String("email", req.Email),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	// Step 1: issue the identity at the external gateway.
	identityID, err := s.createIdentity(ctx, req)
	if err != nil {
		if domain.ConflictReason(err) == domain.ReasonDuplicateEmail {
			outcome.State = domain.StateConflict
			return outcome, err
		}
		outcome.State = domain.StateIdentityFailed
		s.logger.Error("identity provisioning failed",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		return outcome, err
	}
	outcome.State = domain.StateIdentityCreated
	outcome.IdentityID = identityID

	if err := s.identities.Record(ctx, &domain.Identity{ID: identityID, Email: req.Email, Role: req.Role}); err != nil {
		// The identity exists externally but we could not even mirror it;
		// treat as a tenant-step failure so the orphan is reported.
		return s.failTenantStep(ctx, req, outcome, err)
	}

	// Step 2: create the tenant record.
	tenant := &domain.Tenant{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		Residents:        domain.ResidentPrimary,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return s.failTenantStep(ctx, req, outcome, err)
	}
	outcome.State = domain.StateTenantCreated
	outcome.TenantID = tenant.ID

	// Step 3: link the profile.
	if err := s.profiles.Link(ctx, identityID, tenant.ID); err != nil {
		outcome.State = domain.StateProfileFailed
		s.saveOrphan(ctx, req.Email, outcome, err)
		s.logger.Error("profile link failed",
			slog.String("identity_id", identityID),
			slog.String("tenant_id", tenant.ID),
			slog.String("error", err.Error()),
		)
		return outcome, err
	}
	outcome.State = domain.StateComplete

	s.logger.Info("provisioning complete",
		slog.String("identity_id", identityID),
		slog.String("tenant_id", tenant.ID),
	)
	return outcome, nil
}

func (s *ProvisioningService) createIdentity(ctx context.Context, req ProvisionRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "provision.identity")
	defer span.End()
	return s.gateway.CreateIdentity(ctx, req.AuthToken, domain.IdentityRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
	})
}

func (s *ProvisioningService) failTenantStep(ctx context.Context, req ProvisionRequest, outcome *domain.ProvisionOutcome, cause error) (*domain.ProvisionOutcome, error) {
	outcome.State = domain.StateTenantFailed
	s.saveOrphan(ctx, req.Email, outcome, cause)
	s.logger.Error("tenant record creation failed after identity creation",
		slog.String("email", req.Email),
		slog.String("orphaned_identity_id", outcome.IdentityID),
		slog.String("error", cause.Error()),
	)
	if de, ok := cause.(*domain.Error); ok {
		return outcome, de.WithRef("identity_id", outcome.IdentityID)
	}
	return outcome, fmt.Errorf("tenant step failed, identity %s orphaned: %w", outcome.IdentityID, cause)
}

// saveOrphan persists the marker; failure to persist is logged loudly but
// does not mask the original error.
func (s *ProvisioningService) saveOrphan(ctx context.Context, email string, outcome *domain.ProvisionOutcome, cause error) {
	if s.orphans == nil {
		return
	}
	marker := &domain.OrphanMarker{
		Email:      email,
		State:      outcome.State,
		IdentityID: outcome.IdentityID,
		TenantID:   outcome.TenantID,
		Detail:     cause.Error(),
	}
	if err := s.orphans.Save(context.WithoutCancel(ctx), marker); err != nil {
		s.logger.Error("failed to persist orphan marker",
			slog.String("email", email),
			slog.String("state", string(outcome.State)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ProvisioningService) validate(ctx context.Context, req ProvisionRequest) error {
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		return domain.NewValidationError("a valid email is required")
	}
	if len(req.Password) < 6 {
		return domain.NewValidationError("password must be at least 6 characters")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		return domain.NewValidationError("first_name is required")
	}
	if strings.TrimSpace(req.LastName) == "" {
		return domain.NewValidationError("last_name is required")
	}
	if strings.TrimSpace(req.Address) == "" {
		return domain.NewValidationError("address is required")
	}
	if req.Role == "" {
		return domain.NewValidationError("role is required")
	}
	if featureflags.Enabled(featureflags.StrictTenantEmail) {
		// Flag-gated tightening: reject when any tenant already carries the
		// email, not just a provisioned identity.
		exists, err := s.tenants.ExistsByEmail(ctx, req.Email)
		if err != nil {
			return domain.NewDependencyError("tenant store", err)
		}
		if exists {
			return domain.ErrDuplicateEmail(req.Email)
		}
	}
	return nil
}
