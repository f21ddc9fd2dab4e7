package service

import (
	"context"
	"log/slog"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/featureflags"
)

// TenantService wraps the tenancy record store with validation and the
// flag-gated open-question tightenings (email uniqueness, version checks).
type TenantService struct {
	tenants domain.TenantRepository
	logger  *slog.Logger
}

// NewTenantService creates a new tenant service.
func NewTenantService(tenants domain.TenantRepository, logger *slog.Logger) *TenantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantService{tenants: tenants, logger: logger}
}

// Create validates and stores a tenant record without admitting it anywhere.
func (s *TenantService) Create(ctx context.Context, tenant *domain.Tenant) (string, error) {
	if err := validateTenant(tenant); err != nil {
		return "", err
	}
	if tenant.Email != "" && featureflags.Enabled(featureflags.StrictTenantEmail) {
		exists, err := s.tenants.ExistsByEmail(ctx, tenant.Email)
		if err != nil {
			return "", err
		}
		if exists {
			return "", domain.ErrDuplicateEmail(tenant.Email)
		}
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return "", err
	}
	s.logger.Info("tenant created", slog.String("tenant_id", tenant.ID))
	return tenant.ID, nil
}

// Get retrieves a tenant record.
func (s *TenantService) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

// Update applies a partial merge. Version enforcement only happens when the
// caller supplied an expected version AND the version-check flag is on;
// the default stays last-write-wins.
func (s *TenantService) Update(ctx context.Context, id string, update domain.TenantUpdate) (*domain.Tenant, error) {
	if id == "" {
		return nil, domain.NewValidationError("tenant_id is required")
	}
	if update.FirstName != nil && *update.FirstName == "" {
		return nil, domain.NewValidationError("first_name cannot be cleared")
	}
	if update.LastName != nil && *update.LastName == "" {
		return nil, domain.NewValidationError("last_name cannot be cleared")
	}
	if !featureflags.Enabled(featureflags.TenantVersionCheck) {
		update.ExpectedVersion = 0
	}
	tenant, err := s.tenants.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tenant updated",
		slog.String("tenant_id", id),
		slog.Int("version", tenant.Version),
	)
	return tenant, nil
}
