package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/observability/metrics"
)

// OccupancyListener is notified after the occupant set of a room changed.
// The websocket occupant board hangs off this.
type OccupancyListener interface {
	OccupancyChanged(roomID string)
}

// AdmissionService drives room admissions and checkouts. Atomicity of the
// capacity check + insert pair is delegated to the occupancy repository; this
// layer validates input, translates outcomes into metrics, and fans out
// change notifications.
type AdmissionService struct {
	rooms     domain.RoomRepository
	occupancy domain.OccupancyRepository
	listener  OccupancyListener
	logger    *slog.Logger
}

// AdmitRequest admits an existing tenant (TenantID set) or creates and admits
// a new one (NewTenant set) into RoomID.
type AdmitRequest struct {
	RoomID      string
	TenantID    string
	NewTenant   *domain.Tenant
	CheckInDate time.Time
}

// NewAdmissionService creates a new admission service. listener may be nil.
func NewAdmissionService(
	rooms domain.RoomRepository,
	occupancy domain.OccupancyRepository,
	listener OccupancyListener,
	logger *slog.Logger,
) *AdmissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdmissionService{
		rooms:     rooms,
		occupancy: occupancy,
		listener:  listener,
		logger:    logger,
	}
}

// Admit performs one admission. Exactly one of TenantID / NewTenant must be
// set. Denials carry the specific conflict reason and mutate nothing.
func (s *AdmissionService) Admit(ctx context.Context, req AdmitRequest) (*domain.OccupancyRecord, error) {
	if req.RoomID == "" {
		return nil, domain.NewValidationError("room_id is required")
	}
	if (req.TenantID == "") == (req.NewTenant == nil) {
		return nil, domain.NewValidationError("exactly one of tenant_id or tenant must be given")
	}
	checkIn := req.CheckInDate
	if checkIn.IsZero() {
		checkIn = time.Now()
	}

	var record *domain.OccupancyRecord
	var err error
	if req.NewTenant != nil {
		if vErr := validateTenant(req.NewTenant); vErr != nil {
			return nil, vErr
		}
		record, err = s.occupancy.AdmitNewTenant(ctx, req.NewTenant, req.RoomID, checkIn)
	} else {
		record, err = s.occupancy.Admit(ctx, req.TenantID, req.RoomID, checkIn)
	}
	if err != nil {
		metrics.ObserveAdmission(admissionResult(err))
		s.logger.Info("admission denied",
			slog.String("room_id", req.RoomID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	metrics.ObserveAdmission("allowed")
	metrics.IncrementOccupancy()
	s.logger.Info("tenant admitted",
		slog.String("room_id", record.RoomID),
		slog.String("tenant_id", record.TenantID),
		slog.String("occupancy_id", record.ID),
	)
	s.notify(record.RoomID)
	return record, nil
}

// CheckOut closes an occupancy record. The freed slot is immediately visible
// to the next admission.
func (s *AdmissionService) CheckOut(ctx context.Context, occupancyID string, checkOut time.Time) error {
	if occupancyID == "" {
		return domain.NewValidationError("occupancy_id is required")
	}
	if checkOut.IsZero() {
		checkOut = time.Now()
	}
	// Resolve the room before closing so the board can be refreshed after.
	roomID := ""
	if rec, err := s.occupancy.GetByID(ctx, occupancyID); err == nil {
		roomID = rec.RoomID
	}

	if err := s.occupancy.CheckOut(ctx, occupancyID, checkOut); err != nil {
		metrics.ObserveCheckout("error")
		return err
	}
	metrics.ObserveCheckout("success")
	metrics.DecrementOccupancy()
	s.logger.Info("tenant checked out", slog.String("occupancy_id", occupancyID))
	if roomID != "" {
		s.notify(roomID)
	}
	return nil
}

// CurrentOccupants returns the ordered occupant list for a room. The room
// must exist; an empty room yields an empty list, not an error.
func (s *AdmissionService) CurrentOccupants(ctx context.Context, roomID string) ([]*domain.Tenant, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}
	return s.occupancy.CurrentOccupants(ctx, roomID)
}

// Room returns read-only room info.
func (s *AdmissionService) Room(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

func (s *AdmissionService) Rooms(ctx context.Context) ([]*domain.Room, error) {
	return s.rooms.List(ctx)
}

func (s *AdmissionService) notify(roomID string) {
	if s.listener != nil {
		s.listener.OccupancyChanged(roomID)
	}
}

func admissionResult(err error) string {
	switch {
	case domain.ConflictReason(err) == domain.ReasonRoomFull:
		return "room_full"
	case domain.ConflictReason(err) == domain.ReasonDuplicateCurrentOccupancy:
		return "duplicate_occupancy"
	case domain.IsKind(err, domain.KindNotFound):
		return "not_found"
	case domain.IsKind(err, domain.KindValidation):
		return "invalid"
	default:
		return "error"
	}
}

func validateTenant(t *domain.Tenant) error {
	if strings.TrimSpace(t.FirstName) == "" {
		return domain.NewValidationError("first_name is required")
	}
	if strings.TrimSpace(t.LastName) == "" {
		return domain.NewValidationError("last_name is required")
	}
	if t.Residents == "" {
		t.Residents = domain.ResidentDependent
	}
	if t.Residents != domain.ResidentPrimary && t.Residents != domain.ResidentDependent {
		return domain.NewValidationError("residents must be primary or dependent")
	}
	if t.Residents == domain.ResidentPrimary && strings.TrimSpace(t.Address) == "" {
		return domain.NewValidationError("address is required for primary tenants")
	}
	return nil
}
