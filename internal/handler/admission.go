package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/service"
)

// NewTenantPayload is the inline tenant given when admitting someone who has
// no record yet.
type NewTenantPayload struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Address          string `json:"address,omitempty"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
	Residents        string `json:"residents,omitempty"`
}

// AdmitRequest admits an existing tenant by id or a new tenant inline.
type AdmitRequest struct {
	TenantID    string            `json:"tenantId,omitempty"`
	Tenant      *NewTenantPayload `json:"tenant,omitempty"`
	CheckInDate *time.Time        `json:"checkInDate,omitempty"`
}

// OccupancyResponse is a serialized ledger record.
type OccupancyResponse struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	RoomID       string     `json:"roomId"`
	CheckInDate  time.Time  `json:"checkInDate"`
	CheckOutDate *time.Time `json:"checkOutDate,omitempty"`
	IsCurrent    bool       `json:"isCurrent"`
}

// AdmissionHandler serves admissions and checkouts.
type AdmissionHandler struct {
	admissions *service.AdmissionService
	logger     *slog.Logger
}

func NewAdmissionHandler(admissions *service.AdmissionService, logger *slog.Logger) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions, logger: logger}
}

// Admit handles POST /api/rooms/{id}/admissions.
func (h *AdmissionHandler) Admit(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	var req AdmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	svcReq := service.AdmitRequest{
		RoomID:   roomID,
		TenantID: req.TenantID,
	}
	if req.CheckInDate != nil {
		svcReq.CheckInDate = *req.CheckInDate
	}
	if req.Tenant != nil {
		svcReq.NewTenant = &domain.Tenant{
			FirstName:        req.Tenant.FirstName,
			LastName:         req.Tenant.LastName,
			Email:            req.Tenant.Email,
			Phone:            req.Tenant.Phone,
			Address:          req.Tenant.Address,
			EmergencyContact: req.Tenant.EmergencyContact,
			Residents:        domain.ResidentClass(req.Tenant.Residents),
		}
	}

	record, err := h.admissions.Admit(r.Context(), svcReq)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOccupancyResponse(record))
}

// CheckOut handles POST /api/occupancy/{id}/checkout. The body is optional;
// an empty body checks out as of now.
func (h *AdmissionHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	occupancyID := r.PathValue("id")

	var body struct {
		CheckOutDate *time.Time `json:"checkOutDate,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}
	checkOut := time.Now()
	if body.CheckOutDate != nil {
		checkOut = *body.CheckOutDate
	}

	if err := h.admissions.CheckOut(r.Context(), occupancyID, checkOut); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "checked_out"})
}

func toOccupancyResponse(rec *domain.OccupancyRecord) OccupancyResponse {
	return OccupancyResponse{
		ID:           rec.ID,
		TenantID:     rec.TenantID,
		RoomID:       rec.RoomID,
		CheckInDate:  rec.CheckInDate,
		CheckOutDate: rec.CheckOutDate,
		IsCurrent:    rec.IsCurrent,
	}
}
