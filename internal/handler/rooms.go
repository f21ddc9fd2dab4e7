package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/service"
)

// RoomResponse is read-only room inventory info plus the live occupant count.
type RoomResponse struct {
	ID         string  `json:"id"`
	RoomNumber string  `json:"roomNumber"`
	RoomType   string  `json:"roomType,omitempty"`
	Status     string  `json:"status"`
	Capacity   int     `json:"capacity"`
	Floor      int     `json:"floor,omitempty"`
	PriceBaht  float64 `json:"priceBaht,omitempty"`
	Occupied   int     `json:"occupied"`
}

// OccupantResponse is one row of the occupant board: primaries first, then
// dependents, each in admission order.
type OccupantResponse struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Residents  string    `json:"residents"`
	Phone      string    `json:"phone,omitempty"`
	RoomNumber string    `json:"roomNumber,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RoomHandler serves the read side of the occupancy ledger.
type RoomHandler struct {
	admissions *service.AdmissionService
	occupancy  domain.OccupancyRepository
	logger     *slog.Logger
}

func NewRoomHandler(admissions *service.AdmissionService, occupancy domain.OccupancyRepository, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{admissions: admissions, occupancy: occupancy, logger: logger}
}

// List handles GET /api/rooms.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.admissions.Rooms(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		occupied, err := h.occupancy.CurrentCount(r.Context(), room.ID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		out = append(out, RoomResponse{
			ID:         room.ID,
			RoomNumber: room.RoomNumber,
			RoomType:   room.RoomType,
			Status:     room.Status,
			Capacity:   room.Capacity,
			Floor:      room.Floor,
			PriceBaht:  room.PriceBaht,
			Occupied:   occupied,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/rooms/{id}.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	room, err := h.admissions.Room(r.Context(), roomID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	occupied, err := h.occupancy.CurrentCount(r.Context(), roomID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, RoomResponse{
		ID:         room.ID,
		RoomNumber: room.RoomNumber,
		RoomType:   room.RoomType,
		Status:     room.Status,
		Capacity:   room.Capacity,
		Floor:      room.Floor,
		PriceBaht:  room.PriceBaht,
		Occupied:   occupied,
	})
}

// Occupants handles GET /api/rooms/{id}/occupants.
func (h *RoomHandler) Occupants(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")

	tenants, err := h.admissions.CurrentOccupants(r.Context(), roomID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOccupantResponses(tenants))
}

func toOccupantResponses(tenants []*domain.Tenant) []OccupantResponse {
	out := make([]OccupantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, OccupantResponse{
			ID:         t.ID,
			FirstName:  t.FirstName,
			LastName:   t.LastName,
			Residents:  string(t.Residents),
			Phone:      t.Phone,
			RoomNumber: t.RoomNumber,
			CreatedAt:  t.CreatedAt,
		})
	}
	return out
}
