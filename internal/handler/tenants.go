package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/service"
)

// TenantResponse is a serialized tenancy record.
type TenantResponse struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Address          string    `json:"address,omitempty"`
	EmergencyContact string    `json:"emergencyContact,omitempty"`
	Residents        string    `json:"residents"`
	RoomID           string    `json:"roomId,omitempty"`
	RoomNumber       string    `json:"roomNumber,omitempty"`
	Version          int       `json:"version"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TenantUpdateRequest is a partial merge; absent fields stay unchanged.
type TenantUpdateRequest struct {
	FirstName        *string `json:"firstName,omitempty"`
	LastName         *string `json:"lastName,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Address          *string `json:"address,omitempty"`
	EmergencyContact *string `json:"emergencyContact,omitempty"`
	RoomNumber       *string `json:"roomNumber,omitempty"`
}

// TenantHandler serves the tenancy record store.
type TenantHandler struct {
	tenants  *service.TenantService
	contract *service.ContractService
	logger   *slog.Logger
}

func NewTenantHandler(tenants *service.TenantService, contract *service.ContractService, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{tenants: tenants, contract: contract, logger: logger}
}

// Create handles POST /api/tenants.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req NewTenantPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	tenant := &domain.Tenant{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		Residents:        domain.ResidentClass(req.Residents),
	}
	if _, err := h.tenants.Create(r.Context(), tenant); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

// Get handles GET /api/tenants/{id}.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.tenants.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// Update handles PATCH /api/tenants/{id}. An If-Match header carrying the
// expected version requests a conditional write; without it the write is
// last-write-wins.
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req TenantUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	update := domain.TenantUpdate{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		RoomNumber:       req.RoomNumber,
	}
	if match := r.Header.Get("If-Match"); match != "" {
		v, err := strconv.Atoi(match)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "If-Match must be a positive version number"})
			return
		}
		update.ExpectedVersion = v
	}

	tenant, err := h.tenants.Update(r.Context(), id, update)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// Contract handles GET /api/tenants/{id}/contract. A tenant without a
// contract file answers 404 with a distinct body; that is an expected state,
// not a failure.
func (h *TenantHandler) Contract(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Resolve the tenant first so a bogus id is not probed against the
	// document host.
	if _, err := h.tenants.Get(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	doc, err := h.contract.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "no_contract"})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func toTenantResponse(t *domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:               t.ID,
		FirstName:        t.FirstName,
		LastName:         t.LastName,
		Email:            t.Email,
		Phone:            t.Phone,
		Address:          t.Address,
		EmergencyContact: t.EmergencyContact,
		Residents:        string(t.Residents),
		RoomID:           t.RoomID,
		RoomNumber:       t.RoomNumber,
		Version:          t.Version,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}
