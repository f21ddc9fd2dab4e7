package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/security/middleware"
	"github.com/phuttachad/dormcore/internal/service"
)

// ProvisionRequest is the account provisioning payload.
type ProvisionRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Phone            string `json:"phone,omitempty"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
	Role             string `json:"role"`
}

// ProvisionResponse reports how far the workflow got. On partial failure the
// ids of already-committed entities are included so operators can reconcile.
type ProvisionResponse struct {
	State      string `json:"state"`
	IdentityID string `json:"identityId,omitempty"`
	TenantID   string `json:"tenantId,omitempty"`
	Error      string `json:"error,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ProvisionHandler handles account provisioning requests.
type ProvisionHandler struct {
	provisioning *service.ProvisioningService
	logger       *slog.Logger
}

func NewProvisionHandler(provisioning *service.ProvisioningService, logger *slog.Logger) *ProvisionHandler {
	return &ProvisionHandler{provisioning: provisioning, logger: logger}
}

// ServeHTTP handles POST /api/provision.
func (h *ProvisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	outcome, err := h.provisioning.Provision(r.Context(), service.ProvisionRequest{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		Address:          req.Address,
		EmergencyContact: req.EmergencyContact,
		Role:             req.Role,
		AuthToken:        middleware.GetBearerToken(r.Context()),
	})

	resp := ProvisionResponse{
		State:      string(outcome.State),
		IdentityID: outcome.IdentityID,
		TenantID:   outcome.TenantID,
	}

	if err == nil {
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	resp.Error = err.Error()
	if de, ok := err.(*domain.Error); ok {
		resp.Reason = de.Reason
		resp.Error = de.Message
	}

	writeJSON(w, provisionStatus(outcome.State, err), resp)
}

// provisionStatus picks the HTTP status for a failed workflow. Partial
// failures after the identity step are 502: the request neither fully
// succeeded nor can be safely retried as-is.
func provisionStatus(state domain.ProvisionState, err error) int {
	if domain.IsKind(err, domain.KindValidation) {
		return http.StatusBadRequest
	}
	if state == domain.StateConflict || domain.IsKind(err, domain.KindConflict) {
		return http.StatusConflict
	}
	if state.Failed() {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
