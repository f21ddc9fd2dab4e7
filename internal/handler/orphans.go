package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
)

// OrphanResponse is a serialized orphan marker.
type OrphanResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	State      string    `json:"state"`
	IdentityID string    `json:"identityId,omitempty"`
	TenantID   string    `json:"tenantId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// OrphanHandler exposes the orphan backlog to operators. Resolution here
// only acknowledges the marker; cleaning up the orphaned entities happens
// out of band.
type OrphanHandler struct {
	orphans domain.OrphanRepository
	logger  *slog.Logger
}

func NewOrphanHandler(orphans domain.OrphanRepository, logger *slog.Logger) *OrphanHandler {
	return &OrphanHandler{orphans: orphans, logger: logger}
}

// List handles GET /api/orphans.
func (h *OrphanHandler) List(w http.ResponseWriter, r *http.Request) {
	markers, err := h.orphans.ListUnresolved(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]OrphanResponse, 0, len(markers))
	for _, m := range markers {
		out = append(out, OrphanResponse{
			ID:         m.ID,
			Email:      m.Email,
			State:      string(m.State),
			IdentityID: m.IdentityID,
			TenantID:   m.TenantID,
			Detail:     m.Detail,
			CreatedAt:  m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Resolve handles POST /api/orphans/{id}/resolve.
func (h *OrphanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.orphans.Resolve(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("orphan marker resolved", slog.String("orphan_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}
