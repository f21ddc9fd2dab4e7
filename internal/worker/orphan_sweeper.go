package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/observability/metrics"
)

// OrphanSweeper periodically surfaces unresolved provisioning orphans.
// Failed provisioning runs are never compensated automatically; the sweeper
// keeps the backlog visible in logs and metrics until an operator resolves
// each marker.
type OrphanSweeper struct {
	orphans  domain.OrphanRepository
	logger   *slog.Logger
	interval time.Duration
}

func NewOrphanSweeper(orphans domain.OrphanRepository, logger *slog.Logger, interval time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		orphans:  orphans,
		logger:   logger,
		interval: interval,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *OrphanSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("orphan sweeper started", slog.Duration("interval", w.interval))

	// One immediate sweep so metrics are populated right after boot.
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("orphan sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OrphanSweeper) sweep(ctx context.Context) {
	markers, err := w.orphans.ListUnresolved(ctx)
	if err != nil {
		w.logger.Error("failed to list unresolved orphans",
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.SetUnresolvedOrphans(len(markers))

	if len(markers) == 0 {
		return
	}

	w.logger.Warn("unresolved provisioning orphans", slog.Int("count", len(markers)))
	for _, m := range markers {
		age := time.Since(m.CreatedAt).Round(time.Second)
		w.logger.Warn("orphan pending manual resolution",
			slog.String("orphan_id", m.ID),
			slog.String("state", string(m.State)),
			slog.String("email", m.Email),
			slog.String("identity_id", m.IdentityID),
			slog.String("tenant_id", m.TenantID),
			slog.Duration("age", age),
		)
	}
}
