package audit

import (
	"context"
	"log/slog"
	"time"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores the request id for audit correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// Logger writes audit records for account and occupancy mutations. Records
// go to the structured log stream with a fixed shape so they can be split
// out downstream.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, actor, action, resource, resourceID, status, details string) {
	requestID := ""
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		requestID = v
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("actor", actor),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogProvision(ctx context.Context, actor, tenantID, status, details string) {
	al.LogAction(ctx, actor, "provision", "tenant", tenantID, status, details)
}

func (al *Logger) LogAdmission(ctx context.Context, actor, roomID, status, details string) {
	al.LogAction(ctx, actor, "admit", "room", roomID, status, details)
}

func (al *Logger) LogCheckout(ctx context.Context, actor, occupancyID, status, details string) {
	al.LogAction(ctx, actor, "checkout", "occupancy", occupancyID, status, details)
}

func (al *Logger) LogOrphanResolve(ctx context.Context, actor, orphanID, status, details string) {
	al.LogAction(ctx, actor, "resolve", "orphan", orphanID, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, actor, reason string) {
	al.LogAction(ctx, actor, "access_denied", "api", "", "denied", reason)
}
