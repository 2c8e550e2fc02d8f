package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-suite/meridian/internal/rbac"
)

// AssignmentSource lists assignments nearing expiry. Satisfied by
// rbac.AdminService.
type AssignmentSource interface {
	ExpiringAssignments(ctx context.Context, window time.Duration) ([]rbac.ExpiringAssignment, error)
}

// ExpiryScanHandler surfaces assignments that will lapse within the warning
// window so administrators can renew or let them expire.
type ExpiryScanHandler struct {
	source AssignmentSource
	logger *slog.Logger
}

// NewExpiryScanHandler constructs the handler.
func NewExpiryScanHandler(source AssignmentSource, logger *slog.Logger) *ExpiryScanHandler {
	return &ExpiryScanHandler{source: source, logger: logger}
}

// ProcessTask handles TaskExpiryScan tasks.
func (h *ExpiryScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	expiring, err := h.source.ExpiringAssignments(ctx, payload.Window)
	if err != nil {
		return err
	}
	for _, assignment := range expiring {
		h.logger.Warn("role assignment expiring",
			slog.String("assignment_id", assignment.AssignmentID),
			slog.Int64("user_id", assignment.UserID),
			slog.String("role", assignment.RoleName),
			slog.Time("expires_at", assignment.ExpiresAt))
	}
	h.logger.Info("expiry scan complete", slog.Int("expiring", len(expiring)))
	return nil
}

// UsageTrimHandler caps the permission-usage stream so the audit consumer
// can lag without unbounded Redis growth.
type UsageTrimHandler struct {
	client *redis.Client
	logger *slog.Logger
}

// NewUsageTrimHandler constructs the handler.
func NewUsageTrimHandler(client *redis.Client, logger *slog.Logger) *UsageTrimHandler {
	return &UsageTrimHandler{client: client, logger: logger}
}

// ProcessTask handles TaskUsageTrim tasks.
func (h *UsageTrimHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload UsageTrimPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Stream == "" || payload.MaxLen <= 0 {
		return asynq.SkipRetry
	}
	trimmed, err := h.client.XTrimMaxLenApprox(ctx, payload.Stream, payload.MaxLen, 0).Result()
	if err != nil {
		return err
	}
	h.logger.Info("usage stream trimmed",
		slog.String("stream", payload.Stream),
		slog.Int64("removed", trimmed))
	return nil
}
