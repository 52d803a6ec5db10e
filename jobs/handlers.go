package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// IdempotencyCleaner prunes processed keys past retention.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// Handlers bundles the task handler dependencies.
type Handlers struct {
	Logger    *slog.Logger
	Rebuild   func(ctx context.Context) error
	Cleaner   IdempotencyCleaner
	Retention time.Duration
}

// HandleOrderSubmitted processes TaskOrderSubmitted tasks. The transport
// is a log line; SMTP integration replaces it once credentials exist.
func (h *Handlers) HandleOrderSubmitted(ctx context.Context, t *asynq.Task) error {
	var payload OrderSubmittedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	h.Logger.InfoContext(ctx, "purchase order submitted notification",
		"order_id", payload.OrderID, "reference", payload.ReferenceNo)
	return nil
}

// HandleIndexRebuild processes TaskIndexRebuild tasks.
func (h *Handlers) HandleIndexRebuild(ctx context.Context, t *asynq.Task) error {
	if h.Rebuild == nil {
		return nil
	}
	if err := h.Rebuild(ctx); err != nil {
		h.Logger.ErrorContext(ctx, "vendor index rebuild failed", "error", err)
		return err
	}
	return nil
}

// HandleCleanup processes TaskCleanup tasks.
func (h *Handlers) HandleCleanup(ctx context.Context, t *asynq.Task) error {
	if h.Cleaner == nil {
		return nil
	}
	retention := h.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if err := h.Cleaner.Cleanup(ctx, retention); err != nil {
		h.Logger.ErrorContext(ctx, "idempotency cleanup failed", "error", err)
		return err
	}
	return nil
}
