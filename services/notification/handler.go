package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Handler delivers queued notifications.
type Handler struct {
	gateway Gateway
}

func NewHandler(gateway Gateway) *Handler {
	return &Handler{gateway: gateway}
}

func (h *Handler) HandleDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", t.Type()),
		zap.Int64("to", payload.To),
		zap.String("trace_id", payload.TraceID),
	)

	if payload.To == 0 || payload.Text == "" {
		zapLog.Warn("dropping notification without recipient or text")
		return nil
	}

	if err := h.gateway.Send(ctx, payload); err != nil {
		zapLog.Error("failed to deliver notification", zap.Error(err))
		return err
	}

	zapLog.Debug("notification delivered")
	return nil
}
