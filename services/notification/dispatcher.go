package notification

import (
	"context"
	"errors"
	"fmt"

	"engagement-controlplane/pkg/task"
	"engagement-controlplane/services/marketplace"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dispatcher enqueues one delivery task per outbound message.
type Dispatcher struct {
	enqueuer task.Enqueuer
}

func NewDispatcher(enqueuer task.Enqueuer) *Dispatcher {
	return &Dispatcher{enqueuer: enqueuer}
}

func (d *Dispatcher) Notify(ctx context.Context, msgs []marketplace.Message) error {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID().String()

	var errs []error
	for _, m := range msgs {
		t, err := NewDeliverTask(PayloadFromMessage(m, traceID))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		info, err := d.enqueuer.Enqueue(ctx, t)
		if err != nil {
			errs = append(errs, fmt.Errorf("recipient %d: %w", m.To, err))
			continue
		}
		zap.L().Debug("notification enqueued",
			zap.Int64("to", m.To),
			zap.String("task_id", info.ID),
			zap.String("trace_id", traceID),
		)
	}
	return errors.Join(errs...)
}
