package notification

import (
	"engagement-controlplane/pkg/taskname"
	"engagement-controlplane/services/marketplace"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

// Module wires the engine's Notifier to the task queue.
var Module = fx.Module("notification.dispatcher",
	fx.Provide(
		NewDispatcher,
		func(d *Dispatcher) marketplace.Notifier { return d },
	),
)

// Worker registers the delivery handler on the asynq mux.
var Worker = fx.Module("notification.worker",
	fx.Provide(NewGateway, NewHandler),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, h *Handler) {
	mux.HandleFunc(taskname.NotificationDeliver, h.HandleDeliverTask)
}
