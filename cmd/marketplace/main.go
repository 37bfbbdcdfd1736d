package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"engagement-controlplane/pkg/authz"
	"engagement-controlplane/pkg/config"
	"engagement-controlplane/pkg/db"
	"engagement-controlplane/pkg/gen"
	"engagement-controlplane/pkg/health"
	"engagement-controlplane/pkg/httpapi"
	"engagement-controlplane/pkg/logger"
	"engagement-controlplane/pkg/minio"
	"engagement-controlplane/pkg/otelcol"
	"engagement-controlplane/pkg/profiling"
	"engagement-controlplane/pkg/redis"
	"engagement-controlplane/pkg/server"
	"engagement-controlplane/pkg/snapshot"
	"engagement-controlplane/pkg/task"
	"engagement-controlplane/services/audit"
	"engagement-controlplane/services/catalog"
	"engagement-controlplane/services/chat"
	"engagement-controlplane/services/marketplace"
	"engagement-controlplane/services/notification"
	"engagement-controlplane/services/reminder"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		minio.Client,
		task.Client,
		gen.Module,
		snapshot.Module,
		catalog.Module,
		authz.Module,
		audit.Module,
		notification.Module,
		marketplace.Module,
		reminder.Module,
		health.Module,
		httpapi.Module,
		chat.Module,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})
