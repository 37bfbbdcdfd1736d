package httpapi

import (
	"engagement-controlplane/pkg/config"
	"engagement-controlplane/pkg/health"
	"engagement-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewEngine),
	fx.Invoke(registerHealthEndpoint),
)

// NewEngine builds the gin engine every HTTP route is mounted on.
func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		Burst:             cfg.Server.Burst,
	})

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.Error(),
		limiter.Middleware(),
	)
	return engine
}

func registerHealthEndpoint(engine *gin.Engine, h health.HealthService) {
	engine.GET("/healthz", h.Liveness)
	engine.GET("/readyz", h.Readiness)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
