package chat

import (
	"engagement-controlplane/pkg/config"
	"engagement-controlplane/pkg/minio"
	"engagement-controlplane/services/audit"
	"engagement-controlplane/services/marketplace"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("chat",
	fx.Provide(
		func(svc *marketplace.Service) Engine { return svc },
		NewRouter,
		provideHandler,
	),
	fx.Invoke(registerRoutes),
)

type handlerParams struct {
	fx.In
	Config  *config.Config
	Router  *Router
	Archive *minio.Archive `optional:"true"`
	Audits  *audit.Service `optional:"true"`
}

func provideHandler(p handlerParams) *Handler {
	var (
		archive ProofArchive
		audits  AuditLister
	)
	if p.Archive != nil {
		archive = p.Archive
	}
	if p.Audits != nil {
		audits = p.Audits
	}
	return NewHandler(p.Router, archive, audits, p.Config.ChatGateway.Token)
}

func registerRoutes(engine *gin.Engine, h *Handler) {
	h.Register(engine)
}
