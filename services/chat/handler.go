package chat

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"engagement-controlplane/pkg/db/pagination"
	"engagement-controlplane/pkg/errutil"
	"engagement-controlplane/pkg/middleware"
	"engagement-controlplane/services/audit"
	"engagement-controlplane/services/intent"
	"engagement-controlplane/services/marketplace"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ActorHeader = "X-Actor-ID"

	maxProofSize = 10 << 20
)

// ProofArchive stores uploaded screenshots and returns their reference.
type ProofArchive interface {
	Put(ctx context.Context, kind string, actor int64, filename, contentType string, r io.Reader, size int64) (string, error)
}

// AuditLister pages through recorded adjudications.
type AuditLister interface {
	List(ctx context.Context, f audit.Filter, page pagination.Pagination) ([]*audit.ProofAudit, *pagination.PageInfo, error)
}

type Handler struct {
	router  *Router
	archive ProofArchive
	audits  AuditLister
	token   string
}

func NewHandler(router *Router, archive ProofArchive, audits AuditLister, token string) *Handler {
	return &Handler{router: router, archive: archive, audits: audits, token: token}
}

func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1", middleware.BearerToken(h.token))
	v1.POST("/events", h.HandleEvent)
	v1.POST("/proofs", h.UploadProof)

	admin := v1.Group("/admin", h.requireAdmin)
	admin.GET("/pending", h.PendingSummary)
	admin.GET("/audits", h.ListAudits)
}

// HandleEvent decodes one chat event and returns the reply for its sender.
func (h *Handler) HandleEvent(c *gin.Context) {
	var ev intent.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		_ = c.Error(errutil.BadRequest("invalid event", err))
		return
	}

	in, err := intent.Decode(ev)
	if err != nil {
		_ = c.Error(errutil.BadRequest("unrecognised event", err))
		return
	}

	reply, err := h.router.Handle(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// UploadProof archives a screenshot and routes it as a photo event.
func (h *Handler) UploadProof(c *gin.Context) {
	if h.archive == nil {
		_ = c.Error(errutil.NotImplemented("proof uploads are disabled", nil))
		return
	}

	actor, err := strconv.ParseInt(c.PostForm("actor"), 10, 64)
	if err != nil || actor == 0 {
		_ = c.Error(errutil.BadRequest("actor is required", err))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(errutil.BadRequest("file is required", err))
		return
	}
	if fh.Size > maxProofSize {
		_ = c.Error(errutil.BadRequest("file is too large", nil))
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		_ = c.Error(errutil.UnsupportedMediaType("proof must be an image", nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		_ = c.Error(errutil.BadRequest("unreadable file", err))
		return
	}
	defer f.Close()

	kind := "task"
	if sess, ok := h.router.engine.Session(actor); ok && sess.AwaitingPaymentProof() {
		kind = "payment"
	}

	ctx := c.Request.Context()
	ref, err := h.archive.Put(ctx, kind, actor, fh.Filename, contentType, f, fh.Size)
	if err != nil {
		_ = c.Error(errutil.BadGateway("failed to store proof", err))
		return
	}

	reply, err := h.router.Handle(ctx, intent.Intent{Kind: intent.KindPhoto, Actor: actor, ProofRef: ref})
	if err != nil {
		zap.L().Warn("proof stored but not accepted", zap.Int64("actor", actor), zap.String("proof_ref", ref), zap.Error(err))
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proof_ref": ref, "reply": reply})
}

func (h *Handler) requireAdmin(c *gin.Context) {
	actor, err := strconv.ParseInt(c.GetHeader(ActorHeader), 10, 64)
	if err != nil {
		_ = c.Error(errutil.Unauthorized("missing actor", err))
		c.Abort()
		return
	}
	if !h.router.engine.Authorized(actor, "summary", "read") {
		_ = c.Error(errutil.Forbidden("administrator only", marketplace.ErrUnauthorized))
		c.Abort()
		return
	}
	c.Next()
}

func (h *Handler) PendingSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.router.engine.PendingSummary())
}

type auditQuery struct {
	pagination.Pagination
	EngagerID int64  `form:"engager_id"`
	OrderID   string `form:"order_id"`
}

func (h *Handler) ListAudits(c *gin.Context) {
	if h.audits == nil {
		_ = c.Error(errutil.NotImplemented("audit trail is disabled", nil))
		return
	}

	var q auditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	rows, info, err := h.audits.List(c.Request.Context(), audit.Filter{EngagerID: q.EngagerID, OrderID: q.OrderID}, q.Pagination)
	if err != nil {
		_ = c.Error(errutil.BadRequest("failed to list audits", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}
