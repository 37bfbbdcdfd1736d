package audit

import (
	"context"
	"encoding/json"

	"engagement-controlplane/pkg/db/pagination"
	"engagement-controlplane/pkg/errutil"
	"engagement-controlplane/services/marketplace"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var Module = fx.Module("audit.service",
	fx.Provide(
		NewService,
		func(s *Service) marketplace.Auditor { return s },
	),
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) (*Service, error) {
	if err := p.DB.AutoMigrate(&ProofAudit{}); err != nil {
		zap.L().Error("[Audit] failed to migrate proof_audits", zap.Error(err))
		return nil, err
	}
	return &Service{db: p.DB, node: p.Node}, nil
}

// Record stores one adjudication.
func (s *Service) Record(ctx context.Context, a marketplace.Adjudication) error {
	meta, err := json.Marshal(map[string]any{
		"earnings":        a.Earnings,
		"order_completed": a.OrderCompleted,
	})
	if err != nil {
		return err
	}

	row := &ProofAudit{
		ID:        s.node.Generate().Int64(),
		EngagerID: a.EngagerID,
		OrderID:   a.OrderID,
		TaskType:  string(a.TaskType),
		Accepted:  a.Accepted(),
		Reason:    string(a.Reason),
		ElapsedMs: a.Elapsed.Milliseconds(),
		Credited:  a.Credited,
		ProofRef:  a.ProofRef,
		Metadata:  datatypes.JSON(meta),
		CreatedAt: a.At,
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		zap.L().Error("failed to insert proof audit",
			zap.Int64("engager_id", a.EngagerID),
			zap.String("order_id", a.OrderID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

type Filter struct {
	EngagerID int64
	OrderID   string
}

// List returns audits newest first. The cursor is the last id of the previous page.
func (s *Service) List(ctx context.Context, f Filter, page pagination.Pagination) ([]*ProofAudit, *pagination.PageInfo, error) {
	limit := page.Size()

	q := s.db.WithContext(ctx).Model(&ProofAudit{})
	if f.EngagerID != 0 {
		q = q.Where("engager_id = ?", f.EngagerID)
	}
	if f.OrderID != "" {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		q = q.Where("id < ?", cursor.ID)
	}

	var rows []*ProofAudit
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	rows, info := pagination.Trim(rows, limit, func(r *ProofAudit) int64 { return r.ID })
	return rows, info, nil
}
