package audit

import (
	"time"

	"gorm.io/datatypes"
)

// ProofAudit is one adjudicated proof, accepted or rejected.
type ProofAudit struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement:false" json:"id,string"`
	EngagerID int64          `gorm:"column:engager_id;index" json:"engager_id"`
	OrderID   string         `gorm:"column:order_id;index" json:"order_id"`
	TaskType  string         `gorm:"column:task_type" json:"task_type"`
	Accepted  bool           `gorm:"column:accepted" json:"accepted"`
	Reason    string         `gorm:"column:reason" json:"reason,omitempty"`
	ElapsedMs int64          `gorm:"column:elapsed_ms" json:"elapsed_ms"`
	Credited  int64          `gorm:"column:credited" json:"credited"`
	ProofRef  string         `gorm:"column:proof_ref" json:"proof_ref"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (ProofAudit) TableName() string { return "proof_audits" }
