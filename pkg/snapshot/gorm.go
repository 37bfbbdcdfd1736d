package snapshot

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Record struct {
	Key       string    `gorm:"column:snapshot_key;primaryKey;type:varchar(64)"`
	Payload   []byte    `gorm:"column:payload;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Record) TableName() string { return "snapshots" }

// Gorm stores the snapshot as one row of the snapshots table.
type Gorm struct {
	db  *gorm.DB
	key string
}

func NewGorm(db *gorm.DB, key string) (*Gorm, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Gorm{db: db, key: key}, nil
}

func (g *Gorm) Load(ctx context.Context) ([]byte, error) {
	var rec Record
	err := g.db.WithContext(ctx).Where("snapshot_key = ?", g.key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Payload, nil
}

func (g *Gorm) Save(ctx context.Context, payload []byte) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "snapshot_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).Create(&Record{
			Key:       g.key,
			Payload:   payload,
			UpdatedAt: time.Now(),
		}).Error
	})
}
