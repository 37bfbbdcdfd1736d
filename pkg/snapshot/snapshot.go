package snapshot

import (
	"context"
	"errors"
	"fmt"

	"engagement-controlplane/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("snapshot: not found")

// Store persists the whole marketplace state as one opaque blob. Save replaces the previous
// snapshot atomically; a failed Save leaves the previous snapshot readable.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, payload []byte) error
}

var Module = fx.Module("snapshot",
	fx.Provide(New),
)

type Params struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
	DB        *gorm.DB      `optional:"true"`
	Redis     *redis.Client `optional:"true"`
}

func New(p Params) (Store, error) {
	cfg := p.Config.Snapshot
	zapLog := zap.L().With(zap.String("driver", cfg.Driver), zap.String("key", cfg.Key))

	switch cfg.Driver {
	case "bolt":
		store, err := OpenBolt(cfg.Path, cfg.Key)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return store.Close()
			},
		})
		zapLog.Info("[Snapshot] using bolt store", zap.String("path", cfg.Path))
		return store, nil
	case "gorm":
		if p.DB == nil {
			return nil, fmt.Errorf("snapshot driver gorm requires a database")
		}
		zapLog.Info("[Snapshot] using database store")
		return NewGorm(p.DB, cfg.Key)
	case "redis":
		if p.Redis == nil {
			return nil, fmt.Errorf("snapshot driver redis requires a redis client")
		}
		zapLog.Info("[Snapshot] using redis store")
		return NewRedis(p.Redis, cfg.Key), nil
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", cfg.Driver)
	}
}
