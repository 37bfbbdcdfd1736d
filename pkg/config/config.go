package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Log struct {
		File       string `mapstructure:"FILE"`
		MaxSizeMB  int    `mapstructure:"MAX_SIZE_MB"`
		MaxBackups int    `mapstructure:"MAX_BACKUPS"`
		MaxAgeDays int    `mapstructure:"MAX_AGE_DAYS"`
	} `mapstructure:"LOG"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"` // grpc | http
		Insecure bool   `mapstructure:"INSECURE"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr              string        `mapstructure:"ADDR"`
		ReadTimeout       time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout      time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout       time.Duration `mapstructure:"IDLE_TIMEOUT"`
		RequestsPerMinute float64       `mapstructure:"REQUESTS_PER_MINUTE"`
		Burst             int           `mapstructure:"BURST"`
	} `mapstructure:"HTTP_SERVER"`
	Grpc struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"GRPC_SERVER"`
	Database struct {
		Type           string        `mapstructure:"TYPE"`
		Host           string        `mapstructure:"HOST"`
		Port           string        `mapstructure:"PORT"`
		DBNAME         string        `mapstructure:"DBNAME"`
		User           string        `mapstructure:"USER"`
		Password       string        `mapstructure:"PASSWORD"`
		SSLMode        string        `mapstructure:"SSLMODE"`
		Timezone       string        `mapstructure:"TIMEZONE"`
		Path           string        `mapstructure:"PATH"`
		Metrics        bool          `mapstructure:"METRICS"`
		SlowQuery      time.Duration `mapstructure:"SLOW_QUERY"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
	Snapshot struct {
		Driver string `mapstructure:"DRIVER"` // bolt | gorm | redis
		Key    string `mapstructure:"KEY"`
		Path   string `mapstructure:"PATH"`
	} `mapstructure:"SNAPSHOT"`
	AccessControl struct {
		Model  string `mapstructure:"MODEL"`
		Policy string `mapstructure:"POLICY"`
	} `mapstructure:"ACCESS_CONTROL"`
	ChatGateway struct {
		URL     string        `mapstructure:"URL"`
		Token   string        `mapstructure:"TOKEN"`
		Timeout time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"CHAT_GATEWAY"`
	CatalogPath string      `mapstructure:"CATALOG_PATH"`
	Marketplace Marketplace `mapstructure:"MARKETPLACE"`
}

// Marketplace holds the tunables of the order and task engine.
type Marketplace struct {
	AdminID          int64         `mapstructure:"ADMIN_ID"`
	Cooldown         time.Duration `mapstructure:"COOLDOWN"`
	DwellTime        time.Duration `mapstructure:"DWELL_TIME"`
	OrderTaskCap     int           `mapstructure:"ORDER_TASK_CAP"`
	DailyTaskCap     int           `mapstructure:"DAILY_TASK_CAP"`
	DailyWindow      time.Duration `mapstructure:"DAILY_WINDOW"`
	WithdrawalMin    int64         `mapstructure:"WITHDRAWAL_MIN"`
	AccountDigits    int           `mapstructure:"ACCOUNT_DIGITS"`
	ReminderInterval time.Duration `mapstructure:"REMINDER_INTERVAL"`
}

// DefaultMarketplace returns the production rule set.
func DefaultMarketplace() Marketplace {
	return Marketplace{
		Cooldown:         2 * time.Second,
		DwellTime:        60 * time.Second,
		OrderTaskCap:     5,
		DailyTaskCap:     25,
		DailyWindow:      24 * time.Hour,
		WithdrawalMin:    1000,
		AccountDigits:    10,
		ReminderInterval: 6 * time.Hour,
	}
}

var ErrMissingAdmin = errors.New("config: MARKETPLACE.ADMIN_ID is required")

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() (*Config, error) {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
		zap.L().Warn("config.yaml not found, relying on environment")
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	Defaults(&cfg)

	if cfg.Marketplace.AdminID == 0 {
		return nil, ErrMissingAdmin
	}

	return &cfg, nil
}

// Defaults fills every unset field with its production value.
func Defaults(cfg *Config) {
	def := DefaultMarketplace()
	m := &cfg.Marketplace
	if m.Cooldown <= 0 {
		m.Cooldown = def.Cooldown
	}
	if m.DwellTime <= 0 {
		m.DwellTime = def.DwellTime
	}
	if m.OrderTaskCap <= 0 {
		m.OrderTaskCap = def.OrderTaskCap
	}
	if m.DailyTaskCap <= 0 {
		m.DailyTaskCap = def.DailyTaskCap
	}
	if m.DailyWindow <= 0 {
		m.DailyWindow = def.DailyWindow
	}
	if m.WithdrawalMin <= 0 {
		m.WithdrawalMin = def.WithdrawalMin
	}
	if m.AccountDigits <= 0 {
		m.AccountDigits = def.AccountDigits
	}
	if m.ReminderInterval <= 0 {
		m.ReminderInterval = def.ReminderInterval
	}

	if cfg.AppName == "" {
		cfg.AppName = "engagement-marketplace"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "8080"
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.RequestsPerMinute <= 0 {
		cfg.Server.RequestsPerMinute = 600
	}
	if cfg.Server.Burst <= 0 {
		cfg.Server.Burst = 20
	}
	if cfg.Grpc.Addr == "" {
		cfg.Grpc.Addr = "9090"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "marketplace.db"
	}
	if cfg.Snapshot.Driver == "" {
		cfg.Snapshot.Driver = "bolt"
	}
	if cfg.Snapshot.Key == "" {
		cfg.Snapshot.Key = "marketplace"
	}
	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = "marketplace.snapshot"
	}
	if cfg.ChatGateway.Timeout <= 0 {
		cfg.ChatGateway.Timeout = 10 * time.Second
	}
}
