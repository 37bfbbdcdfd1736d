package testutil

import (
	"strings"
	"testing"
	"time"

	"engagement-controlplane/pkg/db"

	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dsnReplacer = strings.NewReplacer("/", "_", " ", "_", "?", "_", "#", "_")

// NewTestDB opens a private in-memory sqlite database named after the test and migrates models into it.
// Failed queries are written to the test log.
func NewTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	dsn := "file:" + dsnReplacer.Replace(t.Name()) + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         db.NewLogger(zaptest.NewLogger(t), logger.Error, time.Second, false),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate test database: %v", err)
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("test database handle: %v", err)
	}
	// shared-cache memory databases vanish with their last connection
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return gdb
}
