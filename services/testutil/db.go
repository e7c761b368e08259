package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"ledgersync/pkg/db"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory sqlite database named after the test,
// migrates models into it and closes it on cleanup. A single connection keeps
// the shared-cache database alive and serializes writers the way sqlite expects.
func NewTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: db.NewZapGormLogger(zap.NewNop(), logger.Silent, false),
	})
	require.NoError(t, err, "open test database")

	if len(models) > 0 {
		require.NoError(t, gdb.AutoMigrate(models...), "migrate test database")
	}

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return gdb
}

// Clock returns a fixed-time source for services that take a now func.
func Clock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
