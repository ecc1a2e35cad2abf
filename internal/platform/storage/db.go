package storage

import (
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dronewatch-server-go/internal/platform/errors"
)

var memorySeq atomic.Int64

// MemoryDSN returns a private shared-cache in-memory database name.
func MemoryDSN() string {
	return fmt.Sprintf("file:dronewatch-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), memorySeq.Add(1))
}

// Open 打开 SQLite 数据库并执行迁移. An empty dsn opens a private in-memory database.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = MemoryDSN()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to open sqlite", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to access sql handle", err)
	}
	// in-memory databases vanish with their last connection
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	manager := NewMigrationManager(db)
	for _, m := range Migrations() {
		manager.AddMigration(m)
	}
	if err := manager.RunMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
