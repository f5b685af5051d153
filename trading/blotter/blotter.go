// Package blotter persists the client's fills to a local sqlite file so a
// session's activity survives the process and can be eyeballed with any
// sqlite client.
package blotter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Fill is one execution record.
type Fill struct {
	ID            uint `gorm:"primarykey"`
	CreatedAt     time.Time
	ClientID      uint32 `gorm:"index"`
	TickerID      uint32 `gorm:"index"`
	ClientOrderID uint64
	MarketOrderID uint64
	Side          string
	Price         int64
	ExecQty       int64
	LeavesQty     int64
}

// Blotter wraps the sqlite store.
type Blotter struct {
	db *gorm.DB
}

// Open creates the database file (and parent directory) if needed and
// migrates the schema.
func Open(path string) (*Blotter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("blotter: mkdir %s: %w", dir, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("blotter: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Fill{}); err != nil {
		return nil, fmt.Errorf("blotter: migrate: %w", err)
	}
	return &Blotter{db: db}, nil
}

// Record appends one fill.
func (b *Blotter) Record(f *Fill) error {
	if err := b.db.Create(f).Error; err != nil {
		return fmt.Errorf("blotter: record: %w", err)
	}
	return nil
}

// Recent returns the newest fills, newest first.
func (b *Blotter) Recent(limit int) ([]Fill, error) {
	var fills []Fill
	err := b.db.Order("id desc").Limit(limit).Find(&fills).Error
	if err != nil {
		return nil, fmt.Errorf("blotter: query: %w", err)
	}
	return fills, nil
}

// Close releases the underlying connection.
func (b *Blotter) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
