package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"m7s.live/faststart/pkg"
)

var Factory = map[string]func(string) gorm.Dialector{}

// Open connects to dsn with the dialector registered for dbType and migrates
// the history table.
func Open(dbType, dsn string) (db *gorm.DB, err error) {
	factory, ok := Factory[dbType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pkg.ErrUnknownDBType, dbType)
	}
	db, err = gorm.Open(factory(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database %s: %w", dsn, err)
	}
	if err = db.AutoMigrate(&ConvertRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ConvertRecord: %w", err)
	}
	return
}
