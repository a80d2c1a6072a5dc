package db

import (
	"time"

	"gorm.io/gorm"
)

// ConvertRecord is one row of conversion history, written per input file.
type ConvertRecord struct {
	gorm.Model
	Task         string `gorm:"index"`
	Source       string `gorm:"index"`
	Output       string
	Outcome      string
	SlowStart    bool
	HasFreeAtoms bool
	Unsupported  bool
	InputLength  int64
	OutputLength int64
	Duration     time.Duration
	Error        string
}

func Save(db *gorm.DB, rec *ConvertRecord) error {
	return db.Create(rec).Error
}

// Recent returns the latest records for source, newest first. An empty source
// matches every file.
func Recent(db *gorm.DB, source string, limit int) (records []ConvertRecord, err error) {
	query := db.Order("id desc").Limit(limit)
	if source != "" {
		query = query.Where("source = ?", source)
	}
	err = query.Find(&records).Error
	return
}
