package models

import "time"

// SequenceCounterModel holds the last value handed out for a named sequence
type SequenceCounterModel struct {
	Name      string    `gorm:"type:varchar(64);primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "sequence_counters"
}
