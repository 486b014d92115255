package domain

import "time"

// ProcessedUpdate records a transport update id that has already been handed
// to the dispatcher. Webhook deliveries are retried by the transport on
// timeouts, so the same update id can arrive more than once; a row here means
// "already dispatched" until ExpiresAt.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
