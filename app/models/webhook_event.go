package models

import "time"

// WebhookEvent is the audit record for one inbound webhook delivery. The row
// is inserted before any business logic runs and updated exactly once with
// the terminal outcome, so every delivery leaves a trace even when the
// pipeline crashes or rejects the request.
type WebhookEvent struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Provider      string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	EventType     string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON   string     `gorm:"type:longtext;not null" json:"payload_json"`
	CustomerEmail string     `gorm:"type:varchar(200);default:'';index" json:"customer_email"`
	TransactionID string     `gorm:"type:varchar(191);default:'';index" json:"transaction_id"`
	Processed     bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt   *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
