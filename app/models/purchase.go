package models

import "time"

// Payment provider constants used across purchase-related models.
const (
	PaymentProviderLojou = "lojou"
)

const (
	PurchaseStatusActive = "active"
)

// Purchase is the immutable record of one provider transaction. Rows are
// append-only; the composite unique index on (provider, transaction id) is
// the correctness backstop for duplicate webhook deliveries.
type Purchase struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	AccountID             uint      `gorm:"not null;index" json:"account_id"`
	Provider              string    `gorm:"type:varchar(20);not null;index:ux_purchases_provider_tx,unique,priority:1" json:"provider"`
	ProviderTransactionID string    `gorm:"type:varchar(191);not null;index:ux_purchases_provider_tx,unique,priority:2" json:"provider_transaction_id"`
	ProductCode           string    `gorm:"type:varchar(100);not null;index" json:"product_code"`
	ProductName           string    `gorm:"type:varchar(200)" json:"product_name"`
	AmountCents           int64     `gorm:"not null;default:0" json:"amount_cents"`
	FeeCents              int64     `gorm:"not null;default:0" json:"fee_cents"`
	Status                string    `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	RawPayloadJSON        string    `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt             time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
