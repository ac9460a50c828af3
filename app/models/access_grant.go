package models

import "time"

// AccessGrant links an account to one content entitlement (course). Granting
// is an upsert on (account_id, entitlement_code); re-granting reactivates the
// existing row instead of creating a duplicate. Revocation is done by an
// external admin surface flipping Active to false; this service never revokes.
type AccessGrant struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AccountID       uint      `gorm:"not null;index:ux_access_grants_account_entitlement,unique,priority:1" json:"account_id"`
	EntitlementCode string    `gorm:"type:varchar(100);not null;index:ux_access_grants_account_entitlement,unique,priority:2" json:"entitlement_code"`
	PurchaseID      *uint     `gorm:"default:null;index" json:"purchase_id,omitempty"`
	Active          bool      `gorm:"default:true;index" json:"active"`
	GrantedAt       time.Time `gorm:"type:timestamp;not null" json:"granted_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
