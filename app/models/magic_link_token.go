package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// MagicLinkTokenTTL is how long an issued login link stays redeemable.
const MagicLinkTokenTTL = 7 * 24 * time.Hour

// MagicLinkToken is a single-use login credential. A token is redeemable only
// while UsedAt is nil and ExpiresAt lies in the future; issuing a new token
// for an account marks every prior unused token as used, so at most the most
// recently issued link can be redeemed.
type MagicLinkToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Token     string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	AccountID uint       `gorm:"not null;index" json:"account_id"`
	ExpiresAt time.Time  `gorm:"type:timestamp;not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"type:timestamp;default:null" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// GenerateMagicLinkToken returns a hex token with 256 bits of entropy.
func GenerateMagicLinkToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IsRedeemable reports whether the token satisfies the redemption predicate
// at the given instant.
func (t *MagicLinkToken) IsRedeemable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
