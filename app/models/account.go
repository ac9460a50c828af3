package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Account is a paying customer identity. Accounts are provisioned by the
// payment webhook pipeline and never carry a password; authentication happens
// exclusively through issued magic-link tokens.
type Account struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UUID          string    `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	Email         string    `gorm:"type:varchar(200);uniqueIndex;not null" json:"email" validate:"required,email,min=5,max=200"`
	Name          string    `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	Phone         string    `gorm:"type:varchar(32);default:''" json:"phone" validate:"max=32"`
	HasFullAccess bool      `gorm:"default:false;index" json:"has_full_access"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) Validate() error {
	v := validator.New()
	return v.Struct(a)
}

// NormalizeEmail lowercases and trims an address so that one human maps to
// exactly one account row regardless of how the provider spells the email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewAccount builds an unsaved account for a normalized email.
func NewAccount(email, name, phone string) (*Account, error) {
	a := &Account{
		UUID:          uuid.New().String(),
		Email:         NormalizeEmail(email),
		Name:          strings.TrimSpace(name),
		Phone:         strings.TrimSpace(phone),
		HasFullAccess: true,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}
