package provisioning

import (
	"time"

	"github.com/ReconquistaDigital/MemberHub/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the provisioning service.
type Repository interface {
	GetAccountByEmail(email string) (*models.Account, error)
	GetAccountByID(id uint) (*models.Account, error)
	CreateAccount(account *models.Account) error
	UpdateAccount(account *models.Account) error

	PurchaseExists(provider, transactionID string) (bool, error)
	CreatePurchase(purchase *models.Purchase) error
	GetPurchaseByTransactionID(provider, transactionID string) (*models.Purchase, error)

	UpsertAccessGrant(grant *models.AccessGrant) error

	InvalidateUnusedTokens(accountID uint, usedAt time.Time) error
	CreateMagicLinkToken(token *models.MagicLinkToken) error
	ConsumeMagicLinkToken(token string, now time.Time) (*models.MagicLinkToken, error)

	CreateWebhookEvent(event *models.WebhookEvent) error
	MarkWebhookProcessed(id uint, errorMessage string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a provisioning repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetAccountByEmail(email string) (*models.Account, error) {
	var account models.Account
	err := r.db.Where("email = ?", models.NormalizeEmail(email)).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetAccountByID(id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) CreateAccount(account *models.Account) error {
	return r.db.Create(account).Error
}

func (r *gormRepository) UpdateAccount(account *models.Account) error {
	return r.db.Save(account).Error
}

func (r *gormRepository) PurchaseExists(provider, transactionID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).
		Where("provider = ? AND provider_transaction_id = ?", provider, transactionID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreatePurchase(purchase *models.Purchase) error {
	return r.db.Create(purchase).Error
}

func (r *gormRepository) GetPurchaseByTransactionID(provider, transactionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.Where("provider = ? AND provider_transaction_id = ?", provider, transactionID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *gormRepository) UpsertAccessGrant(grant *models.AccessGrant) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "account_id"},
			{Name: "entitlement_code"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"purchase_id",
			"active",
			"granted_at",
			"updated_at",
		}),
	}).Create(grant).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("account_id = ? AND entitlement_code = ?", grant.AccountID, grant.EntitlementCode).
		First(grant).Error
}

func (r *gormRepository) InvalidateUnusedTokens(accountID uint, usedAt time.Time) error {
	return r.db.Model(&models.MagicLinkToken{}).
		Where("account_id = ? AND used_at IS NULL", accountID).
		Update("used_at", usedAt).Error
}

func (r *gormRepository) CreateMagicLinkToken(token *models.MagicLinkToken) error {
	return r.db.Create(token).Error
}

// ConsumeMagicLinkToken redeems a token with a single conditional UPDATE, so
// validation and consumption cannot race: zero affected rows means the token
// is unknown, expired or already used.
func (r *gormRepository) ConsumeMagicLinkToken(token string, now time.Time) (*models.MagicLinkToken, error) {
	tx := r.db.Model(&models.MagicLinkToken{}).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		Update("used_at", now)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var stored models.MagicLinkToken
	if err := r.db.Where("token = ?", token).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) CreateWebhookEvent(event *models.WebhookEvent) error {
	return r.db.Create(event).Error
}

func (r *gormRepository) MarkWebhookProcessed(id uint, errorMessage string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed":     true,
		"processed_at":  &now,
		"error_message": errorMessage,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
