package provisioning

import (
	"strings"
	"sync"
	"time"

	"github.com/ReconquistaDigital/MemberHub/app/models"
	"gorm.io/gorm"
)

// MemoryRepository is an in-memory Repository used by tests and local
// development without a MySQL instance. It mirrors the DB-level invariants
// the service relies on: unique account emails, unique provider transaction
// ids and upsert semantics for access grants.
type MemoryRepository struct {
	mu sync.Mutex

	accounts  []models.Account
	purchases []models.Purchase
	grants    []models.AccessGrant
	tokens    []models.MagicLinkToken
	events    []models.WebhookEvent

	nextID uint
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) nextIDLocked() uint {
	r.nextID++
	return r.nextID
}

func (r *MemoryRepository) GetAccountByEmail(email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalized := models.NormalizeEmail(email)
	for i := range r.accounts {
		if r.accounts[i].Email == normalized {
			a := r.accounts[i]
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) GetAccountByID(id uint) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.accounts {
		if r.accounts[i].ID == id {
			a := r.accounts[i]
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) CreateAccount(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.accounts {
		if r.accounts[i].Email == account.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	account.ID = r.nextIDLocked()
	account.CreatedAt = time.Now()
	r.accounts = append(r.accounts, *account)
	return nil
}

func (r *MemoryRepository) UpdateAccount(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.accounts {
		if r.accounts[i].ID == account.ID {
			r.accounts[i] = *account
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *MemoryRepository) PurchaseExists(provider, transactionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.purchases {
		if r.purchases[i].Provider == provider && r.purchases[i].ProviderTransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) CreatePurchase(purchase *models.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.purchases {
		if r.purchases[i].Provider == purchase.Provider &&
			r.purchases[i].ProviderTransactionID == purchase.ProviderTransactionID {
			return gorm.ErrDuplicatedKey
		}
	}
	purchase.ID = r.nextIDLocked()
	purchase.CreatedAt = time.Now()
	r.purchases = append(r.purchases, *purchase)
	return nil
}

func (r *MemoryRepository) GetPurchaseByTransactionID(provider, transactionID string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.purchases {
		if r.purchases[i].Provider == provider && r.purchases[i].ProviderTransactionID == transactionID {
			p := r.purchases[i]
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) UpsertAccessGrant(grant *models.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.grants {
		if r.grants[i].AccountID == grant.AccountID && r.grants[i].EntitlementCode == grant.EntitlementCode {
			r.grants[i].PurchaseID = grant.PurchaseID
			r.grants[i].Active = grant.Active
			r.grants[i].GrantedAt = grant.GrantedAt
			*grant = r.grants[i]
			return nil
		}
	}
	grant.ID = r.nextIDLocked()
	r.grants = append(r.grants, *grant)
	return nil
}

func (r *MemoryRepository) InvalidateUnusedTokens(accountID uint, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tokens {
		if r.tokens[i].AccountID == accountID && r.tokens[i].UsedAt == nil {
			t := usedAt
			r.tokens[i].UsedAt = &t
		}
	}
	return nil
}

func (r *MemoryRepository) CreateMagicLinkToken(token *models.MagicLinkToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tokens {
		if r.tokens[i].Token == token.Token {
			return gorm.ErrDuplicatedKey
		}
	}
	token.ID = r.nextIDLocked()
	token.CreatedAt = time.Now()
	r.tokens = append(r.tokens, *token)
	return nil
}

func (r *MemoryRepository) ConsumeMagicLinkToken(token string, now time.Time) (*models.MagicLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trimmed := strings.TrimSpace(token)
	for i := range r.tokens {
		if r.tokens[i].Token != trimmed {
			continue
		}
		if r.tokens[i].UsedAt != nil || !now.Before(r.tokens[i].ExpiresAt) {
			return nil, gorm.ErrRecordNotFound
		}
		t := now
		r.tokens[i].UsedAt = &t
		stored := r.tokens[i]
		return &stored, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *MemoryRepository) CreateWebhookEvent(event *models.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = r.nextIDLocked()
	event.CreatedAt = time.Now()
	r.events = append(r.events, *event)
	return nil
}

func (r *MemoryRepository) MarkWebhookProcessed(id uint, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.events {
		if r.events[i].ID == id {
			now := time.Now()
			r.events[i].Processed = true
			r.events[i].ProcessedAt = &now
			r.events[i].ErrorMessage = errorMessage
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// Snapshot accessors used by tests to assert persisted state.

func (r *MemoryRepository) Accounts() []models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Account(nil), r.accounts...)
}

func (r *MemoryRepository) Purchases() []models.Purchase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Purchase(nil), r.purchases...)
}

func (r *MemoryRepository) Grants() []models.AccessGrant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AccessGrant(nil), r.grants...)
}

func (r *MemoryRepository) Tokens() []models.MagicLinkToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MagicLinkToken(nil), r.tokens...)
}

func (r *MemoryRepository) Events() []models.WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.WebhookEvent(nil), r.events...)
}
