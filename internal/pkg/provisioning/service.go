package provisioning

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/ReconquistaDigital/MemberHub/app/models"
	"gorm.io/gorm"
)

// ErrInvalidEmail marks a payload whose customer email is missing or
// malformed. The orchestrator maps it to HTTP 400.
var ErrInvalidEmail = errors.New("invalid customer email")

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// DuplicateCache is a best-effort fast path in front of the purchase table
// for duplicate-delivery detection. Implementations may lose entries at any
// time; the unique constraint on purchases stays the correctness backstop.
type DuplicateCache interface {
	TransactionSeen(ctx context.Context, provider, transactionID string) bool
	MarkTransactionSeen(ctx context.Context, provider, transactionID string)
}

// Service sequences account provisioning, purchase recording, access grants
// and magic-link issuance for one webhook delivery.
type Service struct {
	repo  Repository
	dupes DuplicateCache
	now   func() time.Time
}

// NewService creates a provisioning service from an injected repository. The
// duplicate cache is optional.
func NewService(repo Repository, dupes DuplicateCache) *Service {
	return &Service{repo: repo, dupes: dupes, now: time.Now}
}

// NewServiceFromDB creates a provisioning service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, dupes DuplicateCache) *Service {
	return NewService(NewRepository(db), dupes)
}

// RecordWebhookEvent persists the audit row for an inbound delivery. It runs
// before any business logic so that even a crash mid-pipeline leaves a trace.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (*models.WebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return nil, errors.New("provider is required")
	}

	event := &models.WebhookEvent{
		Provider:      provider,
		EventType:     strings.TrimSpace(in.EventType),
		PayloadJSON:   in.PayloadJSON,
		CustomerEmail: models.NormalizeEmail(in.CustomerEmail),
		TransactionID: strings.TrimSpace(in.TransactionID),
	}
	if err := s.repo.CreateWebhookEvent(event); err != nil {
		return nil, err
	}
	return event, nil
}

// MarkWebhookProcessed closes the audit row, storing the processing error if
// there was one. Every terminal path of the pipeline calls this exactly once.
func (s *Service) MarkWebhookProcessed(ctx context.Context, eventID uint, processingErr error) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(eventID, errMsg)
}

// IsDuplicateTransaction reports whether this provider transaction was
// already recorded. The cache check is an optimization only.
func (s *Service) IsDuplicateTransaction(ctx context.Context, provider, transactionID string) (bool, error) {
	if s.dupes != nil && s.dupes.TransactionSeen(ctx, provider, transactionID) {
		return true, nil
	}
	return s.repo.PurchaseExists(provider, transactionID)
}

// EnsureAccount finds or creates the passwordless account for a customer,
// keyed by normalized email. Existing accounts get their mutable profile
// fields refreshed. A create that loses a duplicate-email race re-resolves
// by email instead of failing, so concurrent webhooks for the same customer
// converge on one account.
func (s *Service) EnsureAccount(ctx context.Context, email, name, phone string) (*models.Account, error) {
	_ = ctx
	normalized := models.NormalizeEmail(email)
	if normalized == "" || !emailPattern.MatchString(normalized) {
		return nil, ErrInvalidEmail
	}

	account, err := s.repo.GetAccountByEmail(normalized)
	if err == nil {
		changed := false
		if n := strings.TrimSpace(name); n != "" && n != account.Name {
			account.Name = n
			changed = true
		}
		if p := strings.TrimSpace(phone); p != "" && p != account.Phone {
			account.Phone = p
			changed = true
		}
		if !account.HasFullAccess {
			account.HasFullAccess = true
			changed = true
		}
		if changed {
			if err := s.repo.UpdateAccount(account); err != nil {
				return nil, err
			}
		}
		return account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account, err = models.NewAccount(normalized, name, phone)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	if err := s.repo.CreateAccount(account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race against a concurrent webhook for the same email.
			return s.repo.GetAccountByEmail(normalized)
		}
		return nil, err
	}
	return account, nil
}

// RecordPurchase appends the immutable purchase row. Losing the idempotency
// race at insert time is not an error: the goal, a recorded purchase, is
// already satisfied, so the existing row is returned with created=false.
func (s *Service) RecordPurchase(ctx context.Context, accountID uint, payment *NormalizedPayment, rawPayload string) (*models.Purchase, bool, error) {
	_ = ctx
	purchase := &models.Purchase{
		AccountID:             accountID,
		Provider:              payment.Provider,
		ProviderTransactionID: payment.TransactionID,
		ProductCode:           NormalizeProductCode(payment.ProductCode),
		ProductName:           strings.TrimSpace(payment.ProductName),
		AmountCents:           payment.AmountCents,
		FeeCents:              payment.FeeCents,
		Status:                models.PurchaseStatusActive,
		RawPayloadJSON:        rawPayload,
	}
	if err := s.repo.CreatePurchase(purchase); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Printf("purchase %s/%s already recorded, continuing", payment.Provider, payment.TransactionID)
			existing, lookupErr := s.repo.GetPurchaseByTransactionID(payment.Provider, payment.TransactionID)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	if s.dupes != nil {
		s.dupes.MarkTransactionSeen(ctx, payment.Provider, payment.TransactionID)
	}
	return purchase, true, nil
}

// GrantAccess upserts one access grant per entitlement the product unlocks
// and returns the granted entitlement codes.
func (s *Service) GrantAccess(ctx context.Context, accountID uint, productCode string, purchaseID *uint) ([]string, error) {
	_ = ctx
	entitlements, known := EntitlementsForProduct(productCode)
	if !known {
		log.Printf("product %q has no entitlement mapping, granting default %q", productCode, DefaultEntitlement)
	}

	now := s.now()
	for _, entitlement := range entitlements {
		grant := &models.AccessGrant{
			AccountID:       accountID,
			EntitlementCode: entitlement,
			PurchaseID:      purchaseID,
			Active:          true,
			GrantedAt:       now,
		}
		if err := s.repo.UpsertAccessGrant(grant); err != nil {
			return nil, err
		}
	}
	return entitlements, nil
}

// IssueMagicLink invalidates every unused token for the account and inserts
// a fresh one, so at most the newest link is ever redeemable. The invalidate
// and insert are separate statements; a concurrent issuance for the same
// account can momentarily leave two live links, which is accepted.
func (s *Service) IssueMagicLink(ctx context.Context, accountID uint) (*models.MagicLinkToken, error) {
	_ = ctx
	now := s.now()
	if err := s.repo.InvalidateUnusedTokens(accountID, now); err != nil {
		return nil, err
	}

	raw, err := models.GenerateMagicLinkToken()
	if err != nil {
		return nil, err
	}
	token := &models.MagicLinkToken{
		Token:     raw,
		AccountID: accountID,
		ExpiresAt: now.Add(models.MagicLinkTokenTTL),
	}
	if err := s.repo.CreateMagicLinkToken(token); err != nil {
		return nil, err
	}
	return token, nil
}

// GetAccount resolves an account by primary key.
func (s *Service) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	_ = ctx
	return s.repo.GetAccountByID(id)
}

// RedeemMagicLink atomically consumes a token. Unknown, expired and already
// used tokens all surface as gorm.ErrRecordNotFound.
func (s *Service) RedeemMagicLink(ctx context.Context, token string) (*models.MagicLinkToken, error) {
	_ = ctx
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return s.repo.ConsumeMagicLinkToken(trimmed, s.now())
}
