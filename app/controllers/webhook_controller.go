package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ReconquistaDigital/MemberHub/app/models"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/cache"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/database"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/env"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/mail"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/provisioning"
)

var (
	provisioningService *provisioning.Service
	webhookMailer       *mail.Mailer
)

// InitializeWebhookController wires the provisioning service and mailer from
// the process-level DB and cache handles.
func InitializeWebhookController() {
	provisioningService = provisioning.NewServiceFromDB(database.GetDB(), cache.NewDuplicateCache())
	webhookMailer = mail.NewMailerFromEnv()
}

// SetProvisioningService injects a service instance, used by tests.
func SetProvisioningService(svc *provisioning.Service) {
	provisioningService = svc
}

// SetWebhookMailer injects a mailer instance, used by tests.
func SetWebhookMailer(m *mail.Mailer) {
	webhookMailer = m
}

// HandleLojouWebhook processes one payment notification end to end:
// signature check, audit insert, idempotency guard, account provisioning,
// purchase recording, access grant, magic-link issuance, email dispatch.
// Only genuine processing failures return non-2xx; a 2xx is what stops the
// provider from retrying.
func HandleLojouWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("X-Lojou-Signature"))
	secret := env.GetEnv("WEBHOOK_SHARED_SECRET", "")

	svc := provisioningService
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	signatureValid := provisioning.VerifyWebhookSignature(rawBody, signature, secret)
	if secret == "" {
		log.Print("WEBHOOK_SHARED_SECRET not configured, accepting webhook unverified")
	}

	// Parsed best-effort before the audit insert so the audit row carries the
	// customer email and transaction id even for deliveries we reject.
	payment, parseErr := provisioning.ParseLojouWebhookPayload(rawBody)
	auditIn := provisioning.WebhookEventInput{
		Provider:    models.PaymentProviderLojou,
		EventType:   "payment",
		PayloadJSON: string(rawBody),
	}
	if payment != nil {
		auditIn.CustomerEmail = payment.CustomerEmail
		auditIn.TransactionID = payment.TransactionID
		auditIn.EventType = "payment." + payment.Status
	}

	event, err := svc.RecordWebhookEvent(ctx, auditIn)
	if err != nil {
		log.Printf("webhook audit insert failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}

	if secret != "" && !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	if parseErr != nil {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, parseErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	if !provisioning.IsApprovedPaymentStatus(payment.Status) {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, fmt.Errorf("ignored: payment status %q is not approved", payment.Status))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "message": "status not approved, nothing to do"})
	}

	duplicate, err := svc.IsDuplicateTransaction(ctx, payment.Provider, payment.TransactionID)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "duplicate_check_failed"})
	}
	if duplicate {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, fmt.Errorf("duplicate delivery for transaction %s, already processed", payment.TransactionID))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "message": "transaction already processed"})
	}

	account, err := svc.EnsureAccount(ctx, payment.CustomerEmail, payment.CustomerName, payment.CustomerPhone)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, err)
		if errors.Is(err, provisioning.ErrInvalidEmail) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_email"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "account_provisioning_failed"})
	}

	purchase, _, err := svc.RecordPurchase(ctx, account.ID, payment, string(rawBody))
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "purchase_record_failed"})
	}

	granted, err := svc.GrantAccess(ctx, account.ID, payment.ProductCode, &purchase.ID)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "access_grant_failed"})
	}

	token, err := svc.IssueMagicLink(ctx, account.ID)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "credential_issue_failed"})
	}

	// Email dispatch is best-effort: the account, purchase and grants are
	// already committed, and the customer can request a fresh link later.
	if webhookMailer != nil {
		if err := webhookMailer.SendMagicLink(ctx, account.Email, account.Name, magicLinkURL(token.Token), payment.ProductName); err != nil {
			log.Printf("magic link email to %s failed: %v", account.Email, err)
		}
	}

	_ = svc.MarkWebhookProcessed(ctx, event.ID, nil)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":      true,
		"message":      "access provisioned",
		"entitlements": granted,
	})
}

func magicLinkURL(token string) string {
	base := strings.TrimRight(env.GetEnv("SITE_URL", "http://localhost:3000"), "/")
	return base + "/auto-login?token=" + token
}
