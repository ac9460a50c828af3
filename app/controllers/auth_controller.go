package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ReconquistaDigital/MemberHub/internal/pkg/env"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/session"
)

// HandleAutoLogin exchanges a magic-link token for a logged-in session. The
// token is consumed atomically, so a forwarded or replayed link can never be
// redeemed a second time.
func HandleAutoLogin(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_token"})
	}

	svc := provisioningService
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	credential, err := svc.RedeemMagicLink(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_or_expired_token"})
		}
		log.Printf("magic link redemption failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "login_failed"})
	}

	account, err := svc.GetAccount(ctx, credential.AccountID)
	if err != nil {
		log.Printf("account lookup after redemption failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "login_failed"})
	}

	if store := session.GetSessionStore(); store != nil {
		if err := session.SetSessionValue(c, "account_id", fmt.Sprintf("%d", account.ID)); err != nil {
			log.Printf("session write for account %d failed: %v", account.ID, err)
		}
		_ = session.SetSessionValue(c, "account_email", account.Email)
	}

	if c.Query("redirect") == "1" {
		base := strings.TrimRight(env.GetEnv("SITE_URL", "http://localhost:3000"), "/")
		return c.Redirect(base+"/dashboard", fiber.StatusSeeOther)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"account": fiber.Map{
			"uuid":            account.UUID,
			"email":           account.Email,
			"name":            account.Name,
			"has_full_access": account.HasFullAccess,
		},
	})
}
