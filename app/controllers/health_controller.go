package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ReconquistaDigital/MemberHub/internal/pkg/cache"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/database"
)

// HandleHealth reports DB and cache reachability for deploy probes.
func HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if db := database.GetDB(); db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unavailable"
	}

	cacheStatus := "ok"
	if err := cache.Ping(ctx); err != nil {
		cacheStatus = "unavailable"
	}

	status := fiber.StatusOK
	if dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"database": dbStatus,
		"cache":    cacheStatus,
	})
}
