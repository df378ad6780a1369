package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/LucaWinkler/FlohMarkt/internal/pkg/cache"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/database"
)

// HandleRoot identifies the service.
func HandleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "flohmarkt-events",
		"status":  "ok",
	})
}

// HandleHealth reports liveness of the service and its two stores. A
// degraded dependency turns the response into a 503 so the orchestrator
// rotates the instance.
func HandleHealth(c *fiber.Ctx) error {
	checks := fiber.Map{"database": "ok", "cache": "ok"}
	healthy := true

	if db := database.GetDB(); db == nil {
		checks["database"] = "uninitialized"
		healthy = false
	} else if sqlDB, err := db.DB(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else if err := sqlDB.Ping(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
		healthy = false
	}

	status := fiber.StatusOK
	overall := "ok"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		overall = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": overall, "checks": checks})
}
