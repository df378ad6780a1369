package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/LucaWinkler/FlohMarkt/app/controllers"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/env"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Deps
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// Provider ingress. Not rate limited, the providers burst on backlog
	// replay and backpressure belongs to the queue, not the ingress.
	webhooks := controllers.NewWebhookController(h.deps.Ingest)
	hooks := app.Group("/webhooks")
	hooks.Post("/finix", webhooks.HandleFinixWebhook)
	hooks.Post("/chat", webhooks.HandleChatWebhook)

	// Operator API. Key protected and rate limited; the limiter state
	// lives in Redis so the limit holds across instances.
	opsController := controllers.NewOpsController(h.deps.Repos, h.deps.Manager)
	ops := app.Group("/ops/v1", middleware.OpsAuthMiddleware(), limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    limiterStorage(),
	}))

	ops.Get("/events", opsController.HandleListEvents)
	ops.Get("/events/:id", opsController.HandleGetEvent)
	ops.Post("/events/:id/replay", opsController.HandleReplayEvent)
	ops.Get("/gateway-events", opsController.HandleListGatewayEvents)
	ops.Get("/onboardings", opsController.HandleListOnboardings)
	ops.Get("/queues", opsController.HandleQueueStats)
	ops.Get("/dead-letter", opsController.HandleListDeadLetters)
	ops.Post("/dead-letter/:queue/:id/replay", opsController.HandleReplayDeadLetter)
	ops.Delete("/dead-letter/:queue/:id", opsController.HandleDeleteDeadLetter)
	ops.Get("/stats/daily", opsController.HandleDailyStats)
}

func NewApiRouter(deps Deps) *ApiRouter {
	return &ApiRouter{deps: deps}
}

// limiterStorage builds the Redis storage for the rate limiter. Database 2
// keeps limiter keys away from the cache (0) and the queue (Redis keyspace
// of asynq).
func limiterStorage() fiber.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 2,
		Reset:    false,
	})
}
