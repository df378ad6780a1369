package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/cache"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/database"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/env"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/queue"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/router"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/webhook"
)

// Ingress-only bootstrap: accepts and stores deliveries, serves the ops
// API. Workers and scheduler run in cmd/flohmarkt.
func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()
	manager := queue.GetManager()

	app := fiber.New(fiber.Config{
		AppName:   "FlohMarkt Events",
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./docs/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Repos:   repos,
		Manager: manager,
		Ingest:  webhook.NewService(repos, manager),
	})

	return app
}
