package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/queue"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/webhook"
)

// Router installs one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries the constructed collaborators the routes are built over.
// Everything is injected at startup, the router creates no globals.
type Deps struct {
	Repos   *repository.Repositories
	Manager *queue.Manager
	Ingest  *webhook.Service
}

func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewHttpRouter(), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
