package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/LucaWinkler/FlohMarkt/app/repository"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/archive"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/cache"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/chatmirror"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/chatstream"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/database"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/env"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/finix"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/identity"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/merchant"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/payments"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/queue"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/router"
	"github.com/LucaWinkler/FlohMarkt/internal/pkg/webhook"
)

func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	manager := queue.GetManager()
	dispatcher := buildDispatcher(repos)
	manager.HandleFunc(queue.TypeWebhookProcess, dispatcher.HandleWebhookTask)

	sweeper := queue.NewSweeper(repos.Offer, repos.WebhookEvent, manager)
	manager.HandleFunc(queue.TypeOfferSweep, sweeper.HandleOfferSweepTask)
	manager.HandleFunc(queue.TypeWebhookReconcile, sweeper.HandleWebhookReconcileTask)

	if err := manager.Start(); err != nil {
		log.Fatalf("[Main] queue manager failed to start: %v", err)
	}

	app := newApplication(router.Deps{
		Repos:   repos,
		Manager: manager,
		Ingest:  webhook.NewService(repos, manager),
	})

	// Shutdown drains in order: HTTP stops taking deliveries, then the
	// workers finish their in-flight jobs, then the clients close.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("[Main] shutdown signal received")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("[Main] http shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Errorf("[Main] server stopped: %v", err)
	}

	manager.Stop()
	if err := manager.Close(); err != nil {
		log.Errorf("[Main] queue close: %v", err)
	}
	if err := cache.Close(); err != nil {
		log.Errorf("[Main] cache close: %v", err)
	}
	log.Info("[Main] shutdown complete")
}

func newApplication(deps router.Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:           "FlohMarkt Events",
		BodyLimit:         1 * 1024 * 1024, // webhook payloads stay small
		EnablePrintRoutes: env.IsDev(),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "ops"): env.GetEnv("METRICS_PASSWORD", "ops"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./docs/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, deps)

	return app
}

// buildDispatcher wires every provider event type to its handler. The
// registry is complete before the workers start, unhandled types resolve
// as a processed no-op inside the dispatcher.
func buildDispatcher(repos *repository.Repositories) *webhook.Dispatcher {
	dispatcher := webhook.NewDispatcher(repos)

	merchants := merchant.NewHandler(repos, finix.NewClientFromEnv(), identity.NewClientFromEnv())
	dispatcher.RegisterFinixHandler(finix.EntityOnboardingForm, finix.TypeCreated, webhook.FinixHandlerFunc(merchants.HandleFormEvent))
	dispatcher.RegisterFinixHandler(finix.EntityOnboardingForm, finix.TypeUpdated, webhook.FinixHandlerFunc(merchants.HandleFormEvent))
	dispatcher.RegisterFinixHandler(finix.EntityMerchant, finix.TypeCreated, webhook.FinixHandlerFunc(merchants.HandleMerchantEvent))
	dispatcher.RegisterFinixHandler(finix.EntityMerchant, finix.TypeUpdated, webhook.FinixHandlerFunc(merchants.HandleMerchantEvent))
	dispatcher.RegisterFinixHandler(finix.EntityMerchant, finix.TypeUnderwritten, webhook.FinixHandlerFunc(merchants.HandleMerchantEvent))
	dispatcher.RegisterFinixHandler(finix.EntityVerification, finix.TypeCreated, webhook.FinixHandlerFunc(merchants.HandleVerificationEvent))
	dispatcher.RegisterFinixHandler(finix.EntityVerification, finix.TypeUpdated, webhook.FinixHandlerFunc(merchants.HandleVerificationEvent))

	pay := payments.NewHandler(repos)
	dispatcher.RegisterFinixHandler(finix.EntityTransfer, finix.TypeCreated, webhook.FinixHandlerFunc(pay.HandleTransferCreated))
	dispatcher.RegisterFinixHandler(finix.EntityTransfer, finix.TypeUpdated, webhook.FinixHandlerFunc(pay.HandleTransferUpdated))
	dispatcher.RegisterFinixHandler(finix.EntityAuthorization, finix.TypeThreeDS, webhook.FinixHandlerFunc(pay.HandleThreeDSComplete))
	dispatcher.RegisterFinixHandler(finix.EntityDispute, finix.TypeCreated, webhook.FinixHandlerFunc(pay.HandleDisputeEvent))
	dispatcher.RegisterFinixHandler(finix.EntityDispute, finix.TypeUpdated, webhook.FinixHandlerFunc(pay.HandleDisputeEvent))

	mirror := chatmirror.NewHandler(repos)
	dispatcher.RegisterChatHandler(chatstream.EventMessageNew, webhook.ChatHandlerFunc(mirror.HandleMessageNew))
	dispatcher.RegisterChatHandler(chatstream.EventMessageUpdated, webhook.ChatHandlerFunc(mirror.HandleMessageUpdated))
	dispatcher.RegisterChatHandler(chatstream.EventMessageDeleted, webhook.ChatHandlerFunc(mirror.HandleMessageDeleted))
	dispatcher.RegisterChatHandler(chatstream.EventMessageRead, webhook.ChatHandlerFunc(mirror.HandleMessageRead))
	dispatcher.RegisterChatHandler(chatstream.EventChannelCreated, webhook.ChatHandlerFunc(mirror.HandleChannelEvent))
	dispatcher.RegisterChatHandler(chatstream.EventChannelUpdated, webhook.ChatHandlerFunc(mirror.HandleChannelEvent))
	dispatcher.RegisterChatHandler(chatstream.EventReactionNew, webhook.ChatHandlerFunc(mirror.HandleReactionNew))
	dispatcher.RegisterChatHandler(chatstream.EventReactionDeleted, webhook.ChatHandlerFunc(mirror.HandleReactionDeleted))

	if cfg, err := archive.LoadConfig(); err != nil {
		log.Warnf("[Main] archive config: %v", err)
	} else if cfg.IsEnabled() {
		client, err := archive.NewClient(cfg)
		if err != nil {
			log.Warnf("[Main] archive unavailable: %v", err)
		} else {
			dispatcher.SetArchiver(client)
		}
	}

	return dispatcher
}
