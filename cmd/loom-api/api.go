// Package main provides the Loom API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/jobs"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/pipeline"
	"github.com/loomhq/loom/pkg/queue"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/loomhq/loom/pkg/web"
)

type API struct {
	logger   *slog.Logger
	store    persistence.Persistence
	registry *registry.Registry
	eventBus eventbus.EventBus
	executor *pipeline.Executor
	manager  *jobs.Manager
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	executor := pipeline.NewExecutor(reg, logger).WithTracer(otel.Tracer("loom-api"))
	manager := jobs.NewManager(logger, reg, executor, store, eventBus)

	return &API{
		logger:   logger,
		store:    store,
		registry: reg,
		eventBus: eventBus,
		executor: executor,
		manager:  manager,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.validate, a.registry, a.store, a.manager, a.executor, a.eventBus)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Loom API")
	})

	app.Get("/blocks", handlers.GetBlocks)

	p := app.Group("/pipelines")
	p.Get("/", handlers.GetPipelines)
	p.Post("/", handlers.CreatePipeline)
	p.Get("/:id", handlers.GetPipeline)
	p.Put("/:id", handlers.UpdatePipeline)
	p.Delete("/:id", handlers.DeletePipeline)
	p.Post("/:id/execute", handlers.ExecutePipeline)

	app.Post("/generate", handlers.Generate)

	j := app.Group("/jobs")
	j.Get("/", handlers.GetJobs)
	j.Get("/active", handlers.GetActiveJob)
	j.Get("/:id", handlers.GetJob)
	j.Post("/:id/cancel", handlers.CancelJob)

	r := app.Group("/records")
	r.Get("/", handlers.GetRecords)
	r.Get("/export", handlers.ExportRecords)
	r.Get("/:id", handlers.GetRecord)
	r.Patch("/:id", handlers.ReviewRecord)
	r.Delete("/:id", handlers.DeleteRecord)
	r.Delete("/", handlers.DeleteAllRecords)

	app.Get("/health", handlers.HealthCheck)

	return app
}

// StartQueueConsumer begins consuming generation requests from Redis.
// The returned function stops the consumer.
func (a *API) StartQueueConsumer(ctx context.Context, redisAddr, queueName string) (func(), error) {
	consumer := queue.NewConsumer(queue.Config{
		Addr:  redisAddr,
		Queue: queueName,
	}, a.manager, a.store, a.logger)

	err := consumer.Start(ctx)
	if err != nil {
		return nil, err
	}

	return func() {
		if err := consumer.Stop(ctx); err != nil {
			a.logger.ErrorContext(ctx, "Failed to stop queue consumer", "error", err)
		}
	}, nil
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
