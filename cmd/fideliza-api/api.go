// Package main provides the Fideliza API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/fideliza/fideliza/pkg/eventbus"
	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/fideliza/fideliza/pkg/registry"
	"github.com/fideliza/fideliza/pkg/services"
	"github.com/fideliza/fideliza/pkg/validation"
	"github.com/fideliza/fideliza/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		registry:    reg,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	graphValidator := validation.NewValidator(a.registry)
	workflowService := services.NewWorkflow(a.persistence, graphValidator)
	runService := services.NewRuns(a.persistence, a.eventBus)

	handlers := web.NewAPIHandlers(workflowService, runService, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Fideliza API")
	})

	f := app.Group("/flujos")
	f.Get("/", handlers.GetWorkflows)
	f.Post("/", handlers.CreateWorkflow)
	f.Get("/:id", handlers.GetWorkflow)
	f.Put("/:id", handlers.UpdateWorkflow)
	f.Delete("/:id", handlers.DeleteWorkflow)
	f.Post("/:id/activate", handlers.ActivateWorkflow)
	f.Post("/:id/pause", handlers.PauseWorkflow)
	f.Post("/:id/ab-test", handlers.AttachABTest)
	f.Get("/:id/metrics", handlers.GetWorkflowMetrics)
	f.Get("/:id/runs", handlers.GetWorkflowRuns)

	r := app.Group("/runs")
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/cancel", handlers.CancelRun)

	reg := app.Group("/registry")
	reg.Get("/nodes", handlers.GetRegistryNodes)
	reg.Get("/templates", handlers.GetRegistryTemplates)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
