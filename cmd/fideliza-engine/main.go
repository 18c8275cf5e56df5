// Package main provides the execution engine process: it consumes trigger
// events, runs flows step by step and resumes delayed runs.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fideliza/fideliza/pkg/cmd"
	"github.com/fideliza/fideliza/pkg/dispatch"
	"github.com/fideliza/fideliza/pkg/engine"
	"github.com/fideliza/fideliza/pkg/entities"
	"github.com/fideliza/fideliza/pkg/gateways"
	"github.com/fideliza/fideliza/pkg/log"
	"github.com/fideliza/fideliza/pkg/otelhelper"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	logger := log.WithModule("engine")

	command := &cli.Command{
		Name:                  "fideliza-engine",
		Usage:                 "Execute retention flows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for dispatch rate limiting (in-memory when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "entities-file",
				Usage:    "Path to the CRM snapshot export",
				Required: true,
				Sources:  cli.EnvVars("ENTITIES_FILE"),
			},
			&cli.IntFlag{
				Name:    "rate-limit",
				Usage:   "Dispatches allowed per workflow per channel per window",
				Value:   dispatch.DefaultRateLimit().PerWindow,
				Sources: cli.EnvVars("DISPATCH_RATE_LIMIT"),
			},
			&cli.DurationFlag{
				Name:    "rate-window",
				Usage:   "Rate limit window",
				Value:   dispatch.DefaultRateLimit().Window,
				Sources: cli.EnvVars("DISPATCH_RATE_WINDOW"),
			},
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Usage:   "Interval between delayed-run sweeps",
				Value:   time.Minute,
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Fideliza engine")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "fideliza-engine", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var tracer trace.Tracer

			if command.Bool("tracing") {
				t, err := otelhelper.NewTracer(ctx, "fideliza-engine")
				if err != nil {
					return err
				}

				tracer = t
			} else {
				tracer = otelhelper.NewNoopTracer()
			}

			rateConfig := dispatch.RateLimitConfig{
				PerWindow: command.Int("rate-limit"),
				Window:    command.Duration("rate-window"),
			}

			var limiter dispatch.RateLimiter

			if redisURL := command.String("redis-url"); redisURL != "" {
				opts, err := redis.ParseURL(redisURL)
				if err != nil {
					return err
				}

				limiter = dispatch.NewRedisRateLimiter(redis.NewClient(opts), rateConfig)
			} else {
				logger.WarnContext(ctx, "No redis-url given, rate limiting is process-local")

				limiter = dispatch.NewMemoryRateLimiter(rateConfig)
			}

			dispatcher := dispatch.NewDispatcher(
				gateways.NewLoggingGateways(logger), limiter, logger, tracer)

			source := entities.NewFileSource(command.String("entities-file"))

			eng := engine.NewEngine(persistence, source, dispatcher, eventBus, logger, tracer)
			if err := eng.Subscribe(eventBus); err != nil {
				return err
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return err
			}

			sweeper := engine.NewDelayScheduler(eng, persistence, command.Duration("sweep-interval"), logger)
			if err := sweeper.Start(ctx); err != nil {
				return err
			}

			logger.InfoContext(ctx, "Engine started")

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			<-sigCtx.Done()

			return sweeper.Stop(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
