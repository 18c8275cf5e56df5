// Package main provides the trigger evaluator process: the scheduled batch
// that matches entity state against active flows and emits trigger events.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fideliza/fideliza/pkg/cmd"
	"github.com/fideliza/fideliza/pkg/dedupe"
	"github.com/fideliza/fideliza/pkg/entities"
	"github.com/fideliza/fideliza/pkg/evaluator"
	"github.com/fideliza/fideliza/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("evaluator")

	command := &cli.Command{
		Name:                  "fideliza-evaluator",
		Usage:                 "Evaluate retention triggers against entity activity",
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
				Usage:   "Redis URL for trigger deduplication (in-memory when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "entities-file",
				Usage:    "Path to the CRM snapshot export",
				Required: true,
				Sources:  cli.EnvVars("ENTITIES_FILE"),
			},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Interval between evaluation batches",
				Value:   15 * time.Minute,
				Sources: cli.EnvVars("EVALUATION_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Concurrent entity evaluations per batch",
				Value:   8,
				Sources: cli.EnvVars("EVALUATION_WORKERS"),
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

			logger.InfoContext(ctx, "Initializing Fideliza evaluator")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "fideliza-evaluator", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var store dedupe.Store

			if redisURL := command.String("redis-url"); redisURL != "" {
				redisStore, err := dedupe.NewRedisStore(redisURL)
				if err != nil {
					return err
				}

				store = redisStore
			} else {
				logger.WarnContext(ctx, "No redis-url given, deduplication is process-local")

				store = dedupe.NewMemoryStore()
			}

			defer func() {
				if err := store.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close dedupe store", "error", err)
				}
			}()

			config := evaluator.DefaultConfig()
			config.Interval = command.Duration("interval")
			config.Workers = command.Int("workers")

			source := entities.NewFileSource(command.String("entities-file"))

			ev := evaluator.NewEvaluator(persistence, source, store, eventBus, config, logger)
			if err := ev.Start(ctx); err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			<-sigCtx.Done()

			return ev.Stop(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
