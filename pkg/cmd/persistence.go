package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/fideliza/fideliza/pkg/persistence/file"
	"github.com/fideliza/fideliza/pkg/persistence/postgres"
)

// NewPersistence picks the storage backend from the URL scheme. Anything
// that is not a postgres URL is treated as a directory for file storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgres.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		root := strings.TrimPrefix(databaseURL, "file://")

		p, err := file.NewPersistence(root)
		if err != nil {
			panic(err)
		}

		return p
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
