package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/persistence/file"
	"github.com/loomhq/loom/pkg/persistence/postgresql"
)

// NewPersistence selects the storage provider by URL scheme. Anything
// that is not postgres:// is treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres persistence: %w", err)
		}

		return store, nil
	default:
		root := strings.TrimPrefix(databaseURL, "file://")
		if root == "" {
			root = "./data"
		}

		return file.NewPersistence(root), nil
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) < 2 {
		return "file"
	}

	return parts[0]
}
