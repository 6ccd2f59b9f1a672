// Package infrastructure provides core service initialization for application startup.
// It assembles the common dependencies that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/muse/internal/config"
	"github.com/JaimeStill/muse/pkg/database"
	"github.com/JaimeStill/muse/pkg/images"
	"github.com/JaimeStill/muse/pkg/lifecycle"
	"github.com/JaimeStill/muse/pkg/publish"
	"github.com/JaimeStill/muse/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, file storage, image generation and publishing.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Images    images.System
	// Publisher is nil when publishing is disabled.
	Publisher publish.System
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	img, err := images.New(ctx, &cfg.Images, logger)
	if err != nil {
		return nil, fmt.Errorf("images init failed: %w", err)
	}

	var pub publish.System
	if cfg.Publish.IsEnabled() {
		pub = publish.New(&cfg.Publish, logger)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Images:    img,
		Publisher: pub,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown coordination.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}

// Ready reports whether the database and storage container are usable.
func (i *Infrastructure) Ready() bool {
	return i.Lifecycle.Ready() && i.Database.Ready() && i.Storage.Ready()
}
