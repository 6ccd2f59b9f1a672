package workflow

import (
	"log/slog"

	"github.com/JaimeStill/muse/internal/assets"
	"github.com/JaimeStill/muse/internal/generator"
	"github.com/JaimeStill/muse/internal/ideas"
	"github.com/JaimeStill/muse/internal/prompts"
	"github.com/JaimeStill/muse/pkg/images"
	"github.com/JaimeStill/muse/pkg/publish"
	"github.com/JaimeStill/muse/pkg/retry"
)

// Runtime bundles the dependencies that workflow nodes require.
// It is constructed by higher-level composition code from Infrastructure and Domain systems.
type Runtime struct {
	Ideas     ideas.System
	Generator generator.System
	Images    images.System
	Assets    assets.System
	// Publisher is nil when publishing is disabled.
	Publisher publish.System
	Brief     prompts.Brief
	// Concurrency bounds how many approved ideas render at once.
	Concurrency int
	// MaxPosts bounds how many linked ideas one run publishes.
	MaxPosts int
	// Retry applies to image generation and publishing. Text generation and
	// uploads carry their own policies.
	Retry  retry.Policy
	Logger *slog.Logger
}
