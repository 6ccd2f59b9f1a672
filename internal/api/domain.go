package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/internal/assets"
	"github.com/JaimeStill/muse/internal/config"
	"github.com/JaimeStill/muse/internal/generator"
	"github.com/JaimeStill/muse/internal/ideas"
	"github.com/JaimeStill/muse/internal/prompts"
	"github.com/JaimeStill/muse/internal/runs"
	"github.com/JaimeStill/muse/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Ideas     ideas.System
	Generator generator.System
	Assets    assets.System
	Runs      runs.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	policy := cfg.Pipeline.Retry.Policy()
	brief := prompts.Brief{
		Topic:    cfg.Generator.Topic,
		Audience: cfg.Generator.Audience,
		Style:    cfg.Generator.Style,
		Hashtags: cfg.Publish.Hashtags,
	}

	ideasSystem := ideas.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	generatorSystem := generator.New(
		generator.AgentCompleter(cfg.Agent),
		brief,
		policy,
		runtime.Logger,
	)

	assetsSystem := assets.New(
		runtime.Storage,
		cfg.Pipeline.Folder,
		policy,
		runtime.Logger,
	)

	wrt := &workflow.Runtime{
		Ideas:       ideasSystem,
		Generator:   generatorSystem,
		Images:      runtime.Images,
		Assets:      assetsSystem,
		Publisher:   runtime.Publisher,
		Brief:       brief,
		Concurrency: cfg.Pipeline.Concurrency,
		MaxPosts:    cfg.Publish.MaxPerRun,
		Retry:       policy,
		Logger:      runtime.Logger,
	}

	pipeline := func(ctx context.Context, runID uuid.UUID) (*workflow.Report, error) {
		return workflow.Execute(ctx, wrt, runID)
	}

	runsSystem := runs.New(
		runtime.Database.Connection(),
		pipeline,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Ideas:     ideasSystem,
		Generator: generatorSystem,
		Assets:    assetsSystem,
		Runs:      runsSystem,
	}
}
