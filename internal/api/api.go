// Package api assembles the API module with all domain systems, route
// registration, and the scheduled pipeline trigger.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JaimeStill/muse/internal/config"
	"github.com/JaimeStill/muse/internal/infrastructure"
	"github.com/JaimeStill/muse/internal/runs"
	"github.com/JaimeStill/muse/pkg/database"
	"github.com/JaimeStill/muse/pkg/lifecycle"
	"github.com/JaimeStill/muse/pkg/middleware"
	"github.com/JaimeStill/muse/pkg/module"
	"github.com/JaimeStill/muse/pkg/schedule"
)

// API is the mounted HTTP module plus the background systems it owns.
type API struct {
	Module    *module.Module
	Domain    *Domain
	runtime   *Runtime
	scheduler schedule.System
}

// New creates the API module with all domain handlers and middleware. When
// auth is enabled the issuer is contacted to discover its signing keys.
func New(ctx context.Context, cfg *config.Config, infra *infrastructure.Infrastructure) (*API, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	var auth []func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, &cfg.Auth)
		if err != nil {
			return nil, err
		}
		auth = append(auth, middleware.Auth(verifier, runtime.Logger))
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime, auth)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))

	a := &API{
		Module:  m,
		Domain:  domain,
		runtime: runtime,
	}

	if cfg.Schedule.IsEnabled() {
		scheduler, err := schedule.New(&cfg.Schedule, a.scheduledRun, runtime.Logger)
		if err != nil {
			return nil, fmt.Errorf("schedule init failed: %w", err)
		}
		a.scheduler = scheduler
	}

	return a, nil
}

// Start closes out runs interrupted by a previous process, starts the
// scheduler, and makes shutdown drain launched runs before the database closes.
func (a *API) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		if _, err := a.Domain.Runs.Recover(lc.Context()); err != nil {
			a.runtime.Logger.Error("run recovery failed", "error", err)
		}
	})

	lc.OnDrain(a.Domain.Runs.Wait)

	if a.scheduler == nil {
		a.runtime.Logger.Info("schedule disabled")
		return nil
	}

	if err := a.scheduler.Start(lc); err != nil {
		return fmt.Errorf("schedule start failed: %w", err)
	}
	return nil
}

func (a *API) scheduledRun(ctx context.Context) {
	if !a.runtime.Database.Ready() {
		a.runtime.Logger.Error("scheduled run skipped", "error", database.ErrNotReady)
		return
	}
	if _, err := a.Domain.Runs.Execute(ctx, runs.TriggerSchedule); err != nil {
		a.runtime.Logger.Error("scheduled run not started", "error", err)
	}
}
