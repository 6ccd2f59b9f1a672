package api

import (
	"net/http"

	"github.com/JaimeStill/muse/internal/ideas"
	"github.com/JaimeStill/muse/internal/runs"
	"github.com/JaimeStill/muse/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
	auth []func(http.Handler) http.Handler,
) {
	ideasHandler := ideas.NewHandler(
		domain.Ideas,
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
		runtime.MaxBodySize,
	)

	runsHandler := runs.NewHandler(
		domain.Runs,
		runtime.Lifecycle.Context,
		runtime.Logger,
		runtime.Pagination,
	)

	routes.Register(
		mux,
		ideasHandler.Routes(auth...),
		runsHandler.Routes(auth...),
	)
}
