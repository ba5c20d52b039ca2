package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/deckgen-api/internal/api"
	apiMiddleware "github.com/phrazzld/deckgen-api/internal/api/middleware"
	"github.com/phrazzld/deckgen-api/internal/publish"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	deckHandler := api.NewDeckHandler(app.deckService, api.DeckHandlerConfig{
		MaxUploadBytes: app.config.Server.MaxUploadBytes,
		MaxFiles:       app.config.Server.MaxFiles,
	}, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/decks", deckHandler.SubmitDeck)
		r.Get("/decks", deckHandler.ListTasks)
		r.Get("/decks/{id}", deckHandler.GetTask)
	})

	var pinger api.Pinger
	if app.db != nil {
		pinger = app.db
	}
	r.Method(http.MethodGet, "/health", api.NewHealthHandler(pinger, app.logger))

	if app.publicDir != "" {
		fileServer := http.StripPrefix(publish.URLPrefix, http.FileServer(http.Dir(app.publicDir)))
		r.Handle(publish.URLPrefix+"*", fileServer)
	}

	return r
}
