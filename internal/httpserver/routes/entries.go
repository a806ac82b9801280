package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mailmarks/internal/httpserver/handlers"
)

func init() { Register(registerEntries) }

func registerEntries(r chi.Router, d deps.Deps) {
	r.Get("/", handlers.Page(d))
	r.Get(handlers.RecordsPrefix+"{name}", handlers.Record(d))
	r.Route("/api", func(api chi.Router) {
		api.Get("/entries", handlers.Entries(d))
		api.Get("/status", handlers.Status(d))
	})
}
