// internal/app/features/resources/routes.go
package resources

import (
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the resource API under whatever base path the caller
// chooses (typically "/api/resources" from bootstrap).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Public reads.
	r.Get("/", h.ServeList)
	r.Get("/search", h.ServeSearch)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/user", h.ServeMine)
		pr.Post("/", h.HandleCreate)
		pr.Put("/{id}", h.HandleUpdate)
		pr.Delete("/{id}", h.HandleDelete)
		pr.Post("/{id}/upvote", h.HandleUpvote)
		pr.Post("/{id}/comment", h.HandleComment)
	})

	r.Get("/{id}", h.ServeResource)

	return r
}
