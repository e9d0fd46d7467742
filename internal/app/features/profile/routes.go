// internal/app/features/profile/routes.go
package profile

import (
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/users.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/me", h.ServeProfile)
	r.Patch("/me", h.HandleUpdateProfile)
	r.Post("/me/password", h.HandleChangePassword)
	return r
}
