// internal/app/features/login/routes.go
package login

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/auth. ipLimit, when non-nil, throttles every
// endpoint per client IP.
func Routes(h *Handler, ipLimit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	if ipLimit != nil {
		r.Use(ipLimit)
	}
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	r.Post("/forgot-password", h.HandleForgotPassword)
	r.Post("/reset-password", h.HandleResetPassword)
	return r
}
