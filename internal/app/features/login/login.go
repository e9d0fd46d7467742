package login

import (
	"context"
	"errors"
	"net/http"

	userstore "github.com/dalemusser/studyshare/internal/app/store/users"
	"github.com/dalemusser/studyshare/internal/app/system/inputval"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/normalize"
	"github.com/dalemusser/studyshare/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type loginInput struct {
	Email    string `json:"email" validate:"required,emailaddr" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

// HandleLogin checks credentials and returns a bearer token.
// Unknown email and wrong password get the same 401 so accounts cannot be probed.
// POST /api/auth/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "login: bad body", err, "Invalid request body")
		return
	}
	in.Email = normalize.Email(in.Email)
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, in.Email); !ok {
			h.AuditLog.LoginFailedRateLimit(ctx, r, in.Email)
			w.Header().Set("Retry-After", "60")
			jsonutil.Error(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	u, err := h.Users.Authenticate(ctx, in.Email, in.Password)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		h.AuditLog.LoginFailedUserNotFound(ctx, r, in.Email)
		jsonutil.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, userstore.ErrWrongPassword):
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID, in.Email)
		jsonutil.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "login: authenticate failed", err, "")
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetEmail(in.Email)
	}
	resp, err := h.issue(*u, "Login successful")
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: issue token failed", err, "")
		return
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)
	h.Log.Info("user signed in", zap.String("user_id", u.ID.Hex()))
	jsonutil.Write(w, http.StatusOK, resp)
}
