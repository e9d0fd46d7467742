package login

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/studyshare/internal/app/store/passwordreset"
	userstore "github.com/dalemusser/studyshare/internal/app/store/users"
	"github.com/dalemusser/studyshare/internal/app/system/inputval"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/mailer"
	"github.com/dalemusser/studyshare/internal/app/system/normalize"
	"github.com/dalemusser/studyshare/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type forgotInput struct {
	Email string `json:"email" validate:"required,emailaddr" label:"Email"`
}

type forgotResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// HandleForgotPassword emails a 6-digit reset code.
// POST /api/auth/forgot-password
func (h *Handler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "forgot-password: bad body", err, "Invalid request body")
		return
	}
	in.Email = normalize.Email(in.Email)
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			h.AuditLog.ResetCodeFailed(ctx, r, in.Email, "unknown email")
			jsonutil.Error(w, http.StatusNotFound, "User not found with this email address")
			return
		}
		h.ErrLog.LogServerError(w, r, "forgot-password: lookup failed", err, "")
		return
	}

	code, err := h.Resets.Create(ctx, u.Email)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "forgot-password: create code failed", err, "")
		return
	}

	email := mailer.BuildPasswordResetEmail(u.Email, mailer.PasswordResetEmailData{
		SiteName:  h.SiteName,
		Name:      u.Name,
		Code:      code,
		ExpiresIn: formatExpiryDuration(h.Resets.Expiry()),
	})
	if err := h.Mailer.Send(ctx, email); err != nil {
		h.AuditLog.ResetCodeFailed(ctx, r, u.Email, "send failed")
		if errors.Is(err, mailer.ErrNotConfigured) {
			h.Log.Warn("password reset requested but mail is not configured", zap.String("user_id", u.ID.Hex()))
		}
		h.ErrLog.LogServerError(w, r, "forgot-password: send email failed", err, "Could not send the reset email. Please try again later.")
		return
	}

	h.AuditLog.ResetCodeSent(ctx, r, u.ID, u.Email)
	jsonutil.Write(w, http.StatusOK, forgotResponse{
		Message: "Password reset code sent to your email address",
		Email:   u.Email,
	})
}

type resetInput struct {
	Email       string `json:"email" validate:"required,emailaddr" label:"Email"`
	ResetCode   string `json:"resetCode" validate:"required,len=6,numeric" label:"Reset code"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72" label:"New password"`
}

// HandleResetPassword checks the emailed code and sets a new password.
// POST /api/auth/reset-password
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "reset-password: bad body", err, "Invalid request body")
		return
	}
	in.Email = normalize.Email(in.Email)
	in.ResetCode = normalize.QueryParam(in.ResetCode)
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Resets.Verify(ctx, in.Email, in.ResetCode); err != nil {
		switch {
		case errors.Is(err, passwordreset.ErrTooManyAttempts):
			h.AuditLog.ResetCodeFailed(ctx, r, in.Email, "too many attempts")
			jsonutil.Error(w, http.StatusBadRequest, "Too many attempts. Please request a new reset code.")
		case errors.Is(err, passwordreset.ErrNotFound), errors.Is(err, passwordreset.ErrInvalidCode):
			h.AuditLog.ResetCodeFailed(ctx, r, in.Email, "invalid or expired code")
			jsonutil.Error(w, http.StatusBadRequest, "Invalid or expired reset code")
		default:
			h.ErrLog.LogServerError(w, r, "reset-password: verify failed", err, "")
		}
		return
	}

	u, err := h.Users.SetPassword(ctx, in.Email, in.NewPassword)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			jsonutil.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.ErrLog.LogServerError(w, r, "reset-password: set password failed", err, "")
		return
	}
	if err := h.Resets.DeleteByEmail(ctx, u.Email); err != nil {
		h.Log.Warn("reset-password: cleanup failed", zap.Error(err))
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(u.Email)
	}

	h.AuditLog.PasswordReset(ctx, r, u.ID)
	jsonutil.Write(w, http.StatusOK, jsonutil.Message{Message: "Password has been successfully reset"})
}
