// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/dalemusser/studyshare/internal/app/store/users"
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/dalemusser/studyshare/internal/app/system/inputval"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/normalize"
	"github.com/dalemusser/studyshare/internal/app/system/timeouts"
	"github.com/dalemusser/studyshare/internal/domain/models"
)

type profileResponse struct {
	Message string         `json:"message,omitempty"`
	User    models.Profile `json:"user"`
}

// ServeProfile returns the caller's profile.
// GET /api/users/me
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, cu.ID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			jsonutil.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.ErrLog.LogServerError(w, r, "load profile failed", err, "")
		return
	}
	jsonutil.Write(w, http.StatusOK, profileResponse{User: u.Profile()})
}

type updateInput struct {
	Email      *string       `json:"email" validate:"omitempty,emailaddr" label:"Email"`
	Semester   *jsonutil.Int `json:"semester" validate:"omitempty,min=1,max=8" label:"Semester"`
	Department *string       `json:"department" validate:"omitempty,min=2,max=100" label:"Department"`
}

// HandleUpdateProfile changes any of email, semester and department.
// PATCH /api/users/me
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var in updateInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "update profile: bad body", err, "Invalid request body")
		return
	}
	if in.Email != nil {
		e := normalize.Email(*in.Email)
		in.Email = &e
	}
	if in.Department != nil {
		d := normalize.Name(*in.Department)
		in.Department = &d
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res)
		return
	}

	upd := userstore.ProfileUpdate{
		Email:      in.Email,
		Semester:   jsonutil.IntPtr(in.Semester),
		Department: in.Department,
	}
	if upd.Empty() {
		jsonutil.Error(w, http.StatusBadRequest, "No profile fields to update")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, cu.ID, upd)
	switch {
	case errors.Is(err, userstore.ErrDuplicateEmail):
		jsonutil.Error(w, http.StatusBadRequest, "Email already in use by another account")
		return
	case errors.Is(err, userstore.ErrNotFound):
		jsonutil.Error(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "update profile failed", err, "")
		return
	}

	h.AuditLog.ProfileUpdated(ctx, r, u.ID, changedFields(upd))
	jsonutil.Write(w, http.StatusOK, profileResponse{Message: "Profile updated successfully", User: u.Profile()})
}

func changedFields(upd userstore.ProfileUpdate) string {
	var f []string
	if upd.Email != nil {
		f = append(f, "email")
	}
	if upd.Semester != nil {
		f = append(f, "semester")
	}
	if upd.Department != nil {
		f = append(f, "department")
	}
	return strings.Join(f, ",")
}

type passwordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required" label:"Current password"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72" label:"New password"`
}

// HandleChangePassword replaces the password after checking the current one.
// POST /api/users/me/password
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var in passwordInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "change password: bad body", err, "Invalid request body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, cu.ID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			jsonutil.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.ErrLog.LogServerError(w, r, "change password: load user failed", err, "")
		return
	}
	if _, err := h.Users.Authenticate(ctx, u.Email, in.CurrentPassword); err != nil {
		if errors.Is(err, userstore.ErrWrongPassword) {
			jsonutil.Error(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		h.ErrLog.LogServerError(w, r, "change password: authenticate failed", err, "")
		return
	}
	if _, err := h.Users.SetPassword(ctx, u.Email, in.NewPassword); err != nil {
		h.ErrLog.LogServerError(w, r, "change password: update failed", err, "")
		return
	}

	h.AuditLog.PasswordChanged(ctx, r, u.ID)
	jsonutil.Write(w, http.StatusOK, jsonutil.Message{Message: "Password changed successfully"})
}
