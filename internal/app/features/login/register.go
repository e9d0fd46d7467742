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
	"github.com/dalemusser/studyshare/internal/domain/models"
)

type registerInput struct {
	Name       string        `json:"name" validate:"notblank,max=100" label:"Name"`
	Email      string        `json:"email" validate:"required,emailaddr" label:"Email"`
	Password   string        `json:"password" validate:"required,min=6,max=72" label:"Password"`
	Department string        `json:"department" validate:"notblank,max=100" label:"Department"`
	Semester   *jsonutil.Int `json:"semester" validate:"required,min=1,max=8" label:"Semester"`
	Role       string        `json:"role" validate:"omitempty,oneof=student admin" label:"Role"`
}

// HandleRegister creates a student account and signs it in.
// POST /api/auth/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "register: bad body", err, "Invalid request body")
		return
	}
	in.Email = normalize.Email(in.Email)
	in.Role = normalize.Role(in.Role)
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res)
		return
	}
	// Admins are created out of band; the public endpoint only makes students.
	if in.Role == models.RoleAdmin {
		jsonutil.Error(w, http.StatusForbidden, "Admin accounts cannot be self-registered")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		Name:       in.Name,
		Email:      in.Email,
		Role:       models.RoleStudent,
		Department: normalize.Name(in.Department),
		Semester:   int(*in.Semester),
	}, in.Password)
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			jsonutil.Error(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		h.ErrLog.LogServerError(w, r, "register: create user failed", err, "")
		return
	}

	resp, err := h.issue(u, "User registered successfully")
	if err != nil {
		h.ErrLog.LogServerError(w, r, "register: issue token failed", err, "")
		return
	}
	h.AuditLog.Registered(ctx, r, u.ID, u.Email)
	jsonutil.Write(w, http.StatusCreated, resp)
}
