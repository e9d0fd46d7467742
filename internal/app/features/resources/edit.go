package resources

import (
	"context"
	"errors"
	"net/http"

	resourcestore "github.com/dalemusser/studyshare/internal/app/store/resources"
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/dalemusser/studyshare/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyshare/internal/app/system/inputval"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/normalize"
	"github.com/dalemusser/studyshare/internal/app/system/timeouts"
	"github.com/dalemusser/studyshare/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"
)

// loadOwned fetches {id} and checks the caller uploaded it. It writes the
// error response and returns false on any failure.
func (h *Handler) loadOwned(ctx context.Context, w http.ResponseWriter, r *http.Request, verb string) (*auth.User, models.Resource, bool) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Error(w, http.StatusUnauthorized, "Authentication required")
		return nil, models.Resource{}, false
	}
	id, ok := resourceID(w, r)
	if !ok {
		return nil, models.Resource{}, false
	}

	res, err := h.Resources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, resourcestore.ErrNotFound) {
			jsonutil.Error(w, http.StatusNotFound, "Resource not found")
			return nil, models.Resource{}, false
		}
		h.ErrLog.LogServerError(w, r, "load resource failed", err, "")
		return nil, models.Resource{}, false
	}
	if res.UploadedBy != cu.ID {
		jsonutil.Error(w, http.StatusForbidden, "Not authorized to "+verb+" this resource")
		return nil, models.Resource{}, false
	}
	return cu, res, true
}

type updateInput struct {
	Title       *string              `json:"title" validate:"omitempty,notblank,max=200" label:"Title"`
	Description *string              `json:"description" validate:"omitempty,max=2000" label:"Description"`
	Subject     *string              `json:"subject" validate:"omitempty,notblank,max=100" label:"Subject"`
	Department  *string              `json:"department" validate:"omitempty,notblank,max=100" label:"Department"`
	Semester    *jsonutil.Int        `json:"semester" validate:"omitempty,min=1,max=8" label:"Semester"`
	Teacher     *string              `json:"teacher" validate:"omitempty,max=100" label:"Teacher"`
	Tags        *jsonutil.StringList `json:"tags" label:"Tags"`
}

func plain(p *string) string {
	if p == nil {
		return ""
	}
	return htmlsanitize.PlainText(*p)
}

// HandleUpdate edits the metadata of a resource the caller owns. Omitted or
// empty fields keep their stored values; "tags": [] clears the tags.
// PUT /api/resources/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in updateInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "update resource: bad body", err, "Invalid request body")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	cu, existing, ok := h.loadOwned(ctx, w, r, "update")
	if !ok {
		return
	}

	upd := resourcestore.Update{
		Title:       plain(in.Title),
		Description: plain(in.Description),
		Subject:     normalize.Name(plain(in.Subject)),
		Department:  normalize.Name(plain(in.Department)),
		Teacher:     normalize.Name(plain(in.Teacher)),
	}
	if s := jsonutil.IntPtr(in.Semester); s != nil {
		upd.Semester = *s
	}
	if in.Tags != nil {
		upd.Tags = normalize.Tags(*in.Tags)
		if upd.Tags == nil {
			upd.Tags = []string{}
		}
		if len(upd.Tags) > 20 {
			jsonutil.Error(w, http.StatusBadRequest, "Tags must contain at most 20 items.")
			return
		}
	}

	res, err := h.Resources.Update(ctx, existing.ID, upd)
	if err != nil {
		if errors.Is(err, resourcestore.ErrNotFound) {
			jsonutil.Error(w, http.StatusNotFound, "Resource not found")
			return
		}
		h.ErrLog.LogServerError(w, r, "update resource failed", err, "")
		return
	}

	h.AuditLog.ResourceUpdated(ctx, r, cu.ID, res.ID, res.Title)
	jsonutil.Write(w, http.StatusOK, resourceResponse{
		Message: "Resource updated successfully",
		Resource: models.ResourceWithOwner{
			Resource: res,
			Owner:    &models.UserPublic{ID: cu.ID, Name: cu.Name, Email: cu.Email, Department: cu.Department},
		},
	})
}

// HandleDelete removes a resource the caller owns and, best effort, its file.
// DELETE /api/resources/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cu, res, ok := h.loadOwned(ctx, w, r, "delete")
	if !ok {
		return
	}

	if _, err := h.Resources.Delete(ctx, res.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "delete resource failed", err, "")
		return
	}

	if res.FileKey != "" {
		if err := h.Storage.Delete(ctx, res.FileKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.Log.Warn("delete stored file failed", zap.String("key", res.FileKey), zap.Error(err))
		}
	}
	if err := h.Users.RemoveUpload(ctx, cu.ID, res.ID); err != nil {
		h.Log.Warn("remove upload from user failed", zap.String("user_id", cu.ID.Hex()), zap.Error(err))
	}

	h.AuditLog.ResourceDeleted(ctx, r, cu.ID, res.ID, res.Title)
	jsonutil.Write(w, http.StatusOK, jsonutil.Message{Message: "Resource deleted successfully"})
}
