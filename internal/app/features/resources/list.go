package resources

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/studyshare/internal/app/store/queries/resourcesearch"
	resourcestore "github.com/dalemusser/studyshare/internal/app/store/resources"
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/timeouts"
	"github.com/dalemusser/studyshare/internal/domain/models"
)

type listResponse struct {
	Resources []models.ResourceWithOwner `json:"resources"`
}

// ServeList returns every resource, newest first.
// GET /api/resources
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list resources")
	defer cancel()

	rows, err := h.Resources.ListAll(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list resources failed", err, "")
		return
	}
	h.writeList(ctx, w, r, rows)
}

// ServeMine returns the caller's uploads, newest first.
// GET /api/resources/user
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rows, err := h.Resources.ListByOwner(ctx, cu.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list my resources failed", err, "")
		return
	}
	h.writeList(ctx, w, r, rows)
}

func (h *Handler) writeList(ctx context.Context, w http.ResponseWriter, r *http.Request, rows []models.Resource) {
	out, err := resourcesearch.WithOwners(ctx, h.Users, rows)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load resource owners failed", err, "")
		return
	}
	jsonutil.Write(w, http.StatusOK, listResponse{Resources: out})
}

type detailResponse struct {
	Resource models.ResourceDetail `json:"resource"`
}

// ServeResource returns one resource with its owner and comment authors.
// GET /api/resources/{id}
func (h *Handler) ServeResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	res, err := h.Resources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, resourcestore.ErrNotFound) {
			jsonutil.Error(w, http.StatusNotFound, "Resource not found")
			return
		}
		h.ErrLog.LogServerError(w, r, "load resource failed", err, "")
		return
	}

	ids := append(resourcestore.CommentAuthors(res), res.UploadedBy)
	people, err := h.Users.PublicByIDs(ctx, ids)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load resource people failed", err, "")
		return
	}

	detail := models.ResourceDetail{
		ResourceWithOwner: models.ResourceWithOwner{Resource: res},
		Comments:          make([]models.CommentWithAuthor, len(res.Comments)),
	}
	if o, ok := people[res.UploadedBy]; ok {
		detail.Owner = &o
	}
	for i, c := range res.Comments {
		detail.Comments[i] = models.CommentWithAuthor{ID: c.ID, Text: c.Text, CreatedAt: c.CreatedAt}
		if a, ok := people[c.UserID]; ok {
			detail.Comments[i].User = &a
		}
	}
	jsonutil.Write(w, http.StatusOK, detailResponse{Resource: detail})
}
