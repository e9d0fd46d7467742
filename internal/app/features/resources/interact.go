package resources

import (
	"context"
	"errors"
	"net/http"

	resourcestore "github.com/dalemusser/studyshare/internal/app/store/resources"
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/dalemusser/studyshare/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/timeouts"
	"github.com/dalemusser/studyshare/internal/domain/models"
)

// MaxCommentLength bounds comment text after sanitizing.
const MaxCommentLength = 1000

type upvoteResponse struct {
	Message    string `json:"message"`
	Upvotes    int    `json:"upvotes"`
	HasUpvoted bool   `json:"hasUpvoted"`
}

// HandleUpvote toggles the caller's upvote.
// POST /api/resources/{id}/upvote
func (h *Handler) HandleUpvote(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	res, err := h.Resources.ToggleUpvote(ctx, id, cu.ID)
	if err != nil {
		if errors.Is(err, resourcestore.ErrNotFound) {
			jsonutil.Error(w, http.StatusNotFound, "Resource not found")
			return
		}
		h.ErrLog.LogServerError(w, r, "toggle upvote failed", err, "")
		return
	}

	msg := "Upvote removed successfully"
	if res.HasUpvoted {
		msg = "Resource upvoted successfully"
	}
	jsonutil.Write(w, http.StatusOK, upvoteResponse{Message: msg, Upvotes: res.Upvotes, HasUpvoted: res.HasUpvoted})
}

type commentInput struct {
	Text string `json:"text"`
}

type commentResponse struct {
	Message string                   `json:"message"`
	Comment models.CommentWithAuthor `json:"comment"`
}

// HandleComment appends a plain-text comment.
// POST /api/resources/{id}/comment
func (h *Handler) HandleComment(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	var in commentInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "comment: bad body", err, "Invalid request body")
		return
	}
	text := htmlsanitize.PlainText(in.Text)
	if text == "" {
		jsonutil.Error(w, http.StatusBadRequest, "Comment text is required")
		return
	}
	if len([]rune(text)) > MaxCommentLength {
		jsonutil.Error(w, http.StatusBadRequest, "Comment must be at most 1000 characters")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	c, err := h.Resources.AddComment(ctx, id, cu.ID, text)
	if err != nil {
		if errors.Is(err, resourcestore.ErrNotFound) {
			jsonutil.Error(w, http.StatusNotFound, "Resource not found")
			return
		}
		h.ErrLog.LogServerError(w, r, "add comment failed", err, "")
		return
	}

	jsonutil.Write(w, http.StatusCreated, commentResponse{
		Message: "Comment added successfully",
		Comment: models.CommentWithAuthor{
			ID:        c.ID,
			User:      &models.UserPublic{ID: cu.ID, Name: cu.Name, Email: cu.Email},
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		},
	})
}
