package resources

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/dalemusser/studyshare/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studyshare/internal/app/system/inputval"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/normalize"
	"github.com/dalemusser/studyshare/internal/app/system/timeouts"
	"github.com/dalemusser/studyshare/internal/app/system/uploads"
	"github.com/dalemusser/studyshare/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"
)

// Room for the non-file form fields on top of the upload limit.
const formOverhead = 1 << 20

// Parts beyond this are spooled to temp files by ParseMultipartForm.
const multipartMemory = 8 << 20

type createInput struct {
	Title       string   `validate:"notblank,max=200" label:"Title"`
	Description string   `validate:"max=2000" label:"Description"`
	Subject     string   `validate:"notblank,max=100" label:"Subject"`
	Department  string   `validate:"notblank,max=100" label:"Department"`
	Semester    int      `validate:"required,min=1,max=8" label:"Semester"`
	Teacher     string   `validate:"max=100" label:"Teacher"`
	Tags        []string `validate:"max=20,dive,max=40" label:"Tags"`
}

// HandleCreate accepts a multipart upload (field "file") plus metadata,
// stores the file and records the resource.
// POST /api/resources
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	cu, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Error(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonutil.Error(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		h.ErrLog.LogBadRequest(w, r, "parse multipart form failed", err, "Invalid form data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	semester, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("semester")))
	in := createInput{
		Title:       htmlsanitize.PlainText(r.FormValue("title")),
		Description: htmlsanitize.PlainText(r.FormValue("description")),
		Subject:     normalize.Name(htmlsanitize.PlainText(r.FormValue("subject"))),
		Department:  normalize.Name(htmlsanitize.PlainText(r.FormValue("department"))),
		Semester:    semester,
		Teacher:     normalize.Name(htmlsanitize.PlainText(r.FormValue("teacher"))),
		Tags:        normalize.Tags(append(r.MultipartForm.Value["tags"], r.MultipartForm.Value["tags[]"]...)),
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res)
		return
	}

	contentType := uploads.ContentTypeFor(header.Filename, header.Header.Get("Content-Type"))
	fileType, err := uploads.Accept(contentType, header.Size, h.MaxUpload)
	if err != nil {
		writeRejected(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upload())
	defer cancel()

	key := uploads.NewKey(header.Filename, time.Now().UTC())
	if err := h.Storage.Put(ctx, key, file, &storage.PutOptions{ContentType: contentType}); err != nil {
		h.ErrLog.LogServerError(w, r, "store upload failed", err, "File upload failed")
		return
	}

	res, err := h.Resources.Create(ctx, models.Resource{
		Title:       in.Title,
		Description: in.Description,
		Subject:     in.Subject,
		Department:  in.Department,
		Semester:    in.Semester,
		Teacher:     in.Teacher,
		Tags:        in.Tags,
		FileURL:     h.Storage.URL(key),
		FileKey:     key,
		FileName:    htmlsanitize.PlainText(header.Filename),
		FileSize:    header.Size,
		FileType:    fileType,
		UploadedBy:  cu.ID,
	})
	if err != nil {
		if delErr := h.Storage.Delete(ctx, key); delErr != nil {
			h.Log.Warn("orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		h.ErrLog.LogServerError(w, r, "create resource failed", err, "")
		return
	}

	if err := h.Users.AddUpload(ctx, cu.ID, res.ID); err != nil {
		h.Log.Warn("record upload on user failed", zap.String("user_id", cu.ID.Hex()), zap.Error(err))
	}
	h.Metrics.ObserveUpload(header.Size)
	h.AuditLog.ResourceCreated(ctx, r, cu.ID, res.ID, res.Title)

	jsonutil.Write(w, http.StatusCreated, resourceResponse{
		Message: "Resource created successfully",
		Resource: models.ResourceWithOwner{
			Resource: res,
			Owner:    &models.UserPublic{ID: cu.ID, Name: cu.Name, Email: cu.Email, Department: cu.Department},
		},
	})
}

type resourceResponse struct {
	Message  string                   `json:"message"`
	Resource models.ResourceWithOwner `json:"resource"`
}

func writeRejected(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, uploads.ErrFileTooLarge):
		jsonutil.Error(w, http.StatusRequestEntityTooLarge, "File is too large")
	case errors.Is(err, uploads.ErrUnsupportedType):
		jsonutil.Error(w, http.StatusUnsupportedMediaType, "Only PDF, DOC, DOCX, PPT and PPTX files are allowed")
	default:
		jsonutil.Error(w, http.StatusBadRequest, "Uploaded file is empty")
	}
}
