// internal/app/features/resources/handler.go
package resources

import (
	"net/http"

	uierrors "github.com/dalemusser/studyshare/internal/app/features/errors"
	"github.com/dalemusser/studyshare/internal/app/store/queries/resourcesearch"
	resourcestore "github.com/dalemusser/studyshare/internal/app/store/resources"
	userstore "github.com/dalemusser/studyshare/internal/app/store/users"
	"github.com/dalemusser/studyshare/internal/app/system/auditlog"
	"github.com/dalemusser/studyshare/internal/app/system/metrics"
	"github.com/dalemusser/studyshare/internal/app/system/jsonutil"
	"github.com/dalemusser/studyshare/internal/app/system/uploads"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns the /api/resources endpoints: listing, search, upload,
// owner edits, upvotes and comments.
//
// It is constructed once at startup in bootstrap, using the shared Mongo
// database handle, the configured storage backend and logger.
type Handler struct {
	Resources *resourcestore.Store
	Users     *userstore.Store
	Search    *resourcesearch.Searcher
	Storage   storage.Store
	MaxUpload int64
	Metrics   *metrics.Metrics // nil disables upload/search metrics
	AuditLog  *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

// NewHandler constructs a Handler. maxUpload <= 0 uses uploads.DefaultMaxUploadBytes.
func NewHandler(
	db *mongo.Database,
	store storage.Store,
	maxUpload int64,
	m *metrics.Metrics,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	if maxUpload <= 0 {
		maxUpload = uploads.DefaultMaxUploadBytes
	}
	res := resourcestore.New(db)
	users := userstore.New(db)
	return &Handler{
		Resources: res,
		Users:     users,
		Search:    resourcesearch.New(res, users),
		Storage:   store,
		MaxUpload: maxUpload,
		Metrics:   m,
		AuditLog:  audit,
		ErrLog:    errLog,
		Log:       logger,
	}
}

// resourceID parses the {id} URL param. A malformed id is reported as a
// missing resource.
func resourceID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.Error(w, http.StatusNotFound, "Resource not found")
		return primitive.NilObjectID, false
	}
	return oid, true
}
