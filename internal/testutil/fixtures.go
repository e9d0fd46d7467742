package testutil

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/studyshare/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain password of every fixture user.
const TestPassword = "secret123"

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

var (
	hashOnce sync.Once
	hashed   string
	hashErr  error
)

// testPasswordHash hashes TestPassword once at the minimum bcrypt cost.
func testPasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		var b []byte
		b, hashErr = bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
		hashed = string(b)
	})
	if hashErr != nil {
		t.Fatalf("hash test password: %v", hashErr)
	}
	return hashed
}

// CreateUser inserts a student whose password is TestPassword.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, department string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		Email:        email,
		PasswordHash: testPasswordHash(f.t),
		Role:         models.RoleStudent,
		Department:   department,
		Semester:     3,
		MyUploads:    []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// ResourceOpts customizes CreateResource. Zero values get defaults.
type ResourceOpts struct {
	Title       string
	Description string
	Subject     string
	Department  string
	Semester    int
	Teacher     string
	Tags        []string
	FileType    string
	Upvoters    []primitive.ObjectID
	Comments    int
	CreatedAt   time.Time
}

// CreateResource inserts a resource owned by owner.
func (f *Fixtures) CreateResource(ctx context.Context, owner primitive.ObjectID, o ResourceOpts) models.Resource {
	f.t.Helper()

	if o.Title == "" {
		o.Title = "Test Resource"
	}
	if o.Subject == "" {
		o.Subject = "General"
	}
	if o.Department == "" {
		o.Department = "CS"
	}
	if o.Semester == 0 {
		o.Semester = 1
	}
	if o.FileType == "" {
		o.FileType = "pdf"
	}
	if o.Tags == nil {
		o.Tags = []string{}
	}
	if o.Upvoters == nil {
		o.Upvoters = []primitive.ObjectID{}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	comments := make([]models.Comment, o.Comments)
	for i := range comments {
		comments[i] = models.Comment{
			ID:        primitive.NewObjectID(),
			UserID:    owner,
			Text:      "comment",
			CreatedAt: o.CreatedAt,
		}
	}

	r := models.Resource{
		ID:           primitive.NewObjectID(),
		Title:        o.Title,
		Description:  o.Description,
		Subject:      o.Subject,
		Department:   o.Department,
		Semester:     o.Semester,
		Teacher:      o.Teacher,
		Tags:         o.Tags,
		FileURL:      "https://files.test/" + o.Title,
		FileKey:      "resources/test/" + o.Title,
		FileType:     o.FileType,
		UploadedBy:   owner,
		Upvotes:      len(o.Upvoters),
		UpvotedBy:    o.Upvoters,
		Comments:     comments,
		CommentCount: len(comments),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.CreatedAt,
	}

	if _, err := f.db.Collection("resources").InsertOne(ctx, r); err != nil {
		f.t.Fatalf("failed to create test resource: %v", err)
	}
	return r
}
