package resources_test

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	uierrors "github.com/dalemusser/studyshare/internal/app/features/errors"
	"github.com/dalemusser/studyshare/internal/app/features/resources"
	resourcestore "github.com/dalemusser/studyshare/internal/app/store/resources"
	"github.com/dalemusser/studyshare/internal/app/system/auth"
	"github.com/dalemusser/studyshare/internal/app/system/metrics"
	"github.com/dalemusser/studyshare/internal/app/system/uploads"
	"github.com/dalemusser/studyshare/internal/domain/models"
	"github.com/dalemusser/studyshare/internal/testutil"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type env struct {
	h        *resources.Handler
	fixtures *testutil.Fixtures
	root     string
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	root := t.TempDir()
	local, err := storage.NewLocal(storage.LocalConfig{BasePath: root, BaseURL: "/files"})
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	logger := zap.NewNop()
	h := resources.NewHandler(db, local, 0, metrics.New(), nil, uierrors.NewErrorLogger(logger), logger)
	return env{h: h, fixtures: testutil.NewFixtures(t, db), root: root}
}

// serve routes req through the feature router so chi URL params resolve.
func (e env) serve(req *http.Request, u *auth.User) *testutil.ResponseRecorder {
	if u != nil {
		req = testutil.WithUser(req, u)
	}
	rec := testutil.NewRecorder()
	resources.Routes(e.h).ServeHTTP(rec, req)
	return rec
}

type upload struct {
	fields      map[string][]string
	filename    string
	contentType string
	content     []byte
}

func multipartRequest(t *testing.T, u upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range u.fields {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				t.Fatalf("WriteField: %v", err)
			}
		}
	}
	if u.filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+u.filename+`"`)
		hdr.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write(u.content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validFields() map[string][]string {
	return map[string][]string{
		"title":       {"Graph Theory <b>Notes</b>"},
		"description": {"Week 1 to 5"},
		"subject":     {"Discrete Math"},
		"department":  {"Computer Science"},
		"semester":    {"3"},
		"teacher":     {"Dr. Knuth"},
		"tags":        {"graphs, trees", "graphs"},
	}
}

type resourceBody struct {
	Message  string `json:"message"`
	Resource struct {
		ID         string   `json:"id"`
		Title      string   `json:"title"`
		Subject    string   `json:"subject"`
		Semester   int      `json:"semester"`
		Tags       []string `json:"tags"`
		FileURL    string   `json:"fileUrl"`
		FileType   string   `json:"fileType"`
		Upvotes    int      `json:"upvotes"`
		UploadedBy struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"uploadedBy"`
		Comments []struct {
			Text string `json:"text"`
			User struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			} `json:"user"`
		} `json:"comments"`
	} `json:"resource"`
}

func TestHandleCreate_Success(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")

	rec := e.serve(multipartRequest(t, upload{
		fields:      validFields(),
		filename:    "graph notes.pdf",
		contentType: "application/pdf",
		content:     []byte("%PDF-1.4 test"),
	}), testutil.AuthUser(owner))

	rec.AssertStatus(t, http.StatusCreated)
	var body resourceBody
	rec.DecodeJSON(t, &body)

	if body.Message != "Resource created successfully" {
		t.Errorf("message = %q", body.Message)
	}
	got := body.Resource
	if got.Title != "Graph Theory Notes" || got.Subject != "Discrete Math" || got.Semester != 3 {
		t.Errorf("resource = %+v", got)
	}
	if got.FileType != "pdf" {
		t.Errorf("fileType = %q, want pdf", got.FileType)
	}
	if strings.Join(got.Tags, ",") != "graphs,trees" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.UploadedBy.ID != owner.ID.Hex() || got.UploadedBy.Name != "Ada" {
		t.Errorf("uploadedBy = %+v", got.UploadedBy)
	}
	if !strings.HasPrefix(got.FileURL, "/files/resources/") {
		t.Fatalf("fileUrl = %q", got.FileURL)
	}

	key := strings.TrimPrefix(got.FileURL, "/files/")
	data, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if string(data) != "%PDF-1.4 test" {
		t.Errorf("stored content = %q", data)
	}

	u, err := e.h.Users.GetByID(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(u.MyUploads) != 1 || u.MyUploads[0].Hex() != got.ID {
		t.Errorf("my_uploads = %v, want [%s]", u.MyUploads, got.ID)
	}
}

func TestHandleCreate_Rejections(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")

	tests := []struct {
		name     string
		up       upload
		maxBytes int64
		wantCode int
		wantMsg  string
	}{
		{
			name:     "no file",
			up:       upload{fields: validFields()},
			wantCode: http.StatusBadRequest,
			wantMsg:  "No file uploaded",
		},
		{
			name:     "unsupported type",
			up:       upload{fields: validFields(), filename: "run.exe", contentType: "application/octet-stream", content: []byte("MZ")},
			wantCode: http.StatusUnsupportedMediaType,
		},
		{
			name:     "too large",
			up:       upload{fields: validFields(), filename: "big.pdf", contentType: "application/pdf", content: bytes.Repeat([]byte("x"), 64)},
			maxBytes: 32,
			wantCode: http.StatusRequestEntityTooLarge,
		},
		{
			name:     "empty file",
			up:       upload{fields: validFields(), filename: "empty.pdf", contentType: "application/pdf"},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "missing title",
			up: upload{
				fields:   map[string][]string{"subject": {"Math"}, "department": {"CS"}, "semester": {"2"}},
				filename: "a.pdf", contentType: "application/pdf", content: []byte("x"),
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Title is required.",
		},
		{
			name: "semester not numeric",
			up: upload{
				fields:   map[string][]string{"title": {"T"}, "subject": {"Math"}, "department": {"CS"}, "semester": {"two"}},
				filename: "a.pdf", contentType: "application/pdf", content: []byte("x"),
			},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Semester",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.h.MaxUpload = uploads.DefaultMaxUploadBytes
			if tt.maxBytes > 0 {
				e.h.MaxUpload = tt.maxBytes
			}
			rec := e.serve(multipartRequest(t, tt.up), testutil.AuthUser(owner))
			rec.AssertStatus(t, tt.wantCode)
			if tt.wantMsg != "" {
				rec.AssertContains(t, tt.wantMsg)
			}
		})
	}

	rows, err := e.h.Resources.ListByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rejected uploads created %d resources", len(rows))
	}
}

func TestHandleCreate_OfficeFileSentAsOctetStream(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")

	rec := e.serve(multipartRequest(t, upload{
		fields:      validFields(),
		filename:    "lecture.pptx",
		contentType: "application/octet-stream",
		content:     []byte("PK\x03\x04"),
	}), testutil.AuthUser(owner))

	rec.AssertStatus(t, http.StatusCreated)
	var body resourceBody
	rec.DecodeJSON(t, &body)
	if body.Resource.FileType != "pptx" {
		t.Errorf("fileType = %q, want pptx", body.Resource.FileType)
	}
}

func TestRoutes_SignInRequired(t *testing.T) {
	e := newEnv(t)
	id := primitive.NewObjectID().Hex()

	tests := []struct {
		method, path string
	}{
		{"POST", "/"},
		{"GET", "/user"},
		{"PUT", "/" + id},
		{"DELETE", "/" + id},
		{"POST", "/" + id + "/upvote"},
		{"POST", "/" + id + "/comment"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := e.serve(testutil.NewRequest(tt.method, tt.path), nil)
			rec.AssertStatus(t, http.StatusUnauthorized)
		})
	}
}

func TestServeList_AndMine(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ada := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")
	grace := e.fixtures.CreateUser(ctx, "Grace", "grace@uni.edu", "CS")

	base := time.Now().UTC().Add(-time.Hour)
	e.fixtures.CreateResource(ctx, ada.ID, resourceOpts("Old", base))
	e.fixtures.CreateResource(ctx, grace.ID, resourceOpts("Middle", base.Add(time.Minute)))
	e.fixtures.CreateResource(ctx, ada.ID, resourceOpts("New", base.Add(2*time.Minute)))

	var all struct {
		Resources []struct {
			Title      string `json:"title"`
			UploadedBy struct {
				Name string `json:"name"`
			} `json:"uploadedBy"`
		} `json:"resources"`
	}
	rec := e.serve(testutil.NewRequest("GET", "/"), nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &all)

	var titles []string
	for _, r := range all.Resources {
		titles = append(titles, r.Title+"/"+r.UploadedBy.Name)
	}
	if got := strings.Join(titles, ","); got != "New/Ada,Middle/Grace,Old/Ada" {
		t.Errorf("list = %s", got)
	}

	rec = e.serve(testutil.NewRequest("GET", "/user"), testutil.AuthUser(ada))
	rec.AssertStatus(t, http.StatusOK)
	all.Resources = nil
	rec.DecodeJSON(t, &all)
	if len(all.Resources) != 2 || all.Resources[0].Title != "New" {
		t.Errorf("mine = %+v", all.Resources)
	}
}

func resourceOpts(title string, at time.Time) testutil.ResourceOpts {
	return testutil.ResourceOpts{Title: title, CreatedAt: at}
}

func TestServeResource(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ada := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")
	grace := e.fixtures.CreateUser(ctx, "Grace", "grace@uni.edu", "CS")
	res := e.fixtures.CreateResource(ctx, ada.ID, testutil.ResourceOpts{Title: "Notes"})

	rec := e.serve(testutil.NewJSONRequest(t, "POST", "/"+res.ID.Hex()+"/comment", map[string]string{"text": "Thanks!"}), testutil.AuthUser(grace))
	rec.AssertStatus(t, http.StatusCreated)

	rec = e.serve(testutil.NewRequest("GET", "/"+res.ID.Hex()), nil)
	rec.AssertStatus(t, http.StatusOK)
	var body resourceBody
	rec.DecodeJSON(t, &body)

	if body.Resource.Title != "Notes" || body.Resource.UploadedBy.Name != "Ada" {
		t.Errorf("resource = %+v", body.Resource)
	}
	if len(body.Resource.Comments) != 1 {
		t.Fatalf("comments = %+v", body.Resource.Comments)
	}
	c := body.Resource.Comments[0]
	if c.Text != "Thanks!" || c.User.Name != "Grace" || c.User.Email != "grace@uni.edu" {
		t.Errorf("comment = %+v", c)
	}

	for _, path := range []string{"/" + primitive.NewObjectID().Hex(), "/not-an-id"} {
		rec = e.serve(testutil.NewRequest("GET", path), nil)
		rec.AssertStatus(t, http.StatusNotFound)
		rec.AssertContains(t, "Resource not found")
	}
}

func TestHandleUpdate(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ada := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")
	grace := e.fixtures.CreateUser(ctx, "Grace", "grace@uni.edu", "CS")
	res := e.fixtures.CreateResource(ctx, ada.ID, testutil.ResourceOpts{Title: "Notes", Subject: "Math", Tags: []string{"old"}})
	path := "/" + res.ID.Hex()

	rec := e.serve(testutil.NewJSONRequest(t, "PUT", path, map[string]any{"title": "Hijacked"}), testutil.AuthUser(grace))
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "Not authorized to update this resource")

	rec = e.serve(testutil.NewJSONRequest(t, "PUT", path, map[string]any{"semester": 9}), testutil.AuthUser(ada))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = e.serve(testutil.NewJSONRequest(t, "PUT", path, map[string]any{
		"title":    "Better Notes",
		"semester": "5",
		"tags":     "algebra, proofs",
	}), testutil.AuthUser(ada))
	rec.AssertStatus(t, http.StatusOK)
	var body resourceBody
	rec.DecodeJSON(t, &body)
	if body.Message != "Resource updated successfully" {
		t.Errorf("message = %q", body.Message)
	}
	got := body.Resource
	if got.Title != "Better Notes" || got.Subject != "Math" || got.Semester != 5 {
		t.Errorf("resource = %+v", got)
	}
	if strings.Join(got.Tags, ",") != "algebra,proofs" {
		t.Errorf("tags = %v", got.Tags)
	}

	rec = e.serve(testutil.NewJSONRequest(t, "PUT", path, map[string]any{"tags": []string{}}), testutil.AuthUser(ada))
	rec.AssertStatus(t, http.StatusOK)
	stored, err := e.h.Resources.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.Tags) != 0 || stored.Title != "Better Notes" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestHandleDelete(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ada := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")
	grace := e.fixtures.CreateUser(ctx, "Grace", "grace@uni.edu", "CS")

	rec := e.serve(multipartRequest(t, upload{
		fields: validFields(), filename: "n.pdf", contentType: "application/pdf", content: []byte("pdf"),
	}), testutil.AuthUser(ada))
	rec.AssertStatus(t, http.StatusCreated)
	var created resourceBody
	rec.DecodeJSON(t, &created)
	path := "/" + created.Resource.ID
	stored := filepath.Join(e.root, filepath.FromSlash(strings.TrimPrefix(created.Resource.FileURL, "/files/")))

	rec = e.serve(testutil.NewRequest("DELETE", path), testutil.AuthUser(grace))
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "Not authorized to delete this resource")

	rec = e.serve(testutil.NewRequest("DELETE", path), testutil.AuthUser(ada))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Resource deleted successfully")

	id, _ := primitive.ObjectIDFromHex(created.Resource.ID)
	if _, err := e.h.Resources.GetByID(ctx, id); !errors.Is(err, resourcestore.ErrNotFound) {
		t.Errorf("GetByID after delete: err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Errorf("stored file still present: %v", err)
	}
	u, err := e.h.Users.GetByID(ctx, ada.ID)
	if err != nil {
		t.Fatalf("GetByID user: %v", err)
	}
	if len(u.MyUploads) != 0 {
		t.Errorf("my_uploads = %v, want empty", u.MyUploads)
	}

	e.serve(testutil.NewRequest("DELETE", path), testutil.AuthUser(ada)).AssertStatus(t, http.StatusNotFound)
}

func TestHandleUpvote_Toggles(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ada := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")
	res := e.fixtures.CreateResource(ctx, ada.ID, testutil.ResourceOpts{Upvoters: []primitive.ObjectID{primitive.NewObjectID()}})
	path := "/" + res.ID.Hex() + "/upvote"

	type upvoteBody struct {
		Message    string `json:"message"`
		Upvotes    int    `json:"upvotes"`
		HasUpvoted bool   `json:"hasUpvoted"`
	}
	steps := []upvoteBody{
		{Message: "Resource upvoted successfully", Upvotes: 2, HasUpvoted: true},
		{Message: "Upvote removed successfully", Upvotes: 1, HasUpvoted: false},
	}
	for i, want := range steps {
		rec := e.serve(testutil.NewRequest("POST", path), testutil.AuthUser(ada))
		rec.AssertStatus(t, http.StatusOK)
		var got upvoteBody
		rec.DecodeJSON(t, &got)
		if got != want {
			t.Errorf("step %d: got %+v, want %+v", i, got, want)
		}
	}

	rec := e.serve(testutil.NewRequest("POST", "/"+primitive.NewObjectID().Hex()+"/upvote"), testutil.AuthUser(ada))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestHandleComment(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ada := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")
	res := e.fixtures.CreateResource(ctx, ada.ID, testutil.ResourceOpts{})
	path := "/" + res.ID.Hex() + "/comment"

	tests := []struct {
		name     string
		text     string
		wantCode int
		wantText string
	}{
		{name: "empty", text: "", wantCode: http.StatusBadRequest},
		{name: "only markup", text: "<b></b>  ", wantCode: http.StatusBadRequest},
		{name: "too long", text: strings.Repeat("a", resources.MaxCommentLength+1), wantCode: http.StatusBadRequest},
		{name: "markup stripped", text: "<b>Great</b> notes", wantCode: http.StatusCreated, wantText: "Great notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.serve(testutil.NewJSONRequest(t, "POST", path, map[string]string{"text": tt.text}), testutil.AuthUser(ada))
			rec.AssertStatus(t, tt.wantCode)
			if tt.wantCode != http.StatusCreated {
				rec.AssertContains(t, "Comment")
				return
			}
			var body struct {
				Message string                   `json:"message"`
				Comment models.CommentWithAuthor `json:"comment"`
			}
			rec.DecodeJSON(t, &body)
			if body.Message != "Comment added successfully" || body.Comment.Text != tt.wantText {
				t.Errorf("body = %+v", body)
			}
			if body.Comment.User == nil || body.Comment.User.Name != "Ada" {
				t.Errorf("author = %+v", body.Comment.User)
			}
		})
	}

	stored, err := e.h.Resources.GetByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(stored.Comments) != 1 || stored.CommentCount != 1 {
		t.Errorf("comments = %d, count = %d, want 1/1", len(stored.Comments), stored.CommentCount)
	}
}

func TestServeSearch(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ada := e.fixtures.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		e.fixtures.CreateResource(ctx, ada.ID, testutil.ResourceOpts{
			Title: "Data Structures " + string(rune('A'+i)), Subject: "Algorithms", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	e.fixtures.CreateResource(ctx, ada.ID, testutil.ResourceOpts{Title: "Poetry", Subject: "Literature", CreatedAt: base})

	rec := e.serve(testutil.NewRequest("GET", "/search?searchText=data&limit=2&page=2"), nil)
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		Resources []struct {
			Title      string `json:"title"`
			UploadedBy struct {
				Name string `json:"name"`
			} `json:"uploadedBy"`
		} `json:"resources"`
		Pagination struct {
			Total int64 `json:"total"`
			Page  int   `json:"page"`
			Limit int   `json:"limit"`
			Pages int   `json:"pages"`
		} `json:"pagination"`
	}
	rec.DecodeJSON(t, &body)

	if body.Pagination.Total != 3 || body.Pagination.Page != 2 || body.Pagination.Limit != 2 || body.Pagination.Pages != 2 {
		t.Errorf("pagination = %+v", body.Pagination)
	}
	if len(body.Resources) != 1 || body.Resources[0].Title != "Data Structures A" || body.Resources[0].UploadedBy.Name != "Ada" {
		t.Errorf("resources = %+v", body.Resources)
	}
}
