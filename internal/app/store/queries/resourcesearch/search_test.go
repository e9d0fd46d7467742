package resourcesearch_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"testing"
	"time"

	resourcestore "github.com/dalemusser/studyshare/internal/app/store/resources"
	"github.com/dalemusser/studyshare/internal/app/store/queries/resourcesearch"
	userstore "github.com/dalemusser/studyshare/internal/app/store/users"
	"github.com/dalemusser/studyshare/internal/domain/models"
	"github.com/dalemusser/studyshare/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

/* ----------------------------- stub collaborators ----------------------------- */

type stubFinder struct {
	rows     []models.Resource
	findErr  error
	countErr error
	lastOpts *options.FindOptions
}

func (s *stubFinder) Find(_ context.Context, _ bson.M, opts ...*options.FindOptions) ([]models.Resource, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if len(opts) > 0 {
		s.lastOpts = opts[0]
	}
	out := make([]models.Resource, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func (s *stubFinder) Count(context.Context, bson.M) (int64, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return int64(len(s.rows)), nil
}

type stubOwners struct {
	err error
}

func (s stubOwners) PublicByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserPublic, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[primitive.ObjectID]models.UserPublic{}
	for _, id := range ids {
		out[id] = models.UserPublic{ID: id, Name: "owner-" + id.Hex()[20:]}
	}
	return out, nil
}

func withComments(title string, n int) models.Resource {
	return models.Resource{
		ID:         primitive.NewObjectID(),
		Title:      title,
		UploadedBy: primitive.NewObjectID(),
		Comments:   make([]models.Comment, n),
	}
}

func TestSearch_StoreFailureIsDataUnavailable(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name   string
		finder *stubFinder
		owners stubOwners
	}{
		{name: "count", finder: &stubFinder{countErr: boom}},
		{name: "find", finder: &stubFinder{rows: []models.Resource{withComments("a", 0)}, findErr: boom}},
		{name: "owners", finder: &stubFinder{rows: []models.Resource{withComments("a", 0)}}, owners: stubOwners{err: boom}},
	}
	for _, tt := range tests {
		for _, mode := range []string{resourcesearch.SortRecent, resourcesearch.SortComments} {
			t.Run(tt.name+"/"+mode, func(t *testing.T) {
				s := resourcesearch.New(tt.finder, tt.owners)
				res, err := s.Search(context.Background(), resourcesearch.Params{SortBy: mode, Page: 1, Limit: 10})
				if !errors.Is(err, resourcesearch.ErrDataUnavailable) {
					t.Fatalf("err = %v, want ErrDataUnavailable", err)
				}
				if res.Resources != nil {
					t.Error("expected no partial results")
				}
			})
		}
	}
}

func TestSearch_CommentsSortsFullSetBeforeSlicing(t *testing.T) {
	// Deliberately ordered so a per-page sort would give the wrong answer.
	rows := []models.Resource{
		withComments("c1", 1), withComments("c0", 0), withComments("c5", 5),
		withComments("c2", 2), withComments("c4", 4), withComments("c3", 3),
	}
	finder := &stubFinder{rows: rows}
	s := resourcesearch.New(finder, stubOwners{})

	var got []string
	for page := 1; page <= 3; page++ {
		res, err := s.Search(context.Background(), resourcesearch.Params{SortBy: resourcesearch.SortComments, Page: page, Limit: 2})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if res.Pagination.Total != 6 || res.Pagination.Pages != 3 {
			t.Errorf("page %d pagination = %+v", page, res.Pagination)
		}
		for _, r := range res.Resources {
			got = append(got, r.Title)
			if r.Owner == nil || r.Owner.ID != r.UploadedBy {
				t.Errorf("%s: owner not populated", r.Title)
			}
		}
	}
	want := []string{"c5", "c4", "c3", "c2", "c1", "c0"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if finder.lastOpts.Skip != nil || finder.lastOpts.Limit != nil {
		t.Error("comments sort must fetch all matches without skip/limit")
	}
	if sortKeys, ok := finder.lastOpts.Sort.(bson.D); !ok || len(sortKeys) == 0 || sortKeys[0].Key != "comment_count" {
		t.Errorf("comments sort = %v, want comment_count first", finder.lastOpts.Sort)
	}
}

func TestSearch_PageOutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLen   int
		wantPage  int
		wantLimit int
		wantPages int
	}{
		{name: "overflowing page comments", query: "sortBy=comments&page=461168601842738792", wantPage: 461168601842738792, wantLimit: 20, wantPages: 1},
		{name: "overflowing page recent", query: "sortBy=recent&page=461168601842738792", wantPage: 461168601842738792, wantLimit: 20, wantPages: 1},
		{name: "overflowing page upvotes", query: "sortBy=upvotes&page=461168601842738792&limit=100", wantPage: 461168601842738792, wantLimit: 100, wantPages: 1},
		{name: "far past last page", query: "sortBy=comments&page=50&limit=1", wantPage: 50, wantLimit: 1, wantPages: 2},
		{name: "limit above max is capped", query: "limit=500", wantLen: 2, wantPage: 1, wantLimit: 100, wantPages: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := &stubFinder{rows: []models.Resource{withComments("a", 1), withComments("b", 0)}}
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			res, err := resourcesearch.New(finder, stubOwners{}).Search(context.Background(), resourcesearch.ParseParams(q))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if res.Resources == nil || len(res.Resources) != tt.wantLen {
				t.Errorf("resources = %v, want %d", res.Resources, tt.wantLen)
			}
			want := resourcesearch.Pagination{Total: 2, Page: tt.wantPage, Limit: tt.wantLimit, Pages: tt.wantPages}
			if res.Pagination != want {
				t.Errorf("pagination = %+v, want %+v", res.Pagination, want)
			}
			if tt.wantLen == 0 && finder.lastOpts != nil {
				t.Error("a page past the end should not query resources")
			}
		})
	}
}

func TestSearch_PushesWindowDownForNativeSorts(t *testing.T) {
	finder := &stubFinder{rows: make([]models.Resource, 25)}
	s := resourcesearch.New(finder, stubOwners{})

	if _, err := s.Search(context.Background(), resourcesearch.Params{SortBy: resourcesearch.SortUpvotes, Page: 3, Limit: 10}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if finder.lastOpts.Skip == nil || *finder.lastOpts.Skip != 20 {
		t.Errorf("skip = %v, want 20", finder.lastOpts.Skip)
	}
	if finder.lastOpts.Limit == nil || *finder.lastOpts.Limit != 10 {
		t.Errorf("limit = %v, want 10", finder.lastOpts.Limit)
	}
}

func TestSortByComments_Stable(t *testing.T) {
	rows := []models.Resource{withComments("a", 1), withComments("b", 2), withComments("c", 1), withComments("d", 2)}
	resourcesearch.SortByComments(rows)
	var got []string
	for _, r := range rows {
		got = append(got, r.Title)
	}
	if fmt.Sprint(got) != "[b d a c]" {
		t.Errorf("order = %v, want [b d a c]", got)
	}
}

/* ------------------------------ MongoDB-backed ------------------------------ */

func newSearcher(db *mongo.Database) *resourcesearch.Searcher {
	return resourcesearch.New(resourcestore.New(db), userstore.New(db))
}

func search(t *testing.T, s *resourcesearch.Searcher, query string) resourcesearch.Result {
	t.Helper()
	q, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	ctx, cancel := testutil.TestContext()
	defer cancel()
	res, err := s.Search(ctx, resourcesearch.ParseParams(q))
	if err != nil {
		t.Fatalf("Search(%q): %v", query, err)
	}
	return res
}

func titles(res resourcesearch.Result) map[string]bool {
	out := map[string]bool{}
	for _, r := range res.Resources {
		out[r.Title] = true
	}
	return out
}

func TestSearch_PaginationScenario(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Ada", "ada@uni.edu", "CS")
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		fx.CreateResource(ctx, owner.ID, testutil.ResourceOpts{
			Title:      fmt.Sprintf("cs-%02d", i),
			Department: "CS",
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
	}
	fx.CreateResource(ctx, owner.ID, testutil.ResourceOpts{Title: "bio", Department: "Biology"})

	s := newSearcher(db)
	for _, tc := range []struct {
		page int
		want int
	}{{1, 10}, {2, 10}, {3, 5}, {4, 0}} {
		res := search(t, s, fmt.Sprintf("department=CS&limit=10&page=%d", tc.page))
		if len(res.Resources) != tc.want {
			t.Errorf("page %d: got %d resources, want %d", tc.page, len(res.Resources), tc.want)
		}
		if res.Pagination.Total != 25 || res.Pagination.Pages != 3 || res.Pagination.Page != tc.page || res.Pagination.Limit != 10 {
			t.Errorf("page %d: pagination = %+v", tc.page, res.Pagination)
		}
		if res.Resources == nil {
			t.Errorf("page %d: resources should be an empty array, not null", tc.page)
		}
	}

	first := search(t, s, "department=CS&limit=10&page=1")
	if first.Resources[0].Title != "cs-24" {
		t.Errorf("recent sort: first = %q, want cs-24", first.Resources[0].Title)
	}
	if first.Resources[0].Owner == nil || first.Resources[0].Owner.Name != "Ada" || first.Resources[0].Owner.Department != "CS" {
		t.Errorf("owner = %+v", first.Resources[0].Owner)
	}
}

func TestSearch_SearchTextScenario(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	fx.CreateResource(ctx, owner, testutil.ResourceOpts{Title: "Intro to Data Structures"})
	fx.CreateResource(ctx, owner, testutil.ResourceOpts{Title: "Exif", Description: "all about metadata"})
	fx.CreateResource(ctx, owner, testutil.ResourceOpts{Title: "Calculus", Subject: "Math", Teacher: "Dr. Leibniz"})

	res := search(t, newSearcher(db), "searchText=data")
	got := titles(res)
	if !got["Intro to Data Structures"] || !got["Exif"] || got["Calculus"] {
		t.Errorf("matches = %v", got)
	}
	if res.Pagination.Total != 2 {
		t.Errorf("total = %d, want 2", res.Pagination.Total)
	}

	if n := len(search(t, newSearcher(db), "searchText=.*").Resources); n != 0 {
		t.Errorf("regex metacharacters should be literal, got %d matches", n)
	}
}

func TestSearch_TagsScenario(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	fx.CreateResource(ctx, owner, testutil.ResourceOpts{Title: "overlap", Tags: []string{"notes", "2023"}})
	fx.CreateResource(ctx, owner, testutil.ResourceOpts{Title: "final", Tags: []string{"final"}})

	for _, q := range []string{"tags=midterm,notes", "tags=midterm&tags=notes"} {
		got := titles(search(t, newSearcher(db), q))
		if !got["overlap"] || got["final"] {
			t.Errorf("%s: matches = %v", q, got)
		}
	}
}

func TestSearch_FiltersAreANDed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()
	fx.CreateResource(ctx, alice, testutil.ResourceOpts{Title: "match", Subject: "Linear Algebra", Department: "Mathematics", Semester: 2, Teacher: "Dr. Strang", FileType: "pdf"})
	fx.CreateResource(ctx, alice, testutil.ResourceOpts{Title: "wrong-semester", Subject: "Linear Algebra", Department: "Mathematics", Semester: 3, Teacher: "Dr. Strang", FileType: "pdf"})
	fx.CreateResource(ctx, alice, testutil.ResourceOpts{Title: "wrong-type", Subject: "Linear Algebra", Department: "Mathematics", Semester: 2, Teacher: "Dr. Strang", FileType: "pptx"})
	fx.CreateResource(ctx, bob, testutil.ResourceOpts{Title: "wrong-owner", Subject: "Linear Algebra", Department: "Mathematics", Semester: 2, Teacher: "Dr. Strang", FileType: "pdf"})

	s := newSearcher(db)
	q := fmt.Sprintf("subject=algebra&department=MATH&semester=2&teacher=strang&fileType=PDF&uploadedBy=%s", alice.Hex())
	got := titles(search(t, s, q))
	if len(got) != 1 || !got["match"] {
		t.Errorf("matches = %v, want only match", got)
	}

	if res := search(t, s, "uploadedBy=not-an-id"); len(res.Resources) != 0 || res.Pagination.Total != 0 {
		t.Errorf("invalid uploadedBy should match nothing, got %d", res.Pagination.Total)
	}
	if res := search(t, s, "semester=abc"); res.Pagination.Total != 4 {
		t.Errorf("non-numeric semester should be ignored, total = %d", res.Pagination.Total)
	}
}

func TestSearch_SortModesAcrossPages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		voters := make([]primitive.ObjectID, (i*7)%5)
		for j := range voters {
			voters[j] = primitive.NewObjectID()
		}
		fx.CreateResource(ctx, owner, testutil.ResourceOpts{
			Title:     fmt.Sprintf("r%02d", i),
			Upvoters:  voters,
			Comments:  (i * 5) % 7,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	s := newSearcher(db)
	collect := func(sortBy string) []models.ResourceWithOwner {
		var all []models.ResourceWithOwner
		for page := 1; page <= 3; page++ {
			res := search(t, s, fmt.Sprintf("sortBy=%s&limit=5&page=%d", sortBy, page))
			if res.Pagination.Total != 12 || res.Pagination.Pages != 3 {
				t.Errorf("%s page %d: pagination = %+v", sortBy, page, res.Pagination)
			}
			all = append(all, res.Resources...)
		}
		if len(all) != 12 {
			t.Fatalf("%s: collected %d, want 12", sortBy, len(all))
		}
		return all
	}

	up := collect("upvotes")
	if !sort.SliceIsSorted(up, func(i, j int) bool { return up[i].Upvotes > up[j].Upvotes }) {
		t.Error("upvotes sort not non-increasing across pages")
	}

	cm := collect("comments")
	if !sort.SliceIsSorted(cm, func(i, j int) bool { return len(cm[i].Comments) > len(cm[j].Comments) }) {
		t.Error("comments sort not non-increasing across pages")
	}

	rc := collect("recent")
	if !sort.SliceIsSorted(rc, func(i, j int) bool { return rc[i].CreatedAt.After(rc[j].CreatedAt) }) {
		t.Error("recent sort not non-increasing across pages")
	}
}
