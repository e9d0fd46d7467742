// Package resourcesearch turns search query parameters into a filtered,
// sorted and paginated page of resources with their owners populated.
package resourcesearch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	resourcestore "github.com/dalemusser/studyshare/internal/app/store/resources"
	"github.com/dalemusser/studyshare/internal/app/system/normalize"
	"github.com/dalemusser/studyshare/internal/app/system/paging"
	"github.com/dalemusser/studyshare/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sort modes.
const (
	SortRecent   = "recent"
	SortUpvotes  = "upvotes"
	SortComments = "comments"
)

// ErrDataUnavailable wraps any store failure during a search.
var ErrDataUnavailable = errors.New("resource data unavailable")

// Params are the parsed search inputs. Empty strings, a nil Semester and
// nil Tags mean "no constraint".
type Params struct {
	SearchText string
	Subject    string
	Department string
	Teacher    string
	FileType   string
	Semester   *int
	UploadedBy string
	Tags       []string
	SortBy     string
	Page       int
	Limit      int
}

// ParseParams reads search parameters from a query string with best-effort
// coercion: bad page/limit fall back to defaults, a non-numeric semester is
// ignored and an unknown sortBy becomes "recent".
func ParseParams(q url.Values) Params {
	p := Params{
		SearchText: normalize.QueryParam(q.Get("searchText")),
		Subject:    normalize.QueryParam(q.Get("subject")),
		Department: normalize.QueryParam(q.Get("department")),
		Teacher:    normalize.QueryParam(q.Get("teacher")),
		FileType:   normalize.QueryParam(q.Get("fileType")),
		UploadedBy: normalize.QueryParam(q.Get("uploadedBy")),
		Tags:       normalize.Tags(append(q["tags"], q["tags[]"]...)),
		SortBy:     normalize.QueryParam(q.Get("sortBy")),
		Page:       paging.ParsePage(q.Get("page")),
		Limit:      paging.ParseLimit(q.Get("limit")),
	}
	if s := normalize.QueryParam(q.Get("semester")); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			p.Semester = &n
		}
	}
	switch p.SortBy {
	case SortRecent, SortUpvotes, SortComments:
	default:
		p.SortBy = SortRecent
	}
	return p
}

// contains is a case-insensitive substring match on literal text.
func contains(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// BuildFilter ANDs every supplied constraint. Each key is a distinct field so
// a single document expresses the conjunction.
func BuildFilter(p Params) bson.M {
	f := bson.M{}
	if p.SearchText != "" {
		rx := contains(p.SearchText)
		f["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
			bson.M{"subject": rx},
			bson.M{"teacher": rx},
		}
	}
	if p.Subject != "" {
		f["subject"] = contains(p.Subject)
	}
	if p.Department != "" {
		f["department"] = contains(p.Department)
	}
	if p.Teacher != "" {
		f["teacher"] = contains(p.Teacher)
	}
	if p.FileType != "" {
		f["file_type"] = contains(p.FileType)
	}
	if p.Semester != nil {
		f["semester"] = *p.Semester
	}
	if p.UploadedBy != "" {
		// A malformed id stays a string and so matches no ObjectID owner.
		if oid, err := primitive.ObjectIDFromHex(p.UploadedBy); err == nil {
			f["uploaded_by"] = oid
		} else {
			f["uploaded_by"] = p.UploadedBy
		}
	}
	if len(p.Tags) > 0 {
		f["tags"] = bson.M{"$in": p.Tags}
	}
	return f
}

// Pagination is the page metadata returned with every search.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// Result is one page of matches.
type Result struct {
	Resources  []models.ResourceWithOwner `json:"resources"`
	Pagination Pagination                 `json:"pagination"`
}

// ResourceFinder is the read side of the resources store.
type ResourceFinder interface {
	Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Resource, error)
	Count(ctx context.Context, filter bson.M) (int64, error)
}

// OwnerLoader batch-loads public user projections.
type OwnerLoader interface {
	PublicByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserPublic, error)
}

// Searcher runs searches against the resources and users stores.
type Searcher struct {
	resources ResourceFinder
	owners    OwnerLoader
}

// New returns a Searcher.
func New(resources ResourceFinder, owners OwnerLoader) *Searcher {
	return &Searcher{resources: resources, owners: owners}
}

// Search returns the requested page. Any store failure yields
// ErrDataUnavailable and no partial result.
func (s *Searcher) Search(ctx context.Context, p Params) (Result, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = paging.DefaultLimit
	}
	filter := BuildFilter(p)

	total, err := s.resources.Count(ctx, filter)
	if err != nil {
		return Result{}, unavailable("count", err)
	}
	w := paging.NewWindow(total, p.Page, p.Limit)

	var rows []models.Resource
	switch {
	case w.Beyond():
		// Past the last page: nothing to fetch.
	case p.SortBy == SortComments:
		// comment_count orders the match set in the database; the stable
		// re-sort on the embedded comments only corrects a drifted counter.
		all, err := s.resources.Find(ctx, filter, options.Find().SetSort(sortFor(p.SortBy)))
		if err != nil {
			return Result{}, unavailable("find", err)
		}
		SortByComments(all)
		rows = paging.Slice(all, w)
	default:
		opts := options.Find().
			SetSort(sortFor(p.SortBy)).
			SetSkip(w.Skip).
			SetLimit(int64(w.Limit))
		rows, err = s.resources.Find(ctx, filter, opts)
		if err != nil {
			return Result{}, unavailable("find", err)
		}
	}

	out, err := s.withOwners(ctx, rows)
	if err != nil {
		return Result{}, unavailable("owners", err)
	}
	return Result{
		Resources: out,
		Pagination: Pagination{
			Total: w.Total,
			Page:  w.Page,
			Limit: w.Limit,
			Pages: w.Pages,
		},
	}, nil
}

func sortFor(mode string) bson.D {
	switch mode {
	case SortUpvotes:
		return bson.D{
			{Key: "upvotes", Value: -1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}
	case SortComments:
		return bson.D{
			{Key: "comment_count", Value: -1},
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}
	}
	return resourcestore.NewestFirst
}

// SortByComments orders rows by comment count, most first. Ties keep their
// incoming order.
func SortByComments(rows []models.Resource) {
	sort.SliceStable(rows, func(i, j int) bool {
		return len(rows[i].Comments) > len(rows[j].Comments)
	})
}

func (s *Searcher) withOwners(ctx context.Context, rows []models.Resource) ([]models.ResourceWithOwner, error) {
	return WithOwners(ctx, s.owners, rows)
}

// WithOwners attaches each row's owner with one batched lookup. Rows whose
// owner no longer exists get a nil Owner.
func WithOwners(ctx context.Context, owners OwnerLoader, rows []models.Resource) ([]models.ResourceWithOwner, error) {
	out := make([]models.ResourceWithOwner, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	seen := make(map[primitive.ObjectID]bool, len(rows))
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		if !seen[r.UploadedBy] {
			seen[r.UploadedBy] = true
			ids = append(ids, r.UploadedBy)
		}
	}
	byID, err := owners.PublicByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i, r := range rows {
		out[i].Resource = r
		if o, ok := byID[r.UploadedBy]; ok {
			out[i].Owner = &o
		}
	}
	return out, nil
}

func unavailable(step string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, step, err)
}
