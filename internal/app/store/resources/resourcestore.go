// internal/app/store/resources/resourcestore.go
package resourcestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/studyshare/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no resource matches the id.
var ErrNotFound = errors.New("resource not found")

// NewestFirst is the default listing order.
var NewestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("resources")}
}

// Create inserts r with a fresh id, zeroed votes/comments and timestamps.
func (s *Store) Create(ctx context.Context, r models.Resource) (models.Resource, error) {
	now := time.Now().UTC()

	r.ID = primitive.NewObjectID()
	r.Title = strings.TrimSpace(r.Title)
	if r.Tags == nil {
		r.Tags = []string{}
	}
	r.Upvotes = 0
	r.UpvotedBy = []primitive.ObjectID{}
	r.Comments = []models.Comment{}
	r.CommentCount = 0
	r.CreatedAt = now
	r.UpdatedAt = now

	if r.Title == "" {
		return models.Resource{}, mongo.CommandError{Message: "title is required"}
	}
	if r.UploadedBy.IsZero() {
		return models.Resource{}, mongo.CommandError{Message: "uploaded_by is required"}
	}

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return models.Resource{}, err
	}
	return r, nil
}

// Update holds owner-editable metadata. Empty strings, a zero semester and a
// nil Tags slice keep the stored value.
type Update struct {
	Title       string
	Description string
	Subject     string
	Department  string
	Semester    int
	Teacher     string
	Tags        []string
}

// Update applies upd and returns the updated resource.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) (models.Resource, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	for field, v := range map[string]string{
		"title":       upd.Title,
		"description": upd.Description,
		"subject":     upd.Subject,
		"department":  upd.Department,
		"teacher":     upd.Teacher,
	} {
		if strings.TrimSpace(v) != "" {
			set[field] = v
		}
	}
	if upd.Semester > 0 {
		set["semester"] = upd.Semester
	}
	if upd.Tags != nil {
		set["tags"] = upd.Tags
	}

	var r models.Resource
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&r)
	if err != nil {
		return models.Resource{}, notFound(err)
	}
	return r, nil
}

// GetByID returns a resource by its ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Resource, error) {
	var r models.Resource
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return models.Resource{}, notFound(err)
	}
	return r, nil
}

// Delete removes a resource by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListAll returns every resource, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.Resource, error) {
	return s.Find(ctx, bson.M{}, options.Find().SetSort(NewestFirst))
}

// ListByOwner returns the resources uploaded by owner, newest first.
func (s *Store) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Resource, error) {
	return s.Find(ctx, bson.M{"uploaded_by": owner}, options.Find().SetSort(NewestFirst))
}

// Find returns resources matching the given filter with optional find options.
// The caller is responsible for building the filter and options (pagination, sorting, projection).
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Resource, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	resources := []models.Resource{}
	if err := cur.All(ctx, &resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// Count returns the number of resources matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// UpvoteResult is the state after a toggle.
type UpvoteResult struct {
	Upvotes    int  `json:"upvotes"`
	HasUpvoted bool `json:"hasUpvoted"`
}

// ToggleUpvote adds userID to upvoted_by if absent, removes it otherwise, and
// recomputes upvotes from the set size, all in one document update.
func (s *Store) ToggleUpvote(ctx context.Context, id, userID primitive.ObjectID) (UpvoteResult, error) {
	voters := bson.M{"$ifNull": bson.A{"$upvoted_by", bson.A{}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"upvoted_by": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{userID, voters}},
				bson.M{"$filter": bson.M{
					"input": voters,
					"cond":  bson.M{"$ne": bson.A{"$$this", userID}},
				}},
				bson.M{"$concatArrays": bson.A{voters, bson.A{userID}}},
			}},
			"updated_at": time.Now().UTC(),
		}}},
		{{Key: "$set", Value: bson.M{
			"upvotes": bson.M{"$size": "$upvoted_by"},
		}}},
	}

	var out struct {
		Upvotes   int                  `bson:"upvotes"`
		UpvotedBy []primitive.ObjectID `bson:"upvoted_by"`
	}
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		pipeline,
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"upvotes": 1, "upvoted_by": 1}),
	).Decode(&out)
	if err != nil {
		return UpvoteResult{}, notFound(err)
	}

	res := UpvoteResult{Upvotes: out.Upvotes}
	for _, v := range out.UpvotedBy {
		if v == userID {
			res.HasUpvoted = true
			break
		}
	}
	return res, nil
}

// AddComment appends a comment and bumps comment_count in one update.
func (s *Store) AddComment(ctx context.Context, id, userID primitive.ObjectID, text string) (models.Comment, error) {
	now := time.Now().UTC()
	c := models.Comment{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Text:      text,
		CreatedAt: now,
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"comments": c},
			"$inc":  bson.M{"comment_count": 1},
			"$set":  bson.M{"updated_at": now},
		},
	)
	if err != nil {
		return models.Comment{}, err
	}
	if res.MatchedCount == 0 {
		return models.Comment{}, ErrNotFound
	}
	return c, nil
}

// CommentAuthors returns the distinct author ids of r's comments in first-seen order.
func CommentAuthors(r models.Resource) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(r.Comments))
	ids := make([]primitive.ObjectID, 0, len(r.Comments))
	for _, c := range r.Comments {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			ids = append(ids, c.UserID)
		}
	}
	return ids
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
