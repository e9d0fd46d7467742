package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Resource is an uploaded study document (PDF, slides, notes) owned by a user.
//
// NOTE:
//   - Upvotes always equals len(UpvotedBy); the store recomputes it from the set.
//   - CommentCount mirrors len(Comments) and is maintained by AddComment.
type Resource struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Subject     string             `bson:"subject" json:"subject"`
	Department  string             `bson:"department" json:"department"`
	Semester    int                `bson:"semester" json:"semester"`
	Teacher     string             `bson:"teacher,omitempty" json:"teacher,omitempty"`
	Tags        []string           `bson:"tags" json:"tags"`

	FileURL  string `bson:"file_url" json:"fileUrl"`
	FileKey  string `bson:"file_key,omitempty" json:"-"`
	FileName string `bson:"file_name,omitempty" json:"fileName,omitempty"`
	FileSize int64  `bson:"file_size,omitempty" json:"fileSize,omitempty"`
	FileType string `bson:"file_type" json:"fileType"`

	UploadedBy primitive.ObjectID `bson:"uploaded_by" json:"uploadedBy"`

	Upvotes   int                  `bson:"upvotes" json:"upvotes"`
	UpvotedBy []primitive.ObjectID `bson:"upvoted_by" json:"upvotedBy"`

	Comments     []Comment `bson:"comments" json:"comments"`
	CommentCount int       `bson:"comment_count" json:"commentCount"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Comment is one entry in a resource's append-only discussion.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// ResourceWithOwner is a Resource with its owner's public fields populated.
// Owner shadows the embedded UploadedBy id in JSON output.
type ResourceWithOwner struct {
	Resource `bson:",inline"`
	Owner    *UserPublic `bson:"-" json:"uploadedBy"`
}

// CommentWithAuthor is a Comment with its author's public fields populated.
type CommentWithAuthor struct {
	ID        primitive.ObjectID `json:"id"`
	User      *UserPublic        `json:"user"`
	Text      string             `json:"text"`
	CreatedAt time.Time          `json:"createdAt"`
}

// ResourceDetail is the single-resource view: owner and comment authors populated.
type ResourceDetail struct {
	ResourceWithOwner
	Comments []CommentWithAuthor `json:"comments"`
}
