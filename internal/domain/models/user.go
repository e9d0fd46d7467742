// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can hold.
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User is a StudyShare account.
//
// NOTE:
//   - Email is stored normalized (trimmed, lowercase) and is unique.
//   - PasswordHash is a bcrypt hash and never leaves the store layer in JSON.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	NameCI       string               `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string               `bson:"email" json:"email"`
	PasswordHash string               `bson:"password_hash" json:"-"`
	Role         string               `bson:"role" json:"role"` // student | admin
	Department   string               `bson:"department" json:"department"`
	Semester     int                  `bson:"semester" json:"semester"`
	MyUploads    []primitive.ObjectID `bson:"my_uploads" json:"myUploads"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// UserPublic is the owner/author projection attached to resources and comments.
type UserPublic struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	Name       string             `bson:"name" json:"name"`
	Email      string             `bson:"email" json:"email"`
	Department string             `bson:"department" json:"department,omitempty"`
}

// Profile is the shape returned by the /users/me endpoints and on login.
type Profile struct {
	ID         primitive.ObjectID `json:"id"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	Role       string             `json:"role"`
	Department string             `json:"department"`
	Semester   int                `json:"semester"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// Profile returns the public profile view of u.
func (u User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
		Semester:   u.Semester,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
