// internal/app/store/passwordreset/store.go
package passwordreset

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the length of the reset code (6 digits).
	CodeLength = 6
	// DefaultExpiry is how long a reset code is valid.
	DefaultExpiry = 15 * time.Minute
	// BcryptCost for hashing codes.
	BcryptCost = 10
	// MaxVerifyAttempts is the maximum number of verification attempts per code.
	MaxVerifyAttempts = 5
)

var (
	// ErrNotFound is returned when no unused, unexpired code exists for the email.
	ErrNotFound = errors.New("reset code not found or expired")
	// ErrInvalidCode is returned when the code doesn't match.
	ErrInvalidCode = errors.New("invalid reset code")
	// ErrTooManyAttempts is returned when the code has been guessed too often.
	ErrTooManyAttempts = errors.New("too many reset attempts")
)

// Reset is a pending password reset for one email address.
type Reset struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	CodeHash  string             `bson:"code_hash"`
	ExpiresAt time.Time          `bson:"expires_at"` // TTL index field
	Used      bool               `bson:"used"`
	Attempts  int                `bson:"attempts"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Store manages password reset records.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a Store. If expiry is 0 or negative, DefaultExpiry is used.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{
		c:      db.Collection("password_resets"),
		expiry: expiry,
	}
}

// Expiry returns the lifetime of new codes.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// Create replaces any earlier codes for email with a fresh one and returns
// the plain text code to send.
func (s *Store) Create(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	if _, err := s.c.DeleteMany(ctx, bson.M{"email": email}); err != nil {
		return "", fmt.Errorf("delete old codes: %w", err)
	}

	now := time.Now().UTC()
	r := Reset{
		ID:        primitive.NewObjectID(),
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return "", fmt.Errorf("insert reset: %w", err)
	}
	return code, nil
}

// Verify checks code for email and marks the record used on success.
// Every attempt, right or wrong, counts toward MaxVerifyAttempts.
func (s *Store) Verify(ctx context.Context, email, code string) error {
	var r Reset
	err := s.c.FindOne(ctx, bson.M{
		"email":      email,
		"used":       false,
		"expires_at": bson.M{"$gt": time.Now()},
	}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}

	if r.Attempts >= MaxVerifyAttempts {
		return ErrTooManyAttempts
	}
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": r.ID}, bson.M{"$inc": bson.M{"attempts": 1}}); err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(r.CodeHash), []byte(code)); err != nil {
		return ErrInvalidCode
	}

	// Conditional on used=false so two concurrent resets cannot both consume it.
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": r.ID, "used": false},
		bson.M{"$set": bson.M{"used": true}},
	)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByEmail removes all reset records for email.
func (s *Store) DeleteByEmail(ctx context.Context, email string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"email": email})
	return err
}

// generateCode returns a uniformly random 6-digit code (100000-999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
