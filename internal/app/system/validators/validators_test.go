package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/studyshare/internal/app/system/validators"
	"github.com/dalemusser/studyshare/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}

	for _, expected := range []string{"users", "resources", "password_resets", "audit_events"} {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func validUser() bson.M {
	return bson.M{
		"name":          "Ada Lovelace",
		"email":         "ada@uni.edu",
		"password_hash": "$2a$10$abcdefghijklmnopqrstuv",
		"role":          "student",
		"department":    "Computer Science",
		"semester":      3,
	}
}

func validResource() bson.M {
	return bson.M{
		"title":       "Graph Theory Notes",
		"subject":     "Discrete Math",
		"department":  "Computer Science",
		"semester":    3,
		"tags":        bson.A{"graphs"},
		"file_url":    "https://cdn.example.com/resources/a.pdf",
		"file_type":   "pdf",
		"uploaded_by": primitive.NewObjectID(),
		"upvotes":     0,
		"upvoted_by":  bson.A{},
		"comments":    bson.A{},
	}
}

func TestUsersValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(bson.M)
		wantErr bool
	}{
		{name: "valid", mutate: func(bson.M) {}},
		{name: "missing email", mutate: func(d bson.M) { delete(d, "email") }, wantErr: true},
		{name: "bad role", mutate: func(d bson.M) { d["role"] = "teacher" }, wantErr: true},
		{name: "semester too high", mutate: func(d bson.M) { d["semester"] = 9 }, wantErr: true},
		{name: "blank name", mutate: func(d bson.M) { d["name"] = "   " }, wantErr: true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validUser()
			doc["email"] = primitive.NewObjectID().Hex() + "@uni.edu"
			tt.mutate(doc)
			_, err := db.Collection("users").InsertOne(ctx, doc)
			if tt.wantErr && err == nil {
				t.Errorf("case %d: expected validation error", i)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("case %d: insert failed: %v", i, err)
			}
		})
	}
}

func TestResourcesValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(bson.M)
		wantErr bool
	}{
		{name: "valid", mutate: func(bson.M) {}},
		{name: "unknown file type", mutate: func(d bson.M) { d["file_type"] = "exe" }, wantErr: true},
		{name: "negative upvotes", mutate: func(d bson.M) { d["upvotes"] = -1 }, wantErr: true},
		{name: "missing uploader", mutate: func(d bson.M) { delete(d, "uploaded_by") }, wantErr: true},
		{
			name: "comment without text",
			mutate: func(d bson.M) {
				d["comments"] = bson.A{bson.M{"user_id": primitive.NewObjectID(), "text": "", "created_at": time.Now()}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validResource()
			tt.mutate(doc)
			_, err := db.Collection("resources").InsertOne(ctx, doc)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("insert failed: %v", err)
			}
		})
	}
}
