package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, id, email, name string) *User {
	t.Helper()
	u := &User{ID: id, Email: email, Name: name, PasswordHash: "hash", CreatedAt: 1000}
	if err := InsertUser(db, u); err != nil {
		t.Fatalf("InsertUser(%s) failed: %v", id, err)
	}
	return u
}

func TestInsertUser_UniqueEmail(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "U1", "ann@example.com", "Ann")

	err := InsertUser(db, &User{ID: "U2", Email: " ANN@example.com", Name: "Other", PasswordHash: "h", CreatedAt: 1})
	if err != ErrUniqueConstraint {
		t.Fatalf("expected ErrUniqueConstraint, got %v", err)
	}
}

func TestGetUser(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "U1", "Ann@Example.com", "Ann")

	u, err := GetUserByEmail(db, "ann@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if u.ID != "U1" || u.Email != "ann@example.com" {
		t.Errorf("user = %+v", u)
	}

	if _, err := GetUserByID(db, "U1"); err != nil {
		t.Errorf("GetUserByID failed: %v", err)
	}
	if _, err := GetUserByID(db, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
	if _, err := GetUserByEmail(db, "nobody@example.com"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestListUsersExcept(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "U1", "ann@example.com", "Ann")
	seedUser(t, db, "U2", "cy@example.com", "Cy")
	seedUser(t, db, "U3", "bob@example.com", "Bob")

	users, err := ListUsersExcept(db, "U1")
	if err != nil {
		t.Fatalf("ListUsersExcept failed: %v", err)
	}
	if len(users) != 2 || users[0].Name != "Bob" || users[1].Name != "Cy" {
		t.Errorf("users = %+v", users)
	}
}

func TestTokens(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "U1", "ann@example.com", "Ann")

	if err := InsertToken(db, "tok", "U1", 1); err != nil {
		t.Fatalf("InsertToken failed: %v", err)
	}
	if err := InsertToken(db, "tok", "U1", 2); err != ErrUniqueConstraint {
		t.Errorf("duplicate token: got %v", err)
	}

	u, err := UserForToken(db, "tok")
	if err != nil {
		t.Fatalf("UserForToken failed: %v", err)
	}
	if u.ID != "U1" {
		t.Errorf("UserForToken = %s, want U1", u.ID)
	}
	if _, err := UserForToken(db, "bogus"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func testCapsule() *Capsule {
	return &Capsule{
		ID:        "01CAPSULE",
		OwnerID:   "U1",
		CreatedAt: 2000,
		Draft: capsule.Draft{
			Title:       "Trip",
			Description: "Lake",
			OpeningTime: time.Date(2030, 1, 2, 3, 4, 5, 6_000_000, time.UTC),
			Vision:      "**bold**",
			Privacy:     capsule.PrivacyFriends,
			Design:      "vault",
			Images: []capsule.Image{
				{Name: "a.png", MediaType: "image/png", Data: []byte{1, 2}, Caption: "first"},
				{Name: "b.gif", MediaType: "image/gif", Data: []byte{3}},
			},
			SharedWith: []string{"U3", "U2"},
		},
	}
}

func TestInsertCapsule_RoundTrip(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "U1", "ann@example.com", "Ann")
	seedUser(t, db, "U2", "bob@example.com", "Bob")
	seedUser(t, db, "U3", "cy@example.com", "Cy")

	c := testCapsule()
	if err := InsertCapsule(context.Background(), db, c); err != nil {
		t.Fatalf("InsertCapsule failed: %v", err)
	}

	got, err := GetCapsule(context.Background(), db, c.ID)
	if err != nil {
		t.Fatalf("GetCapsule failed: %v", err)
	}
	if got.Draft.Title != "Trip" || got.Draft.Privacy != capsule.PrivacyFriends || got.Draft.Design != "vault" {
		t.Errorf("scalars = %+v", got.Draft)
	}
	if !got.Draft.OpeningTime.Equal(c.Draft.OpeningTime) {
		t.Errorf("OpeningTime = %v, want %v", got.Draft.OpeningTime, c.Draft.OpeningTime)
	}
	if len(got.Draft.Images) != 2 || got.Draft.Images[0].Caption != "first" || got.Draft.Images[1].Name != "b.gif" {
		t.Errorf("Images = %+v", got.Draft.Images)
	}
	if len(got.Draft.SharedWith) != 2 || got.Draft.SharedWith[0] != "U3" || got.Draft.SharedWith[1] != "U2" {
		t.Errorf("SharedWith = %v, want [U3 U2]", got.Draft.SharedWith)
	}

	n, err := CountCapsules(db, "U1")
	if err != nil || n != 1 {
		t.Errorf("CountCapsules = %d, %v", n, err)
	}
}

func TestInsertCapsule_RollsBackOnFailure(t *testing.T) {
	db := setupDB(t)
	seedUser(t, db, "U1", "ann@example.com", "Ann")

	// U2 and U3 do not exist, so the share rows violate the foreign key.
	c := testCapsule()
	if err := InsertCapsule(context.Background(), db, c); err == nil {
		t.Fatal("expected error for unknown recipients")
	}

	if _, err := GetCapsule(context.Background(), db, c.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("capsule should not exist after rollback, got %v", err)
	}
	var images int
	if err := db.QueryRow("SELECT COUNT(*) FROM capsule_images").Scan(&images); err != nil {
		t.Fatalf("count images: %v", err)
	}
	if images != 0 {
		t.Errorf("capsule_images rows = %d, want 0", images)
	}
}

func TestGetCapsule_NotFound(t *testing.T) {
	db := setupDB(t)
	if _, err := GetCapsule(context.Background(), db, "nope"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
