package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
)

func seedShared(t *testing.T, db *sql.DB) *Capsule {
	t.Helper()
	seedUser(t, db, "U1", "ann@example.com", "Ann")
	seedUser(t, db, "U2", "bob@example.com", "Bob")
	seedUser(t, db, "U3", "cy@example.com", "Cy")
	c := testCapsule()
	if err := InsertCapsule(context.Background(), db, c); err != nil {
		t.Fatalf("InsertCapsule failed: %v", err)
	}
	return c
}

func TestInsertCapsule_SharesStartPending(t *testing.T) {
	db := setupDB(t)
	c := seedShared(t, db)

	s, err := GetShare(context.Background(), db, ShareID(c.ID, 0))
	if err != nil {
		t.Fatalf("GetShare failed: %v", err)
	}
	if s.UserID != "U3" || s.CapsuleID != c.ID || s.Status != capsule.SharePending {
		t.Errorf("share = %+v", s)
	}

	byUser, err := GetShareFor(context.Background(), db, c.ID, "U2")
	if err != nil {
		t.Fatalf("GetShareFor failed: %v", err)
	}
	if byUser.ID != ShareID(c.ID, 1) {
		t.Errorf("GetShareFor id = %s, want %s", byUser.ID, ShareID(c.ID, 1))
	}
	if _, err := GetShareFor(context.Background(), db, c.ID, "U1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("owner has no share, got %v", err)
	}
}

func TestListCapsulesFor(t *testing.T) {
	db := setupDB(t)
	c := seedShared(t, db)

	owned, err := ListCapsulesFor(context.Background(), db, "U1")
	if err != nil {
		t.Fatalf("ListCapsulesFor(owner) failed: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != c.ID || owned[0].Status != "" || owned[0].OwnerName != "Ann" {
		t.Errorf("owner listing = %+v", owned)
	}
	if !owned[0].OpeningTime.Equal(c.Draft.OpeningTime) {
		t.Errorf("OpeningTime = %v, want %v", owned[0].OpeningTime, c.Draft.OpeningTime)
	}

	shared, err := ListCapsulesFor(context.Background(), db, "U2")
	if err != nil {
		t.Fatalf("ListCapsulesFor(recipient) failed: %v", err)
	}
	if len(shared) != 1 || shared[0].Status != capsule.SharePending {
		t.Errorf("recipient listing = %+v", shared)
	}

	seedUser(t, db, "U4", "dee@example.com", "Dee")
	none, err := ListCapsulesFor(context.Background(), db, "U4")
	if err != nil {
		t.Fatalf("ListCapsulesFor(stranger) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("stranger listing = %+v", none)
	}
}

func TestSetShareStatus(t *testing.T) {
	db := setupDB(t)
	c := seedShared(t, db)
	ctx := context.Background()

	pending, err := ListPendingShares(ctx, db, "U2")
	if err != nil {
		t.Fatalf("ListPendingShares failed: %v", err)
	}
	if len(pending) != 1 || pending[0].SharedBy != "Ann" || pending[0].Vision != "**bold**" {
		t.Fatalf("pending = %+v", pending)
	}

	if err := SetShareStatus(ctx, db, pending[0].ShareID, capsule.ShareDeclined, 3000); err != nil {
		t.Fatalf("SetShareStatus failed: %v", err)
	}
	pending, err = ListPendingShares(ctx, db, "U2")
	if err != nil {
		t.Fatalf("ListPendingShares failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("declined share still pending: %+v", pending)
	}

	s, err := GetShare(ctx, db, ShareID(c.ID, 1))
	if err != nil {
		t.Fatalf("GetShare failed: %v", err)
	}
	if s.Status != capsule.ShareDeclined || s.UpdatedAt != 3000 {
		t.Errorf("share = %+v", s)
	}

	if err := SetShareStatus(ctx, db, "missing", capsule.ShareAccepted, 1); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestAppendImages(t *testing.T) {
	db := setupDB(t)
	c := seedShared(t, db)
	ctx := context.Background()

	added := []capsule.Image{{Name: "c.png", MediaType: "image/png", Data: []byte{7}, Caption: "from bob"}}
	if err := AppendImages(ctx, db, c.ID, "U2", added); err != nil {
		t.Fatalf("AppendImages failed: %v", err)
	}

	got, err := GetCapsule(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("GetCapsule failed: %v", err)
	}
	if len(got.Draft.Images) != 3 || got.Draft.Images[2].Caption != "from bob" {
		t.Errorf("Images = %+v", got.Draft.Images)
	}

	var addedBy string
	if err := db.QueryRow(`SELECT added_by FROM capsule_images WHERE capsule_id = ? AND position = 2`, c.ID).Scan(&addedBy); err != nil {
		t.Fatalf("read added_by: %v", err)
	}
	if addedBy != "U2" {
		t.Errorf("added_by = %q, want U2", addedBy)
	}
}

func TestMigrate_BackfillsShareIDs(t *testing.T) {
	dir := t.TempDir()

	// Build a version 1 database by hand.
	raw, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stmts := []string{
		schemaV1,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES ('U1', 'a@x', 'Ann', 'h', 1), ('U2', 'b@x', 'Bob', 'h', 1)`,
		`INSERT INTO capsules VALUES ('C1', 'U1', 't', 'd', 5000, 'v', 'friends', 'vault', 1)`,
		`INSERT INTO capsule_shares (capsule_id, position, user_id) VALUES ('C1', 0, 'U2')`,
		`PRAGMA user_version=1`,
	}
	for _, stmt := range stmts {
		if _, err := raw.Exec(stmt); err != nil {
			raw.Close()
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	raw.Close()

	db, err := Init(dir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	s, err := GetShare(context.Background(), db, ShareID("C1", 0))
	if err != nil {
		t.Fatalf("GetShare after migration failed: %v", err)
	}
	if s.UserID != "U2" || s.Status != capsule.SharePending {
		t.Errorf("migrated share = %+v", s)
	}
}
