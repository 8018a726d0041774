package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
)

// Share is one recipient's copy of a shared capsule.
type Share struct {
	ID        string
	CapsuleID string
	UserID    string
	Status    capsule.ShareStatus
	UpdatedAt int64
}

// Listing is a capsule as it appears in a user's collection.
type Listing struct {
	ID          string
	OwnerID     string
	OwnerName   string
	Title       string
	OpeningTime time.Time
	Privacy     capsule.Privacy
	Design      string
	CreatedAt   int64

	// Status is the viewer's answer when the capsule was shared with them;
	// empty for capsules the viewer owns.
	Status capsule.ShareStatus
}

// SharedCapsule is a capsule offered to a recipient.
type SharedCapsule struct {
	ShareID   string
	CapsuleID string
	Title     string
	Vision    string
	SharedBy  string
	Status    capsule.ShareStatus
}

// ShareID derives the id of the share at position of a capsule.
func ShareID(capsuleID string, position int) string {
	return capsuleID + "-" + strconv.Itoa(position)
}

// ListCapsulesFor returns the capsules userID owns or was offered, soonest
// opening first. Declined shares are included; callers filter by Status.
func ListCapsulesFor(ctx context.Context, db *sql.DB, userID string) ([]Listing, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.owner_id, u.name, c.title, c.opening_at, c.privacy, c.design,
		       c.created_at, COALESCE(s.status, '')
		FROM capsules c
		JOIN users u ON u.id = c.owner_id
		LEFT JOIN capsule_shares s ON s.capsule_id = c.id AND s.user_id = ?
		WHERE c.owner_id = ? OR s.user_id IS NOT NULL
		ORDER BY c.opening_at, c.id
	`, userID, userID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var (
			l         Listing
			openingAt int64
			privacy   string
			status    string
		)
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.OwnerName, &l.Title, &openingAt,
			&privacy, &l.Design, &l.CreatedAt, &status); err != nil {
			return nil, errors.NewInternal(err)
		}
		l.OpeningTime = time.UnixMilli(openingAt).UTC()
		l.Privacy = capsule.Privacy(privacy)
		if l.OwnerID != userID {
			l.Status = capsule.ShareStatus(status)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ListPendingShares returns the shares userID has not answered yet, newest first.
func ListPendingShares(ctx context.Context, db *sql.DB, userID string) ([]SharedCapsule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, c.id, c.title, c.vision, u.name, s.status
		FROM capsule_shares s
		JOIN capsules c ON c.id = s.capsule_id
		JOIN users u ON u.id = c.owner_id
		WHERE s.user_id = ? AND s.status = ?
		ORDER BY c.created_at DESC, s.id
	`, userID, string(capsule.SharePending))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []SharedCapsule
	for rows.Next() {
		var (
			sc     SharedCapsule
			status string
		)
		if err := rows.Scan(&sc.ShareID, &sc.CapsuleID, &sc.Title, &sc.Vision, &sc.SharedBy, &status); err != nil {
			return nil, errors.NewInternal(err)
		}
		sc.Status = capsule.ShareStatus(status)
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// GetShare loads a share by id.
func GetShare(ctx context.Context, db *sql.DB, id string) (*Share, error) {
	var (
		s      Share
		status string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, capsule_id, user_id, status, updated_at
		FROM capsule_shares WHERE id = ?
	`, id).Scan(&s.ID, &s.CapsuleID, &s.UserID, &status, &s.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(id)
		}
		return nil, errors.NewInternal(err)
	}
	s.Status = capsule.ShareStatus(status)
	return &s, nil
}

// GetShareFor loads the share of capsuleID offered to userID.
func GetShareFor(ctx context.Context, db *sql.DB, capsuleID, userID string) (*Share, error) {
	var id string
	err := db.QueryRowContext(ctx, `
		SELECT id FROM capsule_shares WHERE capsule_id = ? AND user_id = ?
	`, capsuleID, userID).Scan(&id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(capsuleID)
		}
		return nil, errors.NewInternal(err)
	}
	return GetShare(ctx, db, id)
}

// SetShareStatus records a recipient's answer. Unknown shares return NOT_FOUND.
func SetShareStatus(ctx context.Context, db *sql.DB, id string, status capsule.ShareStatus, updatedAt int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE capsule_shares SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), updatedAt, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// AppendImages adds images contributed by addedBy after the capsule's
// existing ones, in one transaction.
func AppendImages(ctx context.Context, db *sql.DB, capsuleID, addedBy string, images []capsule.Image) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0) FROM capsule_images WHERE capsule_id = ?
	`, capsuleID).Scan(&next); err != nil {
		return errors.NewInternal(err)
	}

	for i, img := range images {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO capsule_images (capsule_id, position, file_name, media_type, data, caption, added_by)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, capsuleID, next+i, img.Name, img.MediaType, img.Data, img.Caption, addedBy)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
