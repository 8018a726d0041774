package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.CapsuleError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// User is an account of the development server.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    int64
}

// Capsule is a stored capsule with its images and recipients.
type Capsule struct {
	ID        string
	OwnerID   string
	CreatedAt int64
	Draft     capsule.Draft
}

// InsertUser stores a new user. Emails are unique.
func InsertUser(db *sql.DB, u *User) error {
	_, err := db.Exec(`
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.Name, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetUserByEmail looks a user up by email (case-insensitive).
func GetUserByEmail(db *sql.DB, email string) (*User, error) {
	row := db.QueryRow(`
		SELECT id, email, name, password_hash, created_at
		FROM users WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row, email)
}

// GetUserByID looks a user up by id.
func GetUserByID(db *sql.DB, id string) (*User, error) {
	row := db.QueryRow(`
		SELECT id, email, name, password_hash, created_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row, id)
}

// ListUsersExcept returns every user other than id, ordered by name.
func ListUsersExcept(db *sql.DB, id string) ([]User, error) {
	rows, err := db.Query(`
		SELECT id, email, name, password_hash, created_at
		FROM users WHERE id != ?
		ORDER BY name, id
	`, id)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return users, nil
}

// InsertToken records an access token for userID.
func InsertToken(db *sql.DB, token, userID string, createdAt int64) error {
	_, err := db.Exec(`INSERT INTO tokens (token, user_id, created_at) VALUES (?, ?, ?)`, token, userID, createdAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// UserForToken resolves an access token to its user.
// Unknown tokens return NOT_FOUND.
func UserForToken(db *sql.DB, token string) (*User, error) {
	row := db.QueryRow(`
		SELECT u.id, u.email, u.name, u.password_hash, u.created_at
		FROM tokens t JOIN users u ON u.id = t.user_id
		WHERE t.token = ?
	`, token)
	return scanUser(row, "token")
}

// InsertCapsule stores a capsule, its images in order and its recipients in
// one transaction. Nothing is stored if any row fails.
func InsertCapsule(ctx context.Context, db *sql.DB, c *Capsule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	d := c.Draft
	_, err = tx.ExecContext(ctx, `
		INSERT INTO capsules (
			id, owner_id, title, description, opening_at,
			vision, privacy, design, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.OwnerID, d.Title, d.Description, d.OpeningTime.UnixMilli(),
		d.Vision, string(d.Privacy), d.Design, c.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	for i, img := range d.Images {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO capsule_images (capsule_id, position, file_name, media_type, data, caption)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, i, img.Name, img.MediaType, img.Data, img.Caption)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	for i, userID := range d.SharedWith {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO capsule_shares (id, capsule_id, position, user_id, status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, ShareID(c.ID, i), c.ID, i, userID, string(capsule.SharePending), c.CreatedAt)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrUniqueConstraint
			}
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetCapsule loads a capsule with its images and recipients.
func GetCapsule(ctx context.Context, db *sql.DB, id string) (*Capsule, error) {
	var (
		c         Capsule
		openingAt int64
		privacy   string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, opening_at, vision, privacy, design, created_at
		FROM capsules WHERE id = ?
	`, id).Scan(&c.ID, &c.OwnerID, &c.Draft.Title, &c.Draft.Description, &openingAt,
		&c.Draft.Vision, &privacy, &c.Draft.Design, &c.CreatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(id)
		}
		return nil, errors.NewInternal(err)
	}
	c.Draft.OpeningTime = time.UnixMilli(openingAt).UTC()
	c.Draft.Privacy = capsule.Privacy(privacy)

	rows, err := db.QueryContext(ctx, `
		SELECT file_name, media_type, data, caption
		FROM capsule_images WHERE capsule_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	for rows.Next() {
		var img capsule.Image
		if err := rows.Scan(&img.Name, &img.MediaType, &img.Data, &img.Caption); err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		c.Draft.Images = append(c.Draft.Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err = db.QueryContext(ctx, `
		SELECT user_id FROM capsule_shares WHERE capsule_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, errors.NewInternal(err)
		}
		c.Draft.SharedWith = append(c.Draft.SharedWith, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &c, nil
}

// CountCapsules returns the number of capsules owned by ownerID.
func CountCapsules(db *sql.DB, ownerID string) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM capsules WHERE owner_id = ?`, ownerID).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanUser(row *sql.Row, identifier string) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(identifier)
		}
		return nil, errors.NewInternal(err)
	}
	return &u, nil
}
