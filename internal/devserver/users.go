package devserver

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/hpungsan/ecapsule/internal/db"
	"github.com/hpungsan/ecapsule/internal/errors"
)

// SeedUser creates an account with a bcrypt password hash. An existing
// account with the same email is returned unchanged.
func SeedUser(database *sql.DB, email, password, name string) (*db.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.NewInvalidRequest("email and password are required")
	}
	if existing, err := db.GetUserByEmail(database, email); err == nil {
		return existing, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("hash password: %w", err))
	}
	if name == "" {
		name = email
	}

	u := &db.User{
		ID:           newID(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().Unix(),
	}
	if err := db.InsertUser(database, u); err != nil {
		return nil, err
	}
	return db.GetUserByID(database, u.ID)
}

// ParseUserSpec splits an "email:password:name" flag value. Name is optional.
func ParseUserSpec(spec string) (email, password, name string, err error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
		return "", "", "", errors.NewInvalidRequest(fmt.Sprintf("user must be email:password[:name], got %q", spec))
	}
	if len(parts) == 3 {
		name = strings.TrimSpace(parts[2])
	}
	return strings.TrimSpace(parts[0]), parts[1], name, nil
}

// checkPassword reports whether password matches the stored bcrypt hash.
func checkPassword(u *db.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// newID returns a fresh ULID.
func newID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// newToken returns a random opaque access token.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
