package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CreateRequest is the create-capsule payload.
type CreateRequest struct {
	Title       string
	Description string
	OpeningTime time.Time
	Vision      string
	Privacy     string
	Design      string
	Images      []ImagePart
	SharedWith  []string

	// RequestID is sent as X-Request-Id; generated when empty
	RequestID string
}

// ImagePart is one uploaded file with the caption that belongs to it.
type ImagePart struct {
	FileName  string
	MediaType string
	Data      []byte
	Caption   string
}

// Created identifies a newly created capsule.
type Created struct {
	ID ID `json:"id"`
}

// ID is a resource identifier that the server may encode as a JSON string or number.
type ID string

// UnmarshalJSON accepts both "abc" and 42.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Friend is an accepted friend who can receive a shared capsule.
type Friend struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	IsFriend bool   `json:"is_friend"`
}

// User is the account returned by login.
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is the result of a successful login.
type Session struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// FieldErrors is a structured validation rejection (HTTP 422).
// Fields maps a server field name to one or more messages.
type FieldErrors struct {
	Status  int                 `json:"-"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"errors"`
}

// Error implements the error interface.
func (e *FieldErrors) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed (%d): %s", e.Status, strings.Join(names, ", "))
}

// StatusError is any other non-success response.
type StatusError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Status)
	}
	return fmt.Sprintf("unexpected status code: %d: %s", e.Status, e.Message)
}
