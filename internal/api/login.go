package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Login exchanges credentials for an access token.
// Missing fields come back as *FieldErrors, bad credentials as *StatusError (401).
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/login", bytes.NewReader(body), "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// Login never carries a stale token.
	req.Header.Del("Authorization")

	var s Session
	if err := c.do(req, &s); err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, fmt.Errorf("login response has no access token")
	}
	return &s, nil
}
