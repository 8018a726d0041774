package api

import (
	"context"
	"net/http"
	"slices"
)

// ListFriends returns accepted friends only. Results are cached per token.
func (c *Client) ListFriends(ctx context.Context) ([]Friend, error) {
	key := "friends:" + c.token
	if cached, ok := c.cache.Get(key); ok {
		return slices.Clone(cached.([]Friend)), nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/api/friends", nil, "")
	if err != nil {
		return nil, err
	}

	var all []Friend
	if err := c.do(req, &all); err != nil {
		return nil, err
	}

	friends := make([]Friend, 0, len(all))
	for _, f := range all {
		if f.IsFriend {
			friends = append(friends, f)
		}
	}

	c.cache.SetDefault(key, friends)
	return slices.Clone(friends), nil
}

// ForgetFriends drops the cached friends list.
func (c *Client) ForgetFriends() {
	c.cache.Delete("friends:" + c.token)
}
