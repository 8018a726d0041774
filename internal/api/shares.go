package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// Share statuses as sent on the wire.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// ErrNoImages is returned by AcceptShare when no image is given.
var ErrNoImages = errors.New("at least one image is required")

// CapsuleListing is a capsule in the caller's collection.
type CapsuleListing struct {
	ID          ID        `json:"id"`
	OwnerID     ID        `json:"user_id"`
	OwnerName   string    `json:"owner_name"`
	Title       string    `json:"title"`
	OpeningTime time.Time `json:"time"`
	Privacy     string    `json:"privacy"`
	Design      string    `json:"design"`
	IsOwner     bool      `json:"is_owner"`

	// Status is the caller's answer when the capsule was shared with them
	Status string `json:"status"`
}

// InCollection reports whether the capsule belongs in the caller's own
// list: capsules they own and shares they accepted.
func (l CapsuleListing) InCollection() bool {
	return l.IsOwner || l.Status == StatusAccepted
}

// SharedCapsule is a capsule offered to the caller.
type SharedCapsule struct {
	ShareID   ID     `json:"share_id"`
	CapsuleID ID     `json:"capsule_id"`
	Title     string `json:"title"`
	Vision    string `json:"vision"`
	SharedBy  string `json:"shared_by"`
	Status    string `json:"status"`
}

// ListCapsules returns every capsule the caller owns or was offered.
func (c *Client) ListCapsules(ctx context.Context) ([]CapsuleListing, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/capsules", nil, "")
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []CapsuleListing `json:"data"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListShared returns the shares waiting for the caller's answer.
func (c *Client) ListShared(ctx context.Context) ([]SharedCapsule, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/capsules/shared", nil, "")
	if err != nil {
		return nil, err
	}
	var out []SharedCapsule
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetShareStatus answers a share with one of the Status constants.
func (c *Client) SetShareStatus(ctx context.Context, share SharedCapsule, status string) error {
	body, err := json.Marshal(map[string]string{"status": status, "capsule_id": string(share.CapsuleID)})
	if err != nil {
		return fmt.Errorf("failed to encode share status: %w", err)
	}
	path := "/api/capsules/share/" + string(share.ShareID) + "/status"
	req, err := c.newRequest(ctx, http.MethodPut, path, bytes.NewReader(body), "")
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// DeclineShare declines a share.
func (c *Client) DeclineShare(ctx context.Context, share SharedCapsule) error {
	return c.SetShareStatus(ctx, share, StatusDeclined)
}

// AcceptShare accepts a share and uploads the caller's images to the
// capsule. When the upload fails the share is put back to pending so it can
// be answered again.
func (c *Client) AcceptShare(ctx context.Context, share SharedCapsule, images []ImagePart) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	if err := c.SetShareStatus(ctx, share, StatusAccepted); err != nil {
		return err
	}

	err := c.uploadShareImages(ctx, share, images)
	if err == nil {
		return nil
	}
	if resetErr := c.SetShareStatus(context.WithoutCancel(ctx), share, StatusPending); resetErr != nil {
		c.logger.Warn("failed to reset share after upload error", "share", share.ShareID, "error", resetErr)
	}
	return err
}

func (c *Client) uploadShareImages(ctx context.Context, share SharedCapsule, images []ImagePart) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("capsule_id", string(share.CapsuleID)); err != nil {
		return err
	}
	if err := writeImages(w, images); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	path := "/api/capsules/" + string(share.CapsuleID) + "/accept"
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, "")
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, nil)
}
