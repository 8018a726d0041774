package devserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/db"
	"github.com/hpungsan/ecapsule/internal/errors"
)

// isoTimeLayout matches the opening time format the client sends.
const isoTimeLayout = "2006-01-02T15:04:05.000Z"

type listingJSON struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	OwnerName string `json:"owner_name"`
	Title     string `json:"title"`
	Time      string `json:"time"`
	Privacy   string `json:"privacy"`
	Design    string `json:"design"`
	IsOwner   bool   `json:"is_owner"`
	Status    string `json:"status,omitempty"`
}

// HandleListCapsules handles GET /api/capsules: every capsule the caller
// owns or was offered, with the caller's answer to each share.
func (h *Handlers) HandleListCapsules(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	listings, err := db.ListCapsulesFor(r.Context(), h.db, me.ID)
	if err != nil {
		renderAPIError(w, h.logger, err)
		return
	}
	out := make([]listingJSON, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingJSON{
			ID:        l.ID,
			UserID:    l.OwnerID,
			OwnerName: l.OwnerName,
			Title:     l.Title,
			Time:      l.OpeningTime.UTC().Format(isoTimeLayout),
			Privacy:   string(l.Privacy),
			Design:    l.Design,
			IsOwner:   l.OwnerID == me.ID,
			Status:    string(l.Status),
		})
	}
	renderJSON(w, http.StatusOK, map[string]any{"data": out})
}

type sharedJSON struct {
	ShareID   string `json:"share_id"`
	CapsuleID string `json:"capsule_id"`
	Title     string `json:"title"`
	Vision    string `json:"vision"`
	SharedBy  string `json:"shared_by"`
	Status    string `json:"status"`
}

// HandleListShared handles GET /api/capsules/shared: shares awaiting an answer.
func (h *Handlers) HandleListShared(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	shares, err := db.ListPendingShares(r.Context(), h.db, me.ID)
	if err != nil {
		renderAPIError(w, h.logger, err)
		return
	}
	out := make([]sharedJSON, 0, len(shares))
	for _, s := range shares {
		out = append(out, sharedJSON{
			ShareID:   s.ShareID,
			CapsuleID: s.CapsuleID,
			Title:     s.Title,
			Vision:    s.Vision,
			SharedBy:  s.SharedBy,
			Status:    string(s.Status),
		})
	}
	renderJSON(w, http.StatusOK, out)
}

type shareStatusRequest struct {
	Status    string `json:"status"`
	CapsuleID string `json:"capsule_id"`
}

// HandleShareStatus handles PUT /api/capsules/share/{id}/status. Only the
// recipient may answer; other callers see the share as missing.
func (h *Handlers) HandleShareStatus(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	id := r.PathValue("id")

	var req shareStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		renderAPIError(w, h.logger, errors.NewInvalidRequest("invalid JSON body"))
		return
	}

	s, err := db.GetShare(r.Context(), h.db, id)
	if err == nil && s.UserID != me.ID {
		err = errors.NewNotFound(id)
	}
	if err != nil {
		renderAPIError(w, h.logger, err)
		return
	}

	fields := map[string][]string{}
	status := capsule.ParseShareStatus(req.Status)
	if !status.Valid() {
		fields["status"] = []string{"The selected status is invalid."}
	}
	if req.CapsuleID != "" && strings.TrimSpace(req.CapsuleID) != s.CapsuleID {
		fields["capsule_id"] = []string{"The capsule_id does not match the share."}
	}
	if len(fields) > 0 {
		renderFieldErrors(w, fields)
		return
	}

	if err := db.SetShareStatus(r.Context(), h.db, s.ID, status, h.now().Unix()); err != nil {
		renderAPIError(w, h.logger, err)
		return
	}

	h.metrics.shareAnswered(status)
	h.logger.Info("share answered", "share", s.ID, "user", me.ID, "status", status)
	renderJSON(w, http.StatusOK, sharedJSON{ShareID: s.ID, CapsuleID: s.CapsuleID, Status: string(status)})
}

// HandleAccept handles POST /api/capsules/{id}/accept: a recipient who has
// accepted the share adds at least one image of their own.
func (h *Handlers) HandleAccept(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	capsuleID := r.PathValue("id")
	log := h.logger.With("request_id", r.Header.Get("X-Request-Id"), "user", me.ID)

	s, err := db.GetShareFor(r.Context(), h.db, capsuleID, me.ID)
	if err != nil {
		renderAPIError(w, h.logger, err)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		renderAPIError(w, h.logger, errors.NewInvalidRequest("expected multipart/form-data"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	form := r.MultipartForm

	fields := map[string][]string{}
	if s.Status != capsule.ShareAccepted {
		fields["status"] = []string{"The share must be accepted first."}
	}

	var images []capsule.Image
	for i := 0; ; i++ {
		headers := form.File["images["+strconv.Itoa(i)+"]"]
		if len(headers) == 0 {
			break
		}
		img, msg, err := h.readImage(headers[0])
		if err != nil {
			renderAPIError(w, h.logger, err)
			return
		}
		if msg != "" {
			fields["images."+strconv.Itoa(i)] = []string{msg}
			continue
		}
		if v := form.Value["image_comments["+strconv.Itoa(i)+"]"]; len(v) > 0 {
			img.Caption = v[0]
		}
		images = append(images, img)
	}
	if len(images) == 0 && len(fields) == 0 {
		fields[capsule.FieldImages] = []string{"At least one image is required."}
	}
	if len(fields) > 0 {
		log.Info("accept rejected", "capsule", capsuleID, "fields", len(fields))
		renderFieldErrors(w, fields)
		return
	}

	if err := db.AppendImages(r.Context(), h.db, capsuleID, me.ID, images); err != nil {
		renderAPIError(w, h.logger, err)
		return
	}

	log.Info("share images added", "capsule", capsuleID, "images", len(images))
	renderJSON(w, http.StatusOK, map[string]any{"id": capsuleID, "images": len(images)})
}
