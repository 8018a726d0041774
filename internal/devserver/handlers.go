package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/db"
	"github.com/hpungsan/ecapsule/internal/errors"
	"github.com/hpungsan/ecapsule/internal/wizard"
)

// maxMultipartMemory is the part of a create request kept in memory; the
// rest spills to temporary files.
const maxMultipartMemory = 32 << 20

type ctxKey int

const userKey ctxKey = iota

// Handlers contains the HTTP route handlers of the development API.
type Handlers struct {
	db           *sql.DB
	validator    *wizard.Validator
	renderer     *Renderer
	metrics      *Metrics
	logger       *slog.Logger
	maxFileBytes int64
	now          func() time.Time
}

// userFrom returns the authenticated user stored by requireToken.
func userFrom(ctx context.Context) *db.User {
	u, _ := ctx.Value(userKey).(*db.User)
	return u
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// requireToken rejects requests without a known bearer token.
func (h *Handlers) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := h.authenticate(r)
		if err != nil {
			renderAPIError(w, h.logger, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	}
}

func (h *Handlers) authenticate(r *http.Request) (*db.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, errors.NewUnauthorized("Unauthenticated.")
	}
	u, err := db.UserForToken(h.db, token)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewUnauthorized("Unauthenticated.")
		}
		return nil, err
	}
	return u, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HandleLogin handles POST /api/login.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		renderAPIError(w, h.logger, errors.NewInvalidRequest("invalid JSON body"))
		return
	}

	fields := map[string][]string{}
	if strings.TrimSpace(req.Email) == "" {
		fields["email"] = []string{"The email field is required."}
	}
	if req.Password == "" {
		fields["password"] = []string{"The password field is required."}
	}
	if len(fields) > 0 {
		renderFieldErrors(w, fields)
		return
	}

	u, err := db.GetUserByEmail(h.db, req.Email)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		renderAPIError(w, h.logger, err)
		return
	}
	if u == nil || !checkPassword(u, req.Password) {
		renderAPIError(w, h.logger, errors.NewUnauthorized("Invalid credentials"))
		return
	}

	token, err := newToken()
	if err != nil {
		renderAPIError(w, h.logger, errors.NewInternal(err))
		return
	}
	if err := db.InsertToken(h.db, token, u.ID, h.now().Unix()); err != nil {
		renderAPIError(w, h.logger, err)
		return
	}

	h.logger.Info("user logged in", "user", u.ID)
	renderJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user":         userJSON{ID: u.ID, Name: u.Name, Email: u.Email},
	})
}

type friendJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsFriend bool   `json:"is_friend"`
}

// HandleFriends handles GET /api/friends. Every other account is a friend.
func (h *Handlers) HandleFriends(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	users, err := db.ListUsersExcept(h.db, me.ID)
	if err != nil {
		renderAPIError(w, h.logger, err)
		return
	}
	out := make([]friendJSON, 0, len(users))
	for _, u := range users {
		out = append(out, friendJSON{ID: u.ID, Name: u.Name, Email: u.Email, IsFriend: true})
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/capsule/create.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	me := userFrom(r.Context())
	log := h.logger.With("request_id", r.Header.Get("X-Request-Id"), "user", me.ID)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		renderAPIError(w, h.logger, errors.NewInvalidRequest("expected multipart/form-data"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	d, fields, err := h.readDraft(r.MultipartForm)
	if err != nil {
		renderAPIError(w, h.logger, err)
		return
	}

	for field, msg := range h.validator.ValidateAll(d) {
		if _, ok := fields[field]; !ok {
			fields[field] = []string{msg}
		}
	}
	for i, id := range d.SharedWith {
		if id == me.ID {
			fields[fmt.Sprintf("shared_with.%d", i)] = []string{"You cannot share a capsule with yourself."}
			continue
		}
		if _, err := db.GetUserByID(h.db, id); err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				renderAPIError(w, h.logger, err)
				return
			}
			fields[fmt.Sprintf("shared_with.%d", i)] = []string{fmt.Sprintf("The selected shared_with.%d is invalid.", i)}
		}
	}

	if len(fields) > 0 {
		h.metrics.capsuleRejected(fields)
		log.Info("capsule rejected", "fields", len(fields))
		renderFieldErrors(w, fields)
		return
	}

	c := &db.Capsule{
		ID:        newID(),
		OwnerID:   me.ID,
		CreatedAt: h.now().Unix(),
		Draft:     d,
	}
	if err := db.InsertCapsule(r.Context(), h.db, c); err != nil {
		renderAPIError(w, h.logger, err)
		return
	}

	h.metrics.capsuleCreated()
	log.Info("capsule created", "id", c.ID, "images", len(d.Images), "recipients", len(d.SharedWith))
	renderJSON(w, http.StatusCreated, map[string]any{"id": c.ID})
}

// readDraft rebuilds a draft from the multipart form. Malformed parts are
// reported as field errors under their wire keys.
func (h *Handlers) readDraft(form *multipart.Form) (capsule.Draft, map[string][]string, error) {
	fields := map[string][]string{}
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	d := capsule.Draft{
		Title:       value("title"),
		Description: value("description"),
		Vision:      value("vision"),
		Privacy:     capsule.ParsePrivacy(value("privacy")),
		Design:      strings.TrimSpace(value("design")),
	}

	if raw := strings.TrimSpace(value("time")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fields[capsule.FieldTime] = []string{"The time field must be a valid date."}
		} else {
			d.OpeningTime = t
		}
	}

	for i := 0; ; i++ {
		key := "images[" + strconv.Itoa(i) + "]"
		headers := form.File[key]
		if len(headers) == 0 {
			break
		}
		img, msg, err := h.readImage(headers[0])
		if err != nil {
			return capsule.Draft{}, nil, err
		}
		if msg != "" {
			fields["images."+strconv.Itoa(i)] = []string{msg}
			continue
		}
		img.Caption = value("image_comments[" + strconv.Itoa(i) + "]")
		d.Images = append(d.Images, img)
	}

	for i := 0; ; i++ {
		vals, ok := form.Value["shared_with["+strconv.Itoa(i)+"]"]
		if !ok || len(vals) == 0 {
			break
		}
		d.SharedWith = append(d.SharedWith, strings.TrimSpace(vals[0]))
	}

	return d, fields, nil
}

// readImage loads one uploaded file. Oversized files are not read past the
// sniffing prefix. msg is non-empty when the file breaks the media rules.
func (h *Handlers) readImage(fh *multipart.FileHeader) (capsule.Image, string, error) {
	f, err := fh.Open()
	if err != nil {
		return capsule.Image{}, "", errors.NewInternal(err)
	}
	defer f.Close()

	limit := fh.Size
	if limit > h.maxFileBytes {
		limit = capsule.SniffBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return capsule.Image{}, "", errors.NewInternal(err)
	}

	mediaType, msg := capsule.CheckFile(capsule.Blob{Name: fh.Filename, Size: fh.Size, Data: data}, h.maxFileBytes)
	if msg != "" {
		return capsule.Image{}, msg, nil
	}
	return capsule.Image{Name: fh.Filename, MediaType: mediaType, Data: data}, "", nil
}

// canView reports whether viewer may open c. Public capsules are open to
// everyone; others only to the owner and the recipients.
func canView(c *db.Capsule, viewer *db.User) bool {
	if c.Draft.Privacy == capsule.PrivacyPublic {
		return true
	}
	if viewer == nil {
		return false
	}
	if viewer.ID == c.OwnerID {
		return true
	}
	for _, id := range c.Draft.SharedWith {
		if id == viewer.ID {
			return true
		}
	}
	return false
}

// viewer resolves the optional token of a browser request, taken from the
// Authorization header or the token query parameter.
func (h *Handlers) viewer(r *http.Request) *db.User {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil
	}
	u, err := db.UserForToken(h.db, token)
	if err != nil {
		return nil
	}
	return u
}

// loadVisible loads a capsule the requester may see. Hidden capsules are
// reported as missing.
func (h *Handlers) loadVisible(r *http.Request) (*db.Capsule, *db.User, error) {
	id := r.PathValue("id")
	c, err := db.GetCapsule(r.Context(), h.db, id)
	if err != nil {
		return nil, nil, err
	}
	v := h.viewer(r)
	if !canView(c, v) {
		return nil, nil, errors.NewNotFound(id)
	}
	return c, v, nil
}

// sealed reports whether the contents are still locked for viewer.
// The owner can always look inside.
func (h *Handlers) sealed(c *db.Capsule, viewer *db.User) bool {
	if viewer != nil && viewer.ID == c.OwnerID {
		return false
	}
	return h.now().Before(c.Draft.OpeningTime)
}

// HandleCapsule handles GET /capsules/{id}: an HTML preview of a stored capsule.
func (h *Handlers) HandleCapsule(w http.ResponseWriter, r *http.Request) {
	c, v, err := h.loadVisible(r)
	if err != nil {
		h.renderer.renderErrorPage(w, err)
		return
	}

	designName := c.Draft.Design
	if design, ok := capsule.LookupDesign(c.Draft.Design); ok {
		designName = design.Name
	}

	data := CapsulePageData{
		PageData:    PageData{Title: c.Draft.Title, Version: h.renderer.version},
		ID:          c.ID,
		Design:      c.Draft.Design,
		DesignName:  designName,
		Privacy:     string(c.Draft.Privacy),
		OpeningTime: c.Draft.OpeningTime,
		Sealed:      h.sealed(c, v),
	}
	if !data.Sealed {
		data.Description = renderMarkdown(c.Draft.Description)
		data.Vision = renderMarkdown(c.Draft.Vision)
		token := r.URL.Query().Get("token")
		for i, img := range c.Draft.Images {
			url := fmt.Sprintf("/capsules/%s/images/%d", c.ID, i)
			if token != "" {
				url += "?token=" + token
			}
			data.Images = append(data.Images, ImageView{
				URL:       url,
				Name:      img.Name,
				MediaType: img.MediaType,
				Caption:   img.Caption,
				IsVideo:   strings.HasPrefix(img.MediaType, "video/"),
			})
		}
	}
	for _, id := range c.Draft.SharedWith {
		name := id
		if u, err := db.GetUserByID(h.db, id); err == nil {
			name = u.Name
		}
		data.Recipients = append(data.Recipients, name)
	}

	h.renderer.renderPage(w, http.StatusOK, "capsule", data)
}

// HandleImage handles GET /capsules/{id}/images/{n}.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	c, v, err := h.loadVisible(r)
	if err != nil {
		h.renderer.renderErrorPage(w, err)
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 || n >= len(c.Draft.Images) || h.sealed(c, v) {
		h.renderer.renderErrorPage(w, errors.NewNotFound(r.URL.Path))
		return
	}

	img := c.Draft.Images[n]
	w.Header().Set("Content-Type", img.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
