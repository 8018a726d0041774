package devserver

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/ecapsule/internal/errors"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// ImageView is one image on the capsule page.
type ImageView struct {
	URL       string
	Name      string
	MediaType string
	Caption   string
	IsVideo   bool
}

// CapsulePageData is the template data for the capsule page.
type CapsulePageData struct {
	PageData
	ID          string
	Design      string
	DesignName  string
	Privacy     string
	OpeningTime time.Time
	Sealed      bool
	Description template.HTML
	Vision      template.HTML
	Images      []ImageView
	Recipients  []string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *slog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *slog.Logger) *Renderer {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"capsule": "capsule.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// renderPage renders a named page template with the given status.
func (r *Renderer) renderPage(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution error", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderErrorPage renders err as an HTML error page.
func (r *Renderer) renderErrorPage(w http.ResponseWriter, err error) {
	cErr := asCapsuleError(err)
	if cErr.Code == errors.ErrInternal {
		r.logger.Error("request failed", "error", err)
	}
	r.renderPage(w, cErr.Status, "error", ErrorPageData{
		PageData:   PageData{Title: http.StatusText(cErr.Status), Version: r.version},
		StatusCode: cErr.Status,
		Message:    cErr.Message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderAPIError writes err as {"message": ...} with its status.
func renderAPIError(w http.ResponseWriter, logger *slog.Logger, err error) {
	cErr := asCapsuleError(err)
	if cErr.Code == errors.ErrInternal {
		logger.Error("request failed", "error", err)
	}
	renderJSON(w, cErr.Status, map[string]any{"message": cErr.Message})
}

// renderFieldErrors writes a 422 with a field -> messages map.
func renderFieldErrors(w http.ResponseWriter, fields map[string][]string) {
	renderJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "The given data was invalid.",
		"errors":  fields,
	})
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the source is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a time as "2006-01-02 15:04" UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

func asCapsuleError(err error) *errors.CapsuleError {
	var cErr *errors.CapsuleError
	if !stderrors.As(err, &cErr) {
		cErr = errors.NewInternal(err)
	}
	return cErr
}
