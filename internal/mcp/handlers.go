package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/patrickmn/go-cache"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/capsule"
	"github.com/hpungsan/ecapsule/internal/config"
	"github.com/hpungsan/ecapsule/internal/errors"
	"github.com/hpungsan/ecapsule/internal/files"
	"github.com/hpungsan/ecapsule/internal/wizard"
)

// SessionIdleTimeout is how long an untouched wizard session is kept.
const SessionIdleTimeout = 30 * time.Minute

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	backend  Backend
	cfg      *config.Config
	logger   *slog.Logger
	sessions *cache.Cache

	// clock overrides time.Now for new sessions
	clock func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(backend Backend, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		backend:  backend,
		cfg:      cfg,
		logger:   logger,
		sessions: cache.New(SessionIdleTimeout, SessionIdleTimeout/2),
	}
}

// Request types for each tool

// SessionRequest identifies a wizard session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SetFieldRequest represents the arguments for wizard_set_field.
type SetFieldRequest struct {
	SessionID string   `json:"session_id"`
	Field     string   `json:"field"`
	Value     *string  `json:"value,omitempty"`
	Values    []string `json:"values,omitempty"`
}

// AddImageRequest represents the arguments for wizard_add_image.
type AddImageRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
}

// IndexRequest represents the arguments for wizard_remove_image.
type IndexRequest struct {
	SessionID string `json:"session_id"`
	Index     *int   `json:"index"`
}

// CaptionRequest represents the arguments for wizard_set_caption.
type CaptionRequest struct {
	SessionID string `json:"session_id"`
	Index     *int   `json:"index"`
	Caption   string `json:"caption"`
}

// StateOutput is the view of a session returned by every wizard tool.
type StateOutput struct {
	SessionID  string            `json:"session_id"`
	Step       wizard.Step       `json:"step"`
	StepIndex  int               `json:"step_index"`
	StepCount  int               `json:"step_count"`
	IsFinal    bool              `json:"is_final"`
	Draft      capsule.Summary   `json:"draft"`
	Errors     map[string]string `json:"errors,omitempty"`
	FileErrors map[string]string `json:"file_errors,omitempty"`
	Pending    bool              `json:"pending"`
	Done       bool              `json:"done"`
	CapsuleID  string            `json:"capsule_id,omitempty"`
}

// MoveOutput reports a navigation result.
type MoveOutput struct {
	Moved bool `json:"moved"`
	StateOutput
}

// AddImageOutput reports whether the offered file was accepted.
type AddImageOutput struct {
	Added bool `json:"added"`
	StateOutput
}

func stateOf(w *wizard.Wizard) StateOutput {
	out := StateOutput{
		SessionID:  w.ID(),
		Step:       w.Step(),
		StepIndex:  w.Index(),
		StepCount:  len(w.Steps()),
		IsFinal:    w.IsFinal(),
		Draft:      w.Draft().ToSummary(),
		Errors:     w.Errors(),
		FileErrors: w.FileErrors(),
		Pending:    w.Pending(),
		Done:       w.Done(),
	}
	if r := w.Result(); r != nil {
		out.CapsuleID = string(r.ID)
	}
	return out
}

// session looks up a live wizard and refreshes its idle expiry.
func (h *Handlers) session(id string) (*wizard.Wizard, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("session_id is required")
	}
	v, ok := h.sessions.Get(id)
	if !ok {
		return nil, errors.NewNotFound(id)
	}
	w := v.(*wizard.Wizard)
	h.sessions.SetDefault(id, w)
	return w, nil
}

// decodeSession decodes the arguments and resolves their session.
func decodeSession[T any](h *Handlers, req mcp.CallToolRequest, id func(T) string) (T, *wizard.Wizard, error) {
	input, err := decode[T](req)
	if err != nil {
		return input, nil, errors.NewInvalidRequest(err.Error())
	}
	w, err := h.session(id(input))
	return input, w, err
}

// HandleStart handles the wizard_start tool call.
func (h *Handlers) HandleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	w := wizard.New(wizard.Options{
		Creator:      h.backend,
		MaxFileBytes: h.cfg.MaxFileBytes,
		Clock:        h.clock,
		Logger:       h.logger,
	})
	h.sessions.SetDefault(w.ID(), w)
	h.logger.Info("wizard session started", "session", w.ID())
	return successResult(stateOf(w))
}

// HandleState handles the wizard_state tool call.
func (h *Handlers) HandleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, w, err := decodeSession(h, req, func(r SessionRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(stateOf(w))
}

// HandleSetField handles the wizard_set_field tool call.
func (h *Handlers) HandleSetField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, w, err := decodeSession(h, req, func(r SetFieldRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}

	var value any
	switch {
	case input.Field == capsule.FieldSharedWith:
		value = append([]string{}, input.Values...)
	case input.Value == nil:
		return errorResult(errors.NewInvalidRequest("value is required")), nil
	default:
		value = *input.Value
	}

	if err := w.SetField(input.Field, value); err != nil {
		return errorResult(err), nil
	}
	return successResult(stateOf(w))
}

// HandleAddImage handles the wizard_add_image tool call.
func (h *Handlers) HandleAddImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, w, err := decodeSession(h, req, func(r AddImageRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}

	blob, err := files.ReadBlob(input.Path, h.cfg.MaxFileBytes)
	if err != nil {
		return errorResult(err), nil
	}
	added, err := w.AddImage(blob)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(AddImageOutput{Added: added, StateOutput: stateOf(w)})
}

// HandleRemoveImage handles the wizard_remove_image tool call.
func (h *Handlers) HandleRemoveImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, w, err := decodeSession(h, req, func(r IndexRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	if input.Index == nil {
		return errorResult(errors.NewInvalidRequest("index is required")), nil
	}
	if err := w.RemoveImage(*input.Index); err != nil {
		return errorResult(err), nil
	}
	return successResult(stateOf(w))
}

// HandleSetCaption handles the wizard_set_caption tool call.
func (h *Handlers) HandleSetCaption(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, w, err := decodeSession(h, req, func(r CaptionRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	if input.Index == nil {
		return errorResult(errors.NewInvalidRequest("index is required")), nil
	}
	if err := w.SetImageCaption(*input.Index, input.Caption); err != nil {
		return errorResult(err), nil
	}
	return successResult(stateOf(w))
}

// HandleNext handles the wizard_next tool call.
func (h *Handlers) HandleNext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, w, err := decodeSession(h, req, func(r SessionRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	moved := w.Next()
	return successResult(MoveOutput{Moved: moved, StateOutput: stateOf(w)})
}

// HandleBack handles the wizard_back tool call.
func (h *Handlers) HandleBack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, w, err := decodeSession(h, req, func(r SessionRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	moved := w.Back()
	return successResult(MoveOutput{Moved: moved, StateOutput: stateOf(w)})
}

// HandleSubmit handles the wizard_submit tool call.
// Rejections keep the session; its state carries the displayed errors.
func (h *Handlers) HandleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, w, err := decodeSession(h, req, func(r SessionRequest) string { return r.SessionID })
	if err != nil {
		return errorResult(err), nil
	}
	if _, err := w.Submit(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(stateOf(w))
}

// HandleDesigns handles the designs_list tool call.
func (h *Handlers) HandleDesigns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(map[string]any{"designs": capsule.Designs()})
}

// HandleFriends handles the friends_list tool call.
func (h *Handlers) HandleFriends(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	friends, err := h.backend.ListFriends(ctx)
	if err != nil {
		return errorResult(backendError(err)), nil
	}
	if friends == nil {
		friends = []api.Friend{}
	}
	return successResult(map[string]any{"friends": friends})
}

// backendError maps an API failure onto a structured error.
func backendError(err error) error {
	var cErr *errors.CapsuleError
	if stderrors.As(err, &cErr) {
		return cErr
	}
	var sErr *api.StatusError
	if stderrors.As(err, &sErr) && sErr.Status == http.StatusUnauthorized {
		return errors.NewUnauthorized(sErr.Message)
	}
	return errors.NewInternal(err)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cErr *errors.CapsuleError
	if stderrors.As(err, &cErr) {
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": cErr.Message,
			"status":  cErr.Status,
		}
		// Internal and submit failures carry causes that are for logs only
		if cErr.Code != errors.ErrInternal && cErr.Code != errors.ErrSubmitFailed && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
