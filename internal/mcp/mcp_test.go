package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/config"
	"github.com/hpungsan/ecapsule/internal/logging"
)

var (
	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
)

type fakeBackend struct {
	mu      sync.Mutex
	reqs    []*api.CreateRequest
	err     error
	friends []api.Friend
	listErr error
}

func (f *fakeBackend) CreateCapsule(ctx context.Context, req *api.CreateRequest) (*api.Created, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &api.Created{ID: "cap-1"}, nil
}

func (f *fakeBackend) ListFriends(ctx context.Context) ([]api.Friend, error) {
	return f.friends, f.listErr
}

func (f *fakeBackend) requests() []*api.CreateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*api.CreateRequest(nil), f.reqs...)
}

// testSetup returns handlers wired to a fake backend with a fixed clock.
func testSetup(t *testing.T) (*Handlers, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	h := NewHandlers(backend, config.DefaultConfig(), logging.Discard())
	h.clock = func() time.Time { return testNow }
	return h, backend
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return text.Text
}

// call invokes a handler and decodes a successful result into out.
func call[T any](t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) T {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	require.NoError(t, err)
	require.False(t, result.IsError, "unexpected error: %s", resultText(t, result))
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	return out
}

type errorPayload struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Status  int            `json:"status"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// callErr invokes a handler that must fail and returns the decoded error.
func callErr(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) errorPayload {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	require.NoError(t, err)
	require.True(t, result.IsError, "expected error, got: %s", resultText(t, result))
	var out errorPayload
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	return out
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func start(t *testing.T, h *Handlers) string {
	t.Helper()
	state := call[StateOutput](t, h.HandleStart, nil)
	require.NotEmpty(t, state.SessionID)
	return state.SessionID
}

func setField(t *testing.T, h *Handlers, id, field, value string) StateOutput {
	t.Helper()
	return call[StateOutput](t, h.HandleSetField, map[string]any{"session_id": id, "field": field, "value": value})
}

func next(t *testing.T, h *Handlers, id string) MoveOutput {
	t.Helper()
	return call[MoveOutput](t, h.HandleNext, map[string]any{"session_id": id})
}

// fill walks a session to the final step with a valid draft.
func fill(t *testing.T, h *Handlers, id string) {
	t.Helper()
	setField(t, h, id, "title", "Summer 2026")
	setField(t, h, id, "description", "The lake house")
	require.True(t, next(t, h, id).Moved)

	added := call[AddImageOutput](t, h.HandleAddImage, map[string]any{"session_id": id, "path": writeFile(t, "dock.png", pngHeader)})
	require.True(t, added.Added)
	require.True(t, next(t, h, id).Moved)

	setField(t, h, id, "time", "2030-01-02T03:04:05Z")
	require.True(t, next(t, h, id).Moved)

	call[StateOutput](t, h.HandleSetCaption, map[string]any{"session_id": id, "index": 0, "caption": "dock"})
	require.True(t, next(t, h, id).Moved)

	setField(t, h, id, "vision", "Open it with everyone")
	require.True(t, next(t, h, id).Moved)
	setField(t, h, id, "privacy", "friends")
	require.True(t, next(t, h, id).Moved)
	setField(t, h, id, "design", "vault")
	require.True(t, next(t, h, id).Moved)
	require.True(t, next(t, h, id).Moved) // preview

	state := call[StateOutput](t, h.HandleSetField, map[string]any{"session_id": id, "field": "shared_with", "values": []any{"u1", "u1"}})
	require.True(t, state.IsFinal)
	require.Equal(t, []string{"u1"}, state.Draft.SharedWith)
}

func TestToolRegistry(t *testing.T) {
	names := AllToolNames()
	require.Len(t, names, 11)
	require.Contains(t, names, "wizard_submit")
	require.Contains(t, names, "friends_list")
	require.Equal(t, []string{"nope"}, ValidateDisabledTools([]string{"wizard_back", "nope"}))
	require.Empty(t, ValidateDisabledTools(nil))
}

func TestNewServer_SkipsDisabledTools(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"wizard_submit"}
	s := NewServer(&fakeBackend{}, cfg, "test", logging.Discard())

	tools := s.ListTools()
	require.Len(t, tools, len(toolRegistry)-1)
	require.NotContains(t, tools, "wizard_submit")
	require.Contains(t, tools, "wizard_start")
}

func TestStart_FirstStep(t *testing.T) {
	h, _ := testSetup(t)
	state := call[StateOutput](t, h.HandleStart, nil)

	require.Equal(t, "details", state.Step.Key)
	require.Equal(t, 0, state.StepIndex)
	require.Equal(t, 9, state.StepCount)
	require.False(t, state.IsFinal)
	require.False(t, state.Done)
	require.Equal(t, "default", state.Draft.Design)
	require.Empty(t, state.Draft.Images)
}

func TestSession_Unknown(t *testing.T) {
	h, _ := testSetup(t)

	got := callErr(t, h.HandleState, map[string]any{"session_id": "missing"})
	require.Equal(t, "NOT_FOUND", got.Error.Code)

	got = callErr(t, h.HandleState, map[string]any{})
	require.Equal(t, "INVALID_REQUEST", got.Error.Code)
}

func TestNext_BlockedWithErrors(t *testing.T) {
	h, _ := testSetup(t)
	id := start(t, h)
	setField(t, h, id, "title", "Summer")

	move := next(t, h, id)
	require.False(t, move.Moved)
	require.Equal(t, 0, move.StepIndex)
	require.Equal(t, map[string]string{"description": "Description is required"}, move.Errors)

	back := call[MoveOutput](t, h.HandleBack, map[string]any{"session_id": id})
	require.False(t, back.Moved)
	require.Equal(t, 0, back.StepIndex)
}

func TestSetField_Errors(t *testing.T) {
	h, _ := testSetup(t)
	id := start(t, h)

	got := callErr(t, h.HandleSetField, map[string]any{"session_id": id, "field": "title"})
	require.Equal(t, "INVALID_REQUEST", got.Error.Code)
	require.Equal(t, "value is required", got.Error.Message)

	got = callErr(t, h.HandleSetField, map[string]any{"session_id": id, "field": "colour", "value": "red"})
	require.Equal(t, "INVALID_REQUEST", got.Error.Code)

	got = callErr(t, h.HandleSetField, map[string]any{"session_id": id, "field": "time", "value": "next tuesday"})
	require.Equal(t, "INVALID_REQUEST", got.Error.Code)
}

func TestAddImage_RejectedFile(t *testing.T) {
	h, _ := testSetup(t)
	id := start(t, h)

	out := call[AddImageOutput](t, h.HandleAddImage, map[string]any{
		"session_id": id,
		"path":       writeFile(t, "notes.txt", []byte("just text")),
	})
	require.False(t, out.Added)
	require.Empty(t, out.Draft.Images)
	require.Contains(t, out.FileErrors, "notes.txt")

	got := callErr(t, h.HandleAddImage, map[string]any{"session_id": id, "path": filepath.Join(t.TempDir(), "gone.png")})
	require.Equal(t, "NOT_FOUND", got.Error.Code)
}

func TestRemoveImage_CaptionsFollow(t *testing.T) {
	h, _ := testSetup(t)
	id := start(t, h)
	for _, name := range []string{"a.png", "b.png"} {
		call[AddImageOutput](t, h.HandleAddImage, map[string]any{"session_id": id, "path": writeFile(t, name, pngHeader)})
	}
	call[StateOutput](t, h.HandleSetCaption, map[string]any{"session_id": id, "index": 1, "caption": "second"})

	state := call[StateOutput](t, h.HandleRemoveImage, map[string]any{"session_id": id, "index": 0})
	require.Len(t, state.Draft.Images, 1)
	require.Equal(t, "b.png", state.Draft.Images[0].Name)
	require.Equal(t, "second", state.Draft.Images[0].Caption)

	got := callErr(t, h.HandleRemoveImage, map[string]any{"session_id": id, "index": 5})
	require.Equal(t, "INVALID_REQUEST", got.Error.Code)

	got = callErr(t, h.HandleRemoveImage, map[string]any{"session_id": id})
	require.Equal(t, "index is required", got.Error.Message)
}

func TestSubmit_HappyPath(t *testing.T) {
	h, backend := testSetup(t)
	id := start(t, h)
	fill(t, h, id)

	state := call[StateOutput](t, h.HandleSubmit, map[string]any{"session_id": id})
	require.True(t, state.Done)
	require.Equal(t, "cap-1", state.CapsuleID)

	reqs := backend.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "Summer 2026", reqs[0].Title)
	require.Equal(t, "dock", reqs[0].Images[0].Caption)
	require.Equal(t, []string{"u1"}, reqs[0].SharedWith)

	got := callErr(t, h.HandleSetField, map[string]any{"session_id": id, "field": "title", "value": "again"})
	require.Equal(t, "INVALID_REQUEST", got.Error.Code)
}

func TestSubmit_NotFinalStep(t *testing.T) {
	h, backend := testSetup(t)
	id := start(t, h)

	got := callErr(t, h.HandleSubmit, map[string]any{"session_id": id})
	require.Equal(t, "INVALID_REQUEST", got.Error.Code)
	require.Empty(t, backend.requests())
}

func TestSubmit_ServerFieldErrors(t *testing.T) {
	h, backend := testSetup(t)
	backend.err = &api.FieldErrors{
		Status: 422,
		Fields: map[string][]string{"time": {"The time must be a date after now."}},
	}
	id := start(t, h)
	fill(t, h, id)

	got := callErr(t, h.HandleSubmit, map[string]any{"session_id": id})
	require.Equal(t, "VALIDATION_FAILED", got.Error.Code)
	require.Equal(t, map[string]any{"time": "The time must be a date after now."}, got.Error.Details["fields"])

	state := call[StateOutput](t, h.HandleState, map[string]any{"session_id": id})
	require.False(t, state.Done)
	require.Equal(t, "The time must be a date after now.", state.Errors["time"])
	require.Equal(t, "Summer 2026", state.Draft.Title)
}

func TestSubmit_OpaqueFailureHidesCause(t *testing.T) {
	h, backend := testSetup(t)
	backend.err = &api.StatusError{Status: 500, Message: "stack trace here"}
	id := start(t, h)
	fill(t, h, id)

	got := callErr(t, h.HandleSubmit, map[string]any{"session_id": id})
	require.Equal(t, "SUBMIT_FAILED", got.Error.Code)
	require.Equal(t, "Failed to create capsule. Please try again.", got.Error.Message)
	require.Nil(t, got.Error.Details)

	backend.err = nil
	state := call[StateOutput](t, h.HandleSubmit, map[string]any{"session_id": id})
	require.True(t, state.Done)
	require.Len(t, backend.requests(), 2)
}

func TestDesignsList(t *testing.T) {
	h, _ := testSetup(t)
	out := call[struct {
		Designs []struct {
			ID string `json:"id"`
		} `json:"designs"`
	}](t, h.HandleDesigns, nil)

	require.Len(t, out.Designs, 4)
	require.Equal(t, "heritage", out.Designs[0].ID)
}

func TestFriendsList(t *testing.T) {
	h, backend := testSetup(t)
	backend.friends = []api.Friend{{ID: "u1", Name: "Bob", IsFriend: true}}

	out := call[struct {
		Friends []api.Friend `json:"friends"`
	}](t, h.HandleFriends, nil)
	require.Equal(t, backend.friends, out.Friends)

	backend.listErr = &api.StatusError{Status: 401, Message: "Unauthenticated."}
	got := callErr(t, h.HandleFriends, nil)
	require.Equal(t, "UNAUTHORIZED", got.Error.Code)
}
