package mcp

import (
	"context"
	"log/slog"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/ecapsule/internal/api"
	"github.com/hpungsan/ecapsule/internal/config"
	"github.com/hpungsan/ecapsule/internal/wizard"
)

// Backend is the capsule service the tools talk to.
type Backend interface {
	wizard.Creator
	ListFriends(ctx context.Context) ([]api.Friend, error)
}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"wizard_start": {
		def:     wizardStartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStart },
	},
	"wizard_state": {
		def:     wizardStateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleState },
	},
	"wizard_set_field": {
		def:     wizardSetFieldToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetField },
	},
	"wizard_add_image": {
		def:     wizardAddImageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAddImage },
	},
	"wizard_remove_image": {
		def:     wizardRemoveImageToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemoveImage },
	},
	"wizard_set_caption": {
		def:     wizardSetCaptionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetCaption },
	},
	"wizard_next": {
		def:     wizardNextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNext },
	},
	"wizard_back": {
		def:     wizardBackToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBack },
	},
	"wizard_submit": {
		def:     wizardSubmitToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSubmit },
	},
	"designs_list": {
		def:     designsListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDesigns },
	},
	"friends_list": {
		def:     friendsListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFriends },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the wizard tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(backend Backend, cfg *config.Config, version string, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"ecapsule",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(backend, cfg, logger)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(backend Backend, cfg *config.Config, version string, logger *slog.Logger) error {
	s := NewServer(backend, cfg, version, logger)
	return server.ServeStdio(s)
}
