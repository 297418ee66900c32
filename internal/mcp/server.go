package mcp

import (
	"database/sql"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"category", "event", "calendar", "priority", "slot", "planner"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"category_save": {
		def:     categorySaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategorySave },
	},
	"category_list": {
		def:     categoryListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryList },
	},
	"category_delete": {
		def:     categoryDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryDelete },
	},
	"event_add": {
		def:     eventAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventAdd },
	},
	"event_list": {
		def:     eventListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventList },
	},
	"event_delete": {
		def:     eventDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEventDelete },
	},
	"calendar_view": {
		def:     calendarViewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCalendarView },
	},
	"calendar_upcoming": {
		def:     calendarUpcomingToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCalendarUpcoming },
	},
	"calendar_heatmap": {
		def:     calendarHeatmapToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCalendarHeatmap },
	},
	"priority_get": {
		def:     priorityGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePriorityGet },
	},
	"priority_save": {
		def:     prioritySaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePrioritySave },
	},
	"slot_suggest": {
		def:     slotSuggestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSlotSuggest },
	},
	"slot_book": {
		def:     slotBookToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSlotBook },
	},
	"planner_export": {
		def:     plannerExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"planner_import": {
		def:     plannerImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
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

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "slot_suggest" → "slot").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with the planner tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, clock timeutil.Clock, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"agenda",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, clock)

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	// Register tools (skip disabled)
	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, clock timeutil.Clock, version string) error {
	s := NewServer(db, cfg, clock, version)
	return server.ServeStdio(s)
}
