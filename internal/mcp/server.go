package mcp

import (
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"hive_get": {
		def:     getToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGet },
	},
	"hive_set": {
		def:     setToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSet },
	},
	"hive_add_cell": {
		def:     addCellToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAddCell },
	},
	"hive_cells": {
		def:     cellsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCells },
	},
	"hive_document": {
		def:     documentToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDocument },
	},
	"hive_tree": {
		def:     treeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTree },
	},
	"hive_query": {
		def:     queryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuery },
	},
	"hive_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"hive_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"hive_load": {
		def:     loadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLoad },
	},
}

// AllToolNames returns every tool name in sorted order.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
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

// NewServer creates an MCP server serving the given archive. Tools listed in
// cfg.DisabledTools are not registered.
func NewServer(a *archive.Archive, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"hive",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(a, cfg)

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

// Run serves the archive over stdio until the client disconnects.
func Run(a *archive.Archive, cfg *config.Config, version string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	if unknown := ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("ignoring unknown disabled tools", "tools", unknown)
	}
	log.Debug("serving mcp over stdio", "archive", a.ArchivePath)
	return server.ServeStdio(NewServer(a, cfg, version))
}
