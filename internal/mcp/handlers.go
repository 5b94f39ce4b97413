package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/config"
	"github.com/hpungsan/hive/internal/document"
	"github.com/hpungsan/hive/internal/errors"
	"github.com/hpungsan/hive/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers. The archive is shared
// by every tool call and guarded by mu.
type Handlers struct {
	mu  sync.Mutex
	a   *archive.Archive
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(a *archive.Archive, cfg *config.Config) *Handlers {
	return &Handlers{a: a, cfg: cfg}
}

// Request types for each tool

// GetRequest represents the arguments for hive_get.
type GetRequest struct {
	Path string `json:"path"`
}

// SetRequest represents the arguments for hive_set.
type SetRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// AddCellRequest represents the arguments for hive_add_cell.
type AddCellRequest struct {
	Count  int             `json:"count,omitempty"`
	Values json.RawMessage `json:"values,omitempty"`
}

// CellsRequest represents the arguments for hive_cells.
type CellsRequest struct {
	IncludeValues bool `json:"include_values,omitempty"`
}

// DocumentRequest represents the arguments for hive_document.
type DocumentRequest struct {
	Base     string `json:"base,omitempty"`
	Flat     bool   `json:"flat,omitempty"`
	Envelope bool   `json:"envelope,omitempty"`
}

// TreeRequest represents the arguments for hive_tree.
type TreeRequest struct {
	Base   string `json:"base,omitempty"`
	Format string `json:"format,omitempty"`
}

// QueryRequest represents the arguments for hive_query.
type QueryRequest struct {
	Expr string `json:"expr"`
	Base string `json:"base,omitempty"`
}

// ExportRequest represents the arguments for hive_export.
type ExportRequest struct {
	Path     string `json:"path,omitempty"`
	Format   string `json:"format,omitempty"`
	Base     string `json:"base,omitempty"`
	Flat     bool   `json:"flat,omitempty"`
	Envelope bool   `json:"envelope,omitempty"`
}

// ImportRequest represents the arguments for hive_import.
type ImportRequest struct {
	Path     string `json:"path"`
	Base     string `json:"base,omitempty"`
	Flat     bool   `json:"flat,omitempty"`
	Envelope bool   `json:"envelope,omitempty"`
}

// LoadRequest represents the arguments for hive_load.
type LoadRequest struct {
	Document json.RawMessage `json:"document"`
	Base     string          `json:"base,omitempty"`
	Flat     bool            `json:"flat,omitempty"`
	Envelope bool            `json:"envelope,omitempty"`
}

// HandleGet handles the hive_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Get(h.a, ops.GetInput{Path: r.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSet handles the hive_set tool call.
func (h *Handlers) HandleSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[SetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Set(h.a, ops.SetInput{Path: r.Path, Value: r.Value})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleAddCell handles the hive_add_cell tool call.
func (h *Handlers) HandleAddCell(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[AddCellRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	values, err := parseDocument(r.Values)
	if err != nil {
		return errorResult(err), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.AddCell(h.a, ops.AddCellInput{Count: r.Count, Values: values})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCells handles the hive_cells tool call.
func (h *Handlers) HandleCells(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[CellsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Cells(h.a, ops.CellsInput{IncludeValues: r.IncludeValues})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDocument handles the hive_document tool call.
func (h *Handlers) HandleDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[DocumentRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Document(h.a, ops.DocumentInput{
		Base:     r.Base,
		Flat:     r.Flat,
		Envelope: r.Envelope,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTree handles the hive_tree tool call.
func (h *Handlers) HandleTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[TreeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Tree(h.a, ops.TreeInput{Base: r.Base, Format: r.Format})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleQuery handles the hive_query tool call.
func (h *Handlers) HandleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[QueryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Query(h.a, ops.QueryInput{Expr: r.Expr, Base: r.Base})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the hive_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Export(h.a, h.cfg, ops.ExportInput{
		Path:     r.Path,
		Format:   r.Format,
		Base:     r.Base,
		Flat:     r.Flat,
		Envelope: r.Envelope,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the hive_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Import(h.a, h.cfg, ops.ImportInput{
		Path:     r.Path,
		Base:     r.Base,
		Flat:     r.Flat,
		Envelope: r.Envelope,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLoad handles the hive_load tool call.
func (h *Handlers) HandleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[LoadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	d, err := parseDocument(r.Document)
	if err != nil {
		return errorResult(err), nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	result, err := ops.Load(h.a, ops.LoadInput{
		Document: d,
		Base:     r.Base,
		Flat:     r.Flat,
		Envelope: r.Envelope,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// parseDocument parses an optional object argument. Empty or null yields nil.
func parseDocument(raw json.RawMessage) (*document.Document, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return document.Parse(raw)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var hErr *errors.HiveError
	if stderrors.As(err, &hErr) {
		msg := hErr.Message
		if err != error(hErr) && hErr.Code != errors.ErrInternal {
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    hErr.Code,
			"message": msg,
			"status":  hErr.Status,
		}
		// Internal details may hold file paths or SQL errors.
		if hErr.Code != errors.ErrInternal && hErr.Details != nil {
			errorObj["details"] = hErr.Details
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
