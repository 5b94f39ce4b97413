package web

import (
	"html/template"
	"net/http"
	"path"
	"sync"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI. An archive is not
// safe for concurrent use, so every handler holds mu while it reads.
type Handlers struct {
	mu       sync.Mutex
	archive  *archive.Archive
	renderer *Renderer
}

// HandleTree handles GET /tree: full and group-only hierarchy under ?base=.
func (h *Handlers) HandleTree(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	base := r.URL.Query().Get("base")
	full, err := ops.Tree(h.archive, ops.TreeInput{Base: base, Format: ops.TreeHTML})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	groups, err := ops.Tree(h.archive, ops.TreeInput{Base: base, Format: ops.TreeGroups})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Node paths are escaped by the reporters.
	h.renderer.renderPage(w, "tree", TreePageData{
		PageData: h.renderer.page("Hierarchy", "tree"),
		Base:     full.Base,
		Full:     template.HTML(full.Text),
		Groups:   template.HTML(groups.Text),
	})
}

// HandleOutline handles GET /outline: the Markdown outline rendered to HTML.
func (h *Handlers) HandleOutline(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := ops.Tree(h.archive, ops.TreeInput{
		Base:   r.URL.Query().Get("base"),
		Format: ops.TreeMarkdown,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "outline", OutlinePageData{
		PageData: h.renderer.page("Outline", "outline"),
		Base:     out.Base,
		Rendered: renderMarkdown(out.Text),
	})
}

// HandleCells handles GET /cells: every cell with its top-level fields.
func (h *Handlers) HandleCells(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := ops.Cells(h.archive, ops.CellsInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	rows := make([]CellRow, 0, len(out.Cells))
	for _, c := range out.Cells {
		fields, err := h.fields(c.Path)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		rows = append(rows, CellRow{Label: c.Label, Path: c.Path, Fields: fields})
	}

	h.renderer.renderPage(w, "cells", CellsPageData{
		PageData: h.renderer.page("Cells", "cells"),
		Records:  out.Records,
		Cells:    rows,
	})
}

// HandleNode handles GET /node?path=: one group or slot.
func (h *Handlers) HandleNode(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := r.URL.Query().Get("path")
	if p == "" {
		p = "/"
	}
	out, err := ops.Get(h.archive, ops.GetInput{Path: p})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, out)
		return
	}

	data := NodePageData{
		PageData: h.renderer.page(out.Path, ""),
		Path:     out.Path,
		Kind:     out.Kind,
		Empty:    out.Empty,
		Length:   out.Length,
	}
	if out.Path != "/" {
		data.Parent = path.Dir(out.Path)
	}
	if out.Value != nil {
		data.Value = *out.Value
	}
	if out.Layout != nil {
		data.DType = out.Layout.DType
	}
	if out.Kind == container.KindGroup.String() {
		data.Children, err = h.fields(out.Path)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}

	h.renderer.renderPage(w, "node", data)
}

// HandleDocument handles GET /document: the archive as JSON.
// Query: base, flat=1, envelope=1.
func (h *Handlers) HandleDocument(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := ops.Document(h.archive, ops.DocumentInput{
		Base:     r.URL.Query().Get("base"),
		Flat:     parseBoolParam(r, "flat"),
		Envelope: parseBoolParam(r, "envelope"),
	})
	if err != nil {
		r.Header.Set("Accept", "application/json")
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out.Document)
}

// fields lists the children of the group at p with slot values.
func (h *Handlers) fields(p string) ([]Field, error) {
	nodes, err := h.archive.Children(p)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, len(nodes))
	for _, n := range nodes {
		f := Field{Name: n.Name, Path: n.Path, Group: n.Kind == container.KindGroup}
		if !f.Group {
			v, err := h.archive.Get(n.Path)
			if err != nil {
				return nil, err
			}
			f.Value = v.String()
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json"
}
