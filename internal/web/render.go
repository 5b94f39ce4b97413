package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/hive/internal/errors"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Archive string
	Nav     string // active nav item: "tree", "outline", "cells"
}

// TreePageData is the template data for the hierarchy page.
type TreePageData struct {
	PageData
	Base   string
	Full   template.HTML
	Groups template.HTML
}

// OutlinePageData is the template data for the Markdown outline page.
type OutlinePageData struct {
	PageData
	Base     string
	Rendered template.HTML
}

// CellsPageData is the template data for the cell list page.
type CellsPageData struct {
	PageData
	Records int
	Cells   []CellRow
}

// CellRow is one row of the cell list.
type CellRow struct {
	Label  string
	Path   string
	Fields []Field
}

// Field is a name/value pair shown in cell and node listings.
type Field struct {
	Name  string
	Path  string
	Value string
	Group bool
}

// NodePageData is the template data for the node detail page.
type NodePageData struct {
	PageData
	Path     string
	Parent   string
	Kind     string
	Value    string
	Empty    bool
	Length   int
	DType    string
	Children []Field
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Code       string
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	archive   string
	log       *slog.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version, archive string, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"tree":    "tree.html",
		"outline": "outline.html",
		"cells":   "cells.html",
		"node":    "node.html",
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
		archive:   archive,
		log:       log,
	}
}

// page returns the common page fields.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Archive: r.archive, Nav: nav}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given status.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		r.log.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.log.Error("template execution failed", "template", name, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error as JSON when the client asks for it, else as a page.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var hErr *errors.HiveError
	if !stderrors.As(err, &hErr) {
		hErr = errors.NewInternal(err)
	}
	if hErr.Code == errors.ErrInternal {
		r.log.Error("request failed", "path", req.URL.Path, "err", err)
	}

	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderJSON(w, hErr.Status, map[string]any{
			"error": map[string]any{
				"code":    string(hErr.Code),
				"message": hErr.Message,
				"status":  hErr.Status,
			},
		})
		return
	}

	r.renderPageStatus(w, hErr.Status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", hErr.Status), ""),
		StatusCode: hErr.Status,
		Code:       string(hErr.Code),
		Message:    hErr.Message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
