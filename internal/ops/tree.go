package ops

import (
	"fmt"
	"strings"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/errors"
	"github.com/hpungsan/hive/internal/report"
)

// Tree output formats.
const (
	TreeText     = "text"
	TreeHTML     = "html"
	TreeGroups   = "groups"
	TreePaths    = "paths"
	TreeMarkdown = "markdown"
)

// TreeInput contains parameters for the Tree operation.
type TreeInput struct {
	Base   string // optional, default: root
	Format string // default: text
}

// TreeOutput contains the result of the Tree operation. Paths is set for the
// paths format, Text otherwise.
type TreeOutput struct {
	Base   string   `json:"base"`
	Format string   `json:"format"`
	Text   string   `json:"text,omitempty"`
	Paths  []string `json:"paths,omitempty"`
}

// Tree renders the hierarchy under Base.
func Tree(a *archive.Archive, input TreeInput) (*TreeOutput, error) {
	base := normalizeBase(input.Base)
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = TreeText
	}

	out := &TreeOutput{Base: base, Format: format}
	var err error
	switch format {
	case TreeText:
		var b strings.Builder
		err = report.PrintHierarchy(&b, a, base)
		out.Text = b.String()
	case TreeHTML:
		out.Text, err = report.HierarchyHTML(a, base)
	case TreeGroups:
		out.Text, err = report.GroupHierarchyHTML(a, base)
	case TreeMarkdown:
		out.Text, err = report.Markdown(a, base)
	case TreePaths:
		out.Paths, err = report.DataPaths(a, base)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("format must be one of: %s, %s, %s, %s, %s",
			TreeText, TreeHTML, TreeGroups, TreePaths, TreeMarkdown))
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
