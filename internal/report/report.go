// Package report renders read-only views of an archive tree: a tab-indented
// text dump, nested HTML lists, a flat list of slot paths and a Markdown
// outline.
package report

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/hpungsan/hive/internal/container"
)

// Tree is the read side of an archive the reporters walk.
type Tree interface {
	Children(p string) ([]container.Node, error)
	Read(p string) (container.Value, error)
}

// CounterName is the slot whose raw value is printed without a length.
const CounterName = "records"

// PrintHierarchy writes one line per node under base, indented with one tab
// per level:
//
//	G: /path [children]
//	D: records : [value]
//	D: name : length : [value]
func PrintHierarchy(w io.Writer, t Tree, base string) error {
	return printHierarchy(w, t, container.Clean(base), 0)
}

func printHierarchy(w io.Writer, t Tree, p string, depth int) error {
	nodes, err := t.Children(p)
	if err != nil {
		return err
	}
	indent := strings.Repeat("\t", depth)
	for _, n := range nodes {
		switch n.Kind {
		case container.KindGroup:
			children, err := t.Children(n.Path)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%sG: %s [%d]\n", indent, n.Path, len(children)); err != nil {
				return err
			}
			if err := printHierarchy(w, t, n.Path, depth+1); err != nil {
				return err
			}
		case container.KindSlot:
			v, err := t.Read(n.Path)
			if err != nil {
				return err
			}
			if n.Name == CounterName {
				_, err = fmt.Fprintf(w, "%sD: %s : [%s]\n", indent, n.Name, v)
			} else {
				_, err = fmt.Fprintf(w, "%sD: %s : %d : [%s]\n", indent, n.Name, v.Len(), v)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// HierarchyHTML renders the tree under base as nested <ul> lists. Each group
// item is followed by the list of its children.
func HierarchyHTML(t Tree, base string) (string, error) {
	var b strings.Builder
	if err := hierarchyHTML(&b, t, container.Clean(base)); err != nil {
		return "", err
	}
	return b.String(), nil
}

func hierarchyHTML(b *strings.Builder, t Tree, p string) error {
	nodes, err := t.Children(p)
	if err != nil {
		return err
	}
	b.WriteString("<ul>")
	for _, n := range nodes {
		switch n.Kind {
		case container.KindGroup:
			fmt.Fprintf(b, "<li>%s (G)</li>", html.EscapeString(n.Path))
			if err := hierarchyHTML(b, t, n.Path); err != nil {
				return err
			}
		case container.KindSlot:
			fmt.Fprintf(b, "<li>%s (D)</li>", html.EscapeString(n.Path))
		}
	}
	b.WriteString("</ul>")
	return nil
}

// GroupHierarchyHTML lists only groups, depth first, inside a single <ul>.
func GroupHierarchyHTML(t Tree, base string) (string, error) {
	var b strings.Builder
	b.WriteString("<ul>")
	if err := groupHierarchyHTML(&b, t, container.Clean(base)); err != nil {
		return "", err
	}
	b.WriteString("</ul>")
	return b.String(), nil
}

func groupHierarchyHTML(b *strings.Builder, t Tree, p string) error {
	nodes, err := t.Children(p)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if n.Kind != container.KindGroup {
			continue
		}
		fmt.Fprintf(b, "<li>%s (G)</li>", html.EscapeString(n.Path))
		if err := groupHierarchyHTML(b, t, n.Path); err != nil {
			return err
		}
	}
	return nil
}

// DataPaths returns the absolute path of every slot under base, depth first.
func DataPaths(t Tree, base string) ([]string, error) {
	paths := []string{}
	if err := dataPaths(t, container.Clean(base), &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func dataPaths(t Tree, p string, out *[]string) error {
	nodes, err := t.Children(p)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		switch n.Kind {
		case container.KindGroup:
			if err := dataPaths(t, n.Path, out); err != nil {
				return err
			}
		case container.KindSlot:
			*out = append(*out, n.Path)
		}
	}
	return nil
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "#", `\#`,
)

// lineBreaks folds multi-line values onto their bullet.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Markdown renders the tree under base as a nested bullet list. Groups are
// bold with a trailing slash; slots show their value, or an italic marker
// when empty. Line breaks in values become spaces.
func Markdown(t Tree, base string) (string, error) {
	var b strings.Builder
	if err := markdown(&b, t, container.Clean(base), 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

func markdown(b *strings.Builder, t Tree, p string, depth int) error {
	nodes, err := t.Children(p)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		name := mdEscaper.Replace(n.Name)
		switch n.Kind {
		case container.KindGroup:
			fmt.Fprintf(b, "%s- **%s/**\n", indent, name)
			if err := markdown(b, t, n.Path, depth+1); err != nil {
				return err
			}
		case container.KindSlot:
			v, err := t.Read(n.Path)
			if err != nil {
				return err
			}
			if v.IsEmpty() {
				fmt.Fprintf(b, "%s- %s: _empty_\n", indent, name)
			} else {
				fmt.Fprintf(b, "%s- %s: %s\n", indent, name, mdEscaper.Replace(lineBreaks.Replace(v.String())))
			}
		}
	}
	return nil
}
