// Package template parses hive templates and replays them against a
// container to build a schema.
//
// A template is line oriented:
//
//	# comment
//	@version V0.2
//	/group/
//	/group/field
//
// The same template describes both the top-level schema and the per-cell
// schema: when replayed with a base path, only lines containing the ref
// marker are kept, with the marker (and everything before it) replaced by
// the base.
package template

import (
	"bufio"
	_ "embed"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/errors"
)

//go:embed hive.template
var defaultTemplate string

// DefaultName is the name reported for the bundled template.
const DefaultName = "hive.template"

// CounterPath is the only field stored as an integer.
const CounterPath = "/records"

// DirectiveKind identifies what a template line declares.
type DirectiveKind int

const (
	DirectiveGroup DirectiveKind = iota + 1
	DirectiveField
	DirectiveCommand
)

// Directive is one meaningful template line.
type Directive struct {
	Kind DirectiveKind
	Line int    // 1-based line number in the source
	Text string // trailing whitespace removed
}

// Template is a parsed template source.
type Template struct {
	Name       string
	Directives []Directive
}

// Parse reads a template. Comment and blank lines are dropped.
func Parse(name string, r io.Reader) (*Template, error) {
	t := &Template{Name: name}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "@"):
			t.Directives = append(t.Directives, Directive{Kind: DirectiveCommand, Line: lineNum, Text: line})
		case strings.HasSuffix(line, "/"):
			t.Directives = append(t.Directives, Directive{Kind: DirectiveGroup, Line: lineNum, Text: line})
		default:
			t.Directives = append(t.Directives, Directive{Kind: DirectiveField, Line: lineNum, Text: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read template %s: %w", name, err))
	}
	return t, nil
}

// Source renders the directives back to template text, one per line.
// Comments and blank lines are not preserved; Parse(Source()) yields the
// same directives.
func (t *Template) Source() string {
	var b strings.Builder
	for _, d := range t.Directives {
		b.WriteString(d.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseFile reads a template from disk.
func ParseFile(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open template: %w", err))
	}
	defer f.Close()
	return Parse(path, f)
}

// Default returns the bundled template.
func Default() *Template {
	t, err := Parse(DefaultName, strings.NewReader(defaultTemplate))
	if err != nil {
		panic(err) // embedded source, cannot fail to read
	}
	return t
}

// Rebase rewrites a template line for replay under base.
// With an empty base every line is kept verbatim. With a base, a line is kept
// only if it contains marker, and becomes base followed by whatever follows
// the last occurrence of marker.
func Rebase(line, marker, base string) (string, bool) {
	if base == "" {
		return line, true
	}
	idx := strings.LastIndex(line, marker)
	if idx < 0 {
		return "", false
	}
	return base + line[idx+len(marker):], true
}

// FieldType returns the dtype a field directive creates.
func FieldType(path string) container.DType {
	if path == CounterPath {
		return container.DTypeInt32
	}
	return container.DTypeString
}
