package template

import (
	"fmt"
	"strings"

	"github.com/hpungsan/hive/internal/container"
)

// DefaultRefCode is the marker that identifies reference-record lines.
const DefaultRefCode = "/ref"

// DefaultVersion is reported when a template carries no @version command.
const DefaultVersion = "V0.1"

// Builder receives the nodes a template declares, in template order.
// *container.Container satisfies it.
type Builder interface {
	CreateGroup(path string) error
	CreateSlot(path string, dtype container.DType) error
}

// Interpreter replays templates. Version is updated by @version commands.
type Interpreter struct {
	RefCode string
	Version string
}

// NewInterpreter returns an interpreter with the default marker and version.
func NewInterpreter() *Interpreter {
	return &Interpreter{RefCode: DefaultRefCode, Version: DefaultVersion}
}

// Apply replays t against b. With an empty base every directive is applied
// verbatim; otherwise directives are rebased onto base and those without the
// marker are skipped. Ancestor groups must be declared before their children.
func (in *Interpreter) Apply(b Builder, t *Template, base string) error {
	for _, d := range t.Directives {
		if d.Kind == DirectiveCommand {
			in.command(d.Text)
			continue
		}

		line, ok := Rebase(d.Text, in.RefCode, base)
		if !ok {
			continue
		}

		var err error
		switch d.Kind {
		case DirectiveGroup:
			groupPath := strings.TrimSuffix(line, "/")
			if base != "" && container.Clean(groupPath) == container.Clean(base) {
				// The cell group itself is created by the caller.
				continue
			}
			err = b.CreateGroup(groupPath)
		case DirectiveField:
			err = b.CreateSlot(line, FieldType(line))
		}
		if err != nil {
			return fmt.Errorf("%s:%d: %w", t.Name, d.Line, err)
		}
	}
	return nil
}

// command handles an @ line. Only @version is recognised.
func (in *Interpreter) command(text string) {
	if rest, ok := strings.CutPrefix(text, "@version"); ok {
		in.Version = strings.TrimSpace(rest)
	}
}
