package archive

import (
	"fmt"

	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/errors"
	"github.com/hpungsan/hive/internal/template"
)

// Well-known slots maintained by Initialize and AddCell.
const (
	CounterPath = template.CounterPath
	VersionPath = "/hiveversion"
)

// LabelWidth is the zero-padded width of cell labels.
const LabelWidth = 10

// Label returns the cell label for record number n, e.g. "/0000000001".
func Label(n int) string {
	return fmt.Sprintf("/%0*d", LabelWidth, n)
}

// Initialize replays tmpl (nil means the archive's template). With an empty
// base it builds the top-level schema, resets /hiveversion and /records and
// records tmpl as the archive's template; with a base it builds one cell's
// sub-schema under base.
func (a *Archive) Initialize(tmpl *template.Template, base string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if tmpl == nil {
		tmpl = a.tmpl
	}

	in := &template.Interpreter{RefCode: a.RefCode, Version: a.Version}
	if base == "" {
		in.Version = template.DefaultVersion
	}
	if err := in.Apply(a.c, tmpl, base); err != nil {
		return err
	}
	a.Version = in.Version

	if base != "" {
		return nil
	}
	for key, value := range map[string]string{
		metaTemplate:     tmpl.Source(),
		metaTemplateName: tmpl.Name,
		metaRefCode:      a.RefCode,
	} {
		if err := a.c.SetMeta(key, value); err != nil {
			return err
		}
	}
	a.tmpl = tmpl
	if err := a.Set(VersionPath, a.Version); err != nil {
		return err
	}
	if err := a.Set(CounterPath, 0); err != nil {
		return err
	}
	a.log.Debug("initialized schema", "template", tmpl.Name, "version", a.Version)
	return nil
}

// AddCell appends a new cell: bumps /records, creates the group labelled by
// the new count and builds the cell's sub-schema in it. The archive must
// already be initialized.
func (a *Archive) AddCell() (string, error) {
	if err := a.checkOpen(); err != nil {
		return "", err
	}

	current, err := a.Get(CounterPath)
	if err != nil {
		return "", err
	}
	next := int(current.Int) + 1
	if err := a.Set(CounterPath, next); err != nil {
		return "", err
	}

	label := Label(next)
	if err := a.c.CreateGroup(label); err != nil {
		return "", err
	}
	if err := a.Initialize(nil, label); err != nil {
		return "", err
	}

	a.log.Debug("added cell", "label", label)
	return label, nil
}

// Cells returns the cell groups 1..records in order. A label that is missing
// or not a group is an integrity error.
func (a *Archive) Cells() ([]container.Node, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	total, err := a.Get(CounterPath)
	if err != nil {
		return nil, err
	}

	cells := make([]container.Node, 0, max(total.Int, 0))
	for n := 1; n <= int(total.Int); n++ {
		label := Label(n)
		kind, err := a.c.Kind(label)
		if err != nil {
			return nil, err
		}
		if kind != container.KindGroup {
			return nil, errors.NewIntegrity(label[1:])
		}
		cells = append(cells, container.Node{Path: label, Name: label[1:], Kind: kind})
	}
	return cells, nil
}

// Has reports whether a node exists at p.
func (a *Archive) Has(p string) (bool, error) {
	if err := a.checkOpen(); err != nil {
		return false, err
	}
	return a.c.Has(p)
}

// IsGroup reports whether p is a group.
func (a *Archive) IsGroup(p string) (bool, error) {
	if err := a.checkOpen(); err != nil {
		return false, err
	}
	kind, err := a.c.Kind(p)
	return kind == container.KindGroup, err
}

// IsData reports whether p is a slot.
func (a *Archive) IsData(p string) (bool, error) {
	if err := a.checkOpen(); err != nil {
		return false, err
	}
	kind, err := a.c.Kind(p)
	return kind == container.KindSlot, err
}

// IsEmpty reports whether the slot at p holds a zero-length string. Integer
// slots are never empty; "never written" and "written empty" look the same.
func (a *Archive) IsEmpty(p string) (bool, error) {
	v, err := a.Get(p)
	if err != nil {
		return false, err
	}
	return v.IsEmpty(), nil
}

// Get reads the slot at p.
func (a *Archive) Get(p string) (container.Value, error) {
	if err := a.checkOpen(); err != nil {
		return container.Value{}, err
	}
	return a.c.Read(p)
}

// Set writes value into the existing slot at p.
func (a *Archive) Set(p string, value any) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	return a.c.Write(p, value)
}

// Children lists the children of the group at p in name order.
func (a *Archive) Children(p string) ([]container.Node, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	return a.c.Children(p)
}

// Read is Get under the name the hierarchy reporters expect.
func (a *Archive) Read(p string) (container.Value, error) {
	return a.Get(p)
}
