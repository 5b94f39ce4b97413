package ops

import (
	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/errors"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	Path string // required
}

// GetOutput describes one node. Slots carry their value and layout; groups
// carry the names of their children.
type GetOutput struct {
	Path     string          `json:"path"`
	Kind     string          `json:"kind"`
	Value    *string         `json:"value,omitempty"`
	Empty    bool            `json:"empty,omitempty"`
	Length   int             `json:"length,omitempty"`
	Layout   *container.Info `json:"layout,omitempty"`
	Children []string        `json:"children,omitempty"`
}

// Get reads the node at Path.
func Get(a *archive.Archive, input GetInput) (*GetOutput, error) {
	p, err := NormalizePath(input.Path)
	if err != nil {
		return nil, err
	}

	isGroup, err := a.IsGroup(p)
	if err != nil {
		return nil, err
	}
	if isGroup {
		nodes, err := a.Children(p)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(nodes))
		for _, n := range nodes {
			names = append(names, n.Name)
		}
		return &GetOutput{Path: p, Kind: container.KindGroup.String(), Children: names}, nil
	}

	v, err := a.Get(p)
	if err != nil {
		return nil, err
	}
	info, err := a.Container().Info(p)
	if err != nil {
		return nil, err
	}
	text := v.String()
	return &GetOutput{
		Path:   p,
		Kind:   container.KindSlot.String(),
		Value:  &text,
		Empty:  v.IsEmpty(),
		Length: v.Len(),
		Layout: info,
	}, nil
}

// SetInput contains parameters for the Set operation.
type SetInput struct {
	Path  string // required
	Value any    // converted to the slot's dtype
}

// SetOutput contains the result of the Set operation.
type SetOutput struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// Set writes Value into the existing slot at Path.
func Set(a *archive.Archive, input SetInput) (*SetOutput, error) {
	p, err := NormalizePath(input.Path)
	if err != nil {
		return nil, err
	}
	if p == archive.CounterPath {
		return nil, errors.NewInvalidRequest("records is maintained by add-cell")
	}

	if err := a.Set(p, input.Value); err != nil {
		return nil, err
	}
	v, err := a.Get(p)
	if err != nil {
		return nil, err
	}
	return &SetOutput{Path: p, Value: v.String()}, nil
}
