package ops

import (
	"fmt"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/document"
	"github.com/hpungsan/hive/internal/errors"
)

// AddCellInput contains parameters for the AddCell operation.
type AddCellInput struct {
	Count  int                // default: 1, max: MaxAddCells
	Values *document.Document // optional, loaded into every new cell
}

// AddCellOutput contains the result of the AddCell operation.
type AddCellOutput struct {
	Labels  []string `json:"labels"`
	Records int      `json:"records"`
}

// AddCell appends Count cells, optionally filling each with Values.
func AddCell(a *archive.Archive, input AddCellInput) (*AddCellOutput, error) {
	count := input.Count
	if count == 0 {
		count = DefaultAddCells
	}
	if count < 0 || count > MaxAddCells {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("count must be between 1 and %d", MaxAddCells))
	}

	labels := make([]string, 0, count)
	for i := 0; i < count; i++ {
		label, err := a.AddCell()
		if err != nil {
			return nil, err
		}
		if input.Values != nil {
			if err := a.FromDocument(input.Values, label+"/"); err != nil {
				return nil, err
			}
		}
		labels = append(labels, label)
	}

	records, err := a.Get(archive.CounterPath)
	if err != nil {
		return nil, err
	}

	return &AddCellOutput{
		Labels:  labels,
		Records: int(records.Int),
	}, nil
}

// CellsInput contains parameters for the Cells operation.
type CellsInput struct {
	IncludeValues bool
}

// CellItem is one cell in a CellsOutput.
type CellItem struct {
	Label  string             `json:"label"`
	Path   string             `json:"path"`
	Values *document.Document `json:"values,omitempty"`
}

// CellsOutput contains the result of the Cells operation.
type CellsOutput struct {
	Records int        `json:"records"`
	Cells   []CellItem `json:"cells"`
}

// Cells lists every cell in record order. A missing cell is an integrity error.
func Cells(a *archive.Archive, input CellsInput) (*CellsOutput, error) {
	nodes, err := a.Cells()
	if err != nil {
		return nil, err
	}

	items := make([]CellItem, 0, len(nodes))
	for _, n := range nodes {
		item := CellItem{Label: n.Name, Path: n.Path}
		if input.IncludeValues {
			item.Values, err = a.ToDocument(n.Path)
			if err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}

	return &CellsOutput{
		Records: len(items),
		Cells:   items,
	}, nil
}
