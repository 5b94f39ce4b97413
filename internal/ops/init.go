package ops

import (
	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/report"
	"github.com/hpungsan/hive/internal/template"
)

// InitInput contains parameters for the Init operation.
type InitInput struct {
	TemplatePath string // optional, default: the archive's template
}

// InitOutput contains the result of the Init operation.
type InitOutput struct {
	Template string `json:"template"`
	Version  string `json:"version"`
	Slots    int    `json:"slots"`
}

// Init builds the top-level schema and resets the version and record counter.
func Init(a *archive.Archive, input InitInput) (*InitOutput, error) {
	tmpl := a.Template()
	if input.TemplatePath != "" {
		var err error
		tmpl, err = template.ParseFile(input.TemplatePath)
		if err != nil {
			return nil, err
		}
	}

	if err := a.Initialize(tmpl, ""); err != nil {
		return nil, err
	}

	paths, err := report.DataPaths(a, "/")
	if err != nil {
		return nil, err
	}

	return &InitOutput{
		Template: tmpl.Name,
		Version:  a.Version,
		Slots:    len(paths),
	}, nil
}
