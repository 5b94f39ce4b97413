package ops

import (
	"fmt"
	"io"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/config"
	"github.com/hpungsan/hive/internal/document"
	"github.com/hpungsan/hive/internal/errors"
)

// MaxImportBytes caps the size of an import file.
const MaxImportBytes = 64 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path     string // required, .json, .yaml or .yml
	Base     string // optional, default: root
	Flat     bool   // keys are "/"-joined paths
	Envelope bool   // document is wrapped as {"ARChive": ...}
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Written int    `json:"written"`
}

// Import loads a document file into existing slots. The schema must already
// hold every slot the document names; the first missing slot aborts the import
// with the slots before it already written.
func Import(a *archive.Archive, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	format, err := FormatForPath(input.Path)
	if err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrInvalidRequest) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import file: %w", err))
	}
	if len(data) > MaxImportBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("import file exceeds %d bytes", MaxImportBytes))
	}

	var d *document.Document
	if format == FormatYAML {
		d, err = document.ParseYAML(data)
	} else {
		d, err = document.Parse(data)
	}
	if err != nil {
		return nil, err
	}

	written, err := Load(a, LoadInput{Document: d, Base: input.Base, Flat: input.Flat, Envelope: input.Envelope})
	if err != nil {
		return nil, err
	}

	return &ImportOutput{Path: input.Path, Format: format, Written: written.Written}, nil
}

// LoadInput contains parameters for the Load operation.
type LoadInput struct {
	Document *document.Document // required
	Base     string             // optional, default: root
	Flat     bool
	Envelope bool
}

// LoadOutput contains the result of the Load operation.
type LoadOutput struct {
	Written int `json:"written"`
}

// Load writes an in-memory document into existing slots under Base.
func Load(a *archive.Archive, input LoadInput) (*LoadOutput, error) {
	d := input.Document
	if d == nil {
		return nil, errors.NewInvalidRequest("document is required")
	}

	if input.Envelope {
		inner, ok := d.Get(archive.EnvelopeKey)
		nested, isDoc := inner.(*document.Document)
		if !ok || !isDoc || d.Len() != 1 {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("document must be wrapped as {%q: {...}}", archive.EnvelopeKey))
		}
		d = nested
	}
	if input.Flat {
		var err error
		d, err = document.Unflatten(d)
		if err != nil {
			return nil, err
		}
	}

	prefix := normalizeBase(input.Base)
	if prefix != "/" {
		prefix += "/"
	}
	if err := a.FromDocument(d, prefix); err != nil {
		return nil, err
	}

	return &LoadOutput{Written: document.Flatten(d).Len()}, nil
}
