package ops

import (
	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/document"
)

// DocumentInput contains parameters for the Document operation.
type DocumentInput struct {
	Base     string // optional, default: root
	Flat     bool   // "/"-joined keys
	Envelope bool   // wrap as {"ARChive": ...}
}

// DocumentOutput contains the result of the Document operation.
type DocumentOutput struct {
	Base     string             `json:"base"`
	Document *document.Document `json:"document"`
}

// Document renders the tree under Base as a document.
func Document(a *archive.Archive, input DocumentInput) (*DocumentOutput, error) {
	base := normalizeBase(input.Base)

	var (
		d   *document.Document
		err error
	)
	switch {
	case input.Flat && input.Envelope:
		d, err = a.ToFlatEnvelope(base)
	case input.Flat:
		d, err = a.ToFlatDocument(base)
	case input.Envelope:
		d, err = a.ToEnvelope(base)
	default:
		d, err = a.ToDocument(base)
	}
	if err != nil {
		return nil, err
	}

	return &DocumentOutput{Base: base, Document: d}, nil
}
