package archive

import (
	"fmt"
	"os"

	"github.com/hpungsan/hive/internal/container"
	"github.com/hpungsan/hive/internal/document"
	"github.com/hpungsan/hive/internal/errors"
)

// EnvelopeKey wraps documents produced by ToEnvelope and ToFlatEnvelope.
const EnvelopeKey = "ARChive"

// ToDocument maps the tree under base ("" or "/" for the root) to a document.
// Groups become nested documents; slots become their string form, "" for an
// empty string slot.
func (a *Archive) ToDocument(base string) (*document.Document, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	return a.toDocument(container.Clean(base))
}

func (a *Archive) toDocument(p string) (*document.Document, error) {
	nodes, err := a.c.Children(p)
	if err != nil {
		return nil, err
	}

	d := document.New()
	for _, n := range nodes {
		switch n.Kind {
		case container.KindGroup:
			child, err := a.toDocument(n.Path)
			if err != nil {
				return nil, err
			}
			d.Set(n.Name, child)
		case container.KindSlot:
			v, err := a.c.Read(n.Path)
			if err != nil {
				return nil, err
			}
			if v.IsEmpty() {
				d.Set(n.Name, "")
			} else {
				d.Set(n.Name, v.String())
			}
		}
	}
	return d, nil
}

// ToFlatDocument is ToDocument with nested keys joined by "/".
func (a *Archive) ToFlatDocument(base string) (*document.Document, error) {
	d, err := a.ToDocument(base)
	if err != nil {
		return nil, err
	}
	return document.Flatten(d), nil
}

// ToEnvelope wraps ToDocument as {"ARChive": ...}.
func (a *Archive) ToEnvelope(base string) (*document.Document, error) {
	d, err := a.ToDocument(base)
	if err != nil {
		return nil, err
	}
	return document.Envelope(EnvelopeKey, d), nil
}

// ToFlatEnvelope wraps ToFlatDocument as {"ARChive": ...}.
func (a *Archive) ToFlatEnvelope(base string) (*document.Document, error) {
	d, err := a.ToFlatDocument(base)
	if err != nil {
		return nil, err
	}
	return document.Envelope(EnvelopeKey, d), nil
}

// FromDocument writes every leaf of d into the slot at prefix+key, descending
// into nested documents. Slots must already exist: build the schema with
// Initialize and AddCell before loading data.
func (a *Archive) FromDocument(d *document.Document, prefix string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if prefix == "" {
		prefix = "/"
	}
	return d.Each(func(key string, value any) error {
		switch v := value.(type) {
		case *document.Document:
			return a.FromDocument(v, prefix+key+"/")
		case map[string]any:
			return a.FromDocument(document.FromMap(v), prefix+key+"/")
		default:
			return a.Set(prefix+key, v)
		}
	})
}

// FromFlatDocument loads a document with "/"-joined keys.
func (a *Archive) FromFlatDocument(flat *document.Document) error {
	d, err := document.Unflatten(flat)
	if err != nil {
		return err
	}
	return a.FromDocument(d, "/")
}

// ToJSON renders ToDocument(base) as JSON text in tree order.
func (a *Archive) ToJSON(base string) (string, error) {
	d, err := a.ToDocument(base)
	if err != nil {
		return "", err
	}
	data, err := d.JSON("")
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// DumpJSON writes ToDocument(base) as JSON to filename.
func (a *Archive) DumpJSON(base, filename string) error {
	text, err := a.ToJSON(base)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, []byte(text), 0644); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to write %s: %w", filename, err))
	}
	return nil
}

// FromJSON parses JSON text and loads it with FromDocument.
func (a *Archive) FromJSON(text string) error {
	d, err := document.Parse([]byte(text))
	if err != nil {
		return err
	}
	return a.FromDocument(d, "/")
}
