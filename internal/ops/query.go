package ops

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/hpungsan/hive/internal/archive"
	"github.com/hpungsan/hive/internal/errors"
)

// QueryInput contains parameters for the Query operation.
type QueryInput struct {
	Expr string // required JSONPath, e.g. "$.*.name"
	Base string // optional, default: root
}

// QueryOutput contains the result of the Query operation.
type QueryOutput struct {
	Expr    string `json:"expr"`
	Base    string `json:"base"`
	Count   int    `json:"count"`
	Results []any  `json:"results"`
}

// Query evaluates a JSONPath expression against the document under Base.
// Groups match as objects and slots as strings.
func Query(a *archive.Archive, input QueryInput) (*QueryOutput, error) {
	expr := strings.TrimSpace(input.Expr)
	if expr == "" {
		return nil, errors.NewInvalidRequest("expr is required")
	}
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid jsonpath %q: %v", expr, err))
	}

	base := normalizeBase(input.Base)
	d, err := a.ToDocument(base)
	if err != nil {
		return nil, err
	}

	results := x.Get(d.Map())
	if results == nil {
		results = []any{}
	}
	return &QueryOutput{
		Expr:    expr,
		Base:    base,
		Count:   len(results),
		Results: results,
	}, nil
}
