package document

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/hive/internal/errors"
)

// ParseYAML decodes a YAML mapping into a document, keeping key order.
// Scalars become strings; sequences become []any.
func ParseYAML(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid YAML: %v", err))
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.NewInvalidRequest("document must be a YAML mapping")
	}
	node := root.Content[0]
	if node.Kind != yaml.MappingNode {
		return nil, errors.NewInvalidRequest("document must be a YAML mapping")
	}
	return decodeMapping(node)
}

func decodeMapping(node *yaml.Node) (*Document, error) {
	d := New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: mapping keys must be scalars", key.Line))
		}
		v, err := decodeNode(value)
		if err != nil {
			return nil, err
		}
		d.Set(key.Value, v)
	}
	return d, nil
}

func decodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		return decodeMapping(node)
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := decodeNode(item)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return "", nil
		}
		return node.Value, nil
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("line %d: unsupported YAML node", node.Line))
}
