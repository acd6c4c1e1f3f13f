package rules

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrBadRuleFile is returned when a rule file is not a YAML mapping.
var ErrBadRuleFile = errors.New("rules: rule file must be a mapping of name to pattern")

// LoadFile reads an override table from a YAML file. Two shapes are
// accepted:
//
//	rules:
//	  Internal Token: 'itk_[0-9a-f]{32}'
//
// or the same mapping at the top level. Entries whose value is not a
// scalar string are skipped and described in the returned warnings.
func LoadFile(path string) (map[string]string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse is LoadFile over an in-memory document.
func Parse(data []byte) (map[string]string, []string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("rules: parse: %w", err)
	}
	if doc.Kind == 0 {
		return map[string]string{}, nil, nil
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, nil, ErrBadRuleFile
	}
	if inner := lookup(root, "rules"); inner != nil {
		if inner.Kind != yaml.MappingNode {
			return nil, nil, ErrBadRuleFile
		}
		root = inner
	}

	out := make(map[string]string, len(root.Content)/2)
	var warnings []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode || k.Value == "" {
			warnings = append(warnings, fmt.Sprintf("line %d: rule name must be a non-empty string", k.Line))
			continue
		}
		if v.Kind != yaml.ScalarNode || v.Tag == "!!null" || v.Value == "" {
			warnings = append(warnings, fmt.Sprintf("line %d: rule %q has no pattern", v.Line, k.Value))
			continue
		}
		out[k.Value] = v.Value
	}
	return out, warnings, nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
