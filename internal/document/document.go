// Package document converts YAML source into the generic tree consumed by the
// mapper: mappings are map[string]interface{}, sequences are []interface{}, and
// everything else is a scalar.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"github.com/mitchellh/copystructure"
	"gopkg.in/yaml.v3"
)

// Parse decodes a single YAML document. Empty source yields a nil tree.
func Parse(source string) (interface{}, error) {
	var node interface{}
	if err := yaml.Unmarshal([]byte(source), &node); err != nil {
		return nil, apperrors.InvalidInput("failed to parse YAML: %v", err)
	}
	return Normalize(node), nil
}

// ParseAll decodes every document of a "---" separated stream, skipping empty ones.
func ParseAll(source string) ([]interface{}, error) {
	decoder := yaml.NewDecoder(strings.NewReader(source))

	var docs []interface{}
	for i := 0; ; i++ {
		var node interface{}
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.InvalidInput("failed to parse YAML document %d: %v", i, err)
		}
		if node == nil {
			continue
		}
		docs = append(docs, Normalize(node))
	}
	return docs, nil
}

// Serialize encodes a generic tree back to YAML with two-space indentation.
func Serialize(doc interface{}) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to serialize document: %w", err)
	}
	return buf.String(), nil
}

// Clone returns a deep copy of doc, so callers can hold on to a tree that
// nobody else can mutate.
func Clone(doc interface{}) (interface{}, error) {
	if doc == nil {
		return nil, nil
	}
	copied, err := copystructure.Copy(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to copy document: %w", err)
	}
	return copied, nil
}

// Normalize rewrites map[interface{}]interface{} nodes, which YAML produces for
// non-string keys, into map[string]interface{} so every mapping has one shape.
func Normalize(node interface{}) interface{} {
	switch n := node.(type) {
	case map[string]interface{}:
		for k, v := range n {
			n[k] = Normalize(v)
		}
		return n
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, v := range n {
			out[fmt.Sprint(k)] = Normalize(v)
		}
		return out
	case []interface{}:
		for i, v := range n {
			n[i] = Normalize(v)
		}
		return n
	default:
		return node
	}
}
