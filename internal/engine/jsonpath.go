package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// decodeObject decodes body into a generic object tree. Numbers keep their
// literal text. A null body decodes to an empty tree.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	if tree == nil {
		tree = map[string]any{}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode json object: trailing data after object")
	}
	return tree, nil
}

// Lookup walks a dot-separated path through nested objects and renders the
// scalar it lands on. Missing keys, traversal through a non-object, and
// non-scalar results all yield "". Arrays are not indexable.
func Lookup(tree map[string]any, path string) string {
	if path == "" || tree == nil {
		return ""
	}
	var cur any = tree
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		if cur, ok = obj[seg]; !ok {
			return ""
		}
	}
	return scalarString(cur)
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
