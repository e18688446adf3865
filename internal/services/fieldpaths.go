package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FieldPath is one selectable leaf of a JSON document.
type FieldPath struct {
	Path   string `json:"path"`
	Type   string `json:"type"`
	Sample any    `json:"sample,omitempty"`
}

// LeafPaths lists the scalar leaves of doc as "a.b[0].c" paths in sorted key
// order. Keys that contain '.', '[', ']' or '"', or are empty, are written
// quoted in brackets: `["Global Quote"]["01. symbol"]`. Arrays contribute
// their first element only. Containers nested deeper than maxDepth are not
// descended into.
func LeafPaths(doc any, maxDepth int) []FieldPath {
	if maxDepth <= 0 {
		maxDepth = 8
	}
	out := []FieldPath{}
	walkLeaves(doc, "", 0, maxDepth, &out)
	return out
}

func walkLeaves(v any, prefix string, depth, maxDepth int, out *[]FieldPath) {
	switch t := v.(type) {
	case map[string]any:
		if depth >= maxDepth {
			return
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkLeaves(t[k], joinKey(prefix, k), depth+1, maxDepth, out)
		}
	case []any:
		if depth >= maxDepth || len(t) == 0 {
			return
		}
		walkLeaves(t[0], prefix+"[0]", depth+1, maxDepth, out)
	default:
		if prefix == "" {
			return
		}
		*out = append(*out, FieldPath{Path: prefix, Type: leafType(t), Sample: t})
	}
}

func leafType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case string:
		return "string"
	}
	return fmt.Sprintf("%T", v)
}

func joinKey(prefix, key string) string {
	if key == "" || strings.ContainsAny(key, `.[]"`) {
		return prefix + "[" + strconv.Quote(key) + "]"
	}
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// ExtractField resolves a path produced by LeafPaths against doc.
func ExtractField(doc any, path string) (any, bool) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	cur := doc
	for _, st := range steps {
		if st.isIndex {
			arr, ok := cur.([]any)
			if !ok || st.index < 0 || st.index >= len(arr) {
				return nil, false
			}
			cur = arr[st.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[st.key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// ExtractFields picks the listed paths; unresolved ones are left out.
func ExtractFields(doc any, paths []string) map[string]any {
	out := make(map[string]any, len(paths))
	for _, p := range paths {
		if v, ok := ExtractField(doc, p); ok {
			out[p] = v
		}
	}
	return out
}

type pathStep struct {
	key     string
	index   int
	isIndex bool
}

// parsePath splits a path into key and index steps. Bare keys run to the
// next '.' or '['; bracketed steps hold either an index or a quoted key.
func parsePath(path string) ([]pathStep, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	var steps []pathStep
	for i := 0; i < len(path); {
		switch path[i] {
		case '.':
			if i == 0 || i+1 >= len(path) || path[i+1] == '.' {
				return nil, fmt.Errorf("bad path %q", path)
			}
			i++
		case '[':
			if i+1 < len(path) && path[i+1] == '"' {
				quoted, err := strconv.QuotedPrefix(path[i+1:])
				if err != nil {
					return nil, fmt.Errorf("bad path %q: %w", path, err)
				}
				key, err := strconv.Unquote(quoted)
				if err != nil {
					return nil, fmt.Errorf("bad path %q: %w", path, err)
				}
				end := i + 1 + len(quoted)
				if end >= len(path) || path[end] != ']' {
					return nil, fmt.Errorf("bad path %q", path)
				}
				steps = append(steps, pathStep{key: key})
				i = end + 1
				continue
			}
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("bad path %q", path)
			}
			n, err := strconv.Atoi(path[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("bad path %q: %w", path, err)
			}
			steps = append(steps, pathStep{index: n, isIndex: true})
			i += end + 1
		default:
			end := strings.IndexAny(path[i:], ".[")
			if end < 0 {
				end = len(path) - i
			}
			steps = append(steps, pathStep{key: path[i : i+end]})
			i += end
		}
	}
	return steps, nil
}
