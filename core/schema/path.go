package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Wildcard replaces index segments in a path template.
const Wildcard = "#"

// Separator joins path segments on the wire.
const Separator = "."

// Limits bound the shape of wire paths accepted by Nest.
type Limits struct {
	// MaxIndex is the largest list index accepted in a path.
	MaxIndex int

	// MaxDepth is the largest number of segments in a path.
	MaxDepth int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxIndex: 10000, MaxDepth: 32}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxIndex <= 0 {
		l.MaxIndex = d.MaxIndex
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	return l
}

// SplitPath splits a wire path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, Separator)
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + Separator + segment
}

// Canonicalize returns the template of path: every index segment (the odd
// positions, counting from zero) becomes the Wildcard.
//
//	Child.1.Name.2  ->  Child.#.Name.#
func Canonicalize(path string) string {
	parts := SplitPath(path)
	for i := 1; i < len(parts); i += 2 {
		parts[i] = Wildcard
	}
	return strings.Join(parts, Separator)
}

// Nest builds a tree from flat wire paths. Name segments become
// map[string]any nodes, index segments become map[int]any nodes and the
// raw value sits at the last segment:
//
//	{"foo.1.bar.2": "x"}  ->  {"foo": {1: {"bar": {2: "x"}}}}
//
// An index segment that is not a non-negative integer within limits, a
// path deeper than limits allow, or a path that runs through another
// path's value is an UnknownParameter error.
func Nest(flat map[string]string, limits Limits) (map[string]any, error) {
	limits = limits.withDefaults()
	root := make(map[string]any)
	for _, path := range sortedKeys(flat) {
		if err := setPath(root, path, flat[path], limits); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func setPath(root map[string]any, path, value string, limits Limits) error {
	parts := SplitPath(path)
	if len(parts) > limits.MaxDepth {
		return UnknownParameter(path)
	}

	keys := make([]any, len(parts))
	for i, part := range parts {
		if i%2 == 0 {
			keys[i] = part
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits.MaxIndex {
			return UnknownParameter(path)
		}
		keys[i] = n
	}

	var node any = root
	for i, key := range keys {
		last := i == len(keys)-1
		var next any
		if !last {
			if i%2 == 0 {
				next = map[int]any{}
			} else {
				next = map[string]any{}
			}
		} else {
			next = value
		}

		switch n := node.(type) {
		case map[string]any:
			name := key.(string)
			existing, ok := n[name]
			if !ok {
				n[name] = next
				existing = next
			} else if last || isLeaf(existing) {
				return UnknownParameter(path)
			}
			node = existing
		case map[int]any:
			index := key.(int)
			existing, ok := n[index]
			if !ok {
				n[index] = next
				existing = next
			} else if last || isLeaf(existing) {
				return UnknownParameter(path)
			}
			node = existing
		}
	}
	return nil
}

func isLeaf(v any) bool {
	switch v.(type) {
	case map[string]any, map[int]any:
		return false
	}
	return true
}

// Flatten walks v and writes one entry per leaf into out. Named children
// append ".name" to prefix and sequence items append their 1-based
// position. Nil leaves are dropped.
//
// v may be an *Arguments, a map with string or int keys, a slice, or a
// leaf value. Keys of maps may themselves be dotted paths.
func Flatten(out map[string]any, v any, prefix string) {
	switch node := v.(type) {
	case nil:
		return
	case *Arguments:
		if node == nil {
			return
		}
		for name, child := range node.All() {
			Flatten(out, child, joinPath(prefix, name))
		}
		return
	case map[string]any:
		for name, child := range node {
			Flatten(out, child, joinPath(prefix, name))
		}
		return
	case map[int]any:
		for index, child := range node {
			Flatten(out, child, joinPath(prefix, strconv.Itoa(index)))
		}
		return
	case []any:
		for i, child := range node {
			Flatten(out, child, joinPath(prefix, strconv.Itoa(i+1)))
		}
		return
	case []byte, emptyMarker:
		out[prefix] = node
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			Flatten(out, rv.Index(i).Interface(), joinPath(prefix, strconv.Itoa(i+1)))
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			out[prefix] = v
			return
		}
		iter := rv.MapRange()
		for iter.Next() {
			Flatten(out, iter.Value().Interface(), joinPath(prefix, iter.Key().String()))
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return
		}
		out[prefix] = v
	default:
		out[prefix] = v
	}
}

// FlattenText flattens a decoded document, such as JSON, into wire keys
// with text values, so that it can be extracted like a query string.
func FlattenText(doc map[string]any) map[string]string {
	flat := make(map[string]any)
	Flatten(flat, doc, "")

	out := make(map[string]string, len(flat))
	for key, v := range flat {
		switch val := v.(type) {
		case string:
			out[key] = val
		case []byte:
			out[key] = string(val)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out
}

// Empty is a bundle value sent on the wire as the empty string.
var Empty = emptyMarker{}

type emptyMarker struct{}

func (emptyMarker) String() string { return "" }

// walker carries per-extraction settings through recursive coercion.
type walker struct {
	collect bool
	onFill  func(path string)
}

func newWalker() *walker {
	return &walker{}
}

func (w *walker) defaulted(path string) {
	if w.onFill != nil {
		w.onFill(path)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
