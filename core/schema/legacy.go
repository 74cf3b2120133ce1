package schema

import (
	"slices"
	"strings"
)

// ConvertLegacy turns dotted-name declarations into nested List and
// Structure parameters. In a dotted name every other segment stands for a
// list index and its text is ignored, so
//
//	Integer("foo.bar.baz.quux"), Integer("foo.bar.shimmy")
//
// becomes
//
//	foo: List(Structure{baz: List(Integer), shimmy: Integer})
//
// A declaration without dots is kept as is. Two different placeholder
// names at the same index position make the list item ambiguous and are
// rejected, as are declarations that nest below another declaration.
func ConvertLegacy(params []*Parameter) (map[string]*Parameter, error) {
	root := make(map[string]any)
	for _, p := range params {
		if err := placeLegacy(root, p); err != nil {
			return nil, err
		}
	}

	fields := make(map[string]*Parameter, len(root))
	for _, name := range sortedKeys(root) {
		converted, err := convertLegacy(root[name], 1, name)
		if err != nil {
			return nil, err
		}
		fields[name] = converted
	}
	return fields, nil
}

func placeLegacy(root map[string]any, p *Parameter) error {
	if p == nil {
		return schemaFault("nil parameter")
	}
	parts := SplitPath(p.name)
	for _, part := range parts {
		if part == "" {
			return schemaFault("parameter name %q has an empty segment", p.name)
		}
	}

	node := root
	for _, part := range parts[:len(parts)-1] {
		switch next := node[part].(type) {
		case nil:
			child := make(map[string]any)
			node[part] = child
			node = child
		case map[string]any:
			node = next
		default:
			return schemaFault("parameter %q nests below parameter %q", p.name, next.(*Parameter).name)
		}
	}

	last := parts[len(parts)-1]
	if existing, ok := node[last].(map[string]any); ok && len(existing) > 0 {
		return schemaFault("parameter %q conflicts with nested parameters below it", p.name)
	}
	node[last] = p
	return nil
}

// convertLegacy interprets node at depth: even depths are structures keyed
// by field name, odd depths are lists keyed by a single placeholder.
func convertLegacy(node any, depth int, template string) (*Parameter, error) {
	if p, ok := node.(*Parameter); ok {
		return p, nil
	}
	children := node.(map[string]any)

	if depth%2 == 0 {
		fields := make(map[string]*Parameter, len(children))
		for _, name := range sortedKeys(children) {
			field, err := convertLegacy(children[name], depth+1, template+Separator+name)
			if err != nil {
				return nil, err
			}
			fields[name] = field
		}
		return NewParameter(template, NewStructureType(fields)), nil
	}

	if len(children) != 1 {
		names := sortedKeys(children)
		return nil, schemaFault("ambiguous list item name for %q: %s", template, strings.Join(names, ", "))
	}
	var placeholder string
	for name := range children {
		placeholder = name
	}
	item, err := convertLegacy(children[placeholder], depth+1, template+Separator+Wildcard)
	if err != nil {
		return nil, err
	}

	// A list of required scalars is itself required; any other list may be
	// empty.
	var opts []Option
	if _, isStruct := item.typ.(*StructureType); isStruct || item.optional {
		opts = append(opts, Optional())
	}
	return List(template, item, opts...), nil
}

// dedupe keeps the last declaration for each name, in first-seen order.
func dedupe(params []*Parameter) []*Parameter {
	index := make(map[string]int, len(params))
	out := make([]*Parameter, 0, len(params))
	for _, p := range params {
		if p == nil {
			out = append(out, p)
			continue
		}
		if i, seen := index[p.name]; seen {
			out[i] = p
			continue
		}
		index[p.name] = len(out)
		out = append(out, p)
	}
	return slices.Clip(out)
}
