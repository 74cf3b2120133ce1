package schema

import (
	"iter"
	"slices"
	"time"
)

// Arguments is a read-only view of extracted parameters. Named children are
// looked up by name; structures become nested *Arguments and lists become
// ordered sequences.
type Arguments struct {
	values map[string]any
	names  []string
}

// NewArguments wraps a coerced tree. Nested maps become *Arguments and
// slices are copied with their items wrapped.
func NewArguments(tree map[string]any) *Arguments {
	a := &Arguments{
		values: make(map[string]any, len(tree)),
		names:  make([]string, 0, len(tree)),
	}
	for name, v := range tree {
		a.values[name] = wrap(v)
		a.names = append(a.names, name)
	}
	slices.Sort(a.names)
	return a
}

func wrap(v any) any {
	switch node := v.(type) {
	case map[string]any:
		return NewArguments(node)
	case []any:
		items := make([]any, len(node))
		for i, item := range node {
			items[i] = wrap(item)
		}
		return items
	}
	return v
}

// Get returns the value of the named argument.
func (a *Arguments) Get(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Has reports whether the named argument is present.
func (a *Arguments) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns the named argument if it is text.
func (a *Arguments) String(name string) (string, bool) {
	s, ok := a.values[name].(string)
	return s, ok
}

// Int returns the named argument if it is an integer.
func (a *Arguments) Int(name string) (int, bool) {
	n, ok := a.values[name].(int)
	return n, ok
}

// Bool returns the named argument if it is a boolean.
func (a *Arguments) Bool(name string) (bool, bool) {
	b, ok := a.values[name].(bool)
	return b, ok
}

// Time returns the named argument if it is a date.
func (a *Arguments) Time(name string) (time.Time, bool) {
	t, ok := a.values[name].(time.Time)
	return t, ok
}

// Struct returns the named argument if it is a structure.
func (a *Arguments) Struct(name string) (*Arguments, bool) {
	s, ok := a.values[name].(*Arguments)
	return s, ok
}

// Sequence returns a copy of the named list argument.
func (a *Arguments) Sequence(name string) ([]any, bool) {
	items, ok := a.values[name].([]any)
	if !ok {
		return nil, false
	}
	return slices.Clone(items), true
}

// Len returns the number of arguments.
func (a *Arguments) Len() int { return len(a.values) }

// Names returns the argument names in sorted order.
func (a *Arguments) Names() []string { return slices.Clone(a.names) }

// All yields each argument in name order.
func (a *Arguments) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, name := range a.names {
			if !yield(name, a.values[name]) {
				return
			}
		}
	}
}

// Map returns the arguments as plain nested maps and slices, suitable for
// encoding or comparison.
func (a *Arguments) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for name, v := range a.values {
		out[name] = unwrap(v)
	}
	return out
}

func unwrap(v any) any {
	switch node := v.(type) {
	case *Arguments:
		return node.Map()
	case []any:
		items := make([]any, len(node))
		for i, item := range node {
			items[i] = unwrap(item)
		}
		return items
	}
	return v
}
