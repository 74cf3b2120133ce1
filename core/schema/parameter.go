package schema

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Parameter wraps a Type with the rules applied while coercing a value:
// optionality, default, range, empty handling and a validator.
// Parameters are immutable once built and may be shared between schemas.
type Parameter struct {
	name      string
	optional  bool
	def       any
	min       *int
	max       *int
	allowNone bool
	validator func(any) bool
	typ       Type
}

// Option configures a Parameter.
type Option func(*Parameter)

// Optional lets the parameter be absent, in which case its default is used.
func Optional() Option {
	return func(p *Parameter) { p.optional = true }
}

// Default sets the value used when the parameter is absent or allowed empty.
func Default(v any) Option {
	return func(p *Parameter) { p.def = v }
}

// Min sets the lower range bound, for types that implement Measurer.
func Min(n int) Option {
	return func(p *Parameter) { p.min = &n }
}

// Max sets the upper range bound, for types that implement Measurer.
func Max(n int) Option {
	return func(p *Parameter) { p.max = &n }
}

// NoMin removes the lower bound, including the zero floor of Integer.
func NoMin() Option {
	return func(p *Parameter) { p.min = nil }
}

// AllowNone accepts an empty value and replaces it with the default.
func AllowNone() Option {
	return func(p *Parameter) { p.allowNone = true }
}

// Validator adds a predicate run on the parsed value. A false result is
// reported exactly like a parse failure.
func Validator(fn func(any) bool) Option {
	return func(p *Parameter) { p.validator = fn }
}

// NewParameter builds a Parameter of an arbitrary Type.
func NewParameter(name string, typ Type, opts ...Option) *Parameter {
	p := &Parameter{name: name, typ: typ}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Unicode declares a UTF-8 text parameter. Min and Max bound its length.
func Unicode(name string, opts ...Option) *Parameter {
	return NewParameter(name, UnicodeType{}, opts...)
}

// RawString declares a parameter whose value is passed through as is.
func RawString(name string, opts ...Option) *Parameter {
	return NewParameter(name, RawStringType{}, opts...)
}

// Integer declares an integer parameter. Values below zero are rejected
// unless Min or NoMin says otherwise.
func Integer(name string, opts ...Option) *Parameter {
	return NewParameter(name, IntegerType{}, append([]Option{Min(0)}, opts...)...)
}

// Bool declares a boolean parameter.
func Bool(name string, opts ...Option) *Parameter {
	return NewParameter(name, BoolType{}, opts...)
}

// Date declares an ISO 8601 date parameter.
func Date(name string, opts ...Option) *Parameter {
	return NewParameter(name, DateType{}, opts...)
}

// Enum declares a parameter restricted to the tokens of mapping.
// It panics if two tokens map to the same value, like regexp.MustCompile
// does for a bad pattern; use NewEnumType to handle the error instead.
func Enum(name string, mapping map[string]any, opts ...Option) *Parameter {
	typ, err := NewEnumType(mapping)
	if err != nil {
		panic(fmt.Sprintf("schema: enum %q: %v", name, err))
	}
	return NewParameter(name, typ, opts...)
}

// List declares a repeated parameter whose items are described by item.
// The name of item is ignored.
func List(name string, item *Parameter, opts ...Option) *Parameter {
	return NewParameter(name, &ListType{Item: item}, opts...)
}

// Structure declares a parameter with named fields. Each field is keyed by
// its own name.
func Structure(name string, fields ...*Parameter) *Parameter {
	m := make(map[string]*Parameter, len(fields))
	for _, f := range fields {
		m[f.name] = f
	}
	return NewParameter(name, NewStructureType(m))
}

// Name returns the declared name (a path template for legacy declarations).
func (p *Parameter) Name() string { return p.name }

// Type returns the parameter's Type.
func (p *Parameter) Type() Type { return p.typ }

// IsOptional reports whether the parameter may be absent.
func (p *Parameter) IsOptional() bool { return p.optional }

// DefaultValue returns the configured default, or nil.
func (p *Parameter) DefaultValue() any { return p.def }

// Range returns the configured bounds; nil means unbounded.
func (p *Parameter) Range() (min, max *int) { return p.min, p.max }

// Parse parses raw with the parameter's Type, without any coercion rules.
func (p *Parameter) Parse(raw any) (any, error) { return p.typ.Parse(raw) }

// Format renders v with the parameter's Type.
func (p *Parameter) Format(v any) (string, error) { return p.typ.Format(v) }

// Coerce applies the parameter's rules to a raw value. A nil raw means the
// value is absent altogether, as opposed to the empty string.
func (p *Parameter) Coerce(raw any) (any, error) {
	return p.coerce(raw, p.name, newWalker())
}

func (p *Parameter) coerce(raw any, path string, w *walker) (any, error) {
	if raw == nil {
		if p.optional {
			w.defaulted(path)
			return p.absentValue(), nil
		}
		raw = ""
	}
	if s, ok := raw.(string); ok && s == "" {
		if !p.allowNone {
			return nil, MissingParameter(path)
		}
		w.defaulted(path)
		return p.absentValue(), nil
	}

	var (
		v   any
		err error
	)
	if c, ok := p.typ.(composite); ok {
		v, err = c.coerceNode(raw, path, w)
		if err != nil && !errors.Is(err, errBadValue) {
			return nil, err
		}
	} else {
		v, err = p.typ.Parse(raw)
	}
	if err != nil {
		return nil, p.invalid(raw, path)
	}

	if err := p.checkRange(v, raw, path); err != nil {
		return nil, err
	}
	if p.validator != nil && !p.validator(v) {
		return nil, p.invalid(raw, path)
	}
	return v, nil
}

// absentValue is the default, or an empty sequence for lists without one.
func (p *Parameter) absentValue() any {
	if p.def == nil {
		if _, ok := p.typ.(*ListType); ok {
			return []any{}
		}
	}
	return p.def
}

// checkRange runs after Parse for every type, so Measure always sees the
// typed value.
func (p *Parameter) checkRange(v, raw any, path string) error {
	if p.min == nil && p.max == nil {
		return nil
	}
	m, ok := p.typ.(Measurer)
	if !ok {
		return nil
	}

	measure := m.Measure(v)
	below, above := m.RangeMessages()
	prefix := fmt.Sprintf("Value (%v) for parameter %s is invalid.  ", displayValue(raw), path)

	if p.min != nil && measure < *p.min {
		return invalidParameterValue(path, prefix+fmt.Sprintf(below, *p.min))
	}
	if p.max != nil && measure > *p.max {
		return invalidParameterValue(path, prefix+fmt.Sprintf(above, *p.max))
	}
	return nil
}

func (p *Parameter) invalid(raw any, path string) *Error {
	kind := p.typ.Kind()
	if s, ok := raw.(string); ok && utf8.ValidString(s) {
		return invalidParameterValue(path, fmt.Sprintf("Invalid %s value %s", kind, s))
	}
	return invalidParameterValue(path, fmt.Sprintf("Invalid %s value", kind))
}

func displayValue(raw any) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}
