package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Constraint is a declarative validation rule. Constraints are compiled
// once into the parameter's validator when a definition is built.
type Constraint struct {
	// Type is the constraint type (pattern, not_empty, one_of, ...).
	Type ConstraintType `yaml:"type" json:"type" jsonschema:"enum=pattern,enum=not_empty,enum=prefix,enum=min_length,enum=max_length,enum=one_of"`

	// Value is the constraint parameter (regex pattern, list, length).
	Value any `yaml:"value,omitempty" json:"value,omitempty"`
}

// ConstraintType identifies the type of constraint.
type ConstraintType string

const (
	// String constraints
	ConstraintPattern   ConstraintType = "pattern"    // Regex the text must match
	ConstraintNotEmpty  ConstraintType = "not_empty"  // Text must not be blank
	ConstraintPrefix    ConstraintType = "prefix"     // Text must start with value
	ConstraintMinLength ConstraintType = "min_length" // Minimum length in characters
	ConstraintMaxLength ConstraintType = "max_length" // Maximum length in characters

	// Generic constraints
	ConstraintOneOf ConstraintType = "one_of" // Value must be one of a list
)

type check func(v any) bool

// compileConstraints folds constraints into a single predicate that
// passes only when every constraint passes.
func compileConstraints(cs []Constraint) (func(any) bool, error) {
	checks := make([]check, 0, len(cs))
	for _, c := range cs {
		fn, err := c.compile()
		if err != nil {
			return nil, err
		}
		checks = append(checks, fn)
	}
	return func(v any) bool {
		for _, fn := range checks {
			if !fn(v) {
				return false
			}
		}
		return true
	}, nil
}

func (c Constraint) compile() (check, error) {
	switch c.Type {
	case ConstraintPattern:
		pattern, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("pattern constraint requires a string value")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern constraint: %w", err)
		}
		return func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}, nil

	case ConstraintNotEmpty:
		return func(v any) bool {
			s, ok := v.(string)
			return ok && strings.TrimSpace(s) != ""
		}, nil

	case ConstraintPrefix:
		prefix, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("prefix constraint requires a string value")
		}
		return func(v any) bool {
			s, ok := v.(string)
			return ok && strings.HasPrefix(s, prefix)
		}, nil

	case ConstraintMinLength, ConstraintMaxLength:
		n, err := toInt(c.Value)
		if err != nil {
			return nil, fmt.Errorf("%s constraint: %w", c.Type, err)
		}
		atLeast := c.Type == ConstraintMinLength
		return func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			length := utf8.RuneCountInString(s)
			if atLeast {
				return length >= n
			}
			return length <= n
		}, nil

	case ConstraintOneOf:
		allowed, err := toStrings(c.Value)
		if err != nil {
			return nil, fmt.Errorf("one_of constraint: %w", err)
		}
		set := make(map[string]bool, len(allowed))
		for _, a := range allowed {
			set[a] = true
		}
		return func(v any) bool {
			return set[fmt.Sprintf("%v", v)]
		}, nil

	default:
		return nil, fmt.Errorf("unknown constraint type %q", c.Type)
	}
}

// toInt converts various types to int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

func toStrings(v any) ([]string, error) {
	switch vals := v.(type) {
	case []string:
		return vals, nil
	case []any:
		out := make([]string, len(vals))
		for i, val := range vals {
			out[i] = fmt.Sprintf("%v", val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}
