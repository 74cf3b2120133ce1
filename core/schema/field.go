package schema

import (
	"fmt"
)

// Field is the YAML declaration of one parameter.
type Field struct {
	// Name is the wire name, or a legacy dotted template such as
	// "SecurityGroup.n". Ignored for list items.
	Name string `yaml:"name,omitempty"`

	// Type is the parameter type. See FieldType constants.
	Type FieldType `yaml:"type,omitempty" jsonschema:"enum=unicode,enum=raw,enum=integer,enum=boolean,enum=enum,enum=date,enum=list,enum=structure,enum=string,enum=int,enum=bool,enum=timestamp"`

	// Optional lets the parameter be absent.
	Optional bool `yaml:"optional,omitempty"`

	// Default value used when absent. Text is parsed with the field's type,
	// so a date default may be written as an ISO 8601 string and an enum
	// default as its token.
	Default any `yaml:"default,omitempty"`

	// Min and Max bound the value (integer) or length (unicode).
	Min *int `yaml:"min,omitempty"`
	Max *int `yaml:"max,omitempty"`

	// NoMin drops the zero floor of integer fields.
	NoMin bool `yaml:"no_min,omitempty"`

	// AllowNone accepts the empty string and replaces it with the default.
	AllowNone bool `yaml:"allow_none,omitempty"`

	// Values lists enum tokens: either a token to value mapping, or a
	// sequence of tokens that map to themselves.
	Values any `yaml:"values,omitempty"`

	// Item describes list items.
	Item *Field `yaml:"item,omitempty"`

	// Fields describes structure fields.
	Fields []Field `yaml:"fields,omitempty"`

	// Constraints are extra validation rules applied to the parsed value.
	Constraints []Constraint `yaml:"constraints,omitempty"`
}

// FieldType represents the type of a declared parameter.
type FieldType string

const (
	FieldTypeUnicode   FieldType = "unicode"
	FieldTypeRaw       FieldType = "raw"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeEnum      FieldType = "enum"      // Requires Values
	FieldTypeDate      FieldType = "date"      // ISO 8601
	FieldTypeList      FieldType = "list"      // Requires Item
	FieldTypeStructure FieldType = "structure" // Requires Fields

	// Aliases
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
)

// Canonical resolves aliases to the primary type name.
func (t FieldType) Canonical() FieldType {
	switch t {
	case FieldTypeString:
		return FieldTypeUnicode
	case FieldTypeInt:
		return FieldTypeInteger
	case FieldTypeBool:
		return FieldTypeBoolean
	case FieldTypeTimestamp:
		return FieldTypeDate
	case "":
		return FieldTypeUnicode
	default:
		return t
	}
}

// Build turns the declaration into a Parameter.
func (f Field) Build() (*Parameter, error) {
	typ, err := f.buildType()
	if err != nil {
		return nil, err
	}

	var opts []Option
	if f.Optional {
		opts = append(opts, Optional())
	}
	if f.AllowNone {
		opts = append(opts, AllowNone())
	}
	if typ.Kind() == KindInteger && !f.NoMin {
		opts = append(opts, Min(0))
	}
	if f.Min != nil {
		opts = append(opts, Min(*f.Min))
	}
	if f.Max != nil {
		opts = append(opts, Max(*f.Max))
	}

	if f.Default != nil {
		def, err := f.defaultValue(typ)
		if err != nil {
			return nil, err
		}
		opts = append(opts, Default(def))
	}

	if len(f.Constraints) > 0 {
		validator, err := compileConstraints(f.Constraints)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		opts = append(opts, Validator(validator))
	}

	return NewParameter(f.Name, typ, opts...), nil
}

func (f Field) buildType() (Type, error) {
	switch f.Type.Canonical() {
	case FieldTypeUnicode:
		return UnicodeType{}, nil
	case FieldTypeRaw:
		return RawStringType{}, nil
	case FieldTypeInteger:
		return IntegerType{}, nil
	case FieldTypeBoolean:
		return BoolType{}, nil
	case FieldTypeDate:
		return DateType{}, nil
	case FieldTypeEnum:
		mapping, err := f.enumMapping()
		if err != nil {
			return nil, err
		}
		typ, err := NewEnumType(mapping)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		return typ, nil
	case FieldTypeList:
		if f.Item == nil {
			return nil, fmt.Errorf("field %q: list type requires item", f.Name)
		}
		item, err := f.Item.Build()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		return &ListType{Item: item}, nil
	case FieldTypeStructure:
		if len(f.Fields) == 0 {
			return nil, fmt.Errorf("field %q: structure type requires fields", f.Name)
		}
		fields := make(map[string]*Parameter, len(f.Fields))
		for _, sub := range f.Fields {
			if _, dup := fields[sub.Name]; dup {
				return nil, fmt.Errorf("field %q: duplicate field %q", f.Name, sub.Name)
			}
			p, err := sub.Build()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			fields[sub.Name] = p
		}
		return NewStructureType(fields), nil
	default:
		return nil, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
	}
}

func (f Field) enumMapping() (map[string]any, error) {
	switch values := f.Values.(type) {
	case map[string]any:
		if len(values) > 0 {
			return values, nil
		}
	case []any:
		mapping := make(map[string]any, len(values))
		for _, v := range values {
			token := fmt.Sprintf("%v", v)
			mapping[token] = token
		}
		if len(mapping) > 0 {
			return mapping, nil
		}
	}
	return nil, fmt.Errorf("field %q: enum type requires values", f.Name)
}

// defaultValue parses text defaults with the field's type so YAML authors
// can write them in wire form.
func (f Field) defaultValue(typ Type) (any, error) {
	text, ok := f.Default.(string)
	if !ok {
		return f.Default, nil
	}
	switch typ.(type) {
	case UnicodeType, RawStringType:
		return text, nil
	}
	v, err := typ.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("field %q: default %q is not a valid %s", f.Name, text, typ.Kind())
	}
	return v, nil
}
