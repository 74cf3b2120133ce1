package schema

import "fmt"

// Definition is a declarative schema for one API action.
type Definition struct {
	// Action names the schema, e.g. "RunInstances".
	Action string `yaml:"action"`

	// Description is free text for documentation.
	Description string `yaml:"description,omitempty"`

	// Parameters are the declared parameters.
	Parameters []Field `yaml:"parameters"`
}

// Build converts the definition into a Schema.
func (d Definition) Build(opts ...SchemaOption) (*Schema, error) {
	params := make([]*Parameter, 0, len(d.Parameters))
	for _, f := range d.Parameters {
		p, err := f.Build()
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}

	s, err := New(params...)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", d.Action, err)
	}
	return s.WithOptions(append([]SchemaOption{WithName(d.Action)}, opts...)...), nil
}
