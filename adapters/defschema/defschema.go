// Package defschema publishes a JSON Schema for action definition files
// and validates YAML documents against it. Structural problems such as a
// misspelled key are reported with their location in the document, before
// a definition is ever built.
package defschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	reflectschema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/artpar/querywire/core/schema"
)

// resourceName is the location the generated schema is compiled under.
const resourceName = "definition.json"

// Problem is a single structural problem in a definition document.
type Problem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Path != "" {
		return fmt.Sprintf("%s: %s", p.Path, p.Message)
	}
	return p.Message
}

// Reflect returns the JSON Schema of schema.Definition.
func Reflect() *reflectschema.Schema {
	r := &reflectschema.Reflector{
		FieldNameTag:   "yaml",
		ExpandedStruct: true,
		Anonymous:      true,
	}
	s := r.Reflect(new(schema.Definition))
	s.Title = "Action definition"
	s.Description = "Parameters of one EC2-style query API action."
	return s
}

// Generate returns the indented JSON Schema document.
func Generate() ([]byte, error) {
	return json.MarshalIndent(Reflect(), "", "  ")
}

// Validator checks definition documents against the generated schema.
type Validator struct {
	schema *jsonschema.Schema
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns a shared Validator, compiled on first use.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

// NewValidator compiles the generated schema.
func NewValidator() (*Validator, error) {
	data, err := Generate()
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse generated schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: compiled}, nil
}

// ValidateFile validates the definition file at path.
func (v *Validator) ValidateFile(path string) []Problem {
	data, err := os.ReadFile(path)
	if err != nil {
		return []Problem{{Message: fmt.Sprintf("failed to read file: %v", err)}}
	}
	return v.ValidateYAML(data)
}

// ValidateYAML validates a YAML definition document.
func (v *Validator) ValidateYAML(data []byte) []Problem {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return []Problem{{Message: fmt.Sprintf("failed to parse YAML: %v", err)}}
	}

	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return []Problem{{Message: fmt.Sprintf("document is not JSON compatible: %v", err)}}
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return []Problem{{Message: fmt.Sprintf("failed to decode document: %v", err)}}
	}

	return v.ValidateDocument(doc)
}

// ValidateDocument validates an already decoded document.
func (v *Validator) ValidateDocument(doc any) []Problem {
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Problem{{Message: err.Error()}}
	}
	return collect(ve)
}

// collect gathers the leaf causes of a validation error.
func collect(ve *jsonschema.ValidationError) []Problem {
	if len(ve.Causes) == 0 {
		path := ""
		if len(ve.InstanceLocation) > 0 {
			path = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		return []Problem{{Path: path, Message: ve.Error()}}
	}

	var problems []Problem
	for _, cause := range ve.Causes {
		problems = append(problems, collect(cause)...)
	}
	return problems
}
