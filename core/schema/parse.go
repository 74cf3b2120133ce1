package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a schema definition from a YAML file.
func ParseFile(path string, opts ...SchemaOption) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	s, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse parses a schema definition from YAML bytes.
func Parse(data []byte, opts ...SchemaOption) (*Schema, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	return def.Build(opts...)
}

// ParseDefinition decodes and validates a definition without building it.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(def); err != nil {
		return Definition{}, fmt.Errorf("validate action %q: %w", def.Action, err)
	}

	return def, nil
}

// ParseDir parses all definitions in a directory, including subdirectories.
func ParseDir(dir string, opts ...SchemaOption) ([]*Schema, error) {
	var schemas []*Schema

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path, opts...)
			if err != nil {
				return nil, err
			}
			schemas = append(schemas, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		s, err := ParseFile(path, opts...)
		if err != nil {
			return nil, err
		}

		schemas = append(schemas, s)
	}

	return schemas, nil
}

// Validate checks a definition for problems that can be reported together.
// Type-level problems are reported by Build.
func Validate(def Definition) error {
	var errs []string

	if def.Action == "" {
		errs = append(errs, "action name is required")
	} else if !isValidIdentifier(def.Action) {
		errs = append(errs, fmt.Sprintf("action name %q is not a valid identifier", def.Action))
	}

	if len(def.Parameters) == 0 {
		errs = append(errs, "at least one parameter is required")
	}

	seen := make(map[string]bool, len(def.Parameters))
	for _, f := range def.Parameters {
		if f.Name == "" {
			errs = append(errs, "parameter name is required")
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("parameter %q declared twice", f.Name))
		}
		seen[f.Name] = true

		for _, segment := range SplitPath(f.Name) {
			if !isValidIdentifier(segment) && segment != Wildcard {
				errs = append(errs, fmt.Sprintf("parameter name %q has invalid segment %q", f.Name, segment))
				break
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' && c != '-' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
