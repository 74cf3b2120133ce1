package schema

import (
	"errors"
	"testing"
)

func TestConstraintCompile(t *testing.T) {
	tests := []struct {
		name       string
		constraint Constraint
		value      any
		expected   bool
	}{
		{"pattern match", Constraint{Type: ConstraintPattern, Value: `^ami-[0-9a-f]+$`}, "ami-12ab", true},
		{"pattern mismatch", Constraint{Type: ConstraintPattern, Value: `^ami-[0-9a-f]+$`}, "img-1", false},
		{"pattern non-string", Constraint{Type: ConstraintPattern, Value: `.*`}, 5, false},
		{"not empty", Constraint{Type: ConstraintNotEmpty}, "x", true},
		{"not empty blank", Constraint{Type: ConstraintNotEmpty}, "   ", false},
		{"prefix", Constraint{Type: ConstraintPrefix, Value: "sg-"}, "sg-1", true},
		{"prefix mismatch", Constraint{Type: ConstraintPrefix, Value: "sg-"}, "vpc-1", false},
		{"min length", Constraint{Type: ConstraintMinLength, Value: 3}, "abc", true},
		{"min length short", Constraint{Type: ConstraintMinLength, Value: 3}, "ab", false},
		{"min length counts characters", Constraint{Type: ConstraintMinLength, Value: 2}, "ü", false},
		{"max length", Constraint{Type: ConstraintMaxLength, Value: "3"}, "abc", true},
		{"max length long", Constraint{Type: ConstraintMaxLength, Value: 3}, "abcd", false},
		{"one of", Constraint{Type: ConstraintOneOf, Value: []any{"a", "b"}}, "b", true},
		{"one of miss", Constraint{Type: ConstraintOneOf, Value: []string{"a", "b"}}, "c", false},
		{"one of integer", Constraint{Type: ConstraintOneOf, Value: []any{1, 2}}, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := tt.constraint.compile()
			if err != nil {
				t.Fatalf("compile() error = %v", err)
			}
			if got := fn(tt.value); got != tt.expected {
				t.Errorf("check(%v) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestConstraintCompileErrors(t *testing.T) {
	tests := []struct {
		name       string
		constraint Constraint
	}{
		{"unknown type", Constraint{Type: "email"}},
		{"pattern without string", Constraint{Type: ConstraintPattern, Value: 1}},
		{"invalid pattern", Constraint{Type: ConstraintPattern, Value: "("}},
		{"prefix without string", Constraint{Type: ConstraintPrefix}},
		{"length without number", Constraint{Type: ConstraintMinLength, Value: []any{}}},
		{"one of without list", Constraint{Type: ConstraintOneOf, Value: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.constraint.compile(); err == nil {
				t.Error("compile() expected error")
			}
		})
	}
}

func TestCompileConstraintsAllMustPass(t *testing.T) {
	fn, err := compileConstraints([]Constraint{
		{Type: ConstraintPrefix, Value: "i-"},
		{Type: ConstraintMaxLength, Value: 5},
	})
	if err != nil {
		t.Fatalf("compileConstraints() error = %v", err)
	}

	if !fn("i-123") {
		t.Error("expected i-123 to pass")
	}
	if fn("i-12345") {
		t.Error("expected i-12345 to fail max_length")
	}
	if fn("x-1") {
		t.Error("expected x-1 to fail prefix")
	}
}

func TestConstraintsAsValidator(t *testing.T) {
	p, err := Field{
		Name:        "InstanceId",
		Constraints: []Constraint{{Type: ConstraintPrefix, Value: "i-"}},
	}.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := p.Coerce("i-1"); err != nil {
		t.Errorf("Coerce(i-1) error = %v", err)
	}

	_, err = p.Coerce("vol-1")
	if !errors.Is(err, ErrInvalidParameterValue) {
		t.Fatalf("Coerce(vol-1) error = %v, want InvalidParameterValue", err)
	}
	e, _ := AsError(err)
	if want := "Invalid unicode value vol-1"; e.Message != want {
		t.Errorf("Message = %q, want %q", e.Message, want)
	}
}
