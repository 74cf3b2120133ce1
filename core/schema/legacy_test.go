package schema

import (
	"errors"
	"reflect"
	"testing"
)

func TestConvertLegacy(t *testing.T) {
	fields, err := ConvertLegacy([]*Parameter{
		Integer("foo.bar.baz.quux"),
		Integer("foo.bar.shimmy"),
		Unicode("Plain"),
	})
	if err != nil {
		t.Fatalf("ConvertLegacy() error = %v", err)
	}

	if _, ok := fields["Plain"].Type().(UnicodeType); !ok {
		t.Errorf("Plain type = %T, want UnicodeType", fields["Plain"].Type())
	}

	foo, ok := fields["foo"].Type().(*ListType)
	if !ok {
		t.Fatalf("foo type = %T, want *ListType", fields["foo"].Type())
	}
	item, ok := foo.Item.Type().(*StructureType)
	if !ok {
		t.Fatalf("foo item type = %T, want *StructureType", foo.Item.Type())
	}
	if got := item.Names(); !reflect.DeepEqual(got, []string{"baz", "shimmy"}) {
		t.Errorf("foo item fields = %v, want [baz shimmy]", got)
	}
	baz, ok := item.Fields["baz"].Type().(*ListType)
	if !ok {
		t.Fatalf("baz type = %T, want *ListType", item.Fields["baz"].Type())
	}
	if _, ok := baz.Item.Type().(IntegerType); !ok {
		t.Errorf("baz item type = %T, want IntegerType", baz.Item.Type())
	}
	if _, ok := item.Fields["shimmy"].Type().(IntegerType); !ok {
		t.Errorf("shimmy type = %T, want IntegerType", item.Fields["shimmy"].Type())
	}
}

func TestConvertLegacyExtract(t *testing.T) {
	s := MustNew(Integer("foo.bar.baz"), Integer("foo.bar.shimmy"))

	args, _, err := s.Extract(map[string]string{"foo.1.baz": "5", "foo.1.shimmy": "6"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	foo, _ := args.Sequence("foo")
	if len(foo) != 1 {
		t.Fatalf("foo has %d items, want 1", len(foo))
	}
	got := foo[0].(*Arguments).Map()
	want := map[string]any{"baz": 5, "shimmy": 6}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("foo[0] = %v, want %v", got, want)
	}
}

func TestConvertLegacyListOptionality(t *testing.T) {
	fields, err := ConvertLegacy([]*Parameter{
		Unicode("Required.n"),
		Unicode("Loose.n", Optional()),
		Unicode("Group.n.Name"),
	})
	if err != nil {
		t.Fatalf("ConvertLegacy() error = %v", err)
	}

	tests := []struct {
		name     string
		optional bool
	}{
		{"Required", false},
		{"Loose", true},
		{"Group", true},
	}
	for _, tt := range tests {
		if got := fields[tt.name].IsOptional(); got != tt.optional {
			t.Errorf("%s optional = %v, want %v", tt.name, got, tt.optional)
		}
	}
}

func TestConvertLegacyFaults(t *testing.T) {
	tests := []struct {
		name   string
		params []*Parameter
	}{
		{"ambiguous item name", []*Parameter{Unicode("foo.bar.baz"), Unicode("foo.quux.baz")}},
		{"nested below a parameter", []*Parameter{Unicode("foo"), Unicode("foo.n")}},
		{"parameter above nested ones", []*Parameter{Unicode("foo.n"), Unicode("foo")}},
		{"empty segment", []*Parameter{Unicode("foo..bar")}},
		{"nil parameter", []*Parameter{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConvertLegacy(tt.params)
			if !errors.Is(err, ErrSchema) {
				t.Errorf("ConvertLegacy() error = %v, want ErrSchema", err)
			}
		})
	}
}

func TestDedupeKeepsLastDeclaration(t *testing.T) {
	first := Unicode("A")
	second := Integer("A")
	other := Bool("B")

	got := dedupe([]*Parameter{first, other, second})
	if len(got) != 2 || got[0] != second || got[1] != other {
		t.Errorf("dedupe() = %v", got)
	}
}
