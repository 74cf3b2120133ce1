package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const runInstancesYAML = `
action: RunInstances
description: Launch instances
parameters:
  - { name: ImageId, type: unicode }
  - { name: MinCount, type: integer, min: 1 }
  - { name: MaxCount, type: integer, min: 1 }
  - { name: KeyName, type: unicode, optional: true }
  - name: SecurityGroup
    type: list
    optional: true
    item: { type: unicode }
  - name: InstanceType
    type: enum
    optional: true
    default: m1.small
    values: [m1.small, m1.large]
  - name: BlockDeviceMapping
    type: list
    optional: true
    item:
      type: structure
      fields:
        - { name: DeviceName, type: unicode }
        - { name: VolumeSize, type: integer, optional: true }
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(runInstancesYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if s.Name() != "RunInstances" {
		t.Errorf("Name = %q, want %q", s.Name(), "RunInstances")
	}

	want := []string{
		"BlockDeviceMapping.#.DeviceName",
		"BlockDeviceMapping.#.VolumeSize",
		"ImageId",
		"InstanceType",
		"KeyName",
		"MaxCount",
		"MinCount",
		"SecurityGroup.#",
	}
	got := s.Templates()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Templates() = %v, want %v", got, want)
	}

	args, rest, err := s.Extract(map[string]string{
		"Action":                          "RunInstances",
		"ImageId":                         "ami-1",
		"MinCount":                        "1",
		"MaxCount":                        "2",
		"SecurityGroup.1":                 "web",
		"BlockDeviceMapping.1.DeviceName": "/dev/sda1",
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if rest["Action"] != "RunInstances" || len(rest) != 1 {
		t.Errorf("leftovers = %v, want only Action", rest)
	}
	if v, _ := args.String("InstanceType"); v != "m1.small" {
		t.Errorf("InstanceType = %q, want default m1.small", v)
	}
	mappings, _ := args.Sequence("BlockDeviceMapping")
	if len(mappings) != 1 {
		t.Fatalf("BlockDeviceMapping has %d items, want 1", len(mappings))
	}
	if name, _ := mappings[0].(*Arguments).String("DeviceName"); name != "/dev/sda1" {
		t.Errorf("DeviceName = %q, want /dev/sda1", name)
	}
}

func TestParseLegacyNames(t *testing.T) {
	s, err := Parse([]byte(`
action: DescribeInstances
parameters:
  - { name: InstanceId.n, type: unicode, optional: true }
  - { name: Filter.n.Name, type: unicode }
  - { name: Filter.n.Value.m, type: unicode, optional: true }
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	args, _, err := s.Extract(map[string]string{
		"Filter.1.Name":    "instance-state-name",
		"Filter.1.Value.1": "running",
		"Filter.1.Value.2": "stopped",
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	filters, _ := args.Sequence("Filter")
	if len(filters) != 1 {
		t.Fatalf("Filter has %d items, want 1", len(filters))
	}
	values, _ := filters[0].(*Arguments).Sequence("Value")
	if len(values) != 2 || values[0] != "running" || values[1] != "stopped" {
		t.Errorf("Filter.1.Value = %v, want [running stopped]", values)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid minimal",
			yaml: `
action: Test
parameters:
  - { name: Name }
`,
			wantErr: false,
		},
		{
			name: "missing action name",
			yaml: `
parameters:
  - { name: Name }
`,
			wantErr: true,
		},
		{
			name: "invalid action name",
			yaml: `
action: 1Test
parameters:
  - { name: Name }
`,
			wantErr: true,
		},
		{
			name:    "no parameters",
			yaml:    `action: Test`,
			wantErr: true,
		},
		{
			name: "duplicate parameter",
			yaml: `
action: Test
parameters:
  - { name: Name }
  - { name: Name }
`,
			wantErr: true,
		},
		{
			name: "invalid parameter segment",
			yaml: `
action: Test
parameters:
  - { name: "Group..Name" }
`,
			wantErr: true,
		},
		{
			name: "top level structure",
			yaml: `
action: Test
parameters:
  - name: Placement
    type: structure
    fields:
      - { name: Zone }
`,
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			yaml:    `action: [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	err := Validate(Definition{Parameters: []Field{{}, {Name: "A"}, {Name: "A"}}})
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	msg := err.Error()
	for _, want := range []string{"action name is required", "parameter name is required", `parameter "A" declared twice`} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestParseTopLevelStructureIsSchemaFault(t *testing.T) {
	_, err := Parse([]byte(`
action: Test
parameters:
  - name: Placement
    type: structure
    fields:
      - { name: Zone }
`))
	if !errors.Is(err, ErrSchema) {
		t.Errorf("Parse() error = %v, want ErrSchema", err)
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "ec2")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		filepath.Join(dir, "run.yaml"):     runInstancesYAML,
		filepath.Join(sub, "describe.yml"): "action: DescribeInstances\nparameters:\n  - { name: InstanceId.n, optional: true }\n",
		filepath.Join(dir, "README.md"):    "not a schema",
		filepath.Join(sub, "notes.txt"):    "ignored",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	schemas, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir failed: %v", err)
	}
	if len(schemas) != 2 {
		t.Fatalf("ParseDir returned %d schemas, want 2", len(schemas))
	}

	names := map[string]bool{}
	for _, s := range schemas {
		names[s.Name()] = true
	}
	if !names["RunInstances"] || !names["DescribeInstances"] {
		t.Errorf("ParseDir names = %v", names)
	}
}

func TestParseFileReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("action: Test\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := ParseFile(path)
	if err == nil {
		t.Fatal("ParseFile() expected error")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not mention %s", err, path)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"RunInstances", true},
		{"_private", true},
		{"with-dash", true},
		{"v2", true},
		{"", false},
		{"2fast", false},
		{"has space", false},
		{"dot.ted", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isValidIdentifier(tt.input); got != tt.want {
				t.Errorf("isValidIdentifier(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
