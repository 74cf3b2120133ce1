package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/artpar/querywire/core/schema"
)

// Helper function to create a simple test schema
func makeTestSchema(t *testing.T, name string) *schema.Schema {
	t.Helper()
	s, err := schema.New(schema.Unicode("VolumeId"), schema.Integer("Size", schema.Optional()))
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}
	return s.WithOptions(schema.WithName(name))
}

func TestNew(t *testing.T) {
	r := New()
	if r == nil {
		t.Fatal("New() returned nil")
	}
	if r.schemas == nil {
		t.Error("schemas map not initialized")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_Register(t *testing.T) {
	r := New()

	if err := r.Register(makeTestSchema(t, "AttachVolume")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	s, ok := r.Get("AttachVolume")
	if !ok {
		t.Fatal("Get() should find registered schema")
	}
	if s.Name() != "AttachVolume" {
		t.Errorf("Get().Name() = %s, want AttachVolume", s.Name())
	}
}

func TestRegistry_Register_DuplicateName(t *testing.T) {
	r := New()
	if err := r.Register(makeTestSchema(t, "AttachVolume")); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	err := r.Register(makeTestSchema(t, "AttachVolume"))
	if err == nil {
		t.Fatal("Register() should fail for duplicate action")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("error = %v, want 'already registered'", err)
	}
}

func TestRegistry_Register_Unnamed(t *testing.T) {
	r := New()
	s, err := schema.New(schema.Unicode("VolumeId"))
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}
	if err := r.Register(s); err == nil {
		t.Error("Register() should fail for unnamed schema")
	}
	if err := r.Register(nil); err == nil {
		t.Error("Register() should fail for nil schema")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := New()
	_ = r.Register(makeTestSchema(t, "DetachVolume"))

	if err := r.Unregister("DetachVolume"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if _, ok := r.Get("DetachVolume"); ok {
		t.Error("Get() should not find unregistered schema")
	}
}

func TestRegistry_Unregister_NotFound(t *testing.T) {
	r := New()
	if err := r.Unregister("Nonexistent"); err == nil {
		t.Error("Unregister() should fail for unknown action")
	}
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r := New()
	if _, ok := r.Get("Nonexistent"); ok {
		t.Error("Get() should return false for unknown action")
	}
}

func TestRegistry_List(t *testing.T) {
	r := New()
	for _, name := range []string{"RunInstances", "AttachVolume", "DescribeImages"} {
		if err := r.Register(makeTestSchema(t, name)); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d schemas, want 3", len(list))
	}
	want := []string{"AttachVolume", "DescribeImages", "RunInstances"}
	for i, s := range list {
		if s.Name() != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, s.Name(), want[i])
		}
	}

	names := r.Names()
	for i, name := range names {
		if name != want[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, name, want[i])
		}
	}
}

func TestRegistry_All(t *testing.T) {
	r := New()
	_ = r.Register(makeTestSchema(t, "AttachVolume"))
	_ = r.Register(makeTestSchema(t, "DetachVolume"))

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d schemas, want 2", len(all))
	}

	// The returned map is a copy
	delete(all, "AttachVolume")
	if _, ok := r.Get("AttachVolume"); !ok {
		t.Error("deleting from All() result modified the registry")
	}
}

func TestRegistry_Replace(t *testing.T) {
	r := New()
	_ = r.Register(makeTestSchema(t, "AttachVolume"))

	err := r.Replace([]*schema.Schema{
		makeTestSchema(t, "CreateVolume"),
		makeTestSchema(t, "DeleteVolume"),
	})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if _, ok := r.Get("AttachVolume"); ok {
		t.Error("Replace() should drop schemas not in the new set")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistry_Replace_Duplicates(t *testing.T) {
	r := New()
	_ = r.Register(makeTestSchema(t, "AttachVolume"))

	err := r.Replace([]*schema.Schema{
		makeTestSchema(t, "CreateVolume"),
		makeTestSchema(t, "CreateVolume"),
	})
	if err == nil {
		t.Fatal("Replace() should fail for duplicate actions")
	}

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %T, want *ConflictError", err)
	}
	if len(conflict.Actions) != 1 || conflict.Actions[0] != "CreateVolume" {
		t.Errorf("Actions = %v, want [CreateVolume]", conflict.Actions)
	}

	// Registry left unchanged
	if _, ok := r.Get("AttachVolume"); !ok {
		t.Error("failed Replace() modified the registry")
	}
}

func TestRegistry_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "attach.yaml", `
action: AttachVolume
parameters:
  - name: VolumeId
    type: unicode
  - name: InstanceId
    type: unicode
  - name: Device
    type: unicode
`)
	writeDefinition(t, dir, "describe.yml", `
action: DescribeVolumes
parameters:
  - name: VolumeId.#
    type: unicode
    optional: true
`)
	writeDefinition(t, dir, "README.md", "not a definition")

	r := New()
	n, err := r.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if n != 2 {
		t.Errorf("LoadDir() loaded %d, want 2", n)
	}

	s, ok := r.Get("AttachVolume")
	if !ok {
		t.Fatal("AttachVolume not loaded")
	}
	if got := len(s.Templates()); got != 3 {
		t.Errorf("AttachVolume templates = %d, want 3", got)
	}
}

func TestRegistry_LoadDir_DuplicateAction(t *testing.T) {
	dir := t.TempDir()
	def := "action: AttachVolume\nparameters:\n  - name: VolumeId\n    type: unicode\n"
	writeDefinition(t, dir, "a.yaml", def)
	writeDefinition(t, dir, "b.yaml", def)

	r := New()
	_, err := r.LoadDir(dir)
	if err == nil {
		t.Fatal("LoadDir() should fail for duplicate actions")
	}
	if !strings.Contains(err.Error(), "duplicate actions detected") {
		t.Errorf("error = %v, want duplicate actions", err)
	}
}

func TestRegistry_LoadDir_Missing(t *testing.T) {
	r := New()
	if _, err := r.LoadDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("LoadDir() should fail for missing directory")
	}
}

func TestConflictError_Error(t *testing.T) {
	err := &ConflictError{Actions: []string{"RunInstances", "StopInstances"}}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate actions detected") {
		t.Errorf("Error() = %s, want 'duplicate actions detected'", msg)
	}
	if !strings.Contains(msg, `"StopInstances"`) {
		t.Errorf("Error() = %s, should name StopInstances", msg)
	}
}

func TestConflictError_HasConflicts(t *testing.T) {
	if (&ConflictError{}).HasConflicts() {
		t.Error("HasConflicts() should be false with no actions")
	}
	if !(&ConflictError{Actions: []string{"RunInstances"}}).HasConflicts() {
		t.Error("HasConflicts() should be true with actions")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	_ = r.Register(makeTestSchema(t, "AttachVolume"))
	replacement := []*schema.Schema{makeTestSchema(t, "AttachVolume")}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Get("AttachVolume")
			r.List()
		}()
		go func() {
			defer wg.Done()
			_ = r.Replace(replacement)
		}()
	}
	wg.Wait()

	if _, ok := r.Get("AttachVolume"); !ok {
		t.Error("AttachVolume missing after concurrent access")
	}
}

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
