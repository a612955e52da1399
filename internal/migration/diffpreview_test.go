package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"legacymod/internal/plan"
	"legacymod/internal/template"
)

func TestPreviewBlockFileOperationCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Foo.java")
	os.WriteFile(path, []byte("old line"), 0o644)

	b := &plan.Block{Kind: plan.BlockFileOperation, Operation: "create", Path: path, Content: "new line"}
	preview, ok := previewBlock(b, template.NewScope())
	if !ok {
		t.Fatal("expected a preview for a FILE_OPERATION create block")
	}
	if !strings.Contains(preview, "-old line") || !strings.Contains(preview, "+new line") {
		t.Errorf("preview = %q, want a diff with both old and new lines", preview)
	}
}

func TestPreviewBlockFileOperationNonCreateSkipped(t *testing.T) {
	b := &plan.Block{Kind: plan.BlockFileOperation, Operation: "delete", Path: "x"}
	if _, ok := previewBlock(b, template.NewScope()); ok {
		t.Error("expected no preview for a non-create FILE_OPERATION")
	}
}

func TestPreviewBlockTemplateGeneration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen.txt")

	b := &plan.Block{Kind: plan.BlockTemplateGeneration, Path: path, Template: "hello ${name}"}
	scope := template.NewScope()
	scope.Set("name", "world")

	preview, ok := previewBlock(b, scope)
	if !ok {
		t.Fatal("expected a preview for a TEMPLATE_GENERATION block")
	}
	if !strings.Contains(preview, "+hello world") {
		t.Errorf("preview = %q, want it to contain the rendered content", preview)
	}
}

func TestPreviewBlockOtherKindsSkipped(t *testing.T) {
	b := &plan.Block{Kind: plan.BlockCommand, Command: "/bin/echo"}
	if _, ok := previewBlock(b, template.NewScope()); ok {
		t.Error("expected no preview for a COMMAND block")
	}
}

func TestRenderUnifiedDiffNonExistentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")
	out, err := renderUnifiedDiff(path, "line one\nline two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "+line one") {
		t.Errorf("diff output = %q, want it to contain the new content", out)
	}
}
