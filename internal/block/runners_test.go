package block_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"legacymod/internal/block"
	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
	"legacymod/internal/plan"
	"legacymod/internal/template"
)

func TestFileOperationRunnerCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.txt")
	b := &plan.Block{Kind: plan.BlockFileOperation, Operation: "create", Path: path, Content: "hello ${name}"}
	scope := template.NewScope()
	scope.Set("name", "world")

	runner := block.FileOperationRunner{}
	result, err := runner.Execute(context.Background(), b, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
}

func TestFileOperationRunnerDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	b := &plan.Block{Kind: plan.BlockFileOperation, Operation: "delete", Path: path}
	runner := block.FileOperationRunner{}
	if _, err := runner.Execute(context.Background(), b, template.NewScope()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected file to be deleted")
	}
}

func TestFileOperationRunnerUnknownOperation(t *testing.T) {
	b := &plan.Block{Kind: plan.BlockFileOperation, Operation: "teleport", Path: "x"}
	runner := block.FileOperationRunner{}
	if _, err := runner.Execute(context.Background(), b, template.NewScope()); err == nil {
		t.Error("expected an error for an unknown file operation")
	}
}

func TestTemplateGenerationRunner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "generated.txt")
	b := &plan.Block{Kind: plan.BlockTemplateGeneration, Path: path, Template: "phase=${phase}"}
	scope := template.NewScope()
	scope.Set("phase", "build")

	runner := block.TemplateGenerationRunner{}
	result, err := runner.Execute(context.Background(), b, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != path {
		t.Errorf("Output = %v, want %v", result.Output, path)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "phase=build" {
		t.Errorf("content = %q, want phase=build", got)
	}
}

func newTestStore(t *testing.T) *graphstore.Store {
	t.Helper()
	s, err := graphstore.Open(filepath.Join(t.TempDir(), "graph"), graph.NewRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGraphQueryRunnerByType(t *testing.T) {
	store := newTestStore(t)
	store.GetOrCreateNode("class:A", graph.NodeTypeJavaClass)
	store.GetOrCreateNode("class:B", graph.NodeTypeJavaClass)
	store.GetOrCreateNode("pkg:p", graph.NodeTypePackage)

	b := &plan.Block{Kind: plan.BlockGraphQuery, QueryKind: "byType", NodeType: string(graph.NodeTypeJavaClass), OutputVariable: "classes"}
	runner := &block.GraphQueryRunner{Store: store}
	scope := template.NewScope()

	result, err := runner.Execute(context.Background(), b, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	projections, ok := result.Output.([]interface{})
	if !ok || len(projections) != 2 {
		t.Fatalf("Output = %v, want 2 node projections", result.Output)
	}
	ids, ok := scope.Get("classes_ids")
	if !ok {
		t.Error("expected classes_ids to be bound in scope")
	}
	if idList, ok := ids.([]string); !ok || len(idList) != 2 {
		t.Errorf("classes_ids = %v, want 2 string ids", ids)
	}
	summary, ok := scope.Get("classes_summary")
	if !ok {
		t.Fatal("expected classes_summary to be bound in scope")
	}
	summaryMap, ok := summary.(map[string]interface{})
	if !ok {
		t.Fatalf("classes_summary = %v, want a structured map", summary)
	}
	if summaryMap["count"] != 2 || summaryMap["queryKind"] != "byType" {
		t.Errorf("classes_summary = %+v, want count=2 queryKind=byType", summaryMap)
	}
}

type stubAIBackend struct {
	name string
}

func (s stubAIBackend) Name() string { return s.name }
func (s stubAIBackend) Invoke(ctx context.Context, prompt string) (string, error) {
	return "echo:" + prompt, nil
}
func (s stubAIBackend) Probe(ctx context.Context) error { return nil }

func TestGraphQueryIntoAIPromptBatchResolvesNodeProperties(t *testing.T) {
	store := newTestStore(t)
	n := graph.NewJavaClass("com.example.Foo", "Foo", "com.example", "Foo.java", graph.ClassTypeClass, graph.SourceTypeSource)
	n.EnableTag("ejb.session.stateless")
	store.AddNode(n)

	scope := template.NewScope()
	queryRunner := &block.GraphQueryRunner{Store: store}
	queryBlock := &plan.Block{Kind: plan.BlockGraphQuery, QueryKind: "byAnyTag", Tags: []string{"ejb.session.stateless"}, OutputVariable: "beans"}
	queryResult, err := queryRunner.Execute(context.Background(), queryBlock, scope)
	if err != nil {
		t.Fatalf("GraphQuery: unexpected error: %v", err)
	}
	scope.Set("beans", queryResult.Output)

	batchRunner := &block.AIPromptBatchRunner{Backend: stubAIBackend{name: "test"}}
	batchBlock := &plan.Block{Kind: plan.BlockAIPromptBatch, InputNodes: "beans", PromptTemplate: "class=${current_item.simpleName}"}
	batchResult, err := batchRunner.Execute(context.Background(), batchBlock, scope)
	if err != nil {
		t.Fatalf("AIPromptBatch: unexpected error: %v", err)
	}
	if !batchResult.Success {
		t.Fatalf("expected batch success, got %+v", batchResult)
	}
}

func TestGraphQueryRunnerUnknownKind(t *testing.T) {
	store := newTestStore(t)
	runner := &block.GraphQueryRunner{Store: store}
	b := &plan.Block{Kind: plan.BlockGraphQuery, QueryKind: "byMagic"}
	if _, err := runner.Execute(context.Background(), b, template.NewScope()); err == nil {
		t.Error("expected an error for an unrecognized query kind")
	}
}

func TestASTRewriteRunnerAppliesRecipe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.java")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	registry := block.NewRewriteRegistry()
	registry.Register("upper", func(p string, content []byte) ([]byte, bool, error) {
		return []byte("NEW"), true, nil
	})

	runner := &block.ASTRewriteRunner{Store: newTestStore(t), Registry: registry}
	b := &plan.Block{Kind: plan.BlockOpenRewrite, Recipe: "upper", FilePattern: filepath.Join(dir, "*.java")}

	result, err := runner.Execute(context.Background(), b, template.NewScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "NEW" {
		t.Errorf("file content = %q, want NEW", got)
	}
}

const replaceRecipeScript = `package main

import "bytes"

func Rewrite(path string, content []byte) ([]byte, bool, error) {
	if !bytes.Contains(content, []byte("old")) {
		return content, false, nil
	}
	return bytes.ReplaceAll(content, []byte("old"), []byte("new")), true, nil
}
`

func TestRewriteRegistryLoadScriptInterpretsRecipe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.java")
	if err := os.WriteFile(path, []byte("old code"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	registry := block.NewRewriteRegistry()
	if err := registry.LoadScript("replace-old", replaceRecipeScript); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}

	runner := &block.ASTRewriteRunner{Store: newTestStore(t), Registry: registry}
	b := &plan.Block{Kind: plan.BlockOpenRewrite, Recipe: "replace-old", FilePattern: filepath.Join(dir, "*.java")}
	result, err := runner.Execute(context.Background(), b, template.NewScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "new code" {
		t.Errorf("file content = %q, want %q", got, "new code")
	}
}

func TestRewriteRegistryLoadScriptDirNamesRecipesAfterFiles(t *testing.T) {
	scriptDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(scriptDir, "replace-old.go"), []byte(replaceRecipeScript), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	registry := block.NewRewriteRegistry()
	if err := registry.LoadScriptDir(scriptDir); err != nil {
		t.Fatalf("LoadScriptDir: %v", err)
	}
	if _, ok := registry.Get("replace-old"); !ok {
		t.Error("expected the loaded script to be registered under its base filename")
	}
}

func TestRewriteRegistryLoadScriptRejectsWrongSignature(t *testing.T) {
	registry := block.NewRewriteRegistry()
	err := registry.LoadScript("bad", "package main\n\nfunc Rewrite(n int) int { return n }\n")
	if err == nil {
		t.Error("expected an error for a script with the wrong Rewrite signature")
	}
}

func TestASTRewriteRunnerUnknownRecipe(t *testing.T) {
	runner := &block.ASTRewriteRunner{Store: newTestStore(t), Registry: block.NewRewriteRegistry()}
	b := &plan.Block{Kind: plan.BlockOpenRewrite, Recipe: "missing", FilePattern: "*.java"}
	if _, err := runner.Execute(context.Background(), b, template.NewScope()); err == nil {
		t.Error("expected an error for an unregistered recipe")
	}
}

func TestASTRewriteRunnerReportsErroredFilesWithoutAborting(t *testing.T) {
	dir := t.TempDir()
	ok := filepath.Join(dir, "ok.java")
	os.WriteFile(ok, []byte("x"), 0o644)

	registry := block.NewRewriteRegistry()
	registry.Register("fail-on-ok", func(p string, content []byte) ([]byte, bool, error) {
		return nil, false, os.ErrPermission
	})

	runner := &block.ASTRewriteRunner{Store: newTestStore(t), Registry: registry}
	b := &plan.Block{Kind: plan.BlockOpenRewrite, Recipe: "fail-on-ok", FilePattern: filepath.Join(dir, "*.java")}
	result, err := runner.Execute(context.Background(), b, template.NewScope())
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if result.Success {
		t.Error("expected Success=false when every target file errors")
	}
}

type stubPrompter struct {
	answer bool
	err    error
}

func (s stubPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	return s.answer, s.err
}

func TestInteractiveValidationRunnerTimeoutFailsBlock(t *testing.T) {
	inRead, inWrite, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer inRead.Close()
	defer inWrite.Close() // never written to: the operator stays silent
	outRead, outWrite, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer outRead.Close()
	defer outWrite.Close()

	runner := &block.InteractiveValidationRunner{Prompter: &block.TTYPrompter{In: inRead, Out: outWrite}}
	b := &plan.Block{Kind: plan.BlockInteractiveValidation, Message: "proceed?", ValidationType: "manualConfirm", Name: "gate"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := runner.Execute(ctx, b, template.NewScope()); err == nil {
		t.Error("expected a timed-out prompt to fail the block")
	}
}

func TestInteractiveValidationRunnerApproved(t *testing.T) {
	runner := &block.InteractiveValidationRunner{Prompter: stubPrompter{answer: true}}
	b := &plan.Block{Kind: plan.BlockInteractiveValidation, Message: "proceed?", ValidationType: "manualConfirm"}
	result, err := runner.Execute(context.Background(), b, template.NewScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != true {
		t.Errorf("Output = %v, want true", result.Output)
	}
}

func TestInteractiveValidationRunnerDeclinedNotRequired(t *testing.T) {
	runner := &block.InteractiveValidationRunner{Prompter: stubPrompter{answer: false}}
	b := &plan.Block{Kind: plan.BlockInteractiveValidation, Message: "proceed?", Required: false}
	result, err := runner.Execute(context.Background(), b, template.NewScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != false {
		t.Errorf("Output = %v, want false", result.Output)
	}
}

func TestInteractiveValidationRunnerDeclinedRequiredFails(t *testing.T) {
	runner := &block.InteractiveValidationRunner{Prompter: stubPrompter{answer: false}}
	b := &plan.Block{Kind: plan.BlockInteractiveValidation, Message: "proceed?", Required: true, Name: "gate"}
	if _, err := runner.Execute(context.Background(), b, template.NewScope()); err == nil {
		t.Error("expected an error when a required validation is declined")
	}
}

func TestDispatcherRunSkipsWhenEnableIfFalse(t *testing.T) {
	dispatcher := block.NewDispatcher(nil, nil, block.NewRewriteRegistry(), nil)
	b := &plan.Block{Kind: plan.BlockCommand, EnableIf: "missing == 'x'", Command: "/bin/echo"}
	result, err := dispatcher.Run(context.Background(), b, template.NewScope(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Skipped {
		t.Error("expected Skipped=true when enable-if evaluates false")
	}
}

func TestDispatcherRunDryRunDoesNotExecute(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "should-not-exist.txt")
	dispatcher := block.NewDispatcher(nil, nil, block.NewRewriteRegistry(), nil)
	b := &plan.Block{Kind: plan.BlockFileOperation, Operation: "create", Path: path, Content: "x"}

	result, err := dispatcher.Run(context.Background(), b, template.NewScope(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.DryRun {
		t.Error("expected DryRun=true")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("dry-run should not have created the file")
	}
}
