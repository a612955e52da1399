package block

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"legacymod/internal/errs"
	"legacymod/internal/graphstore"
	"legacymod/internal/plan"
	"legacymod/internal/template"
)

// Recipe is a named, deterministic AST rewrite plug-in: a pure
// transformation from source text to rewritten text. It returns
// changed=false when it left the input untouched, so the runner can
// distinguish a no-op pass from an error.
type Recipe func(path string, content []byte) (rewritten []byte, changed bool, err error)

// RewriteRegistry holds the recipes an ASTRewrite block can invoke by
// name.
type RewriteRegistry struct {
	mu      sync.RWMutex
	recipes map[string]Recipe
}

func NewRewriteRegistry() *RewriteRegistry {
	return &RewriteRegistry{recipes: map[string]Recipe{}}
}

func (r *RewriteRegistry) Register(name string, recipe Recipe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipes[name] = recipe
}

func (r *RewriteRegistry) Get(name string) (Recipe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recipe, ok := r.recipes[name]
	return recipe, ok
}

// LoadScript interprets a Go recipe source with yaegi and registers it
// under name. Interpreting instead of compiling keeps recipes loadable
// at runtime without a Go toolchain on the operator's machine. The
// script is limited to stdlib imports and must define
//
//	func Rewrite(path string, content []byte) ([]byte, bool, error)
//
// in package main (a missing package clause is tolerated and wrapped).
func (r *RewriteRegistry) LoadScript(name, src string) error {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return errs.ConfigWrap(err, "loading interpreter stdlib for recipe %q", name)
	}
	if _, err := i.Eval(wrapRecipeSource(src)); err != nil {
		return errs.ConfigWrap(err, "evaluating recipe script %q", name)
	}
	v, err := i.Eval("main.Rewrite")
	if err != nil {
		return errs.ConfigWrap(err, "recipe script %q does not define Rewrite", name)
	}
	fn, ok := v.Interface().(func(string, []byte) ([]byte, bool, error))
	if !ok {
		return errs.Config("recipe %q has the wrong Rewrite signature (want func(string, []byte) ([]byte, bool, error))", name)
	}
	r.Register(name, Recipe(fn))
	return nil
}

// LoadScriptDir loads every *.go file in dir as a recipe named after
// its base filename (sans extension).
func (r *RewriteRegistry) LoadScriptDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.IOWrap(err, "reading recipe directory %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return errs.IOWrap(err, "reading recipe script %s", e.Name())
		}
		if err := r.LoadScript(strings.TrimSuffix(e.Name(), ".go"), string(src)); err != nil {
			return err
		}
	}
	return nil
}

// wrapRecipeSource prepends a package clause when the script omits one,
// so a bare function body still evaluates.
func wrapRecipeSource(src string) string {
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		if strings.HasPrefix(trimmed, "package ") {
			return src
		}
		break
	}
	return "package main\n\n" + src
}

// ASTRewriteRunner applies a named recipe over a target file set:
// targets come from either a filePattern base directory or an
// input-nodes variable referencing a prior GraphQuery result (a
// "<var>_ids" binding resolved back to ProjectFile paths via the
// store). It reports files-changed and files-errored rather than
// failing the whole block on a single file's error, so one malformed
// file doesn't abort an otherwise-successful recipe pass.
type ASTRewriteRunner struct {
	Store    *graphstore.Store
	Registry *RewriteRegistry
}

func (r *ASTRewriteRunner) Describe(b *plan.Block, scope *template.Scope) string {
	return fmt.Sprintf("apply recipe %q over %s", b.Recipe, r.targetDescription(b))
}

func (r *ASTRewriteRunner) targetDescription(b *plan.Block) string {
	if b.FilePattern != "" {
		return b.FilePattern
	}
	return "input-nodes:" + b.InputNodes
}

func (r *ASTRewriteRunner) Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error) {
	recipe, ok := r.Registry.Get(b.Recipe)
	if !ok {
		return Result{}, errs.Config("no rewrite recipe registered for %q", b.Recipe)
	}

	targets, err := r.resolveTargets(b, scope)
	if err != nil {
		return Result{}, err
	}

	var changed, errored []string
	for _, path := range targets {
		if ctx.Err() != nil {
			return Result{}, errs.Cancellation("AST rewrite cancelled after %d file(s)", len(changed)+len(errored))
		}
		content, err := os.ReadFile(path)
		if err != nil {
			errored = append(errored, path)
			continue
		}
		rewritten, didChange, err := recipe(path, content)
		if err != nil {
			errored = append(errored, path)
			continue
		}
		if !didChange {
			continue
		}
		if err := os.WriteFile(path, rewritten, 0o644); err != nil {
			errored = append(errored, path)
			continue
		}
		changed = append(changed, path)
	}

	summary := fmt.Sprintf("%d changed, %d errored, %d unchanged", len(changed), len(errored), len(targets)-len(changed)-len(errored))
	success := len(errored) == 0

	return Result{
		Success:               success,
		Kind:                  string(plan.BlockOpenRewrite),
		Output:                summary,
		Message:               summary,
		DefaultOutputVariable: "rewrite_summary",
	}, nil
}

// resolveTargets expands filePattern against the filesystem, or reads
// the "<input-nodes>_ids" scope binding left by a prior GraphQuery
// block and maps each ProjectFile node ID back to its path.
func (r *ASTRewriteRunner) resolveTargets(b *plan.Block, scope *template.Scope) ([]string, error) {
	if b.FilePattern != "" {
		pattern, err := template.Render(b.FilePattern, scope)
		if err != nil {
			return nil, err
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errs.Config("invalid file-pattern %q: %v", pattern, err)
		}
		sort.Strings(matches)
		return matches, nil
	}

	idsKey := b.InputNodes + "_ids"
	raw, ok := scope.Get(idsKey)
	if !ok {
		return nil, errs.Config("input-nodes %q has no %q binding in scope (run a GraphQuery block first)", b.InputNodes, idsKey)
	}
	idList, ok := raw.([]string)
	if !ok {
		if generic, ok := raw.([]interface{}); ok {
			idList = make([]string, len(generic))
			for i, v := range generic {
				idList[i], _ = v.(string)
			}
		} else {
			return nil, errs.Config("%q did not resolve to a node ID list", idsKey)
		}
	}

	targets := make([]string, 0, len(idList))
	for _, id := range idList {
		node, ok := r.Store.GetNodeByID(id)
		if !ok {
			continue
		}
		if v, ok := node.GetProperty("path"); ok {
			targets = append(targets, v.S)
		}
	}
	sort.Strings(targets)
	return targets, nil
}
