package block

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"legacymod/internal/errs"
	"legacymod/internal/plan"
	"legacymod/internal/template"
)

// AIBackend implements a process-spawn contract: the prompt goes in on
// stdin, the model's response comes back on stdout, and a non-zero
// exit signals failure. Probe reports whether the backend binary is
// reachable at all, via --version.
type AIBackend interface {
	Name() string
	Invoke(ctx context.Context, prompt string) (response string, err error)
	Probe(ctx context.Context) error
}

// ProcessAIBackend is the concrete AIBackend: it runs Command via
// exec.CommandContext the same way CommandRunner does, but with stdin
// wired to the prompt instead of left unset.
type ProcessAIBackend struct {
	ProviderName string
	Command      string
	Args         []string
}

func NewProcessAIBackend(name, command string, args ...string) *ProcessAIBackend {
	return &ProcessAIBackend{ProviderName: name, Command: command, Args: args}
}

func (b *ProcessAIBackend) Name() string { return b.ProviderName }

func (b *ProcessAIBackend) Invoke(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, b.Command, b.Args...)
	cmd.Stdin = bytes.NewBufferString(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", errs.BlockFailureWrap(ctx.Err(), "AI backend %q timed out", b.ProviderName)
		}
		return "", errs.BlockFailureWrap(err, "AI backend %q exited with error: %s", b.ProviderName, stderr.String())
	}
	return stdout.String(), nil
}

func (b *ProcessAIBackend) Probe(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, b.Command, "--version")
	if err := cmd.Run(); err != nil {
		return errs.Config("AI backend %q is not available: %v", b.ProviderName, err)
	}
	return nil
}

// UnavailableBackend stands in when a run is configured without a real
// provider (--ai-provider none): any actual invocation fails with a
// config error naming the flag, rather than a nil-dereference.
type UnavailableBackend struct {
	ProviderName string
}

func NewUnavailableBackend(name string) *UnavailableBackend {
	return &UnavailableBackend{ProviderName: name}
}

func (b *UnavailableBackend) Name() string { return b.ProviderName }

func (b *UnavailableBackend) Invoke(ctx context.Context, prompt string) (string, error) {
	return "", errs.Config("no AI provider configured; pass --ai-provider with a registered backend")
}

func (b *UnavailableBackend) Probe(ctx context.Context) error {
	return errs.Config("no AI provider configured; pass --ai-provider with a registered backend")
}

// BackendRegistry is the closed set of selectable providers behind
// --ai-provider <name>; an unknown provider fails immediately with the
// valid list.
type BackendRegistry struct {
	backends map[string]AIBackend
}

func NewBackendRegistry(backends ...AIBackend) *BackendRegistry {
	r := &BackendRegistry{backends: map[string]AIBackend{}}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	return r
}

func (r *BackendRegistry) Get(name string) (AIBackend, error) {
	b, ok := r.backends[name]
	if !ok {
		names := make([]string, 0, len(r.backends))
		for n := range r.backends {
			names = append(names, n)
		}
		return nil, errs.Config("unknown AI provider %q, valid providers are %v", name, names)
	}
	return b, nil
}

// AIPromptRunner resolves promptTemplate against scope, invokes the
// selected backend once, and binds the response to outputVariable.
type AIPromptRunner struct {
	Backend AIBackend
}

func (r *AIPromptRunner) Describe(b *plan.Block, scope *template.Scope) string {
	rendered, _ := template.Render(b.PromptTemplate, scope)
	return fmt.Sprintf("AI prompt (%s): %s", r.Backend.Name(), rendered)
}

func (r *AIPromptRunner) Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error) {
	prompt, err := template.Render(b.PromptTemplate, scope)
	if err != nil {
		return Result{}, err
	}
	response, err := r.Backend.Invoke(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success:               true,
		Kind:                  string(plan.BlockAIPrompt),
		Output:                response,
		DefaultOutputVariable: "response",
	}, nil
}

// AIPromptBatchRunner iterates input-nodes, binding current_item/item/
// current_index/total_items, invoking the backend once per item and
// collecting results in listed order. A single item's failure does not
// abort the batch — in favor of a partial result list, the item's error
// is recorded inline instead. See DESIGN.md for the reasoning behind
// that choice.
type AIPromptBatchRunner struct {
	Backend AIBackend
}

// batchItemResult builds one item's scope-ready result map. The map
// shape (not a struct) keeps the bound batch_results list walkable by
// dotted template paths in later blocks.
func batchItemResult(index int, response, errMsg string) map[string]interface{} {
	out := map[string]interface{}{"index": index}
	if response != "" {
		out["response"] = response
	}
	if errMsg != "" {
		out["error"] = errMsg
	}
	return out
}

func (r *AIPromptBatchRunner) Describe(b *plan.Block, scope *template.Scope) string {
	return fmt.Sprintf("AI prompt batch (%s) over %s", r.Backend.Name(), b.InputNodes)
}

func (r *AIPromptBatchRunner) Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error) {
	raw, ok := scope.Get(b.InputNodes)
	if !ok {
		return Result{}, errs.Config("input-nodes %q has no binding in scope (run a GraphQuery block first)", b.InputNodes)
	}
	items, ok := raw.([]interface{})
	if !ok {
		if ids, ok := raw.([]string); ok {
			items = make([]interface{}, len(ids))
			for i, id := range ids {
				items[i] = id
			}
		} else {
			return Result{}, errs.Config("%q did not resolve to an item list", b.InputNodes)
		}
	}

	results := make([]interface{}, len(items))
	anyFailed := false
	for i, item := range items {
		if ctx.Err() != nil {
			return Result{}, errs.Cancellation("AI prompt batch cancelled after %d of %d item(s)", i, len(items))
		}
		itemScope := scope.Clone()
		itemScope.Set("current_item", item)
		itemScope.Set("item", item)
		itemScope.Set("current_index", i)
		itemScope.Set("total_items", len(items))

		prompt, err := template.Render(b.PromptTemplate, itemScope)
		if err != nil {
			results[i] = batchItemResult(i, "", err.Error())
			anyFailed = true
			continue
		}
		response, err := r.Backend.Invoke(ctx, prompt)
		if err != nil {
			results[i] = batchItemResult(i, "", err.Error())
			anyFailed = true
			continue
		}
		results[i] = batchItemResult(i, response, "")
	}

	return Result{
		Success:               !anyFailed,
		Kind:                  string(plan.BlockAIPromptBatch),
		Output:                results,
		DefaultOutputVariable: "batch_results",
	}, nil
}
