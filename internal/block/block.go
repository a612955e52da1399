// Package block implements the block kinds the migration engine
// executes: Command, FileOperation, TemplateFileGeneration, GraphQuery,
// ASTRewrite, AIPromptSingle, AIPromptBatch, and InteractiveValidation,
// dispatched uniformly by kind.
package block

import (
	"context"
	"time"

	"legacymod/internal/errs"
	"legacymod/internal/graphstore"
	"legacymod/internal/plan"
	"legacymod/internal/template"
)

// Result is what every block kind produces, independent of its
// kind-specific payload.
type Result struct {
	Success   bool
	Skipped   bool
	DryRun    bool
	Output    interface{} // bound to OutputVariable when non-nil
	Message   string
	Kind      string
	// DefaultOutputVariable is the binding name a block kind uses when
	// the plan doesn't set output-variable explicitly (e.g. Command's
	// "output").
	DefaultOutputVariable string
}

// Runner executes one block kind. Each concrete block type in this
// package implements Runner.
type Runner interface {
	// Describe renders a human-readable summary without side effects,
	// used both for dry-run output and step-mode prompts.
	Describe(b *plan.Block, scope *template.Scope) string
	// Execute performs the block's side effect and returns its Result.
	Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error)
}

// Dispatcher resolves a plan.Block to the Runner that implements its
// Kind and runs it, handling the shared envelope (enableIf, timeout,
// dry-run, continueOnFailure) uniformly so each Runner only needs to
// implement its own behavior.
type Dispatcher struct {
	runners map[plan.BlockKind]Runner

	// DefaultTimeout bounds any block that doesn't declare its own
	// timeout-seconds; AITimeout does the same for the two AI prompt
	// kinds. Zero disables the respective default.
	DefaultTimeout time.Duration
	AITimeout      time.Duration
}

// NewDispatcher wires every block kind to its concrete implementation.
func NewDispatcher(store *graphstore.Store, aiBackend AIBackend, rewriteRegistry *RewriteRegistry, prompter Prompter) *Dispatcher {
	return &Dispatcher{runners: map[plan.BlockKind]Runner{
		plan.BlockCommand:              &CommandRunner{},
		plan.BlockFileOperation:        &FileOperationRunner{},
		plan.BlockTemplateGeneration:   &TemplateGenerationRunner{},
		plan.BlockGraphQuery:           &GraphQueryRunner{Store: store},
		plan.BlockOpenRewrite:          &ASTRewriteRunner{Store: store, Registry: rewriteRegistry},
		plan.BlockAIPrompt:             &AIPromptRunner{Backend: aiBackend},
		plan.BlockAIPromptBatch:        &AIPromptBatchRunner{Backend: aiBackend},
		plan.BlockInteractiveValidation: &InteractiveValidationRunner{Prompter: prompter},
	}}
}

// Run executes b against scope, honoring enableIf (a false predicate
// yields a skipped-but-successful Result), dryRun (delegates to
// Describe and synthesizes success), and per-block timeoutSeconds.
func (d *Dispatcher) Run(ctx context.Context, b *plan.Block, scope *template.Scope, dryRun bool) (Result, error) {
	if b.EnableIf != "" && !template.EvaluatePredicate(b.EnableIf, scope) {
		return Result{Success: true, Skipped: true, Kind: string(b.Kind)}, nil
	}

	runner, ok := d.runners[b.Kind]
	if !ok {
		return Result{}, errs.Config("no runner registered for block type %q", b.Kind)
	}

	if dryRun {
		return Result{Success: true, DryRun: true, Kind: string(b.Kind), Message: runner.Describe(b, scope)}, nil
	}

	timeout := time.Duration(b.TimeoutSeconds) * time.Second
	if timeout == 0 {
		if b.Kind == plan.BlockAIPrompt || b.Kind == plan.BlockAIPromptBatch {
			timeout = d.AITimeout
		} else {
			timeout = d.DefaultTimeout
		}
	}
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := runner.Execute(runCtx, b, scope)
	if err == nil && !result.Success {
		// A runner that reports partial failure inline (a batch item, a
		// rewrite target) fails the block the same way a returned error
		// does, so continue-on-failure governs both paths.
		err = errs.BlockFailure("block %q reported failure: %s", b.Name, result.Message)
	}

	// Bind the output even on failure: a partial batch result list is
	// still useful to later blocks when the failure is recovered.
	outputVar := b.OutputVariable
	if outputVar == "" {
		outputVar = result.DefaultOutputVariable
	}
	if outputVar != "" && result.Output != nil {
		scope.Set(outputVar, result.Output)
	}

	if err != nil {
		if b.ContinueOnFailure {
			return Result{Success: true, Kind: string(b.Kind), Message: err.Error()}, nil
		}
		return result, err
	}
	return result, nil
}
