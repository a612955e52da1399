package block

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"legacymod/internal/errs"
	"legacymod/internal/plan"
	"legacymod/internal/template"
)

// Prompter asks the operator a yes/no question and returns their
// answer, choosing a huh form when stdout is a TTY and falling back to
// a buffered-reader loop otherwise. ctx bounds the wait: a block's
// timeout-seconds must be able to abort a prompt nobody is answering.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// TTYPrompter is the default Prompter: a huh.Confirm form when
// isatty.IsTerminal(os.Stdout.Fd()) holds, else a line-oriented
// y/n reader that re-prompts on garbage input and treats EOF as "no".
type TTYPrompter struct {
	In  *os.File
	Out *os.File
}

func NewTTYPrompter() *TTYPrompter {
	return &TTYPrompter{In: os.Stdin, Out: os.Stdout}
}

func (p *TTYPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	type answer struct {
		confirmed bool
		err       error
	}
	// The blocking read runs in its own goroutine so ctx can cut the
	// wait short. On timeout the goroutine stays parked on stdin until
	// the process exits; its eventual answer is discarded.
	ch := make(chan answer, 1)
	go func() {
		var a answer
		if isatty.IsTerminal(p.Out.Fd()) || isatty.IsCygwinTerminal(p.Out.Fd()) {
			a.confirmed, a.err = p.confirmForm(question)
		} else {
			a.confirmed, a.err = p.confirmPlain(question)
		}
		ch <- a
	}()
	select {
	case a := <-ch:
		return a.confirmed, a.err
	case <-ctx.Done():
		return false, errs.BlockFailureWrap(ctx.Err(), "interactive prompt timed out waiting for an answer")
	}
}

func (p *TTYPrompter) confirmForm(question string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, errs.BlockFailureWrap(err, "interactive confirmation failed")
	}
	return confirmed, nil
}

// confirmPlain implements the shared re-prompt-on-garbage loop: y/yes
// accepts, n/no/empty-at-EOF declines, anything else reprompts.
func (p *TTYPrompter) confirmPlain(question string) (bool, error) {
	reader := bufio.NewReader(p.In)
	for {
		fmt.Fprintf(p.Out, "%s [y/n]: ", question)
		line, err := reader.ReadString('\n')
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if err != nil {
			return false, nil // EOF reads as a decline, not an error
		}
		switch trimmed {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(p.Out, "please answer y or n")
		}
	}
}

// InteractiveValidationRunner implements manualConfirm/review/approval:
// all three reduce to the same confirm-or-reject gate in this
// workbench, differing only in the message framing. The only payload is
// the yes/no answer, bound as a bool under outputVariable (default
// "approved"); no typed comment is collected.
type InteractiveValidationRunner struct {
	Prompter Prompter
}

func (r *InteractiveValidationRunner) Describe(b *plan.Block, scope *template.Scope) string {
	rendered, _ := template.Render(b.Message, scope)
	return fmt.Sprintf("%s: %s", b.ValidationType, rendered)
}

func (r *InteractiveValidationRunner) Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error) {
	message, err := template.Render(b.Message, scope)
	if err != nil {
		return Result{}, err
	}

	confirmed, err := r.Prompter.Confirm(ctx, message)
	if err != nil {
		return Result{}, err
	}

	if !confirmed {
		if b.Required {
			return Result{Kind: string(plan.BlockInteractiveValidation)}, errs.BlockFailure("user declined required validation %q", b.Name)
		}
		return Result{
			Success:               true,
			Kind:                  string(plan.BlockInteractiveValidation),
			Output:                false,
			DefaultOutputVariable: "approved",
		}, nil
	}

	return Result{
		Success:               true,
		Kind:                  string(plan.BlockInteractiveValidation),
		Output:                true,
		DefaultOutputVariable: "approved",
	}, nil
}
