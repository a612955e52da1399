package migration

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// StepAnswer is the operator's reply in step mode: run this block,
// skip it, or skip every remaining block in the task.
type StepAnswer int

const (
	StepYes StepAnswer = iota
	StepNo
	StepSkipAll
)

// StepPrompter asks the operator whether to run the next block in step
// mode. The implementation loops until a recognised answer is read; EOF
// is treated as "no" (not skip-all), matching the block-level
// Prompter's EOF convention in internal/block.
type StepPrompter interface {
	Ask(question string) (StepAnswer, error)
}

// TTYStepPrompter is the default StepPrompter: a line-oriented y/n/s
// reader, following the same machine-mode loop the block package's
// TTYPrompter uses.
type TTYStepPrompter struct {
	In  *os.File
	Out *os.File
}

func NewTTYStepPrompter() *TTYStepPrompter {
	return &TTYStepPrompter{In: os.Stdin, Out: os.Stdout}
}

func (p *TTYStepPrompter) Ask(question string) (StepAnswer, error) {
	reader := bufio.NewReader(p.In)
	for {
		fmt.Fprintf(p.Out, "%s [y/n/s]: ", question)
		line, err := reader.ReadString('\n')
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if err != nil {
			return StepNo, nil
		}
		switch trimmed {
		case "y", "yes":
			return StepYes, nil
		case "n", "no":
			return StepNo, nil
		case "s", "skip", "skip all":
			return StepSkipAll, nil
		default:
			fmt.Fprintln(p.Out, "please answer y, n, or s")
		}
	}
}
