// Package plan implements the migration plan model and loader: a
// YAML-decoded MigrationPlan -> Phase -> Task -> Block tree with
// single-level includes, a closed block-kind tagged union, and a
// five-level variable precedence scheme.
package plan

import (
	"fmt"
)

// MigrationPlan is the top-level decoded plan document. Variables and
// Includes are resolved by Load before execution sees a MigrationPlan;
// by the time the engine gets one, Includes is always empty and
// Variables already reflects the merge.
type MigrationPlan struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description,omitempty"`
	Metadata    Metadata          `yaml:"metadata,omitempty"`
	Variables   map[string]string `yaml:"variables,omitempty"`
	Includes    []string          `yaml:"includes,omitempty"`
	Phases      []Phase           `yaml:"phases"`
}

// Metadata carries descriptive plan information plus a "requires" list
// declaring engine/tooling version constraints a plan depends on.
type Metadata struct {
	Author    string   `yaml:"author,omitempty"`
	Created   string   `yaml:"created,omitempty"`
	TargetTag string   `yaml:"target,omitempty"`
	SourceTag string   `yaml:"source,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`
	// Requires lists minimum-version constraints such as
	// "engine>=1.0.0" or "ai-provider:none". Informational: recorded
	// at load time for operators and tooling, not enforced.
	Requires []string `yaml:"requires,omitempty"`
}

// Phase is a sequential stage of the plan; phases never overlap.
type Phase struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Tasks       []Task `yaml:"tasks"`
}

// Task is a unit of work within a phase, with an optional DAG dependency
// set on other tasks in the same phase. Metadata carries free-form
// per-task switches; the engine reads "git": "true" as a request for a
// checkpoint commit after the task completes.
type Task struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Type      string            `yaml:"type,omitempty"`
	DependsOn []string          `yaml:"depends-on,omitempty"`
	Metadata  map[string]string `yaml:"metadata,omitempty"`
	Blocks    []Block           `yaml:"blocks"`
}

// Validate checks the plan's structural invariants: unique phase IDs,
// unique task IDs within a phase, unique block outputVariable names
// within a task, and that every dependsOn reference resolves to a task
// in the same phase.
func (p *MigrationPlan) Validate() error {
	seenPhase := map[string]bool{}
	for _, phase := range p.Phases {
		if seenPhase[phase.ID] {
			return fmt.Errorf("plan: duplicate phase id %q", phase.ID)
		}
		seenPhase[phase.ID] = true

		seenTask := map[string]bool{}
		for _, task := range phase.Tasks {
			if seenTask[task.ID] {
				return fmt.Errorf("plan: duplicate task id %q in phase %q", task.ID, phase.ID)
			}
			seenTask[task.ID] = true
		}
		for _, task := range phase.Tasks {
			for _, dep := range task.DependsOn {
				if !seenTask[dep] {
					return fmt.Errorf("plan: task %q in phase %q depends on unknown task %q", task.ID, phase.ID, dep)
				}
			}
			seenOutput := map[string]bool{}
			for _, block := range task.Blocks {
				if block.OutputVariable == "" {
					continue
				}
				if seenOutput[block.OutputVariable] {
					return fmt.Errorf("plan: task %q has duplicate output-variable %q", task.ID, block.OutputVariable)
				}
				seenOutput[block.OutputVariable] = true
			}
		}
	}
	return nil
}
