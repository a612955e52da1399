package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"legacymod/internal/errs"
)

// document is the on-disk wrapper: every plan file (main or include) is a
// mapping with a single top-level migration-plan key.
type document struct {
	Plan MigrationPlan `yaml:"migration-plan"`
}

// LoadOptions carries every variable source above the main plan file,
// ordered highest to lowest precedence.
type LoadOptions struct {
	MainPath      string
	ProjectRoot   string
	CLIDefines    map[string]string // -D<key>=<value>, highest precedence
	CLIVariables  map[string]string // --variable k=v
	VariablesFile map[string]string // --variables <file>, pre-parsed
}

// LoadResult is a fully merged, include-resolved, validated plan plus its
// final variable scope.
type LoadResult struct {
	Plan      *MigrationPlan
	Variables map[string]string
}

// Load reads the main plan file, merges at most one level of includes,
// validates the block tagged union and DAG structure, and computes the
// final variable scope via the five-level (plus auto-derived/env)
// precedence order.
func Load(opts LoadOptions) (*LoadResult, error) {
	mainDoc, err := readDocument(opts.MainPath)
	if err != nil {
		return nil, err
	}

	mergedVars := map[string]string{}
	for k, v := range autoDerivedVariables(opts.ProjectRoot, mainDoc.Plan.Name) {
		mergedVars[k] = v
	}

	// Includes are resolved relative to the main plan's directory and
	// merged in listed order (later includes win over earlier ones),
	// all of which sit below the main plan's own variables.
	mainDir := filepath.Dir(opts.MainPath)
	var includedPhases []Phase
	for _, includePath := range mainDoc.Plan.Includes {
		includeDoc, err := readDocument(filepath.Join(mainDir, includePath))
		if err != nil {
			return nil, err
		}
		if len(includeDoc.Plan.Includes) > 0 {
			return nil, errs.Config("plan: included file %q may not itself declare includes", includePath)
		}
		for k, v := range includeDoc.Plan.Variables {
			mergedVars[k] = v
		}
		includedPhases = append(includedPhases, includeDoc.Plan.Phases...)
	}

	for k, v := range mainDoc.Plan.Variables {
		mergedVars[k] = v
	}
	for k, v := range opts.VariablesFile {
		mergedVars[k] = v
	}
	for k, v := range opts.CLIVariables {
		mergedVars[k] = v
	}
	for k, v := range opts.CLIDefines {
		mergedVars[k] = v
	}

	finalPlan := mainDoc.Plan
	finalPlan.Phases = append(includedPhases, mainDoc.Plan.Phases...)
	finalPlan.Variables = mergedVars
	finalPlan.Includes = nil

	if err := finalPlan.Validate(); err != nil {
		return nil, errs.ConfigWrap(err, "validating plan %s", opts.MainPath)
	}
	for i := range finalPlan.Phases {
		if err := validateTaskDAG(finalPlan.Phases[i]); err != nil {
			return nil, errs.ConfigWrap(err, "validating phase %s", finalPlan.Phases[i].ID)
		}
	}
	for _, req := range finalPlan.Metadata.Requires {
		_ = req // requirement checking is engine-version-specific; recorded but not enforced here
	}

	return &LoadResult{Plan: &finalPlan, Variables: mergedVars}, nil
}

func readDocument(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IOWrap(err, "reading plan file %s", path)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.ConfigWrap(err, "parsing plan file %s", path)
	}
	return &doc, nil
}

// autoDerivedVariables computes the fixed set of variables available
// without any explicit declaration.
func autoDerivedVariables(projectRoot, planName string) map[string]string {
	vars := map[string]string{
		"project.root": projectRoot,
		"project.name": filepath.Base(projectRoot),
		"plan.name":    planName,
		"current_datetime": time.Now().Format(time.RFC3339),
	}
	if u, err := os.UserHomeDir(); err == nil {
		vars["user.home"] = u
	}
	if name := os.Getenv("USER"); name != "" {
		vars["user.name"] = name
	} else if name := os.Getenv("USERNAME"); name != "" {
		vars["user.name"] = name
	}
	return vars
}

// validateTaskDAG runs Kahn's algorithm over a phase's tasks, confirming
// task dependencies form a DAG within a single phase and that the
// resulting topological order is tie-broken lexicographically by task
// ID for reproducibility.
func validateTaskDAG(phase Phase) error {
	_, err := TopoSortTasks(phase.Tasks)
	return err
}

// TopoSortTasks returns phase tasks in dependency order via Kahn's
// algorithm, tie-breaking ready tasks lexicographically by ID so runs
// are reproducible. A cycle is a fatal plan error.
func TopoSortTasks(tasks []Task) ([]Task, error) {
	byID := make(map[string]Task, len(tasks))
	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		if _, ok := indegree[t.ID]; !ok {
			indegree[t.ID] = 0
		}
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("plan: task %q depends on unknown task %q", t.ID, dep)
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var ready []string
	for _, t := range tasks {
		if indegree[t.ID] == 0 {
			ready = append(ready, t.ID)
		}
	}

	var order []Task
	for len(ready) > 0 {
		sortLexical(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, byID[next])
		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(tasks) {
		return nil, fmt.Errorf("plan: cycle detected among tasks")
	}
	return order, nil
}

func sortLexical(ids []string) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}
