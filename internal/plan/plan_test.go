package plan_test

import (
	"testing"

	"legacymod/internal/plan"
)

func TestValidateDuplicatePhase(t *testing.T) {
	mp := &plan.MigrationPlan{
		Phases: []plan.Phase{{ID: "p1"}, {ID: "p1"}},
	}
	if err := mp.Validate(); err == nil {
		t.Error("expected error for duplicate phase id")
	}
}

func TestValidateDuplicateTask(t *testing.T) {
	mp := &plan.MigrationPlan{
		Phases: []plan.Phase{{ID: "p1", Tasks: []plan.Task{{ID: "t1"}, {ID: "t1"}}}},
	}
	if err := mp.Validate(); err == nil {
		t.Error("expected error for duplicate task id")
	}
}

func TestValidateUnknownDependency(t *testing.T) {
	mp := &plan.MigrationPlan{
		Phases: []plan.Phase{{ID: "p1", Tasks: []plan.Task{{ID: "t1", DependsOn: []string{"missing"}}}}},
	}
	if err := mp.Validate(); err == nil {
		t.Error("expected error for unknown dependency")
	}
}

func TestValidateDuplicateOutputVariable(t *testing.T) {
	mp := &plan.MigrationPlan{
		Phases: []plan.Phase{{ID: "p1", Tasks: []plan.Task{{
			ID: "t1",
			Blocks: []plan.Block{
				{Kind: plan.BlockCommand, OutputVariable: "out", Command: "echo"},
				{Kind: plan.BlockCommand, OutputVariable: "out", Command: "echo"},
			},
		}}}},
	}
	if err := mp.Validate(); err == nil {
		t.Error("expected error for duplicate output-variable within a task")
	}
}

func TestValidateOK(t *testing.T) {
	mp := &plan.MigrationPlan{
		Phases: []plan.Phase{{
			ID: "p1",
			Tasks: []plan.Task{
				{ID: "t1"},
				{ID: "t2", DependsOn: []string{"t1"}},
			},
		}},
	}
	if err := mp.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTopoSortTasksOrderAndTieBreak(t *testing.T) {
	tasks := []plan.Task{
		{ID: "zebra"},
		{ID: "alpha"},
		{ID: "beta", DependsOn: []string{"zebra", "alpha"}},
	}
	order, err := plan.TopoSortTasks(tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("order length = %d, want 3", len(order))
	}
	// alpha and zebra are both ready with no deps; lexicographic tie-break
	// puts alpha first, then zebra, then beta once both are satisfied.
	if order[0].ID != "alpha" || order[1].ID != "zebra" || order[2].ID != "beta" {
		t.Errorf("order = %v", taskIDs(order))
	}
}

func TestTopoSortTasksCycle(t *testing.T) {
	tasks := []plan.Task{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}
	if _, err := plan.TopoSortTasks(tasks); err == nil {
		t.Error("expected cycle detection error")
	}
}

func taskIDs(tasks []plan.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
