// Package listener implements the migration engine's event hooks:
// onPlanStart/Complete, onPhaseStart/Complete, onTaskStart/Complete,
// onBlockStart/Complete, invoked sequentially in registration order on
// the engine thread.
package listener

import (
	"fmt"

	"legacymod/internal/state"
)

// PhaseOutcome and TaskOutcome carry the status listeners need to decide
// whether to abort the plan.
type PhaseOutcome struct {
	PhaseID string
	Success bool
	Record  state.PhaseExecutionRecord
}

type TaskOutcome struct {
	PhaseID string
	TaskID  string
	Success bool
	Record  state.TaskExecutionRecord
}

type BlockOutcome struct {
	PhaseID string
	TaskID  string
	Name    string
	Kind    string
	Success bool
	Skipped bool
	Message string
}

// Listener is the full hook surface. Phase/task-complete hooks return a
// bool; false aborts the plan with an "aborted by listener" status.
type Listener interface {
	OnPlanStart(planKey string)
	OnPlanComplete(planKey string, success bool)
	OnPhaseStart(phaseID string)
	OnPhaseComplete(outcome PhaseOutcome) (continuePlan bool)
	OnTaskStart(phaseID, taskID string)
	OnTaskComplete(outcome TaskOutcome) (continuePlan bool)
	OnBlockStart(phaseID, taskID, blockName string)
	OnBlockComplete(outcome BlockOutcome)
}

// Set fires each hook across every registered listener in registration
// order. Every listener is called even after one votes to abort; a
// single "no" makes the combined vote false.
type Set struct {
	listeners []Listener
}

func NewSet(listeners ...Listener) *Set {
	return &Set{listeners: listeners}
}

func (s *Set) Register(l Listener) { s.listeners = append(s.listeners, l) }

func (s *Set) FirePlanStart(planKey string) {
	for _, l := range s.listeners {
		l.OnPlanStart(planKey)
	}
}

func (s *Set) FirePlanComplete(planKey string, success bool) {
	for _, l := range s.listeners {
		l.OnPlanComplete(planKey, success)
	}
}

func (s *Set) FirePhaseStart(phaseID string) {
	for _, l := range s.listeners {
		l.OnPhaseStart(phaseID)
	}
}

// FirePhaseComplete returns false if any listener voted to abort.
func (s *Set) FirePhaseComplete(outcome PhaseOutcome) bool {
	continuePlan := true
	for _, l := range s.listeners {
		if !l.OnPhaseComplete(outcome) {
			continuePlan = false
		}
	}
	return continuePlan
}

func (s *Set) FireTaskStart(phaseID, taskID string) {
	for _, l := range s.listeners {
		l.OnTaskStart(phaseID, taskID)
	}
}

func (s *Set) FireTaskComplete(outcome TaskOutcome) bool {
	continuePlan := true
	for _, l := range s.listeners {
		if !l.OnTaskComplete(outcome) {
			continuePlan = false
		}
	}
	return continuePlan
}

func (s *Set) FireBlockStart(phaseID, taskID, blockName string) {
	for _, l := range s.listeners {
		l.OnBlockStart(phaseID, taskID, blockName)
	}
}

func (s *Set) FireBlockComplete(outcome BlockOutcome) {
	for _, l := range s.listeners {
		l.OnBlockComplete(outcome)
	}
}

// ConsoleProgressListener pretty-prints progress to stdout via fmt as
// plain text.
type ConsoleProgressListener struct{}

func (ConsoleProgressListener) OnPlanStart(planKey string) {
	fmt.Printf("==> starting plan %s\n", planKey)
}
func (ConsoleProgressListener) OnPlanComplete(planKey string, success bool) {
	fmt.Printf("==> plan %s finished (success=%t)\n", planKey, success)
}
func (ConsoleProgressListener) OnPhaseStart(phaseID string) {
	fmt.Printf("  -> phase %s starting\n", phaseID)
}
func (ConsoleProgressListener) OnPhaseComplete(outcome PhaseOutcome) bool {
	fmt.Printf("  -> phase %s %s\n", outcome.PhaseID, outcome.Record.Status)
	return true
}
func (ConsoleProgressListener) OnTaskStart(phaseID, taskID string) {
	fmt.Printf("     task %s starting\n", taskID)
}
func (ConsoleProgressListener) OnTaskComplete(outcome TaskOutcome) bool {
	fmt.Printf("     task %s %s\n", outcome.TaskID, outcome.Record.Status)
	return true
}
func (ConsoleProgressListener) OnBlockStart(phaseID, taskID, blockName string) {
	fmt.Printf("        block %s starting\n", blockName)
}
func (ConsoleProgressListener) OnBlockComplete(outcome BlockOutcome) {
	status := "ok"
	if outcome.Skipped {
		status = "skipped"
	} else if !outcome.Success {
		status = "failed: " + outcome.Message
	}
	fmt.Printf("        block %s %s\n", outcome.Name, status)
}

// StateFileListener writes the state file after every significant
// transition.
type StateFileListener struct {
	Store *state.Store
	State *state.MigrationState
}

func NewStateFileListener(store *state.Store, st *state.MigrationState) *StateFileListener {
	return &StateFileListener{Store: store, State: st}
}

func (l *StateFileListener) save() {
	_ = l.Store.Save(l.State) // persistence errors surface via the next explicit Save call in the engine loop
}

func (l *StateFileListener) OnPlanStart(planKey string) {
	l.State.CurrentPlanKey = planKey
	l.save()
}
func (l *StateFileListener) OnPlanComplete(planKey string, success bool) { l.save() }
func (l *StateFileListener) OnPhaseStart(phaseID string)                { l.save() }
func (l *StateFileListener) OnPhaseComplete(outcome PhaseOutcome) bool {
	l.save()
	return true
}
func (l *StateFileListener) OnTaskStart(phaseID, taskID string) {}
func (l *StateFileListener) OnTaskComplete(outcome TaskOutcome) bool {
	l.save()
	return true
}
func (l *StateFileListener) OnBlockStart(phaseID, taskID, blockName string) {}
func (l *StateFileListener) OnBlockComplete(outcome BlockOutcome)           {}
