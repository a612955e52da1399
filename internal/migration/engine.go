// Package migration implements the migration engine: a block-structured,
// listener-driven plan executor. It dependency-sorts tasks within each
// sequential phase, runs blocks through internal/block's Dispatcher,
// fires internal/listener hooks, persists internal/state after every
// significant transition, and supports dry-run, step mode, resume, and
// cooperative cancellation.
package migration

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"legacymod/internal/block"
	"legacymod/internal/errs"
	"legacymod/internal/listener"
	"legacymod/internal/logging"
	"legacymod/internal/plan"
	"legacymod/internal/state"
	"legacymod/internal/template"
)

const (
	statusPending   = "PENDING"
	statusRunning   = "RUNNING"
	statusCompleted = "COMPLETED"
	statusFailed    = "FAILED"
	statusSkipped   = "SKIPPED"
)

// CancelFlag is a cooperative cancel flag: checked at block boundaries,
// never used to interrupt an in-flight block.
type CancelFlag struct {
	flag atomic.Bool
}

func (c *CancelFlag) Cancel()       { c.flag.Store(true) }
func (c *CancelFlag) Cancelled() bool { return c != nil && c.flag.Load() }

// Options configures one Engine.Run invocation.
type Options struct {
	PlanKey    string
	DryRun     bool
	StepMode   bool
	Resume     bool
	OnlyPhase  string // a one-shot replay of this unit alone, independent of Resume (decision recorded in DESIGN.md)
	OnlyTask   string
	CancelFlag *CancelFlag
}

// Result summarizes one plan run for the caller (CLI exit-code decision).
type Result struct {
	PlanKey string
	Success bool
	State   state.MigrationExecutionState
}

// Engine executes a MigrationPlan against a Store's graph-query blocks,
// the filesystem, and a git repository, on a single logical thread:
// blocks run sequentially and listeners run in-line.
type Engine struct {
	Dispatcher   *block.Dispatcher
	Listeners    *listener.Set
	StateStore   *state.Store
	StepPrompter StepPrompter
	Checkpoints  *GitCheckpointer // nil disables git checkpoint commits
	HistoryCap   int
	log          *zap.Logger
}

func New(dispatcher *block.Dispatcher, listeners *listener.Set, stateStore *state.Store, stepPrompter StepPrompter, checkpoints *GitCheckpointer, historyCap int) *Engine {
	return &Engine{
		Dispatcher:   dispatcher,
		Listeners:    listeners,
		StateStore:   stateStore,
		StepPrompter: stepPrompter,
		Checkpoints:  checkpoints,
		HistoryCap:   historyCap,
		log:          logging.Named("migration"),
	}
}

// Run executes mp's phases in order against scope, persisting st after
// every significant transition via e.StateStore. scope must already
// carry the plan's resolved variables (and, on resume, the restored
// VariableSnapshot) before Run is called.
func (e *Engine) Run(ctx context.Context, mp *plan.MigrationPlan, scope *template.Scope, st *state.MigrationState, opts Options) (Result, error) {
	timer := logging.StartTimer("migration", "Run")
	defer timer.Stop()

	execState, existed := st.Migrations[opts.PlanKey]
	if !existed {
		execState = state.MigrationExecutionState{PlanKey: opts.PlanKey, Status: statusRunning, StartedAt: time.Now()}
	} else {
		execState.Status = statusRunning
	}
	st.CurrentPlanKey = opts.PlanKey

	e.Listeners.FirePlanStart(opts.PlanKey)

	overallSuccess := true
	abort := false

phaseLoop:
	for _, phase := range mp.Phases {
		if opts.OnlyPhase != "" && phase.ID != opts.OnlyPhase {
			continue
		}
		if opts.CancelFlag.Cancelled() {
			abort = true
			break
		}

		existingPhase, hasExistingPhase := findPhaseRecord(execState, phase.ID)
		if opts.Resume && opts.OnlyPhase == "" && hasExistingPhase && existingPhase.Status == statusCompleted {
			continue // already complete, nothing to resume
		}

		e.Listeners.FirePhaseStart(phase.ID)
		phaseRec := state.PhaseExecutionRecord{PhaseID: phase.ID, Status: statusRunning, StartedAt: time.Now()}
		if hasExistingPhase {
			phaseRec.Tasks = existingPhase.Tasks
		}

		order, err := plan.TopoSortTasks(phase.Tasks)
		if err != nil {
			phaseRec.Status = statusFailed
			phaseRec.EndedAt = time.Now()
			upsertPhaseRecord(&execState, phaseRec)
			return e.finish(execState, opts.PlanKey, st, false), errs.ConfigWrap(err, "phase %s", phase.ID)
		}

		completed := completedTaskSet(phaseRec)
		phaseSuccess := true

		for _, task := range order {
			if opts.OnlyTask != "" && task.ID != opts.OnlyTask {
				continue
			}
			if opts.CancelFlag.Cancelled() {
				abort = true
				break
			}
			if opts.Resume && opts.OnlyPhase == "" && opts.OnlyTask == "" && completed[task.ID] {
				continue
			}
			if !dependenciesSatisfied(task, completed) {
				rec := state.TaskExecutionRecord{TaskID: task.ID, Status: statusSkipped, Error: "dependencies not satisfied"}
				upsertTaskRecord(&phaseRec, rec)
				continue
			}

			e.Listeners.FireTaskStart(phase.ID, task.ID)
			taskRec := state.TaskExecutionRecord{TaskID: task.ID, Status: statusRunning, StartedAt: time.Now()}
			taskSuccess := true
			skipAllActive := false

			for bi := range task.Blocks {
				blk := &task.Blocks[bi]
				if opts.CancelFlag.Cancelled() {
					taskRec.Error = "cancelled"
					taskSuccess = false
					break
				}

				if opts.StepMode && !opts.DryRun && !skipAllActive {
					answer, err := e.StepPrompter.Ask("run block " + blk.Name + "?")
					if err != nil {
						taskRec.Error = err.Error()
						taskSuccess = false
						break
					}
					switch answer {
					case StepSkipAll:
						skipAllActive = true
					case StepNo:
						e.Listeners.FireBlockStart(phase.ID, task.ID, blk.Name)
						e.Listeners.FireBlockComplete(listener.BlockOutcome{PhaseID: phase.ID, TaskID: task.ID, Name: blk.Name, Kind: string(blk.Kind), Success: true, Skipped: true, Message: "declined in step mode"})
						continue
					}
				}

				e.Listeners.FireBlockStart(phase.ID, task.ID, blk.Name)
				result, err := e.Dispatcher.Run(ctx, blk, scope, opts.DryRun)
				if result.DryRun {
					if preview, ok := previewBlock(blk, scope); ok {
						result.Message = preview
					}
				}
				outcome := listener.BlockOutcome{
					PhaseID: phase.ID, TaskID: task.ID, Name: blk.Name, Kind: string(blk.Kind),
					Success: err == nil, Skipped: result.Skipped, Message: result.Message,
				}
				if err != nil {
					outcome.Message = err.Error()
				}
				e.Listeners.FireBlockComplete(outcome)

				if err != nil {
					taskRec.Error = err.Error()
					taskSuccess = false
					break
				}
			}

			taskRec.EndedAt = time.Now()
			if taskSuccess {
				taskRec.Status = statusCompleted
				completed[task.ID] = true
				if !opts.DryRun && e.Checkpoints != nil && taskWantsCheckpoint(task) {
					if err := e.Checkpoints.Commit("migration: complete task " + task.ID); err != nil {
						e.log.Warn("git checkpoint commit failed", zap.String("task", task.ID), zap.Error(err))
					}
				}
			} else {
				taskRec.Status = statusFailed
			}
			upsertTaskRecord(&phaseRec, taskRec)

			continuePlan := e.Listeners.FireTaskComplete(listener.TaskOutcome{PhaseID: phase.ID, TaskID: task.ID, Success: taskSuccess, Record: taskRec})
			if !taskSuccess {
				phaseSuccess = false
			}
			if !continuePlan {
				abort = true
			}
			if !taskSuccess || abort {
				break
			}
		}

		phaseRec.EndedAt = time.Now()
		if abort {
			phaseRec.Status = statusFailed
		} else if phaseSuccess {
			phaseRec.Status = statusCompleted
		} else {
			phaseRec.Status = statusFailed
		}
		upsertPhaseRecord(&execState, phaseRec)
		st.Migrations[opts.PlanKey] = execState
		st.VariableSnapshot = scope.Native()
		_ = e.StateStore.Save(st)

		continuePlan := e.Listeners.FirePhaseComplete(listener.PhaseOutcome{PhaseID: phase.ID, Success: phaseRec.Status == statusCompleted, Record: phaseRec})
		if !phaseSuccess {
			overallSuccess = false
		}
		if !continuePlan {
			abort = true
		}
		if !phaseSuccess || abort {
			break phaseLoop
		}
	}

	return e.finish(execState, opts.PlanKey, st, overallSuccess && !abort), nil
}

func (e *Engine) finish(execState state.MigrationExecutionState, planKey string, st *state.MigrationState, success bool) Result {
	execState.EndedAt = time.Now()
	if success {
		execState.Status = statusCompleted
	} else {
		execState.Status = statusFailed
	}
	st.Migrations[planKey] = execState
	st.PushHistory(execState)
	_ = e.StateStore.Save(st)
	e.Listeners.FirePlanComplete(planKey, success)
	return Result{PlanKey: planKey, Success: success, State: execState}
}

func findPhaseRecord(execState state.MigrationExecutionState, phaseID string) (state.PhaseExecutionRecord, bool) {
	for _, p := range execState.Phases {
		if p.PhaseID == phaseID {
			return p, true
		}
	}
	return state.PhaseExecutionRecord{}, false
}

func upsertPhaseRecord(execState *state.MigrationExecutionState, rec state.PhaseExecutionRecord) {
	for i, p := range execState.Phases {
		if p.PhaseID == rec.PhaseID {
			execState.Phases[i] = rec
			return
		}
	}
	execState.Phases = append(execState.Phases, rec)
}

func upsertTaskRecord(phaseRec *state.PhaseExecutionRecord, rec state.TaskExecutionRecord) {
	for i, t := range phaseRec.Tasks {
		if t.TaskID == rec.TaskID {
			phaseRec.Tasks[i] = rec
			return
		}
	}
	phaseRec.Tasks = append(phaseRec.Tasks, rec)
}

func completedTaskSet(phaseRec state.PhaseExecutionRecord) map[string]bool {
	out := map[string]bool{}
	for _, t := range phaseRec.Tasks {
		if t.Status == statusCompleted {
			out[t.TaskID] = true
		}
	}
	return out
}

func dependenciesSatisfied(task plan.Task, completed map[string]bool) bool {
	for _, dep := range task.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// taskWantsCheckpoint reports whether a task opted into a git
// checkpoint commit via metadata.git: true. Tasks that don't ask get
// no commit, even inside a git repository.
func taskWantsCheckpoint(task plan.Task) bool {
	v, ok := task.Metadata["git"]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
