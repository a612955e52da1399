// Package executor implements the multi-pass convergence loop:
// repeatedly run a set of inspectors over a supplied item set until a
// pass touches nothing new or maxPasses is reached, fanning each pass
// out across an errgroup-bounded worker pool.
package executor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"legacymod/internal/graph"
	"legacymod/internal/inspector"
	"legacymod/internal/logging"
)

// Config parameterizes one multi-pass run.
type Config struct {
	PhaseName      string
	MaxPasses      int
	PhaseTag       string
	MaxParallelism int
	ItemSupplier   func() []*graph.Node
	Inspectors     []inspector.Inspector
	Tracker        *inspector.Tracker
	NewContext     func(item *graph.Node) *inspector.InspectionContext
}

// Result reports the outcome of a multi-pass run.
type Result struct {
	PassesExecuted      int
	Converged           bool
	TotalItemsProcessed int
	ExecutionProfile    Profile
}

// Profile records timing/throughput data for the run. It carries no run
// ID; internal/analysis stamps the run ID on its Report.
type Profile struct {
	PhaseName  string
	StartedAt  time.Time
	FinishedAt time.Time
	PassTimes  []time.Duration
}

// Execute runs cfg's inspectors to convergence.
func Execute(ctx context.Context, cfg Config) (Result, error) {
	log := logging.Named("executor")
	profile := Profile{PhaseName: cfg.PhaseName, StartedAt: time.Now()}

	maxParallelism := cfg.MaxParallelism
	if maxParallelism <= 0 {
		maxParallelism = 1
	}

	var result Result
	for pass := 0; pass < cfg.MaxPasses; pass++ {
		passStart := time.Now()
		items := cfg.ItemSupplier()

		touched := make(map[string]struct{})
		var mu lockedSet
		mu.set = touched

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(maxParallelism)

		for _, item := range items {
			item := item
			eg.Go(func() error {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				ids := runInspectorsOnItem(item, cfg, log)
				if len(ids) > 0 {
					mu.addAll(ids)
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil && ctx.Err() != nil {
			return result, ctx.Err()
		}

		result.PassesExecuted++
		result.TotalItemsProcessed += len(items)
		profile.PassTimes = append(profile.PassTimes, time.Since(passStart))

		if len(touched) == 0 {
			result.Converged = true
			break
		}
	}

	profile.FinishedAt = time.Now()
	result.ExecutionProfile = profile
	return result, nil
}

// runInspectorsOnItem invokes every inspector whose CanRun accepts item,
// returning item's ID once for every inspector that reported a mutation.
func runInspectorsOnItem(item *graph.Node, cfg Config, log *zap.Logger) []string {
	ctxForItem := cfg.NewContext(item)
	var touchedIDs []string
	for _, insp := range cfg.Inspectors {
		lastRun := cfg.Tracker.LastRun(item.ID, insp.ID())
		if !insp.CanRun(item, lastRun) {
			continue
		}
		mutated := func() (m bool) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("inspector panicked, skipping item", zap.String("inspector", insp.ID()), zap.String("node", item.ID), zap.Any("panic", r))
					m = false
				}
			}()
			return insp.Run(item, ctxForItem)
		}()
		if err := cfg.Tracker.MarkRun(item.ID, insp.ID(), time.Now()); err != nil {
			log.Warn("failed to record inspector run", zap.Error(err))
		}
		if mutated {
			touchedIDs = append(touchedIDs, item.ID)
		}
	}
	return touchedIDs
}

type lockedSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func (s *lockedSet) addAll(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.set[id] = struct{}{}
	}
}
