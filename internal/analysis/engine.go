// Package analysis implements the Analysis Engine: Discovery -> Class
// Collection -> ProjectFile inspection -> JavaClassNode inspection,
// flushing the graph store between phases.
package analysis

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"legacymod/internal/collect"
	"legacymod/internal/executor"
	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
	"legacymod/internal/inspector"
	"legacymod/internal/logging"
)

// Options configures one analysis run.
type Options struct {
	ProjectRoot       string
	MaxPasses         int
	MaxParallelism    int
	SkipExistingNodes bool
	FileInspectors    []inspector.Inspector
	ClassInspectors   []inspector.Inspector
}

// Report summarizes a completed run, stamped with a run ID.
type Report struct {
	RunID             string
	DiscoveredFiles   int
	CollectStats      collect.Stats
	FileAnalysis      executor.Result
	ClassAnalysis     executor.Result
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Engine runs the four analysis phases in order against a Store.
type Engine struct {
	store   *graphstore.Store
	tracker *inspector.Tracker
	log     *zap.Logger
}

func New(store *graphstore.Store, tracker *inspector.Tracker) *Engine {
	return &Engine{store: store, tracker: tracker, log: logging.Named("analysis")}
}

// Run executes Discovery, Collection, and both inspection phases in
// order, flushing the graph store after each. A mid-run crash therefore
// leaves the last fully-persisted phase intact.
func (e *Engine) Run(ctx context.Context, opts Options) (Report, error) {
	timer := logging.StartTimer("analysis", "Run")
	defer timer.Stop()

	report := Report{RunID: uuid.NewString(), StartedAt: time.Now()}

	discovered, err := e.discover(opts.ProjectRoot)
	if err != nil {
		return report, err
	}
	report.DiscoveredFiles = discovered
	if err := e.store.Flush(); err != nil {
		return report, err
	}

	collectEngine := collect.NewEngine(e.store, opts.SkipExistingNodes)
	defer collectEngine.Close()
	report.CollectStats = collectEngine.Run(opts.ProjectRoot)
	if err := e.store.Flush(); err != nil {
		return report, err
	}

	fileResult, err := executor.Execute(ctx, executor.Config{
		PhaseName:      "project-file-analysis",
		MaxPasses:      opts.MaxPasses,
		MaxParallelism: opts.MaxParallelism,
		ItemSupplier:   func() []*graph.Node { return e.store.FindByNodeType(graph.NodeTypeProjectFile) },
		Inspectors:     opts.FileInspectors,
		Tracker:        e.tracker,
		NewContext:     func(item *graph.Node) *inspector.InspectionContext { return inspector.NewInspectionContext(e.store, item, fsResolver{opts.ProjectRoot}) },
	})
	if err != nil {
		return report, err
	}
	report.FileAnalysis = fileResult
	if err := e.store.Flush(); err != nil {
		return report, err
	}

	classResult, err := executor.Execute(ctx, executor.Config{
		PhaseName:      "java-class-analysis",
		MaxPasses:      opts.MaxPasses,
		MaxParallelism: opts.MaxParallelism,
		ItemSupplier:   func() []*graph.Node { return e.store.FindByNodeType(graph.NodeTypeJavaClass) },
		Inspectors:     opts.ClassInspectors,
		Tracker:        e.tracker,
		NewContext:     func(item *graph.Node) *inspector.InspectionContext { return inspector.NewInspectionContext(e.store, item, fsResolver{opts.ProjectRoot}) },
	})
	if err != nil {
		return report, err
	}
	report.ClassAnalysis = classResult
	if err := e.store.Flush(); err != nil {
		return report, err
	}

	report.FinishedAt = time.Now()
	return report, nil
}

// discover walks projectRoot and creates a ProjectFile node for each
// .java, .class or .jar file that has no node yet; other files are
// ignored. It returns the number of matching files found.
func (e *Engine) discover(projectRoot string) (int, error) {
	count := 0
	err := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			e.log.Warn("discovery walk error", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			return nil
		}
		if !isInterestingFile(rel) {
			return nil
		}
		count++
		// Re-discovery must not clobber a node loaded from a prior
		// run, or its inspector-written properties and tags would be
		// lost and re-flushed as empty.
		if _, ok := e.store.GetNodeByID(rel); ok {
			return nil
		}
		e.store.AddNode(graph.NewProjectFile(rel, rel))
		return nil
	})
	return count, err
}

func isInterestingFile(relPath string) bool {
	return strings.HasSuffix(relPath, ".java") || strings.HasSuffix(relPath, ".class") || strings.HasSuffix(relPath, ".jar")
}

type fsResolver struct{ root string }

func (r fsResolver) Resolve(path string) ([]byte, error) {
	return resolveProjectResource(r.root, path)
}
