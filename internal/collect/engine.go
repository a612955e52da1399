package collect

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
	"legacymod/internal/logging"
)

// Stats summarizes one collection phase run, reported back to the
// analysis engine.
type Stats struct {
	FilesSeen      int
	FilesSkipped   int
	FilesCollected int
	ClassesCreated int
	ParseErrors    int
}

// Engine runs both collectors over every ProjectFile node, honoring a
// file-level skip contract: a file whose sourceFilePath already has
// class nodes attached is skipped when skipExistingNodes is true.
type Engine struct {
	store             *graphstore.Store
	bytecode          *BytecodeCollector
	source            *SourceCollector
	skipExistingNodes bool
	log               *zap.Logger
}

func NewEngine(store *graphstore.Store, skipExistingNodes bool) *Engine {
	cache := NewPackageNodeCache(store)
	return &Engine{
		store:             store,
		bytecode:          NewBytecodeCollector(cache),
		source:            NewSourceCollector(cache),
		skipExistingNodes: skipExistingNodes,
		log:               logging.Named("collect"),
	}
}

func (e *Engine) Close() { e.source.Close() }

// addEdges records each edge and materializes any endpoint that isn't
// in the graph yet — a supertype outside the project (java.io.
// Serializable, a framework base class) becomes a bare JavaClassNode,
// keeping every edge's endpoints resolvable at the end of the run.
func (e *Engine) addEdges(edges []*graph.Edge) {
	for _, edge := range edges {
		e.store.GetOrCreateNode(edge.TargetID, graph.NodeTypeJavaClass)
		e.store.AddEdge(edge)
	}
}

func (e *Engine) hasExistingClasses(sourceFilePath string) bool {
	for _, n := range e.store.FindByNodeType(graph.NodeTypeJavaClass) {
		if path, ok := n.GetProperty("sourceFilePath"); ok && path.S == sourceFilePath {
			return true
		}
	}
	return false
}

// Run collects classes for every ProjectFile node currently in the
// store, reading file contents from disk relative to projectRoot.
func (e *Engine) Run(projectRoot string) Stats {
	var stats Stats
	for _, pf := range e.store.FindByNodeType(graph.NodeTypeProjectFile) {
		stats.FilesSeen++
		relPath := pf.DisplayLabel

		if e.skipExistingNodes && e.hasExistingClasses(relPath) {
			stats.FilesSkipped++
			continue
		}

		fullPath := projectRoot + string(os.PathSeparator) + relPath
		content, err := os.ReadFile(fullPath)
		if err != nil {
			e.log.Warn("reading file for collection", zap.String("file", relPath), zap.Error(err))
			stats.ParseErrors++
			continue
		}

		var created int
		switch {
		case strings.HasSuffix(relPath, ".class"):
			node, edges, err := e.bytecode.Collect(relPath, content)
			if err != nil {
				stats.ParseErrors++
				continue
			}
			e.store.AddNode(node)
			e.addEdges(edges)
			created = 1
		case strings.HasSuffix(relPath, ".java"):
			nodes, edges, err := e.source.Collect(relPath, content)
			if err != nil {
				stats.ParseErrors++
				continue
			}
			for _, node := range nodes {
				e.store.AddNode(node)
			}
			e.addEdges(edges)
			created = len(nodes)
		default:
			continue
		}

		stats.FilesCollected++
		stats.ClassesCreated += created
	}
	return stats
}
