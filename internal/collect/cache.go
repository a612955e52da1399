// Package collect turns each ProjectFile into zero or more
// JavaClassNodes: one collector for compiled .class files and one for
// .java sources, both funneling through a shared PackageNodeCache.
package collect

import (
	"sync"

	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
)

// PackageNodeCache atomically get-or-creates PackageNodes and keeps
// their classIds/classCategoryCounts properties consistent as
// collectors attach classes to packages concurrently.
type PackageNodeCache struct {
	mu    sync.Mutex
	store *graphstore.Store
}

// NewPackageNodeCache wraps a graph store.
func NewPackageNodeCache(store *graphstore.Store) *PackageNodeCache {
	return &PackageNodeCache{store: store}
}

// GetOrCreateAndAttach ensures the package node for pkg exists, appends
// classID to its classIds list, and bumps its per-classType count. Safe
// for concurrent use by multiple collectors within the same phase.
func (c *PackageNodeCache) GetOrCreateAndAttach(pkg string, classID string, classType graph.ClassType) *graph.Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	pkgNode := c.store.GetOrCreateNode(graph.NormalizePackageName(pkg), graph.NodeTypePackage)

	idsVal, _ := pkgNode.GetProperty("classIds")
	ids := append([]graph.Value{}, idsVal.L...)
	ids = append(ids, graph.Str(classID))
	pkgNode.SetProperty("classIds", graph.List(ids...))

	countsVal, _ := pkgNode.GetProperty("classCategoryCounts")
	counts := map[string]graph.Value{}
	for k, v := range countsVal.M {
		counts[k] = v
	}
	key := string(classType)
	var current int64
	if v, ok := counts[key]; ok {
		current = v.I
	}
	counts[key] = graph.I64(current + 1)
	pkgNode.SetProperty("classCategoryCounts", graph.Map(counts))

	return pkgNode
}
