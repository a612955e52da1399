// Package inspector defines the Inspector contract and per-(node,
// inspector) execution tracking: a single (nodeID, inspectorID) ->
// lastRun row per pair, updated in place on each invocation.
package inspector

import (
	"time"

	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
)

// InspectionContext is the capability surface exposed to a running
// Inspector: node mutation, graph construction, and resource
// resolution.
type InspectionContext struct {
	store    *graphstore.Store
	node     *graph.Node
	resolver ResourceResolver
}

// ResourceResolver resolves a project-relative path to its bytes,
// including entries nested inside a JAR.
type ResourceResolver interface {
	Resolve(path string) ([]byte, error)
}

func NewInspectionContext(store *graphstore.Store, node *graph.Node, resolver ResourceResolver) *InspectionContext {
	return &InspectionContext{store: store, node: node, resolver: resolver}
}

func (c *InspectionContext) SetProperty(key string, v graph.Value) {
	c.node.SetProperty(key, v)
	c.store.NotifyTagsChanged(c.node.ID)
}

func (c *InspectionContext) SetMetric(key string, v float64) { c.node.SetMetric(key, v) }

func (c *InspectionContext) EnableTag(tag string) {
	c.node.EnableTag(tag)
	c.store.NotifyTagsChanged(c.node.ID)
}

func (c *InspectionContext) GetOrCreateNode(id string, nodeType graph.NodeType) *graph.Node {
	return c.store.GetOrCreateNode(id, nodeType)
}

func (c *InspectionContext) AddEdge(e *graph.Edge) { c.store.AddEdge(e) }

func (c *InspectionContext) Store() *graphstore.Store { return c.store }

func (c *InspectionContext) ResolveResource(path string) ([]byte, error) {
	return c.resolver.Resolve(path)
}

// aggregateTarget folds one observation into a running statistic under
// the node's mutex, bumping the statistic's classes_analyzed counter
// alongside it.
func aggregateTarget(target *graph.Node, statKey string, combine func(existing float64, ok bool) float64) {
	target.UpdateMetrics(func(metrics map[string]float64) {
		existing, ok := metrics[statKey]
		metrics[statKey] = combine(existing, ok)
		metrics[statKey+".classes_analyzed"]++
	})
}

// AggregateMax folds value into target's running max for metricName.
func AggregateMax(target *graph.Node, metricName string, value float64) {
	aggregateTarget(target, metricName+".max", func(existing float64, ok bool) float64 {
		if !ok || value > existing {
			return value
		}
		return existing
	})
}

// AggregateMin folds value into target's running min for metricName.
func AggregateMin(target *graph.Node, metricName string, value float64) {
	aggregateTarget(target, metricName+".min", func(existing float64, ok bool) float64 {
		if !ok || value < existing {
			return value
		}
		return existing
	})
}

// AggregateSum folds value into target's running sum for metricName.
func AggregateSum(target *graph.Node, metricName string, value float64) {
	aggregateTarget(target, metricName+".sum", func(existing float64, ok bool) float64 {
		return existing + value
	})
}

// AggregateAvg maintains the running sum and count so the average can
// be recomputed, storing it under metricName+".avg".
func AggregateAvg(target *graph.Node, metricName string, value float64) {
	target.UpdateMetrics(func(metrics map[string]float64) {
		sum := metrics[metricName+".sum"] + value
		count := metrics[metricName+".count"] + 1
		metrics[metricName+".sum"] = sum
		metrics[metricName+".count"] = count
		metrics[metricName+".avg"] = sum / count
	})
}

// Inspector is the per-node-type inspection unit, parameterized over the
// node type it operates on (always graph.Node at the value level, but
// kept as a named type to mirror a generic contract).
type Inspector interface {
	ID() string
	// CanRun governs per-item skipping: given the last time this
	// inspector ran against item (zero if never), should it run again
	// this pass?
	CanRun(item *graph.Node, lastRun time.Time) bool
	// Run executes the inspection, returning true if item was mutated.
	Run(item *graph.Node, ctx *InspectionContext) bool
}
