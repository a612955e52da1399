package block

import (
	"context"
	"fmt"

	"legacymod/internal/errs"
	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
	"legacymod/internal/plan"
	"legacymod/internal/template"
)

// GraphQueryRunner runs one of the five query kinds against the graph
// store and binds outputVariable to the list of matching node
// projections, plus "<outputVariable>_ids" (bare node IDs, for blocks
// that only need identity) and "<outputVariable>_summary" (a
// structured count/kind/filter breakdown).
type GraphQueryRunner struct {
	Store *graphstore.Store
}

func (r *GraphQueryRunner) Describe(b *plan.Block, scope *template.Scope) string {
	return fmt.Sprintf("query %s (type=%s tags=%v)", b.QueryKind, b.NodeType, b.Tags)
}

// nodeProjection flattens a node into the shape template paths walk:
// id, displayLabel, and its properties merged at the top level, so
// "${current_item.simpleName}" resolves the same way
// "${current_item.displayLabel}" does. Tags and metrics are left out —
// callers that need those still have the node ID to look it up.
func nodeProjection(n *graph.Node) map[string]interface{} {
	proj := map[string]interface{}{
		"id":           n.ID,
		"displayLabel": n.DisplayLabel,
	}
	for k, v := range n.Properties {
		proj[k] = v.Native()
	}
	return proj
}

func (r *GraphQueryRunner) Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error) {
	var nodes []*graph.Node
	switch b.QueryKind {
	case "byType":
		nodes = r.Store.FindByNodeType(graph.NodeType(b.NodeType))
	case "byAnyTag":
		nodes = r.Store.FindByAnyTags(b.Tags)
	case "byAllTag":
		nodes = r.Store.FindByAllTags(b.Tags)
	case "byTypeAndAnyTag":
		nodes = r.Store.FindByTypeAndTags(graph.NodeType(b.NodeType), b.Tags, false)
	case "byTypeAndAllTag":
		nodes = r.Store.FindByTypeAndTags(graph.NodeType(b.NodeType), b.Tags, true)
	default:
		return Result{}, errs.Config("unknown graph query kind %q", b.QueryKind)
	}

	ids := make([]string, len(nodes))
	projections := make([]interface{}, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
		projections[i] = nodeProjection(n)
	}

	base := b.OutputVariable
	if base == "" {
		base = "query_result"
	}
	scope.Set(base+"_ids", ids)
	scope.Set(base+"_summary", map[string]interface{}{
		"count":     len(ids),
		"queryKind": b.QueryKind,
		"nodeType":  b.NodeType,
		"tags":      b.Tags,
	})

	return Result{
		Success:               true,
		Kind:                  string(plan.BlockGraphQuery),
		Output:                projections,
		DefaultOutputVariable: base,
	}, nil
}
