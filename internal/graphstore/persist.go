package graphstore

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"legacymod/internal/errs"
	"legacymod/internal/graph"
	"legacymod/internal/logging"
)

// metricsKeyPrefix marks a persisted properties JSON key as belonging
// to the metrics table instead. In-memory nodes already separate
// Properties from Metrics; this prefix only matters at the
// serialization boundary.
const metricsKeyPrefix = "metrics."

// splitProperties separates a node's in-memory properties from any
// that were (incorrectly) given a "metrics." key, so a misrouted key
// still lands in the right table at write time.
func splitProperties(n *graph.Node) (props map[string]interface{}, metrics map[string]float64) {
	props = make(map[string]interface{}, len(n.Properties))
	metrics = make(map[string]float64, len(n.Metrics))
	for k, v := range n.Metrics {
		metrics[k] = v
	}
	for k, v := range n.Properties {
		if strings.HasPrefix(k, metricsKeyPrefix) {
			if v.Kind == graph.KindF64 {
				metrics[k] = v.F
			} else if v.Kind == graph.KindI64 {
				metrics[k] = float64(v.I)
			}
			continue
		}
		props[k] = v.Native()
	}
	return props, metrics
}

// Flush persists the entire in-memory graph to SQLite inside a single
// transaction, so node/edge writes are transactional per phase
// boundary. Call once at the end of each analysis phase.
func (s *Store) Flush() error {
	timer := logging.StartTimer("graphstore", "Flush")
	defer timer.Stop()

	s.mu.RLock()
	nodes := make([]*graph.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	edges := make([]*graph.Edge, len(s.edges))
	copy(edges, s.edges)
	s.mu.RUnlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errs.IOWrap(err, "beginning graph store transaction")
	}

	now := time.Now().Unix()
	nodeStmt, err := tx.Prepare(`INSERT INTO nodes (id, node_type, display_label, properties, metrics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET node_type=excluded.node_type, display_label=excluded.display_label,
			properties=excluded.properties, metrics=excluded.metrics, updated_at=excluded.updated_at`)
	if err != nil {
		tx.Rollback()
		return errs.IOWrap(err, "preparing node upsert")
	}
	defer nodeStmt.Close()

	tagDeleteStmt, err := tx.Prepare(`DELETE FROM node_tags WHERE node_id = ?`)
	if err != nil {
		tx.Rollback()
		return errs.IOWrap(err, "preparing tag delete")
	}
	defer tagDeleteStmt.Close()

	tagInsertStmt, err := tx.Prepare(`INSERT OR IGNORE INTO node_tags (node_id, node_type, tag) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errs.IOWrap(err, "preparing tag insert")
	}
	defer tagInsertStmt.Close()

	for _, n := range nodes {
		props, metrics := splitProperties(n)
		propsJSON, err := json.Marshal(props)
		if err != nil {
			tx.Rollback()
			return errs.IOWrap(err, "marshaling properties for node %s", n.ID)
		}
		metricsJSON, err := json.Marshal(metrics)
		if err != nil {
			tx.Rollback()
			return errs.IOWrap(err, "marshaling metrics for node %s", n.ID)
		}
		if _, err := nodeStmt.Exec(n.ID, string(n.NodeType), n.DisplayLabel, string(propsJSON), string(metricsJSON), now, now); err != nil {
			tx.Rollback()
			return errs.IOWrap(err, "upserting node %s", n.ID)
		}
		if _, err := tagDeleteStmt.Exec(n.ID); err != nil {
			tx.Rollback()
			return errs.IOWrap(err, "clearing tags for node %s", n.ID)
		}
		for _, tag := range n.TagList() {
			if _, err := tagInsertStmt.Exec(n.ID, string(n.NodeType), tag); err != nil {
				tx.Rollback()
				return errs.IOWrap(err, "inserting tag %s for node %s", tag, n.ID)
			}
		}
	}

	if _, err := tx.Exec(`DELETE FROM edges`); err != nil {
		tx.Rollback()
		return errs.IOWrap(err, "clearing edges")
	}
	edgeStmt, err := tx.Prepare(`INSERT INTO edges (source, target, edge_type, properties) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errs.IOWrap(err, "preparing edge insert")
	}
	defer edgeStmt.Close()
	for _, e := range edges {
		props := make(map[string]interface{}, len(e.Properties))
		for k, v := range e.Properties {
			props[k] = v.Native()
		}
		propsJSON, err := json.Marshal(props)
		if err != nil {
			tx.Rollback()
			return errs.IOWrap(err, "marshaling edge properties")
		}
		if _, err := edgeStmt.Exec(e.SourceID, e.TargetID, string(e.EdgeType), string(propsJSON)); err != nil {
			tx.Rollback()
			return errs.IOWrap(err, "inserting edge %s->%s", e.SourceID, e.TargetID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.IOWrap(err, "committing graph store transaction")
	}
	return nil
}

// LoadOptions controls selective phase-wise reload.
type LoadOptions struct {
	// NodeTypes restricts the load to the given node types. Empty means
	// load everything.
	NodeTypes []graph.NodeType
}

// Load performs a selective deserialize: the factory registry
// reconstructs each row by nodeType, tags are loaded separately from the
// node row, and a corrupt single row is logged and dropped rather than
// aborting the whole load.
func (s *Store) Load(opts LoadOptions) error {
	log := s.log
	want := map[graph.NodeType]bool{}
	for _, nt := range opts.NodeTypes {
		want[nt] = true
	}

	rows, err := s.db.Query(`SELECT id, node_type, display_label, properties, metrics FROM nodes`)
	if err != nil {
		return errs.IOWrap(err, "querying nodes")
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := map[string]*graph.Node{}
	unknownTypesLogged := map[string]bool{}
	for rows.Next() {
		var id, nodeType, label, propsJSON, metricsJSON string
		if err := rows.Scan(&id, &nodeType, &label, &propsJSON, &metricsJSON); err != nil {
			log.Warn("dropping unreadable node row", zap.Error(err))
			continue
		}
		if len(want) > 0 && !want[graph.NodeType(nodeType)] {
			continue
		}
		var props map[string]interface{}
		if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
			log.Warn("dropping node with corrupt properties JSON", zap.String("node_id", id), zap.Error(err))
			continue
		}
		var metrics map[string]float64
		if err := json.Unmarshal([]byte(metricsJSON), &metrics); err != nil {
			log.Warn("dropping node with corrupt metrics JSON", zap.String("node_id", id), zap.Error(err))
			continue
		}
		if !s.registry.Known(graph.NodeType(nodeType)) && !unknownTypesLogged[nodeType] {
			unknownTypesLogged[nodeType] = true
			log.Warn("unknown node type, loading as generic nodes", zap.String("node_type", nodeType))
		}
		n := s.registry.Construct(id, graph.NodeType(nodeType), label)
		for k, v := range props {
			cv, err := graph.FromNative(v)
			if err != nil {
				continue
			}
			n.Properties[k] = cv
		}
		for k, v := range metrics {
			n.Metrics[k] = v
		}
		loaded[id] = n
	}
	if err := rows.Err(); err != nil {
		return errs.IOWrap(err, "iterating node rows")
	}

	tagRows, err := s.db.Query(`SELECT node_id, tag FROM node_tags`)
	if err != nil {
		return errs.IOWrap(err, "querying tags")
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var nodeID, tag string
		if err := tagRows.Scan(&nodeID, &tag); err != nil {
			continue
		}
		if n, ok := loaded[nodeID]; ok {
			n.Tags[tag] = struct{}{}
		}
	}

	edgeRows, err := s.db.Query(`SELECT source, target, edge_type, properties FROM edges`)
	if err != nil {
		return errs.IOWrap(err, "querying edges")
	}
	defer edgeRows.Close()
	var edges []*graph.Edge
	for edgeRows.Next() {
		var source, target, edgeType, propsJSON string
		if err := edgeRows.Scan(&source, &target, &edgeType, &propsJSON); err != nil {
			log.Warn("dropping unreadable edge row", zap.Error(err))
			continue
		}
		var props map[string]interface{}
		if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
			log.Warn("dropping edge with corrupt properties JSON", zap.Error(err))
			continue
		}
		e := graph.NewEdge(source, target, graph.EdgeType(edgeType))
		for k, v := range props {
			cv, err := graph.FromNative(v)
			if err != nil {
				continue
			}
			e.Properties[k] = cv
		}
		edges = append(edges, e)
	}

	for id, n := range loaded {
		s.indexNodeLocked(n)
		_ = id
	}
	if len(want) == 0 {
		s.edges = edges
	}
	return nil
}
