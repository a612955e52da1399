// Package graphstore implements the graph store: an in-memory
// authoritative graph during a run, persisted to a single embedded
// SQLite file, with a typed node/edge/tag/metric model.
package graphstore

import (
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"legacymod/internal/errs"
	"legacymod/internal/graph"
	"legacymod/internal/logging"
)

// dbSuffix is the implementation-private filename suffix the store
// owns; callers must not pass the full on-disk filename with this
// suffix themselves. resolvePath appends it only when the caller's
// path doesn't already carry an extension, so a bare
// "<projectRoot>/.analysis/graph" base path and an explicit
// "--database /custom/graph.db" override both work.
const dbSuffix = ".db"

func resolvePath(path string) string {
	if filepath.Ext(path) != "" {
		return path
	}
	return path + dbSuffix
}

// Store is the authoritative in-memory graph for the duration of a
// run, backed by a SQLite file for durable persistence between runs.
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	registry *graph.Registry
	log      *zap.Logger

	nodes map[string]*graph.Node
	edges []*graph.Edge

	// tagIndex[tag][nodeID] and typeIndex[nodeType][nodeID] give
	// O(index-hit) tag/type lookups.
	tagIndex  map[string]map[string]struct{}
	typeIndex map[graph.NodeType]map[string]struct{}
}

// Open creates or opens the graph database at path and loads its
// contents into memory.
func Open(path string, registry *graph.Registry) (*Store, error) {
	log := logging.Named("graphstore")
	timer := logging.StartTimer("graphstore", "Open")
	defer timer.Stop()

	resolved := resolvePath(path)
	if dir := filepath.Dir(resolved); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.IOWrap(err, "creating graph store directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", resolved)
	if err != nil {
		return nil, errs.IOWrap(err, "opening graph store %s", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = OFF",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errs.IOWrap(err, "initializing graph store schema")
	}

	s := &Store{
		db:        db,
		registry:  registry,
		log:       log,
		nodes:     map[string]*graph.Node{},
		tagIndex:  map[string]map[string]struct{}{},
		typeIndex: map[graph.NodeType]map[string]struct{}{},
	}
	if err := s.Load(LoadOptions{}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying database handle so sibling packages (the
// inspector execution tracker) can share the single embedded SQLite file
// instead of opening their own.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) indexNodeLocked(n *graph.Node) {
	s.nodes[n.ID] = n
	if s.typeIndex[n.NodeType] == nil {
		s.typeIndex[n.NodeType] = map[string]struct{}{}
	}
	s.typeIndex[n.NodeType][n.ID] = struct{}{}
	for _, tag := range n.TagList() {
		if s.tagIndex[tag] == nil {
			s.tagIndex[tag] = map[string]struct{}{}
		}
		s.tagIndex[tag][n.ID] = struct{}{}
	}
}

// reindexTagsLocked refreshes tag indexes for a node after its tag set
// changed in place (e.g. an inspector enabling a new tag).
func (s *Store) reindexTagsLocked(n *graph.Node) {
	for tag, ids := range s.tagIndex {
		delete(ids, n.ID)
		if len(ids) == 0 {
			delete(s.tagIndex, tag)
		}
	}
	for _, tag := range n.TagList() {
		if s.tagIndex[tag] == nil {
			s.tagIndex[tag] = map[string]struct{}{}
		}
		s.tagIndex[tag][n.ID] = struct{}{}
	}
}

// GetOrCreateNode returns the existing node with id, or creates and
// registers a new one of nodeType via the registry's factory.
func (s *Store) GetOrCreateNode(id string, nodeType graph.NodeType) *graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[id]; ok {
		return n
	}
	n := s.registry.Construct(id, nodeType, id)
	s.indexNodeLocked(n)
	return n
}

// AddNode inserts or replaces a fully-constructed node.
func (s *Store) AddNode(n *graph.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexNodeLocked(n)
}

// AddEdge appends a directed edge. Endpoint existence is validated by
// Validate, not here, since a run may add edges before both endpoints
// exist (e.g. a forward reference resolved in a later pass).
func (s *Store) AddEdge(e *graph.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, e)
}

// GetNodeByID looks up a node by its stable ID.
func (s *Store) GetNodeByID(id string) (*graph.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// TagsOf returns the sorted tag list for a node, or nil if unknown.
func (s *Store) TagsOf(nodeID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[nodeID]
	if !ok {
		return nil
	}
	return n.TagList()
}

// NotifyTagsChanged must be called after an inspector mutates a node's
// tag set in place, so the tag index stays consistent.
func (s *Store) NotifyTagsChanged(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[nodeID]; ok {
		s.reindexTagsLocked(n)
	}
}

func (s *Store) collect(ids map[string]struct{}) []*graph.Node {
	out := make([]*graph.Node, 0, len(ids))
	for id := range ids {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindByNodeType returns every node of the given type.
func (s *Store) FindByNodeType(nodeType graph.NodeType) []*graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.typeIndex[nodeType])
}

// FindByTag returns every node carrying the given tag.
func (s *Store) FindByTag(tag string) []*graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.tagIndex[tag])
}

func intersect(sets []map[string]struct{}) map[string]struct{} {
	if len(sets) == 0 {
		return map[string]struct{}{}
	}
	out := map[string]struct{}{}
	for id := range sets[0] {
		out[id] = struct{}{}
	}
	for _, set := range sets[1:] {
		for id := range out {
			if _, ok := set[id]; !ok {
				delete(out, id)
			}
		}
	}
	return out
}

func union(sets []map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for _, set := range sets {
		for id := range set {
			out[id] = struct{}{}
		}
	}
	return out
}

// FindByAnyTags returns nodes carrying at least one of the given tags.
func (s *Store) FindByAnyTags(tags []string) []*graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sets := make([]map[string]struct{}, 0, len(tags))
	for _, t := range tags {
		sets = append(sets, s.tagIndex[t])
	}
	return s.collect(union(sets))
}

// FindByAllTags returns nodes carrying every one of the given tags.
func (s *Store) FindByAllTags(tags []string) []*graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sets := make([]map[string]struct{}, 0, len(tags))
	for _, t := range tags {
		sets = append(sets, s.tagIndex[t])
	}
	return s.collect(intersect(sets))
}

// FindByTypeAndTags returns nodes of nodeType matching tags, combined
// with either AND or OR semantics depending on all.
func (s *Store) FindByTypeAndTags(nodeType graph.NodeType, tags []string, all bool) []*graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tagSets := make([]map[string]struct{}, 0, len(tags))
	for _, t := range tags {
		tagSets = append(tagSets, s.tagIndex[t])
	}
	var tagMatch map[string]struct{}
	if all {
		tagMatch = intersect(tagSets)
	} else {
		tagMatch = union(tagSets)
	}
	typeMatch := s.typeIndex[nodeType]
	out := map[string]struct{}{}
	for id := range tagMatch {
		if _, ok := typeMatch[id]; ok {
			out[id] = struct{}{}
		}
	}
	return s.collect(out)
}

// AllNodes returns every node in the graph, sorted by ID.
func (s *Store) AllNodes() []*graph.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllEdges returns every edge in declaration order.
func (s *Store) AllEdges() []*graph.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// Validate enforces that every edge's endpoints reference existing
// node IDs. Call at the end of a run, not per-edge, since forward
// references are legal mid-run.
func (s *Store) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.edges {
		if _, ok := s.nodes[e.SourceID]; !ok {
			return errs.Graph("edge references unknown source node %q", e.SourceID)
		}
		if _, ok := s.nodes[e.TargetID]; !ok {
			return errs.Graph("edge references unknown target node %q", e.TargetID)
		}
	}
	return nil
}
