// Package export writes the analyzed graph out as flat CSV or JSON node
// records, serializing whatever shape internal/graphstore hands it
// without imposing its own formatting conventions.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"legacymod/internal/errs"
	"legacymod/internal/graph"
	"legacymod/internal/graphstore"
)

// NodeRecord is the flattened, JSON/CSV-friendly view of a graph.Node.
type NodeRecord struct {
	ID         string                 `json:"id"`
	NodeType   string                 `json:"node_type"`
	Label      string                 `json:"display_label"`
	Tags       []string               `json:"tags"`
	Properties map[string]interface{} `json:"properties"`
	Metrics    map[string]float64     `json:"metrics"`
}

func recordsFromStore(store *graphstore.Store) []NodeRecord {
	nodes := store.AllNodes()
	out := make([]NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, recordFromNode(n))
	}
	return out
}

func recordFromNode(n *graph.Node) NodeRecord {
	props := make(map[string]interface{}, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v.Native()
	}
	metrics := make(map[string]float64, len(n.Metrics))
	for k, v := range n.Metrics {
		metrics[k] = v
	}
	return NodeRecord{
		ID:         n.ID,
		NodeType:   string(n.NodeType),
		Label:      n.DisplayLabel,
		Tags:       n.TagList(),
		Properties: props,
		Metrics:    metrics,
	}
}

// WriteJSON writes every node in store as a JSON array of NodeRecord, in
// ID order (graphstore.Store.AllNodes already sorts by ID).
func WriteJSON(w io.Writer, store *graphstore.Store) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recordsFromStore(store)); err != nil {
		return errs.IOWrap(err, "encoding graph export as JSON")
	}
	return nil
}

// WriteCSV writes a flat CSV: one row per node, with a fixed column set
// plus a "properties_json"/"metrics_json" column for the structured
// parts that don't fit a flat row, since CSV has no native map type.
func WriteCSV(w io.Writer, store *graphstore.Store) error {
	records := recordsFromStore(store)
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"id", "node_type", "display_label", "tags", "properties_json", "metrics_json"}); err != nil {
		return errs.IOWrap(err, "writing CSV header")
	}
	for _, r := range records {
		propsJSON, err := json.Marshal(r.Properties)
		if err != nil {
			return errs.IOWrap(err, "encoding properties for node %s", r.ID)
		}
		metricsJSON, err := json.Marshal(r.Metrics)
		if err != nil {
			return errs.IOWrap(err, "encoding metrics for node %s", r.ID)
		}
		row := []string{r.ID, r.NodeType, r.Label, strings.Join(r.Tags, "|"), string(propsJSON), string(metricsJSON)}
		if err := cw.Write(row); err != nil {
			return errs.IOWrap(err, "writing CSV row for node %s", r.ID)
		}
	}
	if err := cw.Error(); err != nil {
		return errs.IOWrap(err, "flushing CSV export")
	}
	return nil
}

// SortedNodeTypes returns the distinct node types present in store,
// sorted.
func SortedNodeTypes(store *graphstore.Store) []string {
	seen := map[string]struct{}{}
	for _, n := range store.AllNodes() {
		seen[string(n.NodeType)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
