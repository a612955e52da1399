package graphstore

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
	id            TEXT PRIMARY KEY,
	node_type     TEXT NOT NULL,
	display_label TEXT NOT NULL,
	properties    TEXT NOT NULL DEFAULT '{}',
	metrics       TEXT NOT NULL DEFAULT '{}',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
	source     TEXT NOT NULL,
	target     TEXT NOT NULL,
	edge_type  TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS node_tags (
	node_id   TEXT NOT NULL,
	node_type TEXT NOT NULL DEFAULT '',
	tag       TEXT NOT NULL,
	PRIMARY KEY (node_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_tags_tag ON node_tags(tag);
CREATE INDEX IF NOT EXISTS idx_tags_type_tag ON node_tags(node_type, tag);
CREATE INDEX IF NOT EXISTS idx_tags_node ON node_tags(node_id);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
`
