package postgres

import "context"

// position is an identity column so that reads return nodes and edges in the
// order they were inserted.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS graphs (
    id          TEXT PRIMARY KEY,
    owner_id    TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS graph_nodes (
    graph_id TEXT NOT NULL REFERENCES graphs(id) ON DELETE CASCADE,
    id       TEXT NOT NULL,
    type     TEXT NOT NULL,
    data     JSONB NOT NULL DEFAULT '{}',
    position BIGINT GENERATED ALWAYS AS IDENTITY,
    PRIMARY KEY (graph_id, id)
);

CREATE TABLE IF NOT EXISTS graph_edges (
    graph_id      TEXT NOT NULL REFERENCES graphs(id) ON DELETE CASCADE,
    id            TEXT NOT NULL,
    source        TEXT NOT NULL,
    target        TEXT NOT NULL,
    source_handle TEXT NOT NULL DEFAULT '',
    target_handle TEXT NOT NULL DEFAULT '',
    position      BIGINT GENERATED ALWAYS AS IDENTITY,
    PRIMARY KEY (graph_id, id),
    FOREIGN KEY (graph_id, source) REFERENCES graph_nodes(graph_id, id) ON DELETE CASCADE,
    FOREIGN KEY (graph_id, target) REFERENCES graph_nodes(graph_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_graphs_owner_id        ON graphs(owner_id);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_position   ON graph_nodes(graph_id, position);
CREATE INDEX IF NOT EXISTS idx_graph_edges_position   ON graph_edges(graph_id, position);
`

// CreateSchema creates the graph tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the graph tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS graph_edges, graph_nodes, graphs CASCADE;`)
	return err
}
