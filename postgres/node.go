package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meikuraledutech/agentflow"
)

// AddNode appends a single node to a graph.
// If node.ID is empty, a UUID is auto-generated.
// Returns the node ID (generated or provided).
func (s *PGStore) AddNode(ctx context.Context, ownerID, graphID string, node agentflow.WireNode) (string, error) {
	if _, ok := agentflow.KindOf(node.Type); !ok {
		return "", &agentflow.InputError{Msg: fmt.Sprintf("unknown node type %q", node.Type)}
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("agentflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := touch(ctx, tx, ownerID, graphID); err != nil {
		return "", err
	}
	if err := insertNode(ctx, tx, graphID, node); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("agentflow: commit: %w", err)
	}
	return node.ID, nil
}

// UpdateNode replaces the type and data of an existing node. Its position in
// the graph is kept.
// Returns ErrNodeNotFound if the node doesn't exist.
func (s *PGStore) UpdateNode(ctx context.Context, ownerID, graphID string, node agentflow.WireNode) error {
	if _, ok := agentflow.KindOf(node.Type); !ok {
		return &agentflow.InputError{Msg: fmt.Sprintf("unknown node type %q", node.Type)}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agentflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := touch(ctx, tx, ownerID, graphID); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx,
		`UPDATE graph_nodes SET type = $1, data = $2 WHERE graph_id = $3 AND id = $4`,
		node.Type, nodeData(node), graphID, node.ID,
	)
	if err != nil {
		return fmt.Errorf("agentflow: update node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return agentflow.ErrNodeNotFound
	}
	return tx.Commit(ctx)
}

// DeleteNode deletes a node by its ID.
// Associated edges are cascade-deleted by the DB.
// Returns ErrNodeNotFound if the node doesn't exist.
func (s *PGStore) DeleteNode(ctx context.Context, ownerID, graphID, nodeID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agentflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := touch(ctx, tx, ownerID, graphID); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE graph_id = $1 AND id = $2`, graphID, nodeID)
	if err != nil {
		return fmt.Errorf("agentflow: delete node: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return agentflow.ErrNodeNotFound
	}
	return tx.Commit(ctx)
}

func insertNode(ctx context.Context, q querier, graphID string, n agentflow.WireNode) error {
	_, err := q.Exec(ctx,
		`INSERT INTO graph_nodes (graph_id, id, type, data) VALUES ($1, $2, $3, $4)`,
		graphID, n.ID, n.Type, nodeData(n),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &agentflow.InputError{Msg: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		return fmt.Errorf("agentflow: insert node %s: %w", n.ID, err)
	}
	return nil
}

// listNodes returns all nodes of a graph in insertion order.
// Returns an empty slice (not nil) if none found.
func listNodes(ctx context.Context, q querier, graphID string) ([]agentflow.WireNode, error) {
	rows, err := q.Query(ctx,
		`SELECT id, type, data FROM graph_nodes WHERE graph_id = $1 ORDER BY position`, graphID)
	if err != nil {
		return nil, fmt.Errorf("agentflow: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []agentflow.WireNode{}
	for rows.Next() {
		var n agentflow.WireNode
		if err := rows.Scan(&n.ID, &n.Type, &n.Data); err != nil {
			return nil, fmt.Errorf("agentflow: scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agentflow: rows nodes: %w", err)
	}
	return nodes, nil
}

func nodeData(n agentflow.WireNode) map[string]any {
	if n.Data == nil {
		return map[string]any{}
	}
	return n.Data
}
