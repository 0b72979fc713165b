package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meikuraledutech/agentflow"
)

// AddEdge appends a single edge to a graph.
// If edge.ID is empty, a UUID is auto-generated.
// Both endpoints must already exist in the graph.
// Returns the edge ID (generated or provided).
func (s *PGStore) AddEdge(ctx context.Context, ownerID, graphID string, edge agentflow.WireEdge) (string, error) {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("agentflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := touch(ctx, tx, ownerID, graphID); err != nil {
		return "", err
	}
	if err := insertEdge(ctx, tx, graphID, edge); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("agentflow: commit: %w", err)
	}
	return edge.ID, nil
}

// DeleteEdge deletes an edge by its ID.
// Returns ErrEdgeNotFound if the edge doesn't exist.
func (s *PGStore) DeleteEdge(ctx context.Context, ownerID, graphID, edgeID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agentflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := touch(ctx, tx, ownerID, graphID); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM graph_edges WHERE graph_id = $1 AND id = $2`, graphID, edgeID)
	if err != nil {
		return fmt.Errorf("agentflow: delete edge: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return agentflow.ErrEdgeNotFound
	}
	return tx.Commit(ctx)
}

func insertEdge(ctx context.Context, q querier, graphID string, e agentflow.WireEdge) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := q.Exec(ctx,
		`INSERT INTO graph_edges (graph_id, id, source, target, source_handle, target_handle)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		graphID, e.ID, e.Source, e.Target, e.SourceHandle, e.TargetHandle,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case isUniqueViolation(err):
			return &agentflow.InputError{Msg: fmt.Sprintf("duplicate edge id %q", e.ID)}
		case errors.As(err, &pgErr) && pgErr.Code == "23503":
			return &agentflow.InputError{Msg: fmt.Sprintf("edge %q references an unknown node", e.ID)}
		}
		return fmt.Errorf("agentflow: insert edge %s: %w", e.ID, err)
	}
	return nil
}

// listEdges returns all edges of a graph in insertion order.
// Returns an empty slice (not nil) if none found.
func listEdges(ctx context.Context, q querier, graphID string) ([]agentflow.WireEdge, error) {
	rows, err := q.Query(ctx,
		`SELECT id, source, target, source_handle, target_handle FROM graph_edges
		 WHERE graph_id = $1 ORDER BY position`, graphID)
	if err != nil {
		return nil, fmt.Errorf("agentflow: list edges: %w", err)
	}
	defer rows.Close()

	edges := []agentflow.WireEdge{}
	for rows.Next() {
		var e agentflow.WireEdge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.SourceHandle, &e.TargetHandle); err != nil {
			return nil, fmt.Errorf("agentflow: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agentflow: rows edges: %w", err)
	}
	return edges, nil
}
