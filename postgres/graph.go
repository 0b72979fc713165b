package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meikuraledutech/agentflow"
)

// CreateGraph saves a full graph record (nodes + edges) in one transaction.
// A record without an ID gets an auto-generated UUID.
func (s *PGStore) CreateGraph(ctx context.Context, rec *agentflow.GraphRecord) (*agentflow.GraphRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Graph == nil {
		rec.Graph, _ = agentflow.NewGraph(nil, nil)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("agentflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO graphs (id, owner_id, name, description) VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		rec.ID, rec.OwnerID, rec.Name, rec.Description,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &agentflow.InputError{Msg: fmt.Sprintf("graph %q already exists", rec.ID)}
		}
		return nil, fmt.Errorf("agentflow: insert graph: %w", err)
	}

	if err := insertContents(ctx, tx, rec.ID, rec.Graph); err != nil {
		return nil, err
	}
	// Reload so generated edge IDs are reflected in the result.
	if rec.Graph, err = loadContents(ctx, tx, rec.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("agentflow: commit: %w", err)
	}
	return rec, nil
}

// GetGraph retrieves a full graph record by ID.
// Returns ErrGraphNotFound if it doesn't exist or belongs to another owner.
func (s *PGStore) GetGraph(ctx context.Context, ownerID, graphID string) (*agentflow.GraphRecord, error) {
	rec := &agentflow.GraphRecord{ID: graphID, OwnerID: ownerID}
	err := s.db.QueryRow(ctx,
		`SELECT name, description, created_at, updated_at FROM graphs WHERE id = $1 AND owner_id = $2`,
		graphID, ownerID,
	).Scan(&rec.Name, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, agentflow.ErrGraphNotFound
		}
		return nil, fmt.Errorf("agentflow: get graph: %w", err)
	}

	g, err := loadContents(ctx, s.db, graphID)
	if err != nil {
		return nil, err
	}
	rec.Graph = g
	return rec, nil
}

// UpdateGraph replaces the name, description, nodes and edges of a record.
func (s *PGStore) UpdateGraph(ctx context.Context, rec *agentflow.GraphRecord) (*agentflow.GraphRecord, error) {
	if rec.Graph == nil {
		rec.Graph, _ = agentflow.NewGraph(nil, nil)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("agentflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE graphs SET name = $1, description = $2, updated_at = NOW()
		 WHERE id = $3 AND owner_id = $4
		 RETURNING created_at, updated_at`,
		rec.Name, rec.Description, rec.ID, rec.OwnerID,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, agentflow.ErrGraphNotFound
		}
		return nil, fmt.Errorf("agentflow: update graph: %w", err)
	}

	// Replace semantics: edges go first through the node cascade.
	if _, err := tx.Exec(ctx, `DELETE FROM graph_nodes WHERE graph_id = $1`, rec.ID); err != nil {
		return nil, fmt.Errorf("agentflow: delete nodes: %w", err)
	}
	if err := insertContents(ctx, tx, rec.ID, rec.Graph); err != nil {
		return nil, err
	}
	// Reload so generated edge IDs are reflected in the result.
	if rec.Graph, err = loadContents(ctx, tx, rec.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("agentflow: commit: %w", err)
	}
	return rec, nil
}

// DeleteGraph removes a record with all of its nodes and edges.
func (s *PGStore) DeleteGraph(ctx context.Context, ownerID, graphID string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM graphs WHERE id = $1 AND owner_id = $2`, graphID, ownerID)
	if err != nil {
		return fmt.Errorf("agentflow: delete graph: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return agentflow.ErrGraphNotFound
	}
	return nil
}

// ListGraphs returns the owner's records, most recently updated first.
// The Graph field is not loaded. Returns an empty slice (not nil) if none found.
func (s *PGStore) ListGraphs(ctx context.Context, ownerID string) ([]agentflow.GraphRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM graphs
		 WHERE owner_id = $1 ORDER BY updated_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("agentflow: list graphs: %w", err)
	}
	defer rows.Close()

	recs := []agentflow.GraphRecord{}
	for rows.Next() {
		rec := agentflow.GraphRecord{OwnerID: ownerID}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("agentflow: scan graph: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agentflow: rows graphs: %w", err)
	}
	return recs, nil
}

// touch bumps updated_at and doubles as the ownership check for granular edits.
func touch(ctx context.Context, q querier, ownerID, graphID string) error {
	ct, err := q.Exec(ctx,
		`UPDATE graphs SET updated_at = $1 WHERE id = $2 AND owner_id = $3`,
		time.Now().UTC(), graphID, ownerID)
	if err != nil {
		return fmt.Errorf("agentflow: touch graph: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return agentflow.ErrGraphNotFound
	}
	return nil
}

func insertContents(ctx context.Context, q querier, graphID string, g *agentflow.Graph) error {
	w := agentflow.FromGraph(g)
	for _, n := range w.Nodes {
		if err := insertNode(ctx, q, graphID, n); err != nil {
			return err
		}
	}
	for _, e := range w.Edges {
		if err := insertEdge(ctx, q, graphID, e); err != nil {
			return err
		}
	}
	return nil
}

func loadContents(ctx context.Context, q querier, graphID string) (*agentflow.Graph, error) {
	nodes, err := listNodes(ctx, q, graphID)
	if err != nil {
		return nil, err
	}
	edges, err := listEdges(ctx, q, graphID)
	if err != nil {
		return nil, err
	}
	return agentflow.WireGraph{Nodes: nodes, Edges: edges}.Graph()
}
