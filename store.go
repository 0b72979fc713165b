package agentflow

import (
	"context"
	"time"
)

// GraphRecord is a graph saved under an owner.
type GraphRecord struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Graph       *Graph    `json:"graph"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Metadata returns the record's name and description for Compile.
func (r *GraphRecord) Metadata() Metadata {
	return Metadata{Name: r.Name, Description: r.Description}
}

// Store defines the contract for persisting graphs. Reads and writes are
// scoped to the owning user; a record owned by someone else is reported as
// ErrGraphNotFound.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Graphs (bulk operations)
	CreateGraph(ctx context.Context, rec *GraphRecord) (*GraphRecord, error)
	GetGraph(ctx context.Context, ownerID, graphID string) (*GraphRecord, error)
	UpdateGraph(ctx context.Context, rec *GraphRecord) (*GraphRecord, error)
	DeleteGraph(ctx context.Context, ownerID, graphID string) error
	ListGraphs(ctx context.Context, ownerID string) ([]GraphRecord, error)

	// Nodes
	AddNode(ctx context.Context, ownerID, graphID string, node WireNode) (string, error)
	UpdateNode(ctx context.Context, ownerID, graphID string, node WireNode) error
	DeleteNode(ctx context.Context, ownerID, graphID, nodeID string) error

	// Edges
	AddEdge(ctx context.Context, ownerID, graphID string, edge WireEdge) (string, error)
	DeleteEdge(ctx context.Context, ownerID, graphID, edgeID string) error
}
