// Package inmem is a process-local agentflow.Store, used by default when no
// database is configured and in tests.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/agentflow"
)

type entry struct {
	rec   agentflow.GraphRecord
	nodes []agentflow.WireNode
	edges []agentflow.WireEdge
}

// Store implements agentflow.Store in memory.
type Store struct {
	mu     sync.RWMutex
	graphs map[string]*entry
	now    func() time.Time
}

func New() *Store {
	return &Store{graphs: make(map[string]*entry), now: time.Now}
}

func (s *Store) CreateSchema(context.Context) error { return nil }

// DropSchema discards every record.
func (s *Store) DropSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs = make(map[string]*entry)
	return nil
}

func (s *Store) CreateGraph(_ context.Context, rec *agentflow.GraphRecord) (*agentflow.GraphRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, ok := s.graphs[rec.ID]; ok {
		return nil, &agentflow.InputError{Msg: fmt.Sprintf("graph %q already exists", rec.ID)}
	}

	e := &entry{rec: *rec}
	if err := e.setContents(rec.Graph); err != nil {
		return nil, err
	}
	e.rec.CreatedAt = s.now().UTC()
	e.rec.UpdatedAt = e.rec.CreatedAt
	s.graphs[rec.ID] = e
	return e.snapshot()
}

func (s *Store) GetGraph(_ context.Context, ownerID, graphID string) (*agentflow.GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(ownerID, graphID)
	if err != nil {
		return nil, err
	}
	return e.snapshot()
}

func (s *Store) UpdateGraph(_ context.Context, rec *agentflow.GraphRecord) (*agentflow.GraphRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(rec.OwnerID, rec.ID)
	if err != nil {
		return nil, err
	}
	if err := e.setContents(rec.Graph); err != nil {
		return nil, err
	}
	e.rec.Name = rec.Name
	e.rec.Description = rec.Description
	e.rec.UpdatedAt = s.now().UTC()
	return e.snapshot()
}

func (s *Store) DeleteGraph(_ context.Context, ownerID, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(ownerID, graphID); err != nil {
		return err
	}
	delete(s.graphs, graphID)
	return nil
}

// ListGraphs returns the owner's records, most recently updated first,
// without their graphs.
func (s *Store) ListGraphs(_ context.Context, ownerID string) ([]agentflow.GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := []agentflow.GraphRecord{}
	for _, e := range s.graphs {
		if e.rec.OwnerID == ownerID {
			rec := e.rec
			rec.Graph = nil
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].UpdatedAt.Equal(recs[j].UpdatedAt) {
			return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	return recs, nil
}

func (s *Store) AddNode(_ context.Context, ownerID, graphID string, node agentflow.WireNode) (string, error) {
	if _, ok := agentflow.KindOf(node.Type); !ok {
		return "", &agentflow.InputError{Msg: fmt.Sprintf("unknown node type %q", node.Type)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ownerID, graphID)
	if err != nil {
		return "", err
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	if e.nodeIndex(node.ID) >= 0 {
		return "", &agentflow.InputError{Msg: fmt.Sprintf("duplicate node id %q", node.ID)}
	}
	node.Position = nil
	e.nodes = append(e.nodes, node)
	e.rec.UpdatedAt = s.now().UTC()
	return node.ID, nil
}

func (s *Store) UpdateNode(_ context.Context, ownerID, graphID string, node agentflow.WireNode) error {
	if _, ok := agentflow.KindOf(node.Type); !ok {
		return &agentflow.InputError{Msg: fmt.Sprintf("unknown node type %q", node.Type)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ownerID, graphID)
	if err != nil {
		return err
	}
	i := e.nodeIndex(node.ID)
	if i < 0 {
		return agentflow.ErrNodeNotFound
	}
	node.Position = nil
	e.nodes[i] = node
	e.rec.UpdatedAt = s.now().UTC()
	return nil
}

// DeleteNode removes a node together with every edge touching it.
func (s *Store) DeleteNode(_ context.Context, ownerID, graphID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ownerID, graphID)
	if err != nil {
		return err
	}
	i := e.nodeIndex(nodeID)
	if i < 0 {
		return agentflow.ErrNodeNotFound
	}
	e.nodes = append(e.nodes[:i], e.nodes[i+1:]...)

	kept := e.edges[:0]
	for _, edge := range e.edges {
		if edge.Source != nodeID && edge.Target != nodeID {
			kept = append(kept, edge)
		}
	}
	e.edges = kept
	e.rec.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) AddEdge(_ context.Context, ownerID, graphID string, edge agentflow.WireEdge) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ownerID, graphID)
	if err != nil {
		return "", err
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	if e.edgeIndex(edge.ID) >= 0 {
		return "", &agentflow.InputError{Msg: fmt.Sprintf("duplicate edge id %q", edge.ID)}
	}
	if e.nodeIndex(edge.Source) < 0 || e.nodeIndex(edge.Target) < 0 {
		return "", &agentflow.InputError{Msg: fmt.Sprintf("edge %q references an unknown node", edge.ID)}
	}
	e.edges = append(e.edges, edge)
	e.rec.UpdatedAt = s.now().UTC()
	return edge.ID, nil
}

func (s *Store) DeleteEdge(_ context.Context, ownerID, graphID, edgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ownerID, graphID)
	if err != nil {
		return err
	}
	i := e.edgeIndex(edgeID)
	if i < 0 {
		return agentflow.ErrEdgeNotFound
	}
	e.edges = append(e.edges[:i], e.edges[i+1:]...)
	e.rec.UpdatedAt = s.now().UTC()
	return nil
}

// lookup hides records of other owners behind ErrGraphNotFound.
func (s *Store) lookup(ownerID, graphID string) (*entry, error) {
	e, ok := s.graphs[graphID]
	if !ok || e.rec.OwnerID != ownerID {
		return nil, agentflow.ErrGraphNotFound
	}
	return e, nil
}

// setContents replaces the nodes and edges. Edge ids must be unique within
// the graph; missing ones are generated.
func (e *entry) setContents(g *agentflow.Graph) error {
	w := agentflow.FromGraph(g)
	seen := make(map[string]bool, len(w.Edges))
	for i := range w.Edges {
		if w.Edges[i].ID == "" {
			w.Edges[i].ID = uuid.NewString()
		}
		if seen[w.Edges[i].ID] {
			return &agentflow.InputError{Msg: fmt.Sprintf("duplicate edge id %q", w.Edges[i].ID)}
		}
		seen[w.Edges[i].ID] = true
	}
	e.nodes = w.Nodes
	e.edges = w.Edges
	return nil
}

func (e *entry) snapshot() (*agentflow.GraphRecord, error) {
	g, err := agentflow.WireGraph{Nodes: e.nodes, Edges: e.edges}.Graph()
	if err != nil {
		return nil, err
	}
	rec := e.rec
	rec.Graph = g
	return &rec, nil
}

func (e *entry) nodeIndex(id string) int {
	for i, n := range e.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (e *entry) edgeIndex(id string) int {
	for i, edge := range e.edges {
		if edge.ID == id {
			return i
		}
	}
	return -1
}

var _ agentflow.Store = (*Store)(nil)
