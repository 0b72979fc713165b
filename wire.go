package agentflow

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Wire names of the node kinds, as produced by the editor.
const (
	TypeLLMNode   = "llmNode"
	TypeAgentNode = "agentNode"
	TypeToolNode  = "toolNode"
)

var wireKinds = map[string]Kind{
	TypeLLMNode:   KindLLM,
	TypeAgentNode: KindAgent,
	TypeToolNode:  KindTool,
}

// WireGraph is the JSON shape a graph travels in.
type WireGraph struct {
	Nodes []WireNode `json:"nodes"`
	Edges []WireEdge `json:"edges"`
}

// Position is the canvas location of a node. It is accepted and ignored.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type WireNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Position *Position      `json:"position,omitempty"`
	Data     map[string]any `json:"data"`
}

type WireEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// KindOf maps a wire type to its Kind.
func KindOf(wireType string) (Kind, bool) {
	k, ok := wireKinds[wireType]
	return k, ok
}

// WireType is the inverse of KindOf.
func WireType(k Kind) string {
	for t, kk := range wireKinds {
		if kk == k {
			return t
		}
	}
	return ""
}

// Graph converts the wire form into a validated-structure Graph.
func (w WireGraph) Graph() (*Graph, error) {
	nodes := make([]Node, 0, len(w.Nodes))
	var details []FieldError
	for i, n := range w.Nodes {
		kind, ok := KindOf(n.Type)
		if !ok {
			details = append(details, FieldError{
				Path:    "nodes[" + strconv.Itoa(i) + "].type",
				Message: fmt.Sprintf("unknown node type %q", n.Type),
			})
			continue
		}
		nodes = append(nodes, NewNode(n.ID, kind, n.Data))
	}
	if len(details) > 0 {
		return nil, &InputError{Msg: "invalid graph structure", Details: details}
	}

	edges := make([]Edge, len(w.Edges))
	for i, e := range w.Edges {
		edges[i] = Edge{
			ID:           e.ID,
			Source:       e.Source,
			Target:       e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		}
	}
	return NewGraph(nodes, edges)
}

// FromGraph renders g in wire form. Positions are not tracked and are omitted.
func FromGraph(g *Graph) WireGraph {
	w := WireGraph{Nodes: []WireNode{}, Edges: []WireEdge{}}
	if g == nil {
		return w
	}
	for _, n := range g.nodes {
		w.Nodes = append(w.Nodes, WireNode{ID: n.ID, Type: WireType(n.Kind), Data: n.Data()})
	}
	for _, e := range g.edges {
		w.Edges = append(w.Edges, WireEdge(e))
	}
	return w
}

// ParseGraph checks data against the graph schema and decodes it.
func ParseGraph(data []byte) (*Graph, error) {
	if err := checkGraphSchema(data); err != nil {
		return nil, err
	}
	var w WireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &InputError{Msg: "invalid graph JSON: " + err.Error()}
	}
	return w.Graph()
}

// DecodeGraph reads a whole graph document from r.
func DecodeGraph(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("agentflow: read graph: %w", err)
	}
	return ParseGraph(data)
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(FromGraph(g))
}

func (g *Graph) UnmarshalJSON(data []byte) error {
	parsed, err := ParseGraph(data)
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}
