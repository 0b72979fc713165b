package agentflow

import (
	"sort"
	"strconv"
)

// Kind identifies the component type of a node.
type Kind string

const (
	KindLLM   Kind = "llm"
	KindAgent Kind = "agent"
	KindTool  Kind = "tool"
)

// Node is a typed vertex of an agent graph.
// Data is the free-form payload authored in the editor; it is copied on the way
// in and on the way out so a Node never shares state with its caller.
type Node struct {
	ID   string
	Kind Kind
	data map[string]any
}

// NewNode builds a node holding a private copy of data.
func NewNode(id string, kind Kind, data map[string]any) Node {
	return Node{ID: id, Kind: kind, data: cloneMap(data)}
}

// Data returns a copy of the node payload.
func (n Node) Data() map[string]any {
	return cloneMap(n.data)
}

// Value returns a single payload entry.
func (n Node) Value(key string) (any, bool) {
	v, ok := n.data[key]
	return v, ok
}

// ProviderID is the component identifier chosen in the library, e.g. "openai-gpt-4".
func (n Node) ProviderID() string {
	s, _ := n.data["id"].(string)
	return s
}

// DisplayName is the user-facing label used in validation messages.
func (n Node) DisplayName() string {
	if s, _ := n.data["name"].(string); s != "" {
		return s
	}
	return n.ID
}

// Edge is a directed connection between two nodes.
// Direction is kept but not interpreted beyond existence.
type Edge struct {
	ID           string
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string
}

// Graph is an immutable, ordered view over nodes and edges.
// Insertion order is significant: it picks the primary LLM/agent and orders
// the compiled tools and connections.
type Graph struct {
	nodes []Node
	edges []Edge
	index map[string]int
}

// NewGraph validates the structural invariants (non-empty unique node ids,
// edges referencing known nodes) and returns the graph.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes: make([]Node, 0, len(nodes)),
		edges: make([]Edge, len(edges)),
		index: make(map[string]int, len(nodes)),
	}

	var details []FieldError
	for i, n := range nodes {
		path := "nodes[" + strconv.Itoa(i) + "].id"
		if n.ID == "" {
			details = append(details, FieldError{Path: path, Message: "node id is required"})
			continue
		}
		if _, dup := g.index[n.ID]; dup {
			details = append(details, FieldError{Path: path, Message: "duplicate node id " + strconv.Quote(n.ID)})
			continue
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, NewNode(n.ID, n.Kind, n.data))
	}

	copy(g.edges, edges)
	for i, e := range edges {
		if _, ok := g.index[e.Source]; !ok {
			details = append(details, FieldError{Path: "edges[" + strconv.Itoa(i) + "].source", Message: "unknown node " + strconv.Quote(e.Source)})
		}
		if _, ok := g.index[e.Target]; !ok {
			details = append(details, FieldError{Path: "edges[" + strconv.Itoa(i) + "].target", Message: "unknown node " + strconv.Quote(e.Target)})
		}
	}

	if len(details) > 0 {
		return nil, &InputError{Msg: "invalid graph structure", Details: details}
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodeByID looks a node up by id.
func (g *Graph) NodeByID(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// NodesOfKind returns the nodes of kind k, preserving insertion order.
func (g *Graph) NodesOfKind(k Kind) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// HasKind reports whether at least one node of kind k exists.
func (g *Graph) HasKind(k Kind) bool {
	for _, n := range g.nodes {
		if n.Kind == k {
			return true
		}
	}
	return false
}

// Neighbors returns the ids adjacent to id, ignoring edge direction, sorted.
func (g *Graph) Neighbors(id string) []string {
	seen := make(map[string]bool)
	for _, e := range g.edges {
		switch id {
		case e.Source:
			seen[e.Target] = true
		case e.Target:
			seen[e.Source] = true
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// connected reports whether every node is reachable from the first one when
// edges are treated as undirected.
func (g *Graph) connected() bool {
	if len(g.nodes) <= 1 {
		return true
	}

	visited := make(map[string]bool, len(g.nodes))
	stack := []string{g.nodes[0].ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, g.Neighbors(id)...)
	}
	return len(visited) == len(g.nodes)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
