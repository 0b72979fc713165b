package agentflow

import "fmt"

// Validation messages, returned verbatim to the user.
const (
	MsgNoComponents = "Workflow must contain at least one component."
	MsgNoAgent      = "Workflow must contain at least one agent."
	MsgNoLLM        = "Workflow must contain at least one LLM."
	MsgNotConnected = "Components must be connected to each other."
)

// Result is the outcome of Validate. Error holds the first failing message.
type Result struct {
	Valid    bool     `json:"valid"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	err *ValidationError
}

// Err returns the failure as a *ValidationError, or nil when valid.
func (r Result) Err() error {
	if r.Valid || r.err == nil {
		return nil
	}
	return r.err
}

type validateOptions struct {
	strictConnectivity bool
}

// ValidateOption tunes Validate.
type ValidateOption func(*validateOptions)

// WithStrictConnectivity requires every component to be reachable from every
// other one (edges taken as undirected) instead of only requiring that some
// edge exists.
func WithStrictConnectivity() ValidateOption {
	return func(o *validateOptions) { o.strictConnectivity = true }
}

// Validate runs the executable-graph checks in a fixed order and stops at the
// first violation. It has no side effects.
func Validate(g *Graph, opts ...ValidateOption) Result {
	var o validateOptions
	for _, opt := range opts {
		opt(&o)
	}

	if g == nil || g.Len() == 0 {
		return invalid(&ValidationError{Msg: MsgNoComponents})
	}
	if !g.HasKind(KindAgent) {
		return invalid(&ValidationError{Msg: MsgNoAgent})
	}
	if !g.HasKind(KindLLM) {
		return invalid(&ValidationError{Msg: MsgNoLLM})
	}
	if g.Len() > 1 {
		if len(g.edges) == 0 || (o.strictConnectivity && !g.connected()) {
			return invalid(&ValidationError{Msg: MsgNotConnected})
		}
	}

	for _, n := range g.NodesOfKind(KindLLM) {
		if verr := checkLLM(n); verr != nil {
			return invalid(verr)
		}
	}

	return Result{Valid: true, Warnings: primaryWarnings(g)}
}

func checkLLM(n Node) *ValidationError {
	cfg, err := n.Config()
	if err != nil {
		return &ValidationError{NodeID: n.ID, Msg: fmt.Sprintf("%s has an invalid configuration.", n.DisplayName())}
	}

	name := n.DisplayName()
	switch c := cfg.(type) {
	case HubLLM:
		if c.AccessToken == "" {
			return &ValidationError{NodeID: n.ID, Msg: name + " is missing a Hugging Face token."}
		}
		if c.ModelIdentifier == "" {
			return &ValidationError{NodeID: n.ID, Msg: name + " is missing a model ID."}
		}
	case HostedLLM:
		if c.APIKey == "" {
			return &ValidationError{NodeID: n.ID, Msg: name + " is missing an API key."}
		}
		if c.ModelName == "" {
			return &ValidationError{NodeID: n.ID, Msg: name + " is missing a model selection."}
		}
	}
	return nil
}

// primaryWarnings flags LLM/agent nodes the compiler will not bind.
func primaryWarnings(g *Graph) []string {
	var warnings []string
	for _, k := range []Kind{KindLLM, KindAgent} {
		nodes := g.NodesOfKind(k)
		if len(nodes) > 1 {
			warnings = append(warnings, fmt.Sprintf("%d %s nodes found; only %q will be bound.", len(nodes), k, nodes[0].ID))
		}
	}
	return warnings
}

func invalid(err *ValidationError) Result {
	return Result{Valid: false, Error: err.Msg, err: err}
}
