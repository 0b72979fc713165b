// Package tools is the tool invocation capability used by agents.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Actions understood by tools. Not every tool supports every action.
const (
	// ActionSearch takes "query" and returns Items.
	ActionSearch = "search"
	// ActionProcess takes the raw user "input" and returns text for a prompt.
	ActionProcess = "process"
	// ActionPost takes "channel" and "text" and writes to the service.
	ActionPost = "post"
)

var (
	ErrUnsupportedAction = errors.New("tools: unsupported action")
	ErrMissingCredential = errors.New("tools: missing credential")
	ErrMissingParam      = errors.New("tools: missing parameter")
	ErrReadOnly          = errors.New("tools: tool is read-only")
	ErrUnknownTool       = errors.New("tools: unknown tool")
)

// Params are the action arguments.
type Params map[string]any

// String returns the string value of key, or "".
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return strings.TrimSpace(s)
}

func (p Params) require(key string) (string, error) {
	s := p.String(key)
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	return s, nil
}

// Item is one search hit.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Result is the outcome of an invocation.
type Result struct {
	Tool  string `json:"tool"`
	Items []Item `json:"items,omitempty"`
	Text  string `json:"text,omitempty"`
}

// String renders the result for inclusion in a prompt.
func (r Result) String() string {
	if r.Text != "" {
		return r.Text
	}
	if len(r.Items) == 0 {
		return r.Tool + ": no results."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s results:\n", r.Tool)
	for _, it := range r.Items {
		fmt.Fprintf(&b, "- %s: %s", it.Title, it.Snippet)
		if it.Link != "" {
			fmt.Fprintf(&b, " (%s)", it.Link)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// Invoker runs a tool action.
type Invoker interface {
	Invoke(ctx context.Context, action string, params Params) (Result, error)
}

// Tool is an Invoker bound to one configured component.
type Tool interface {
	Invoker
	Name() string
	Supports(action string) bool
}

// base carries what every tool knows about its component.
type base struct {
	name       string
	maxResults int
	actions    []string
}

func (b base) Name() string { return b.name }

func (b base) Supports(action string) bool {
	for _, a := range b.actions {
		if a == action {
			return true
		}
	}
	return false
}

func (b base) unsupported(action string) error {
	return fmt.Errorf("%w: %s does not support %q", ErrUnsupportedAction, b.name, action)
}

func (b base) limit(items []Item) []Item {
	if b.maxResults > 0 && len(items) > b.maxResults {
		return items[:b.maxResults]
	}
	return items
}

// searchOrProcess runs search for both search and process actions, which is
// how search-only tools contribute to generic prompts.
func searchOrProcess(ctx context.Context, b base, action string, params Params,
	search func(ctx context.Context, query string) ([]Item, error)) (Result, error) {
	var query string
	var err error
	switch action {
	case ActionSearch:
		query, err = params.require("query")
	case ActionProcess:
		query, err = params.require("input")
	default:
		return Result{}, b.unsupported(action)
	}
	if err != nil {
		return Result{}, err
	}

	items, err := search(ctx, query)
	if err != nil {
		return Result{}, err
	}
	return Result{Tool: b.name, Items: b.limit(items)}, nil
}
