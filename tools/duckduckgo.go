package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/meikuraledutech/agentflow"
)

const duckDuckGoURL = "https://api.duckduckgo.com/"

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	Abstract      string     `json:"Abstract"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

// DuckDuckGo searches the DuckDuckGo Instant Answer API.
type DuckDuckGo struct {
	base
	client   *http.Client
	endpoint string
}

func NewDuckDuckGo(s agentflow.ToolSettings, env Env) (Tool, error) {
	return &DuckDuckGo{
		base:     base{name: s.ProviderID, maxResults: s.MaxResults, actions: []string{ActionSearch, ActionProcess}},
		client:   env.client(),
		endpoint: env.endpoint("duckduckgo", duckDuckGoURL),
	}, nil
}

func (d *DuckDuckGo) Invoke(ctx context.Context, action string, params Params) (Result, error) {
	return searchOrProcess(ctx, d.base, action, params, d.search)
}

func (d *DuckDuckGo) search(ctx context.Context, query string) ([]Item, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: create request: %w", err)
	}
	req.Header.Set("User-Agent", "agentflow-duckduckgo/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: unexpected status code: %d", resp.StatusCode)
	}

	var body ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("duckduckgo: parse response: %w", err)
	}

	var items []Item
	if body.Abstract != "" {
		title := body.Heading
		if title == "" {
			title = "Abstract"
		}
		items = append(items, Item{Title: title, Link: body.AbstractURL, Snippet: body.Abstract})
	}
	for _, t := range body.RelatedTopics {
		if t.Text == "" || t.FirstURL == "" {
			continue
		}
		title, _, _ := strings.Cut(t.Text, " - ")
		items = append(items, Item{Title: title, Link: t.FirstURL, Snippet: t.Text})
	}
	return items, nil
}
