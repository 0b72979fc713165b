package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/meikuraledutech/agentflow"
	"golang.org/x/oauth2"
)

// GitHub searches repositories, most starred first.
type GitHub struct {
	base
	client *github.Client
}

// NewGitHub works without a token at the unauthenticated rate limit.
func NewGitHub(s agentflow.ToolSettings, env Env) (Tool, error) {
	httpClient := env.client()
	if token := env.credential(s); token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(httpClient)

	if ep := env.endpoint("github", ""); ep != "" {
		u, err := url.Parse(strings.TrimRight(ep, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: endpoint: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHub{
		base:   base{name: s.ProviderID, maxResults: s.MaxResults, actions: []string{ActionSearch, ActionProcess}},
		client: client,
	}, nil
}

func (g *GitHub) Invoke(ctx context.Context, action string, params Params) (Result, error) {
	return searchOrProcess(ctx, g.base, action, params, g.search)
}

func (g *GitHub) search(ctx context.Context, query string) ([]Item, error) {
	opts := &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: g.maxResults},
	}
	res, _, err := g.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("github: search repositories: %w", err)
	}

	items := make([]Item, 0, len(res.Repositories))
	for _, repo := range res.Repositories {
		snippet := repo.GetDescription()
		if lang := repo.GetLanguage(); lang != "" {
			snippet = fmt.Sprintf("%s [%s, %d stars]", snippet, lang, repo.GetStargazersCount())
		} else {
			snippet = fmt.Sprintf("%s [%d stars]", snippet, repo.GetStargazersCount())
		}
		items = append(items, Item{Title: repo.GetFullName(), Link: repo.GetHTMLURL(), Snippet: strings.TrimSpace(snippet)})
	}
	return items, nil
}
