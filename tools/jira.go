package tools

import (
	"context"
	"fmt"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	"github.com/meikuraledutech/agentflow"
	"golang.org/x/oauth2"
)

// Jira searches issues by text. The component's baseUrl names the site and
// the credential is a bearer token.
type Jira struct {
	base
	client  *jira.Client
	siteURL string
}

func NewJira(s agentflow.ToolSettings, env Env) (Tool, error) {
	token := env.credential(s)
	if token == "" {
		return nil, fmt.Errorf("%w: jira token", ErrMissingCredential)
	}
	site := env.endpoint("jira", s.BaseURL)
	if site == "" {
		return nil, fmt.Errorf("%w: jira baseUrl", ErrMissingParam)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, env.client())
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	client, err := jira.NewClient(httpClient, site)
	if err != nil {
		return nil, fmt.Errorf("jira: create client: %w", err)
	}

	return &Jira{
		base:    base{name: s.ProviderID, maxResults: s.MaxResults, actions: []string{ActionSearch, ActionProcess}},
		client:  client,
		siteURL: strings.TrimRight(site, "/"),
	}, nil
}

func (j *Jira) Invoke(ctx context.Context, action string, params Params) (Result, error) {
	return searchOrProcess(ctx, j.base, action, params, j.search)
}

func (j *Jira) search(ctx context.Context, query string) ([]Item, error) {
	jql := fmt.Sprintf(`text ~ "%s" ORDER BY updated DESC`, strings.ReplaceAll(query, `"`, `\"`))
	issues, _, err := j.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{MaxResults: j.maxResults})
	if err != nil {
		return nil, fmt.Errorf("jira: search issues: %w", err)
	}

	items := make([]Item, 0, len(issues))
	for _, is := range issues {
		var summary, status string
		if is.Fields != nil {
			summary = is.Fields.Summary
			if is.Fields.Status != nil {
				status = is.Fields.Status.Name
			}
		}
		snippet := summary
		if status != "" {
			snippet = fmt.Sprintf("[%s] %s", status, summary)
		}
		items = append(items, Item{Title: is.Key, Link: j.siteURL + "/browse/" + is.Key, Snippet: snippet})
	}
	return items, nil
}
