package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/meikuraledutech/agentflow"
	"github.com/slack-go/slack"
)

// Slack searches messages and, unless the component is read-only, posts.
type Slack struct {
	base
	client   *slack.Client
	readOnly bool
}

func NewSlack(s agentflow.ToolSettings, env Env) (Tool, error) {
	token := env.credential(s)
	if token == "" {
		return nil, fmt.Errorf("%w: slack token", ErrMissingCredential)
	}

	opts := []slack.Option{slack.OptionHTTPClient(env.client())}
	if ep := env.endpoint("slack", ""); ep != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(ep, "/")+"/"))
	}

	return &Slack{
		base:     base{name: s.ProviderID, maxResults: s.MaxResults, actions: []string{ActionSearch, ActionProcess, ActionPost}},
		client:   slack.New(token, opts...),
		readOnly: s.IsReadOnly(),
	}, nil
}

func (s *Slack) Invoke(ctx context.Context, action string, params Params) (Result, error) {
	if action == ActionPost {
		return s.post(ctx, params)
	}
	return searchOrProcess(ctx, s.base, action, params, s.search)
}

func (s *Slack) search(ctx context.Context, query string) ([]Item, error) {
	sp := slack.NewSearchParameters()
	if s.maxResults > 0 {
		sp.Count = s.maxResults
	}
	res, err := s.client.SearchMessagesContext(ctx, query, sp)
	if err != nil {
		return nil, fmt.Errorf("slack: search messages: %w", err)
	}

	items := make([]Item, 0, len(res.Matches))
	for _, m := range res.Matches {
		items = append(items, Item{
			Title:   "#" + m.Channel.Name + " " + m.Username,
			Link:    m.Permalink,
			Snippet: m.Text,
		})
	}
	return items, nil
}

func (s *Slack) post(ctx context.Context, params Params) (Result, error) {
	if s.readOnly {
		return Result{}, fmt.Errorf("%w: %s", ErrReadOnly, s.name)
	}
	channel, err := params.require("channel")
	if err != nil {
		return Result{}, err
	}
	text, err := params.require("text")
	if err != nil {
		return Result{}, err
	}

	ch, ts, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return Result{}, fmt.Errorf("slack: post message: %w", err)
	}
	return Result{Tool: s.name, Text: fmt.Sprintf("Posted to %s at %s.", ch, ts)}, nil
}
