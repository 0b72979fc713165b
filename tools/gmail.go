package tools

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/agentflow"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Gmail searches the mailbox of the credential's owner. The credential is an
// OAuth2 access token with a Gmail read scope.
type Gmail struct {
	base
	service *gmail.Service
}

func NewGmail(s agentflow.ToolSettings, env Env) (Tool, error) {
	token := env.credential(s)
	if token == "" {
		return nil, fmt.Errorf("%w: gmail credentials", ErrMissingCredential)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, env.client())
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if ep := env.endpoint("gmail", ""); ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: create service: %w", err)
	}

	return &Gmail{
		base:    base{name: s.ProviderID, maxResults: s.MaxResults, actions: []string{ActionSearch, ActionProcess}},
		service: service,
	}, nil
}

func (g *Gmail) Invoke(ctx context.Context, action string, params Params) (Result, error) {
	return searchOrProcess(ctx, g.base, action, params, g.search)
}

func (g *Gmail) search(ctx context.Context, query string) ([]Item, error) {
	list, err := g.service.Users.Messages.List("me").Q(query).MaxResults(int64(g.maxResults)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: list messages: %w", err)
	}

	items := make([]Item, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg, err := g.service.Users.Messages.Get("me", m.Id).
			Format("metadata").MetadataHeaders("Subject", "From").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail: get message %s: %w", m.Id, err)
		}

		subject, from := "(no subject)", ""
		if msg.Payload != nil {
			for _, h := range msg.Payload.Headers {
				switch h.Name {
				case "Subject":
					subject = h.Value
				case "From":
					from = h.Value
				}
			}
		}
		snippet := msg.Snippet
		if from != "" {
			snippet = "From " + from + ": " + snippet
		}
		items = append(items, Item{
			Title:   subject,
			Link:    "https://mail.google.com/mail/u/0/#all/" + msg.Id,
			Snippet: snippet,
		})
	}
	return items, nil
}
