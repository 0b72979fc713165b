package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/meikuraledutech/agentflow"
)

const (
	maxPageBytes = 10 * 1024 * 1024
	maxPageChars = 8000
	webUserAgent = "agentflow-webbrowser/1.0"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// WebBrowser fetches a page and returns it as Markdown. With "process" the
// first URL found in the input is fetched.
type WebBrowser struct {
	base
	client *http.Client
}

func NewWebBrowser(s agentflow.ToolSettings, env Env) (Tool, error) {
	return &WebBrowser{
		base:   base{name: s.ProviderID, actions: []string{"fetch", ActionProcess}},
		client: env.client(),
	}, nil
}

func (w *WebBrowser) Invoke(ctx context.Context, action string, params Params) (Result, error) {
	var target string
	switch action {
	case "fetch":
		u, err := params.require("url")
		if err != nil {
			return Result{}, err
		}
		target = u
	case ActionProcess:
		target = urlPattern.FindString(params.String("input"))
		if target == "" {
			return Result{Tool: w.name}, nil
		}
	default:
		return Result{}, w.unsupported(action)
	}

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}
	md, err := w.fetch(ctx, target)
	if err != nil {
		return Result{}, err
	}
	return Result{Tool: w.name, Text: "Content of " + target + ":\n" + md}, nil
}

func (w *WebBrowser) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("web: create request: %w", err)
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("web: fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web: unexpected status code: %d", resp.StatusCode)
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("web: read body: %w", err)
	}
	md, err := htmltomarkdown.ConvertString(string(html))
	if err != nil {
		return "", fmt.Errorf("web: convert html: %w", err)
	}

	md = strings.TrimSpace(md)
	if r := []rune(md); len(r) > maxPageChars {
		md = string(r[:maxPageChars]) + "\n…"
	}
	return md, nil
}
