package generate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StockAnswer is the canned reply for stock questions.
const StockAnswer = `1. Coca-Cola (KO): Coca-Cola's stock has steadily grown over the past 5 years, thanks to diversification into non-soda beverages. The pandemic caused a temporary dip in its stock price, but it has since rebounded. Its consistent dividend payouts make it appealing to long-term investors.

2. PepsiCo (PEP): PepsiCo's stock has shown stable growth, thanks to its diversified portfolio, including food and beverages, which shields it from market volatility. The company's resilience during the pandemic led to a strong recovery, and steady dividends have attracted income-focused investors.

In conclusion, both companies have demonstrated resilience and steady growth over the past 5 years, appealing to growth and income-focused investors.`

var stockKeywords = []string{"stock", "coca cola", "pepsi"}

// Stub answers from canned text keyed on the message. It performs no
// inference and ignores the model configuration.
type Stub struct {
	// Delay simulates model latency. Zero means reply immediately.
	Delay time.Duration
}

func (s Stub) Generate(ctx context.Context, p Prompt, _ ModelConfig) (string, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	msg := p.Query
	if msg == "" {
		msg = p.User
	}
	return StubReply(msg), nil
}

// StubReply is the deterministic reply the Stub gives for msg.
func StubReply(msg string) string {
	lower := strings.ToLower(msg)
	for _, kw := range stockKeywords {
		if strings.Contains(lower, kw) {
			return StockAnswer
		}
	}

	words := strings.Split(msg, " ")
	if len(words) > 3 {
		words = words[len(words)-3:]
	}
	return fmt.Sprintf(`I've processed your request: "%s"

Here's what I found:
- The topic appears to be about %s
- There are several perspectives to consider
- Based on available information, the most relevant answer would address the core question

Would you like me to elaborate on any specific part of this response?`, msg, strings.Join(words, " "))
}
