package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/deepresearch/pkg/llms"
	"github.com/kadirpekel/deepresearch/pkg/utils"
)

// ReportWriter synthesizes the final report from the brief and all
// research notes. Context overflows are recovered by truncating the
// findings and retrying with a shrinking token budget.
type ReportWriter struct {
	adapter    *llms.Adapter
	counter    *utils.TokenCounter
	maxRetries int
	now        func() time.Time
}

func NewReportWriter(adapter *llms.Adapter, maxRetries int, now func() time.Time) *ReportWriter {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if now == nil {
		now = time.Now
	}
	counter, err := utils.NewTokenCounter(adapter.Model())
	if err != nil {
		counter = nil
	}
	return &ReportWriter{adapter: adapter, counter: counter, maxRetries: maxRetries, now: now}
}

// Write produces the report. When every retry fails it returns a
// partial-report error document alongside the error, so callers can
// still surface something to the user.
func (w *ReportWriter) Write(ctx context.Context, brief string, notes []string) (string, error) {
	findings := strings.Join(notes, "\n\n")

	var lastErr error
	tokenBudget := 0
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		prompt := fmt.Sprintf(reportPrompt, brief, todayStr(w.now()), findings)

		report, err := w.adapter.InvokeText(ctx, []llms.Message{llms.NewUserMessage(prompt)})
		if err == nil {
			return report, nil
		}
		lastErr = err

		if !errors.Is(err, llms.ErrTokenLimitExceeded) {
			return "", err
		}

		// Shrink the findings: the model's context window bounds the
		// first cut, then each retry trims another 10 percent.
		if tokenBudget == 0 {
			if limit, ok := llms.ModelTokenLimit(w.adapter.Model()); ok {
				tokenBudget = limit
			} else {
				tokenBudget = w.countTokens(findings) / 2
			}
		} else {
			tokenBudget = tokenBudget * 9 / 10
		}
		findings = w.truncate(findings, tokenBudget)
	}

	doc := fmt.Sprintf("Error generating final report: maximum retries exceeded\n\nPartial findings:\n\n%s", findings)
	return doc, lastErr
}

func (w *ReportWriter) countTokens(text string) int {
	if w.counter != nil {
		return w.counter.Count(text)
	}
	return len(text) / 4
}

func (w *ReportWriter) truncate(text string, maxTokens int) string {
	if w.counter != nil {
		return w.counter.TruncateText(text, maxTokens)
	}
	if limit := maxTokens * 4; limit < len(text) {
		return text[:limit]
	}
	return text
}
