// Package summarizer condenses fetched web pages into structured
// summaries before they enter agent transcripts.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/deepresearch/pkg/llms"
)

// Summary is the structured output of one summarization call.
type Summary struct {
	Summary     string `json:"summary" jsonschema:"description=Concise summary of the webpage content"`
	KeyExcerpts string `json:"key_excerpts" jsonschema:"description=Important verbatim quotes and excerpts from the content"`
}

const summarizePrompt = `You are tasked with summarizing the raw content of a webpage retrieved from a web search. Your goal is to create a summary that preserves the most important information from the original webpage for a researcher.

Here is the raw content of the webpage:

<webpage_content>
%s
</webpage_content>

Guidelines:
1. Identify and preserve the main topic or purpose of the webpage.
2. Keep key facts, statistics, and data points central to the content's message.
3. Preserve quotes from credible sources or experts.
4. For time-sensitive content, maintain the chronological order of events.
5. Keep any lists or step-by-step instructions if present.
6. Include relevant dates, names, and locations crucial to the content.
7. Summarize lengthy explanations while keeping their core message intact.

The summary should be significantly shorter than the original but comprehensive enough to stand alone as a source of information. Aim for 25-30 percent of the original length unless the content is already concise.

Today's date is %s.`

// Summarizer runs a model over page content and renders the result in
// delimited sections. Failures and timeouts fall back to the original
// content so a bad page never sinks a search.
type Summarizer struct {
	adapter *llms.Adapter
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Summarizer)

func WithTimeout(timeout time.Duration) Option {
	return func(s *Summarizer) {
		s.timeout = timeout
	}
}

// WithClock overrides the time source used for the prompt date.
func WithClock(now func() time.Time) Option {
	return func(s *Summarizer) {
		s.now = now
	}
}

func New(adapter *llms.Adapter, opts ...Option) *Summarizer {
	s := &Summarizer{
		adapter: adapter,
		timeout: 60 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// todayStr formats the current date for prompts, e.g. "Mon Jan 15, 2024".
func todayStr(now time.Time) string {
	return fmt.Sprintf("%s %s %d, %d", now.Format("Mon"), now.Format("Jan"), now.Day(), now.Year())
}

// Summarize condenses webpage content. On any failure the original
// content is returned unchanged.
func (s *Summarizer) Summarize(ctx context.Context, content string) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := fmt.Sprintf(summarizePrompt, content, todayStr(s.now()))

	var summary Summary
	err := s.adapter.InvokeStructured(ctx, []llms.Message{llms.NewUserMessage(prompt)}, "webpage_summary", &summary)
	if err != nil {
		slog.Warn("summarization failed, returning original content", "error", err)
		return content
	}

	return Render(summary)
}

// Render formats a summary with delimited sections.
func Render(summary Summary) string {
	return fmt.Sprintf("<summary>\n%s\n</summary>\n\n<key_excerpts>\n%s\n</key_excerpts>",
		summary.Summary, summary.KeyExcerpts)
}

// Extract recovers the structured sections from rendered text. Returns
// false when the text is not in rendered form.
func Extract(text string) (Summary, bool) {
	summaryPart, ok := between(text, "<summary>", "</summary>")
	if !ok {
		return Summary{}, false
	}
	excerpts, _ := between(text, "<key_excerpts>", "</key_excerpts>")
	return Summary{
		Summary:     strings.TrimSpace(summaryPart),
		KeyExcerpts: strings.TrimSpace(excerpts),
	}, true
}

func between(text, open, close string) (string, bool) {
	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(text[start:], close)
	if end < 0 {
		return "", false
	}
	return text[start : start+end], true
}
