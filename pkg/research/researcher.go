package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/deepresearch/pkg/llms"
	"github.com/kadirpekel/deepresearch/pkg/reasoning"
	"github.com/kadirpekel/deepresearch/pkg/tools"
)

// Researcher executes one research unit: a tool-calling loop over the
// topic followed by compression of the raw transcript into notes.
type Researcher struct {
	adapter       *llms.Adapter
	compressor    *llms.Adapter
	registry      *tools.Registry
	maxIterations int
	maxToolCalls  int
	now           func() time.Time
}

func NewResearcher(adapter, compressor *llms.Adapter, registry *tools.Registry, maxIterations, maxToolCalls int, now func() time.Time) *Researcher {
	if now == nil {
		now = time.Now
	}
	return &Researcher{
		adapter:       adapter,
		compressor:    compressor,
		registry:      registry,
		maxIterations: maxIterations,
		maxToolCalls:  maxToolCalls,
		now:           now,
	}
}

// Research runs the loop on a topic and compresses the findings.
func (r *Researcher) Research(ctx context.Context, topic string) (*CompressedNotes, reasoning.TerminationReason, error) {
	loop := reasoning.NewToolLoopAgent(r.adapter, r.registry, r.maxIterations, r.maxToolCalls,
		reasoning.WithCompletionTool(tools.ResearchCompleteToolName))

	system := fmt.Sprintf(researcherPrompt, todayStr(r.now()),
		tools.ResearchCompleteToolName, tools.ThinkToolName)

	result, err := loop.Run(ctx, []llms.Message{
		llms.NewSystemMessage(system),
		llms.NewUserMessage(topic),
	})
	if err != nil {
		return nil, "", err
	}
	if result.Reason == reasoning.TerminationCancelled {
		return nil, result.Reason, ctx.Err()
	}

	notes, err := r.compress(ctx, topic, result.Messages)
	if err != nil {
		return nil, result.Reason, err
	}
	return notes, result.Reason, nil
}

// compress cleans the raw transcript into structured notes.
func (r *Researcher) compress(ctx context.Context, topic string, messages []llms.Message) (*CompressedNotes, error) {
	transcript := renderTranscript(messages)

	prompt := fmt.Sprintf(compressPrompt, topic, transcript, todayStr(r.now()))

	var notes CompressedNotes
	if err := r.compressor.InvokeStructured(ctx,
		[]llms.Message{llms.NewUserMessage(prompt)}, "compressed_notes", &notes); err != nil {
		return nil, fmt.Errorf("failed to compress research findings: %w", err)
	}
	return &notes, nil
}

// renderTranscript flattens assistant turns and tool results into text
// for the compression model. System and user scaffolding is dropped.
func renderTranscript(messages []llms.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case llms.RoleAssistant:
			if msg.Content != "" {
				b.WriteString("Researcher: ")
				b.WriteString(msg.Content)
				b.WriteString("\n\n")
			}
		case llms.RoleTool:
			b.WriteString(fmt.Sprintf("Tool result (%s):\n%s\n\n", msg.ToolName, msg.Content))
		}
	}
	return strings.TrimSpace(b.String())
}
