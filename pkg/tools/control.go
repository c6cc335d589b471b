package tools

import (
	"context"
	"fmt"
)

// Tool names for the agent control tools.
const (
	ResearchCompleteToolName = "ResearchComplete"
	ThinkToolName            = "think_tool"
)

// NewResearchCompleteTool returns the completion signal tool. It has no
// parameters and no behavior: calling it tells the loop the agent is
// done.
func NewResearchCompleteTool() *Tool {
	return &Tool{
		Name:        ResearchCompleteToolName,
		Description: "Call this tool to indicate that the research is complete.",
		Kind:        KindSchema,
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}
}

const thinkToolGuidance = `Tool for strategic reflection on research progress and decision-making.

Use this tool after each search to analyze results and plan next steps systematically.
This creates a deliberate pause in the research workflow for quality decision-making.

When to use:
- After receiving search results: What key information did I find?
- Before deciding next steps: Do I have enough to answer comprehensively?
- When assessing research gaps: What specific information am I still missing?
- Before concluding research: Can I provide a complete answer now?

Reflection should address:
1. Analysis of current findings - What concrete information have I gathered?
2. Gap assessment - What crucial information is still missing?
3. Quality evaluation - Do I have sufficient evidence/examples for a good answer?
4. Strategic decision - Should I continue searching or provide my answer?`

// NewThinkTool returns the strategic reflection tool. It records the
// agent's reflection in the transcript and nothing else.
func NewThinkTool() *Tool {
	return &Tool{
		Name:        ThinkToolName,
		Description: "Strategic reflection tool for research planning. " + thinkToolGuidance,
		Kind:        KindCallable,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"reflection": map[string]interface{}{
					"type":        "string",
					"description": "Your detailed reflection on research progress, findings, gaps, and next steps",
				},
			},
			"required": []interface{}{"reflection"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			reflection, _ := args["reflection"].(string)
			return fmt.Sprintf("Reflection recorded: %s", reflection), nil
		},
	}
}
