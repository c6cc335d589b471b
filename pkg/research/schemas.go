package research

import "strings"

// ClarifyDecision is the structured verdict on whether the user's
// question needs clarification before research starts.
type ClarifyDecision struct {
	NeedClarification bool   `json:"need_clarification" jsonschema:"description=Whether the user needs to be asked a clarifying question"`
	Question          string `json:"question" jsonschema:"description=The clarifying question to ask the user"`
	Verification      string `json:"verification" jsonschema:"description=Confirmation message that research will start after scoping"`
}

// ResearchBrief is the distilled research question that guides all
// downstream work.
type ResearchBrief struct {
	Brief string `json:"research_brief" jsonschema:"description=A single detailed research question capturing all user requirements"`
}

// SubTask is one unit of research delegated to a researcher agent. The
// ID identifies the assigned unit; it is assigned after planning, not
// produced by the model.
type SubTask struct {
	ID    string `json:"-"`
	Topic string `json:"topic" jsonschema:"description=Standalone research topic with full context for an independent researcher"`
}

// ResearchPlan is the supervisor's decomposition of the brief into
// concurrent research units for one planning round.
type ResearchPlan struct {
	SubTasks []SubTask `json:"sub_tasks" jsonschema:"description=Independent research sub-tasks to execute concurrently"`
	Done     bool      `json:"done" jsonschema:"description=True when existing findings already cover the brief and no further research is needed"`
}

// CompressedNotes is a researcher's cleaned-up findings. Non-empty
// OpenGaps drive another planning round.
type CompressedNotes struct {
	Summary        string   `json:"summary" jsonschema:"description=Short summary of what was researched and found"`
	BulletFindings []string `json:"bullet_findings" jsonschema:"description=Fully detailed findings with inline source citations"`
	OpenGaps       []string `json:"open_gaps" jsonschema:"description=Specific questions that remain unanswered and need further research"`
}

// Render formats compressed notes as transcript-ready text.
func (n *CompressedNotes) Render() string {
	var b strings.Builder
	b.WriteString(n.Summary)
	if len(n.BulletFindings) > 0 {
		b.WriteString("\n\nFindings:\n")
		for _, finding := range n.BulletFindings {
			b.WriteString("- ")
			b.WriteString(finding)
			b.WriteString("\n")
		}
	}
	if len(n.OpenGaps) > 0 {
		b.WriteString("\nOpen gaps:\n")
		for _, gap := range n.OpenGaps {
			b.WriteString("- ")
			b.WriteString(gap)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}
