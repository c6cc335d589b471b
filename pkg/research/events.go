package research

// Node names for run progress events, in execution order.
const (
	NodeClarify     = "clarify_with_user"
	NodeBrief       = "write_research_brief"
	NodePlan        = "research_planning"
	NodeResearch    = "conduct_research"
	NodeCompress    = "compress_research"
	NodeFinalReport = "final_report_generation"
)

// Event reports one node's output as the run progresses. The terminal
// event of a successful run carries NodeFinalReport.
type Event struct {
	Node   string
	Output string
}

// EventHandler receives events as they happen. Handlers must be fast;
// they run on the orchestration path.
type EventHandler func(Event)
