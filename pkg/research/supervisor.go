package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/deepresearch/pkg/config"
	"github.com/kadirpekel/deepresearch/pkg/llms"
	"github.com/kadirpekel/deepresearch/pkg/observability"
	"github.com/kadirpekel/deepresearch/pkg/reasoning"
	"github.com/kadirpekel/deepresearch/pkg/tools"
)

// Result is the outcome of one research run. When clarification is
// needed the run stops early with the question to relay to the user.
type Result struct {
	ClarificationNeeded bool
	Clarification       string
	Verification        string
	Brief               string
	Notes               []string
	FinalReport         string
	Events              []Event
}

// Supervisor orchestrates a research run: clarify the question, write
// the brief, plan sub-tasks, dispatch concurrent researchers, replan
// while gaps remain, and synthesize the final report.
type Supervisor struct {
	cfg        *config.Config
	research   *llms.Adapter
	compressor *llms.Adapter
	writer     *ReportWriter
	registry   *tools.Registry
	handler    EventHandler
	metrics    *observability.Metrics
	now        func() time.Time
	tracer     trace.Tracer
}

type Option func(*Supervisor)

func WithEventHandler(handler EventHandler) Option {
	return func(s *Supervisor) {
		s.handler = handler
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = metrics
	}
}

// WithClock overrides the time source used in prompts.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		s.now = now
	}
}

// New builds a supervisor over one ModelClient. All role adapters
// (research, compression, report) are derived from the config's model
// identifiers; text-mode models get the ReAct protocol automatically.
func New(cfg *config.Config, client llms.ModelClient, registry *tools.Registry, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		registry: registry,
		now:      time.Now,
		tracer:   otel.Tracer("deepresearch/research"),
	}
	for _, opt := range opts {
		opt(s)
	}

	protocol := reasoning.NewTextModeToolProtocol()
	adapter := func(model string, maxTokens int) *llms.Adapter {
		return llms.NewAdapter(client, model, maxTokens,
			llms.WithTextToolStrategy(protocol),
			llms.WithMaxStructuredRetries(cfg.MaxStructuredOutputRetries),
			llms.WithMetrics(s.metrics))
	}

	s.research = adapter(cfg.ResearchModel, cfg.ResearchModelMaxTokens)
	s.compressor = adapter(cfg.CompressionModel, cfg.CompressionModelMaxTokens)
	s.writer = NewReportWriter(
		adapter(cfg.FinalReportModel, cfg.FinalReportModelMaxTokens), 3, s.now)
	return s
}

func (s *Supervisor) emit(result *Result, node, output string) {
	event := Event{Node: node, Output: output}
	result.Events = append(result.Events, event)
	if s.handler != nil {
		s.handler(event)
	}
}

// Run executes a full research run for the user's question.
func (s *Supervisor) Run(ctx context.Context, question string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "research.run")
	defer span.End()

	result := &Result{}

	// Phase 1: clarification. A failed check degrades to proceeding
	// without one rather than aborting the run.
	if s.cfg.AllowClarification {
		decision, err := s.clarify(ctx, question)
		switch {
		case err != nil:
			slog.Warn("clarification check failed, proceeding with research", "error", err)
		case decision.NeedClarification:
			result.ClarificationNeeded = true
			result.Clarification = decision.Question
			s.emit(result, NodeClarify, decision.Question)
			s.metrics.RecordRun(ctx, "clarification_needed")
			return result, nil
		default:
			result.Verification = decision.Verification
			s.emit(result, NodeClarify, decision.Verification)
		}
	}

	// Phase 2: research brief. The raw question stands in when brief
	// generation fails.
	brief, err := s.writeBrief(ctx, question)
	if err != nil {
		slog.Warn("brief generation failed, researching the question directly", "error", err)
		brief = question
	}
	result.Brief = brief
	s.emit(result, NodeBrief, brief)

	// Phase 3: plan / dispatch / replan while gaps remain.
	for round := 1; round <= s.cfg.MaxPlanningRounds; round++ {
		plan, err := s.plan(ctx, brief, result.Notes)
		if err != nil {
			slog.Warn("research planning failed", "round", round, "error", err)
			if len(result.Notes) > 0 {
				break
			}
			// No findings yet: research the brief itself as one unit.
			plan = &ResearchPlan{SubTasks: []SubTask{{ID: uuid.NewString(), Topic: brief}}}
		}
		if plan.Done || len(plan.SubTasks) == 0 {
			break
		}
		s.emit(result, NodePlan, renderPlan(round, plan))

		notes, gaps, err := s.dispatch(ctx, plan.SubTasks, result)
		if err != nil {
			return s.abortedResult(ctx, result, err)
		}
		result.Notes = append(result.Notes, notes...)

		if len(gaps) == 0 {
			break
		}
		slog.Info("research gaps remain, replanning", "round", round, "gaps", len(gaps))
	}

	// Phase 4: final report.
	report, err := s.writer.Write(ctx, brief, result.Notes)
	if err != nil {
		if report == "" {
			s.metrics.RecordRun(ctx, "failed")
			return nil, err
		}
		// Partial-report document: surface it rather than failing the
		// whole run.
		slog.Warn("final report degraded to partial document", "error", err)
	}
	result.FinalReport = report
	s.emit(result, NodeFinalReport, report)
	s.metrics.RecordRun(ctx, "completed")
	span.SetAttributes(attribute.Int("notes", len(result.Notes)))

	return result, nil
}

func (s *Supervisor) clarify(ctx context.Context, question string) (*ClarifyDecision, error) {
	prompt := fmt.Sprintf(clarifyPrompt, renderMessages([]string{question}), todayStr(s.now()))

	var decision ClarifyDecision
	if err := s.research.InvokeStructured(ctx,
		[]llms.Message{llms.NewUserMessage(prompt)}, "clarify_decision", &decision); err != nil {
		return nil, fmt.Errorf("clarification failed: %w", err)
	}
	return &decision, nil
}

func (s *Supervisor) writeBrief(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(briefPrompt, renderMessages([]string{question}), todayStr(s.now()))

	var brief ResearchBrief
	if err := s.research.InvokeStructured(ctx,
		[]llms.Message{llms.NewUserMessage(prompt)}, "research_brief", &brief); err != nil {
		return "", fmt.Errorf("failed to write research brief: %w", err)
	}
	return brief.Brief, nil
}

func (s *Supervisor) plan(ctx context.Context, brief string, notes []string) (*ResearchPlan, error) {
	prompt := fmt.Sprintf(planPrompt, brief, findingsSection(notes), todayStr(s.now()),
		s.cfg.MaxConcurrentResearchUnits)

	var plan ResearchPlan
	if err := s.research.InvokeStructured(ctx,
		[]llms.Message{llms.NewUserMessage(prompt)}, "research_plan", &plan); err != nil {
		return nil, fmt.Errorf("research planning failed: %w", err)
	}
	for i := range plan.SubTasks {
		plan.SubTasks[i].ID = uuid.NewString()
	}
	return &plan, nil
}

// abortedResult turns an interrupted run into a single error-describing
// document so the caller still gets a user-facing output.
func (s *Supervisor) abortedResult(ctx context.Context, result *Result, cause error) (*Result, error) {
	doc := fmt.Sprintf("Error generating final report: research was interrupted: %v", cause)
	if len(result.Notes) > 0 {
		doc += fmt.Sprintf("\n\nPartial findings:\n\n%s", strings.Join(result.Notes, "\n\n"))
	}
	result.FinalReport = doc
	s.emit(result, NodeFinalReport, doc)
	s.metrics.RecordRun(ctx, "cancelled")
	return result, cause
}

// dispatch runs all sub-tasks with at most max_concurrent_research_units
// in flight. Notes come back in sub-task order; a failed researcher
// contributes an error note instead of sinking the round.
func (s *Supervisor) dispatch(ctx context.Context, subTasks []SubTask, result *Result) ([]string, []string, error) {
	researcher := NewResearcher(s.research, s.compressor, s.registry,
		s.cfg.MaxResearcherIterations, s.cfg.MaxReactToolCalls, s.now)

	// Tasks past the concurrent-unit budget are not run this round;
	// they come back as gaps so replanning can pick them up.
	var overflow []SubTask
	if limit := s.cfg.MaxConcurrentResearchUnits; len(subTasks) > limit {
		slog.Warn("plan exceeds concurrent research unit budget",
			"sub_tasks", len(subTasks), "limit", limit)
		overflow = subTasks[limit:]
		subTasks = subTasks[:limit]
	}

	sem := semaphore.NewWeighted(int64(s.cfg.MaxConcurrentResearchUnits))
	type outcome struct {
		notes *CompressedNotes
		err   error
	}
	outcomes := make([]outcome, len(subTasks))
	done := make(chan int, len(subTasks))

	for i, task := range subTasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, nil, err
		}
		go func() {
			defer sem.Release(1)
			ctx, span := s.tracer.Start(ctx, "research.unit",
				trace.WithAttributes(
					attribute.String("unit_id", task.ID),
					attribute.String("topic", task.Topic)))
			defer span.End()

			notes, _, err := researcher.Research(ctx, task.Topic)
			if err != nil {
				span.RecordError(err)
			}
			outcomes[i] = outcome{notes: notes, err: err}
			done <- i
		}()
	}

	for range subTasks {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	notes := make([]string, 0, len(subTasks))
	var gaps []string
	for i, o := range outcomes {
		if o.err != nil {
			slog.Warn("research unit failed", "topic", subTasks[i].Topic, "error", o.err)
			notes = append(notes, fmt.Sprintf("Error synthesizing research for %q: %v", subTasks[i].Topic, o.err))
			continue
		}
		rendered := o.notes.Render()
		notes = append(notes, rendered)
		gaps = append(gaps, o.notes.OpenGaps...)
		s.emit(result, NodeCompress, rendered)
	}
	for _, task := range overflow {
		notes = append(notes, fmt.Sprintf(
			"Error: Did not run research for %q: the plan exceeded the maximum number of concurrent research units", task.Topic))
		gaps = append(gaps, task.Topic)
	}
	s.emit(result, NodeResearch, fmt.Sprintf("completed %d research units", len(subTasks)))

	return notes, gaps, nil
}

func renderPlan(round int, plan *ResearchPlan) string {
	out := fmt.Sprintf("round %d: %d sub-tasks", round, len(plan.SubTasks))
	for _, task := range plan.SubTasks {
		out += "\n- " + task.Topic
	}
	return out
}
