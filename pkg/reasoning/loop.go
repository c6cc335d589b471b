package reasoning

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/deepresearch/pkg/llms"
)

// TerminationReason explains why a tool loop stopped.
type TerminationReason string

const (
	TerminationCompleted       TerminationReason = "completed"
	TerminationBudgetExhausted TerminationReason = "budget_exhausted"
	TerminationTokenLimit      TerminationReason = "token_limit"
	TerminationCancelled       TerminationReason = "cancelled"
	TerminationNoAction        TerminationReason = "no_action"
)

// ToolExecutor supplies tool definitions and executes calls. Execution
// never fails at this boundary: failures come back as error text in the
// result string, exactly as the model should see them.
type ToolExecutor interface {
	Definitions() []llms.ToolDefinition
	Execute(ctx context.Context, call llms.ToolCall) string
}

// AgentState is the evolving transcript and budget accounting of one
// agent run.
type AgentState struct {
	Messages   []llms.Message
	ToolCalls  int
	Iterations int
}

// RunResult is the outcome of a completed tool loop.
type RunResult struct {
	Messages     []llms.Message
	FinalContent string
	Reason       TerminationReason
	ToolCalls    int
	Iterations   int
}

// ToolLoopAgent drives a model through iterations of tool use until it
// signals completion or a budget runs out. Tool calls within one model
// reply execute concurrently; their results are appended in call order.
type ToolLoopAgent struct {
	adapter        *llms.Adapter
	executor       ToolExecutor
	maxIterations  int
	maxToolCalls   int
	completionTool string
	tracer         trace.Tracer
}

type LoopOption func(*ToolLoopAgent)

// WithCompletionTool names a tool whose invocation ends the run without
// the call being executed.
func WithCompletionTool(name string) LoopOption {
	return func(a *ToolLoopAgent) {
		a.completionTool = name
	}
}

func WithLoopTracer(tracer trace.Tracer) LoopOption {
	return func(a *ToolLoopAgent) {
		a.tracer = tracer
	}
}

func NewToolLoopAgent(adapter *llms.Adapter, executor ToolExecutor, maxIterations, maxToolCalls int, opts ...LoopOption) *ToolLoopAgent {
	a := &ToolLoopAgent{
		adapter:       adapter,
		executor:      executor,
		maxIterations: maxIterations,
		maxToolCalls:  maxToolCalls,
		tracer:        otel.Tracer("deepresearch/reasoning"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the loop starting from the given transcript. The
// returned result always carries the full transcript, including the
// terminal assistant message.
func (a *ToolLoopAgent) Run(ctx context.Context, messages []llms.Message) (*RunResult, error) {
	ctx, span := a.tracer.Start(ctx, "agent.run")
	defer span.End()

	state := &AgentState{Messages: append([]llms.Message(nil), messages...)}
	defs := a.executor.Definitions()

	finish := func(reason TerminationReason) (*RunResult, error) {
		span.SetAttributes(
			attribute.String("termination", string(reason)),
			attribute.Int("tool_calls", state.ToolCalls),
			attribute.Int("iterations", state.Iterations),
		)
		return &RunResult{
			Messages:     state.Messages,
			FinalContent: lastAssistantContent(state.Messages),
			Reason:       reason,
			ToolCalls:    state.ToolCalls,
			Iterations:   state.Iterations,
		}, nil
	}

	for state.Iterations < a.maxIterations {
		if ctx.Err() != nil {
			return finish(TerminationCancelled)
		}
		state.Iterations++

		resp, err := a.adapter.InvokeWithTools(ctx, state.Messages, defs)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return finish(TerminationCancelled)
			}
			if errors.Is(err, llms.ErrTokenLimitExceeded) {
				// Drop the most recent model turn so the partial
				// transcript stays usable downstream.
				state.Messages = llms.RemoveUpToLastAIMessage(state.Messages)
				return finish(TerminationTokenLimit)
			}
			span.RecordError(err)
			return nil, err
		}

		state.Messages = append(state.Messages, resp.Message)
		calls := resp.Message.ToolCalls

		if len(calls) == 0 {
			if resp.StopReason == llms.StopReasonNone {
				return finish(TerminationNoAction)
			}
			return finish(TerminationCompleted)
		}

		if a.completionTool != "" && hasCall(calls, a.completionTool) {
			return finish(TerminationCompleted)
		}

		// Never execute past the tool budget, even when one reply
		// carries more calls than remain.
		remaining := a.maxToolCalls - state.ToolCalls
		if remaining < 0 {
			remaining = 0
		}
		if len(calls) > remaining {
			calls = calls[:remaining]
		}

		results := a.executeCalls(ctx, calls)
		for i, call := range calls {
			state.Messages = append(state.Messages, llms.NewToolMessage(call.ID, call.Name, results[i]))
		}
		state.ToolCalls += len(calls)

		if state.ToolCalls >= a.maxToolCalls {
			return finish(TerminationBudgetExhausted)
		}
	}

	return finish(TerminationBudgetExhausted)
}

// executeCalls runs all calls from one model reply concurrently and
// returns their results indexed by call position.
func (a *ToolLoopAgent) executeCalls(ctx context.Context, calls []llms.ToolCall) []string {
	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			ctx, span := a.tracer.Start(gctx, "tool.execute",
				trace.WithAttributes(attribute.String("tool", call.Name)))
			defer span.End()
			results[i] = a.executor.Execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func hasCall(calls []llms.ToolCall, name string) bool {
	for _, call := range calls {
		if call.Name == name {
			return true
		}
	}
	return false
}

func lastAssistantContent(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llms.RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}
