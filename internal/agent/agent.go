package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/internal/locale"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/internal/metrics"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
)

const DefaultMaxIterations = 5

type State string

const (
	StateReceived      State = "received"
	StateThinking      State = "thinking"
	StateToolExecuting State = "tool_executing"
	StateAnswered      State = "answered"
	StateFailed        State = "failed"
)

type FailureReason string

const (
	ReasonNone         FailureReason = ""
	ReasonIterationCap FailureReason = "iteration_cap"
	ReasonLLMError     FailureReason = "llm_error"
	ReasonEmptyQuery   FailureReason = "empty_query"
)

// Result is the outcome of one query. Answer is always set: on failure it holds the localized
// apology meant for the end user.
type Result struct {
	State     State
	Reason    FailureReason
	Answer    string
	Rounds    int
	ToolCalls int
	Usage     llm.Usage
	Err       error
}

// events ------------------------------------------------------------------------------------------

type Event any

type StateEvent struct {
	ConversationID string
	State          State
}

type ToolUseEvent struct {
	ConversationID string
	Call           llm.ToolCall
}

type ToolResultEvent struct {
	ConversationID string
	Call           llm.ToolCall
	Result         string
}

// agent -------------------------------------------------------------------------------------------

// Agent runs the bounded tool-calling loop: the model either answers or asks for tools, the
// tools run and their results are fed back, until an answer arrives or the round cap is hit.
type Agent struct {
	model   llm.Model
	tools   []llm.Tool
	catalog *locale.Catalog
	schema  contact.Schema

	maxIterations int
	llmTimeout    time.Duration
	toolTimeout   time.Duration
	historyTurns  int
	streamOptions []llm.StreamOption
	logger        logger.Logger
	metrics       *metrics.Metrics

	mux           sync.RWMutex
	history       map[string][]llm.Message
	subscriptions []chan Event
}

type Option func(*Agent)

// WithMaxIterations caps the number of model turns per query.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

func WithLLMTimeout(d time.Duration) Option {
	return func(a *Agent) { a.llmTimeout = d }
}

func WithToolTimeout(d time.Duration) Option {
	return func(a *Agent) { a.toolTimeout = d }
}

// WithHistory keeps the last turns user/assistant exchanges of each conversation and replays
// them with the next query. Zero keeps every query independent.
func WithHistory(turns int) Option {
	return func(a *Agent) { a.historyTurns = max(turns, 0) }
}

func WithSchema(s contact.Schema) Option {
	return func(a *Agent) { a.schema = s }
}

func WithStreamOptions(opts ...llm.StreamOption) Option {
	return func(a *Agent) { a.streamOptions = append(a.streamOptions, opts...) }
}

func WithLogger(l logger.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

func New(model llm.Model, tools []llm.Tool, catalog *locale.Catalog, opts ...Option) *Agent {
	a := &Agent{
		model:         model,
		tools:         tools,
		catalog:       catalog,
		schema:        contact.DefaultSchema,
		maxIterations: DefaultMaxIterations,
		llmTimeout:    60 * time.Second,
		toolTimeout:   30 * time.Second,
		logger:        logger.NoOp(),
		history:       map[string][]llm.Message{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProcessQuery answers query and never returns an empty string.
func (a *Agent) ProcessQuery(ctx context.Context, conversationID, query string) string {
	return a.Run(ctx, conversationID, query).Answer
}

func (a *Agent) Run(ctx context.Context, conversationID, query string) Result {
	requestID := uuid.NewString()
	res := a.run(ctx, requestID, conversationID, query)
	a.metrics.AgentRun(string(res.State), string(res.Reason), res.Rounds)
	a.notify(&StateEvent{ConversationID: conversationID, State: res.State})
	if res.State == StateFailed {
		a.logger.Warn("[%s] query failed after %d rounds: %s (%v)", requestID, res.Rounds, res.Reason, res.Err)
	} else {
		a.logger.Info("[%s] query answered after %d rounds and %d tool calls", requestID, res.Rounds, res.ToolCalls)
	}
	return res
}

func (a *Agent) run(ctx context.Context, requestID, conversationID, query string) Result {
	a.notify(&StateEvent{ConversationID: conversationID, State: StateReceived})
	query = strings.TrimSpace(query)
	if query == "" {
		return a.fail(Result{}, ReasonEmptyQuery, nil)
	}
	a.logger.Info("[%s] query received for conversation %s", requestID, conversationID)
	messages := []llm.Message{llm.NewSystemMessage(a.catalog.Prompt(a.schema))}
	messages = append(messages, a.transcript(conversationID)...)
	messages = append(messages, llm.NewUserMessage(query))
	opts := append(slices.Clone(a.streamOptions), llm.WithTools(a.tools...))
	var res Result
	for res.Rounds < a.maxIterations {
		res.Rounds++
		a.notify(&StateEvent{ConversationID: conversationID, State: StateThinking})
		msg, usage, err := a.turn(ctx, messages, opts)
		res.Usage.PromptTokens += usage.PromptTokens
		res.Usage.CompletionTokens += usage.CompletionTokens
		res.Usage.TotalCost += usage.TotalCost
		if err != nil {
			return a.fail(res, ReasonLLMError, err)
		}
		if len(msg.ToolCalls) == 0 {
			answer := strings.TrimSpace(msg.Content.Text())
			if answer == "" {
				a.logger.Warn("[%s] round %d produced an empty turn, retrying", requestID, res.Rounds)
				continue
			}
			res.State, res.Answer = StateAnswered, answer
			a.remember(conversationID, query, answer)
			return res
		}
		messages = append(messages, msg)
		a.notify(&StateEvent{ConversationID: conversationID, State: StateToolExecuting})
		for _, call := range msg.ToolCalls {
			res.ToolCalls++
			a.notify(&ToolUseEvent{ConversationID: conversationID, Call: call})
			result := a.execute(ctx, requestID, call)
			a.notify(&ToolResultEvent{ConversationID: conversationID, Call: call, Result: result})
			messages = append(messages, llm.NewToolMessage(call, result))
		}
	}
	return a.fail(res, ReasonIterationCap, fmt.Errorf("no answer within %d rounds", a.maxIterations))
}

func (a *Agent) turn(ctx context.Context, messages []llm.Message, opts []llm.StreamOption) (llm.Message, llm.Usage, error) {
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	msgs, usage, err := llm.Rollup(a.model.Stream(ctx, messages, opts...))
	if err != nil {
		return llm.Message{}, usage, err
	}
	if len(msgs) == 0 {
		return llm.Message{Role: llm.RoleAssistant}, usage, nil
	}
	if len(msgs) != 1 {
		return llm.Message{}, usage, fmt.Errorf("expected exactly one message, got %d", len(msgs))
	}
	return msgs[0], usage, nil
}

// execute runs one tool call. Every failure, including an unknown tool or a panic, becomes text
// the model can react to in the next round.
func (a *Agent) execute(ctx context.Context, requestID string, call llm.ToolCall) (result string) {
	tool, found := llm.FindTool(a.tools, call.Function.Name)
	if !found {
		a.logger.Warn("[%s] model requested unknown tool %q", requestID, call.Function.Name)
		a.metrics.ToolCall(call.Function.Name, "unknown")
		return fmt.Sprintf("Error: tool %q does not exist. Available tools: %s", call.Function.Name, strings.Join(llm.ToolNames(a.tools), ", "))
	}
	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("[%s] tool %s panicked: %v", requestID, call.Function.Name, r)
			a.metrics.ToolCall(call.Function.Name, "panic")
			result = "Error: the tool failed unexpectedly"
		}
	}()
	a.logger.Debug("[%s] calling %s with %s", requestID, call.Function.Name, call.Function.Args)
	out, err := tool.Call(ctx, call.Function.Args)
	if err != nil {
		a.logger.Error("[%s] tool %s failed: %v", requestID, call.Function.Name, err)
		a.metrics.ToolCall(call.Function.Name, "error")
		return "Error: " + err.Error()
	}
	return out
}

func (a *Agent) fail(res Result, reason FailureReason, err error) Result {
	res.State, res.Reason, res.Err = StateFailed, reason, err
	res.Answer = a.catalog.Text("agent." + string(reason))
	return res
}

// history -----------------------------------------------------------------------------------------

func (a *Agent) transcript(conversationID string) []llm.Message {
	a.mux.RLock()
	defer a.mux.RUnlock()
	return slices.Clone(a.history[conversationID])
}

func (a *Agent) remember(conversationID, query, answer string) {
	if a.historyTurns == 0 {
		return
	}
	a.mux.Lock()
	defer a.mux.Unlock()
	h := append(a.history[conversationID], llm.NewUserMessage(query), llm.NewAssistantMessage(answer))
	if limit := 2 * a.historyTurns; len(h) > limit {
		h = slices.Clone(h[len(h)-limit:])
	}
	a.history[conversationID] = h
}

// Reset forgets the transcript of one conversation.
func (a *Agent) Reset(conversationID string) {
	a.mux.Lock()
	defer a.mux.Unlock()
	delete(a.history, conversationID)
}

// subscriptions -----------------------------------------------------------------------------------

// Subscribe streams agent events until the returned function is called. Events are dropped for
// subscribers that fall behind.
func (a *Agent) Subscribe() (<-chan Event, func()) {
	subscription := make(chan Event, 64)
	a.mux.Lock()
	a.subscriptions = append(a.subscriptions, subscription)
	a.mux.Unlock()
	return subscription, func() {
		a.mux.Lock()
		defer a.mux.Unlock()
		for i, sub := range a.subscriptions {
			if sub == subscription {
				a.subscriptions = slices.Delete(a.subscriptions, i, i+1)
				close(subscription)
				break
			}
		}
	}
}

func (a *Agent) notify(event Event) {
	a.mux.RLock()
	defer a.mux.RUnlock()
	for _, ch := range a.subscriptions {
		select {
		case ch <- event:
		default:
		}
	}
}
