package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/markusylisiurunen/rolodex/internal/contact"
	"github.com/markusylisiurunen/rolodex/internal/locale"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/internal/metrics"
	"github.com/markusylisiurunen/rolodex/internal/sheet"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
	"github.com/markusylisiurunen/rolodex/toolkit/tool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel plays back one scripted turn per Stream call and records what it was sent.
type scriptedModel struct {
	mux   sync.Mutex
	turns []func() []llm.Event
	seen  [][]llm.Message
}

func (m *scriptedModel) Stream(_ context.Context, messages []llm.Message, _ ...llm.StreamOption) <-chan llm.Event {
	m.mux.Lock()
	idx := len(m.seen)
	m.seen = append(m.seen, messages)
	var events []llm.Event
	switch {
	case len(m.turns) == 0:
	case idx < len(m.turns):
		events = m.turns[idx]()
	default:
		events = m.turns[len(m.turns)-1]()
	}
	m.mux.Unlock()
	ch := make(chan llm.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func (m *scriptedModel) calls() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.seen)
}

func answer(text string) func() []llm.Event {
	return func() []llm.Event {
		return []llm.Event{&llm.ContentDeltaEvent{Content: text}, &llm.UsageEvent{Usage: llm.Usage{PromptTokens: 10}}}
	}
}

func toolCall(id, name, args string) func() []llm.Event {
	return func() []llm.Event {
		return []llm.Event{&llm.ToolUseEvent{ID: id, FuncName: name, FuncArgs: args}}
	}
}

type stubTool struct {
	name  string
	out   string
	err   error
	panic bool
	args  []string
}

func (s *stubTool) Spec() (string, string, json.RawMessage) {
	return s.name, "stub", json.RawMessage(`{"type":"object","properties":{}}`)
}

func (s *stubTool) Call(_ context.Context, args string) (string, error) {
	s.args = append(s.args, args)
	if s.panic {
		panic("boom")
	}
	return s.out, s.err
}

var es = locale.MustLoad("es")

func TestAnswersDirectly(t *testing.T) {
	model := &scriptedModel{turns: []func() []llm.Event{answer("Hola, ¿en qué te ayudo?")}}
	res := New(model, nil, es).Run(context.Background(), "chat-1", "hola")
	assert.Equal(t, StateAnswered, res.State)
	assert.Equal(t, "Hola, ¿en qué te ayudo?", res.Answer)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 10, res.Usage.PromptTokens)

	require.Len(t, model.seen[0], 2)
	assert.Equal(t, llm.RoleSystem, model.seen[0][0].Role)
	assert.Contains(t, model.seen[0][0].Content.Text(), "- Nombre:")
	assert.Equal(t, "hola", model.seen[0][1].Content.Text())
}

func TestFeedsToolResultsBack(t *testing.T) {
	search := &stubTool{name: "search_by_name", out: `[{"Nombre":"Pablo Salomón"}]`}
	model := &scriptedModel{turns: []func() []llm.Event{
		toolCall("call_1", "search_by_name", `{"name":"pablo"}`),
		answer("Pablo Salomón está en la base."),
	}}
	res := New(model, []llm.Tool{search}, es).Run(context.Background(), "chat-1", "¿quién es Pablo?")
	assert.Equal(t, StateAnswered, res.State)
	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, 1, res.ToolCalls)
	assert.Equal(t, []string{`{"name":"pablo"}`}, search.args)

	second := model.seen[1]
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Equal(t, "search_by_name", second[2].ToolCalls[0].Function.Name)
	assert.Equal(t, llm.RoleTool, second[3].Role)
	assert.Equal(t, "call_1", second[3].ToolCallID)
	assert.Equal(t, search.out, second[3].Content.Text())
}

func TestIterationCap(t *testing.T) {
	m := metrics.New()
	loop := &stubTool{name: "search_by_name", out: "[]"}
	model := &scriptedModel{turns: []func() []llm.Event{toolCall("call", "search_by_name", `{"name":"x"}`)}}
	res := New(model, []llm.Tool{loop}, es, WithMaxIterations(3), WithMetrics(m)).Run(context.Background(), "chat-1", "loop forever")
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonIterationCap, res.Reason)
	assert.Equal(t, es.Text("agent.iteration_cap"), res.Answer)
	assert.NotEmpty(t, res.Answer)
	assert.Equal(t, 3, model.calls())
	assert.Len(t, loop.args, 3)
	count, err := testutil.GatherAndCount(m.Registry(), "rolodex_agent_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDefaultIterationCap(t *testing.T) {
	model := &scriptedModel{turns: []func() []llm.Event{toolCall("call", "missing", `{}`)}}
	res := New(model, nil, es).Run(context.Background(), "chat-1", "hola")
	assert.Equal(t, ReasonIterationCap, res.Reason)
	assert.Equal(t, DefaultMaxIterations, model.calls())
}

func TestRecoversWithinTheLoop(t *testing.T) {
	failing := &stubTool{name: "update_bio", err: errors.New("disk on fire")}
	panicking := &stubTool{name: "update_role", panic: true}
	model := &scriptedModel{turns: []func() []llm.Event{
		toolCall("c1", "does_not_exist", `{}`),
		toolCall("c2", "update_bio", `{}`),
		toolCall("c3", "update_role", `{}`),
		func() []llm.Event { return nil },
		answer("Listo."),
	}}
	res := New(model, []llm.Tool{failing, panicking}, es).Run(context.Background(), "chat-1", "hola")
	assert.Equal(t, StateAnswered, res.State)
	assert.Equal(t, "Listo.", res.Answer)
	assert.Equal(t, 5, res.Rounds)

	last := model.seen[4]
	var toolResults []string
	for _, msg := range last {
		if msg.Role == llm.RoleTool {
			toolResults = append(toolResults, msg.Content.Text())
		}
	}
	require.Len(t, toolResults, 3)
	assert.Contains(t, toolResults[0], `tool "does_not_exist" does not exist`)
	assert.Equal(t, "Error: disk on fire", toolResults[1])
	assert.Equal(t, "Error: the tool failed unexpectedly", toolResults[2])
}

func TestLLMError(t *testing.T) {
	model := &scriptedModel{turns: []func() []llm.Event{
		func() []llm.Event { return []llm.Event{&llm.ErrorEvent{Err: errors.New("401 unauthorized")}} },
	}}
	res := New(model, nil, es).Run(context.Background(), "chat-1", "hola")
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonLLMError, res.Reason)
	assert.Equal(t, es.Text("agent.llm_error"), res.Answer)
	assert.NotContains(t, res.Answer, "401")
	assert.Equal(t, 1, model.calls())
}

func TestRateLimitChunkIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"error\":{\"message\":\"Rate limit reached\",\"code\":\"rate_limit_exceeded\"}}\n\ndata: [DONE]\n\n"))
	}))
	t.Cleanup(server.Close)
	model := llm.NewChat(logger.NoOp(), "sk-test", "gpt-4o-mini", llm.WithBaseURL(server.URL))
	res := New(model, nil, es).Run(context.Background(), "chat-1", "hola")
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ReasonLLMError, res.Reason)
	assert.Equal(t, int32(1), requests.Load())
}

func TestEmptyQuery(t *testing.T) {
	model := &scriptedModel{}
	a := New(model, nil, es)
	assert.Equal(t, es.Text("agent.empty_query"), a.ProcessQuery(context.Background(), "chat-1", "   "))
	assert.Equal(t, 0, model.calls())
}

func TestHistory(t *testing.T) {
	model := &scriptedModel{turns: []func() []llm.Event{answer("Uno."), answer("Dos."), answer("Tres.")}}
	a := New(model, nil, es, WithHistory(1))
	ctx := context.Background()
	a.ProcessQuery(ctx, "chat-1", "primero")
	a.ProcessQuery(ctx, "chat-1", "segundo")
	a.ProcessQuery(ctx, "chat-2", "otro chat")

	require.Len(t, model.seen[1], 4)
	assert.Equal(t, "primero", model.seen[1][1].Content.Text())
	assert.Equal(t, "Uno.", model.seen[1][2].Content.Text())
	// other conversations start fresh
	assert.Len(t, model.seen[2], 2)

	a.Reset("chat-1")
	assert.Empty(t, a.transcript("chat-1"))
}

func TestHistoryIsBounded(t *testing.T) {
	model := &scriptedModel{turns: []func() []llm.Event{answer("ok")}}
	a := New(model, nil, es, WithHistory(2))
	for range 5 {
		a.ProcessQuery(context.Background(), "chat-1", "hola")
	}
	assert.Len(t, a.transcript("chat-1"), 4)
}

func TestSubscribe(t *testing.T) {
	model := &scriptedModel{turns: []func() []llm.Event{
		toolCall("c1", "search_by_name", `{}`),
		answer("ok"),
	}}
	a := New(model, []llm.Tool{&stubTool{name: "search_by_name", out: "[]"}}, es)
	events, unsubscribe := a.Subscribe()
	a.Run(context.Background(), "chat-1", "hola")
	unsubscribe()
	var states []State
	var tools int
	for e := range events {
		switch e := e.(type) {
		case *StateEvent:
			states = append(states, e.State)
		case *ToolResultEvent:
			tools++
		}
	}
	assert.Equal(t, []State{StateReceived, StateThinking, StateToolExecuting, StateThinking, StateAnswered}, states)
	assert.Equal(t, 1, tools)
}

// The agent drives the real tool surface over an in-memory sheet.
func TestEndToEndWithContactTools(t *testing.T) {
	backend := sheet.NewMemory(contact.DefaultSchema.Headers(), []string{"Pablo Salomón"})
	tools := tool.Contacts(sheet.New(backend, contact.DefaultSchema), es)
	model := &scriptedModel{turns: []func() []llm.Event{
		toolCall("c1", "update_bio", `{"name":"pablo salomon","content":"Tiene dos hijas llamadas Caia y Mirta"}`),
		answer("Bio actualizada."),
	}}
	res := New(model, tools, es).Run(context.Background(), "chat-1",
		"Agrega a la bio de Pablo Salomón que tiene dos hijas llamadas Caia y Mirta")
	assert.Equal(t, StateAnswered, res.State)
	assert.Equal(t, "Tiene dos hijas llamadas Caia y Mirta", backend.Rows()[1][6])
	assert.Equal(t, "Bio actualizada exitosamente para pablo salomon", model.seen[1][3].Content.Text())
}
