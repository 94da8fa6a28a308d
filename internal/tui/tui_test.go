package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/markusylisiurunen/rolodex/internal/agent"
	"github.com/markusylisiurunen/rolodex/internal/locale"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	queries []string
	resets  int
	events  chan agent.Event
}

func (f *fakeAgent) Run(_ context.Context, _ string, query string) agent.Result {
	f.queries = append(f.queries, query)
	return agent.Result{State: agent.StateAnswered, Answer: "Pablo trabaja en Tech Corp.", Usage: llm.Usage{PromptTokens: 12, CompletionTokens: 3}}
}

func (f *fakeAgent) Reset(string) { f.resets++ }

func (f *fakeAgent) Subscribe() (<-chan agent.Event, func()) {
	f.events = make(chan agent.Event, 8)
	return f.events, func() { close(f.events) }
}

var es = locale.MustLoad("es")

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.textinput.SetValue(text)
	return m
}

func TestAskFlow(t *testing.T) {
	fake := &fakeAgent{}
	m := Initial(fake, es, WithModelName("gpt-4o"))
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m = typeText(t, m, "¿dónde trabaja Pablo?")
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.running)
	assert.Empty(t, m.textinput.Value())
	assert.Contains(t, m.renderFooter(), "working...")

	m, _ = send(t, m, agentEventMsg{event: &agent.ToolUseEvent{
		ConversationID: ConversationID,
		Call:           llm.ToolCall{Function: llm.ToolCallFunction{Name: "search_by_name"}},
	}})
	require.Len(t, m.entries, 1)
	assert.Equal(t, []string{"search_by_name"}, m.entries[0].tools)

	// enter is ignored while a query runs
	m = typeText(t, m, "otra")
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, m.entries, 1)

	m, _ = send(t, m, answerMsg{result: fake.Run(context.Background(), ConversationID, "¿dónde trabaja Pablo?")})
	assert.False(t, m.running)
	require.Len(t, m.entries, 2)
	assert.Equal(t, "Pablo trabaja en Tech Corp.", m.entries[1].text)
	assert.Contains(t, m.renderContent(), "search_by_name")
	assert.Contains(t, m.renderFooter(), "gpt-4o, tokens: 15")
}

func TestSlashCommands(t *testing.T) {
	fake := &fakeAgent{}
	m := Initial(fake, es)
	m.entries = []entry{{role: llm.RoleUser, text: "hola"}}

	m = typeText(t, m, "/cl")
	assert.Equal(t, "/clear, /help", m.renderFooter())
	m = typeText(t, m, "/clear")
	assert.Contains(t, m.renderFooter(), "forgets")

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.entries)
	assert.Equal(t, 1, fake.resets)

	m = typeText(t, m, "/help")
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, m.entries, 1)
	assert.Equal(t, es.Text("bot.help"), m.entries[0].text)
	assert.Empty(t, fake.queries)
}

func TestFailedAnswerIsShown(t *testing.T) {
	m := Initial(&fakeAgent{}, es)
	m.running = true
	m, _ = send(t, m, answerMsg{result: agent.Result{State: agent.StateFailed, Answer: es.Text("agent.llm_error")}})
	assert.Contains(t, m.renderContent(), "Lo siento")
}

func TestWrapWithPrefix(t *testing.T) {
	assert.Equal(t, "> uno dos\n> tres", wrapWithPrefix("uno dos tres", "> ", 9))
	assert.Equal(t, "abcd\nefgh\nij", wrapWithPrefix("abcdefghij", "", 4))
	assert.Equal(t, "a\n\nb", wrapWithPrefix("a\n\nb", "", 10))
	for _, line := range strings.Split(wrapWithPrefix(strings.Repeat("palabra ", 40), "", 20), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 20)
	}
}
