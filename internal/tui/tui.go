package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/fatih/color"
	"github.com/markusylisiurunen/rolodex/internal/agent"
	"github.com/markusylisiurunen/rolodex/internal/locale"
	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/toolkit/llm"
)

// ConversationID identifies the terminal session towards the agent.
const ConversationID = "console"

// Agent is the orchestrator as seen by the console.
type Agent interface {
	Run(ctx context.Context, conversationID, query string) agent.Result
	Reset(conversationID string)
	Subscribe() (<-chan agent.Event, func())
}

var _ Agent = (*agent.Agent)(nil)

type agentEventMsg struct {
	event agent.Event
	done  bool
}

type answerMsg struct {
	result agent.Result
}

func waitAgentCmd(subscription <-chan agent.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-subscription
		if !ok {
			return agentEventMsg{done: true}
		}
		return agentEventMsg{event: event}
	}
}

type entry struct {
	role  llm.Role
	text  string
	tools []string
	state agent.State
}

type Model struct {
	logger  logger.Logger
	agent   Agent
	catalog *locale.Catalog
	model   string

	viewport  viewport.Model
	textinput textinput.Model
	spinner   spinner.Model

	entries      []entry
	usage        llm.Usage
	running      bool
	subscription <-chan agent.Event
	unsubscribe  func()
	cancelFunc   context.CancelFunc
}

type Option func(*Model)

// WithModelName shows the model name in the footer.
func WithModelName(name string) Option {
	return func(m *Model) { m.model = name }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Model) { m.logger = l }
}

func Initial(a Agent, catalog *locale.Catalog, opts ...Option) Model {
	m := Model{
		logger:  logger.NoOp(),
		agent:   a,
		catalog: catalog,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.subscription, m.unsubscribe = m.agent.Subscribe()
	// init the viewport
	vp := viewport.New(0, 0)
	vp.KeyMap.Up.SetKeys("up")
	vp.KeyMap.Down.SetKeys("down")
	vp.KeyMap.PageUp.SetEnabled(false)
	vp.KeyMap.PageDown.SetEnabled(false)
	vp.KeyMap.HalfPageUp.SetEnabled(false)
	vp.KeyMap.HalfPageDown.SetEnabled(false)
	m.viewport = vp
	// init the textinput
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.Placeholder = "busca, actualiza o agrega un contacto"
	if catalog.Lang != "es" {
		ti.Placeholder = "search, update or add a contact"
	}
	ti.Focus()
	ti.CharLimit = 2048
	m.textinput = ti
	// init the spinner
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	m.spinner = sp
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitAgentCmd(m.subscription), textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case agentEventMsg:
		if msg.done {
			return m, nil
		}
		m.applyEvent(msg.event)
		m.refresh()
		return m, waitAgentCmd(m.subscription)
	case answerMsg:
		m.running = false
		m.cancelFunc = nil
		m.usage.PromptTokens += msg.result.Usage.PromptTokens
		m.usage.CompletionTokens += msg.result.Usage.CompletionTokens
		m.usage.TotalCost += msg.result.Usage.TotalCost
		if errors.Is(msg.result.Err, context.Canceled) {
			m.entries = append(m.entries, entry{role: llm.RoleAssistant, state: agent.StateFailed, text: "_cancelled_"})
		} else {
			m.entries = append(m.entries, entry{role: llm.RoleAssistant, state: msg.result.State, text: msg.result.Answer})
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.cancelFunc != nil {
				m.cancelFunc()
			}
			if m.unsubscribe != nil {
				m.unsubscribe()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.running && m.cancelFunc != nil {
				m.cancelFunc()
				m.cancelFunc = nil
			}
			return m, nil
		case tea.KeyEnter:
			value := strings.TrimSpace(m.textinput.Value())
			if value == "" || m.running {
				return m, nil
			}
			m.textinput.Reset()
			if strings.HasPrefix(value, "/") {
				m.handleSlashCommand(value)
				m.refresh()
				return m, nil
			}
			return m, m.ask(value)
		}
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.refresh()
		m.textinput.Width = msg.Width - 3
		return m, nil
	}
	var cmd1, cmd2 tea.Cmd
	m.viewport, cmd1 = m.viewport.Update(msg)
	m.textinput, cmd2 = m.textinput.Update(msg)
	return m, tea.Batch(cmd1, cmd2)
}

func (m *Model) ask(query string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFunc = cancel
	m.running = true
	m.entries = append(m.entries, entry{role: llm.RoleUser, text: query})
	m.refresh()
	a := m.agent
	run := func() tea.Msg {
		defer cancel()
		return answerMsg{result: a.Run(ctx, ConversationID, query)}
	}
	return tea.Batch(m.spinner.Tick, run)
}

// applyEvent attaches tool calls of the running query to the latest user entry.
func (m *Model) applyEvent(event agent.Event) {
	e, ok := event.(*agent.ToolUseEvent)
	if !ok || e.ConversationID != ConversationID || len(m.entries) == 0 {
		return
	}
	last := &m.entries[len(m.entries)-1]
	if last.role == llm.RoleUser {
		last.tools = append(last.tools, e.Call.Function.Name)
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var s string
	s += m.viewport.View()
	s += "\n\n" + m.textinput.View()
	s += "\n\n" + color.New(color.Faint).Sprint(m.renderFooter())
	return s
}

func (m Model) renderContent() string {
	var s []string
	for _, e := range m.entries {
		switch e.role {
		case llm.RoleUser:
			block := color.New(color.Faint).Sprint(strings.TrimSpace(wrapWithPrefix("› "+e.text, "", m.viewport.Width)))
			for _, name := range e.tools {
				block += "\n" + color.New(color.FgYellow).Sprint("●") + color.New(color.Bold).Sprintf(" %s", name)
			}
			s = append(s, block)
		case llm.RoleAssistant:
			text := m.renderMarkdown(e.text)
			if e.state == agent.StateFailed {
				text = color.New(color.FgRed).Sprint(strings.TrimSpace(e.text))
			}
			s = append(s, text)
		}
	}
	if m.running {
		s = append(s, m.spinner.View())
	}
	return strings.Join(s, "\n\n")
}

func (m Model) renderMarkdown(content string) string {
	var margin uint = 0
	dark := styles.DarkStyleConfig
	dark.Document.Color = nil
	dark.Document.Margin = &margin
	dark.H1 = dark.H2
	dark.H1.Prefix = "# "
	dark.Code.Prefix = ""
	dark.Code.Suffix = ""
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(dark),
		glamour.WithWordWrap(m.viewport.Width),
	)
	if err != nil {
		return content
	}
	markdown, err := renderer.Render(strings.TrimSpace(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(markdown)
}

func (m Model) renderFooter() string {
	if value := m.textinput.Value(); strings.HasPrefix(value, "/") {
		for _, cmd := range slashCommands {
			if value == "/"+cmd.name || strings.HasPrefix(value, "/"+cmd.name+" ") {
				return cmd.help
			}
		}
		names := make([]string, len(slashCommands))
		for i, cmd := range slashCommands {
			names[i] = "/" + cmd.name
		}
		return strings.Join(names, ", ")
	}
	meta := fmt.Sprintf("tokens: %d", m.usage.PromptTokens+m.usage.CompletionTokens)
	if m.model != "" {
		meta = m.model + ", " + meta
	}
	if m.usage.TotalCost > 0 {
		meta += fmt.Sprintf(", cost: %.4f", m.usage.TotalCost)
	}
	if m.running {
		return "working... esc to cancel. (" + meta + ")"
	}
	return "ctrl+c to quit. (" + meta + ")"
}

// slash commands ----------------------------------------------------------------------------------

var slashCommands = []struct {
	name string
	help string
}{
	{"clear", "forgets the conversation and clears the screen."},
	{"help", "shows example requests."},
}

func (m *Model) handleSlashCommand(value string) {
	switch strings.Fields(value)[0] {
	case "/clear":
		m.agent.Reset(ConversationID)
		m.entries = nil
		m.usage = llm.Usage{}
	case "/help":
		m.entries = append(m.entries, entry{role: llm.RoleAssistant, state: agent.StateAnswered, text: m.catalog.Text("bot.help")})
	default:
		m.logger.Debug("unknown slash command %s", value)
	}
}
