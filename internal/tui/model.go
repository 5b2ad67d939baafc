// Package tui is the terminal chat front end.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// Asker is the TUI-facing subset of the conversation service.
type Asker interface {
	Ask(ctx context.Context, sessionID, question string) (*domain.ChatResponse, error)
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)
}

type focus int

const (
	focusQuestion focus = iota
	focusSession
)

type answerMsg struct {
	question string
	resp     *domain.ChatResponse
}

type historyMsg struct {
	sessionID string
	turns     []domain.Turn
}

type errMsg struct {
	err      error
	question string
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	asker    Asker
	session  textinput.Model
	question textinput.Model
	viewport viewport.Model
	focus    focus

	summary    string
	status     string
	transcript []domain.Turn
	loaded     string
	busy       bool
	ready      bool
}

// New creates the chat model. summary is shown under the title.
func New(ctx context.Context, asker Asker, summary string) Model {
	session := textinput.New()
	session.Prompt = "Session: "
	session.SetValue(domain.DefaultSessionID)
	session.CharLimit = 128

	question := textinput.New()
	question.Prompt = "> "
	question.Placeholder = "Ask a question about your PDFs and press Enter"
	question.CharLimit = 0
	question.Focus()

	return Model{
		ctx:      ctx,
		asker:    asker,
		session:  session,
		question: question,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Tab switches between session and question. Ctrl+C quits.",
		loaded:   domain.DefaultSessionID,
	}
}

// Init loads the default session's history.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadHistory(m.loaded))
}

// Update handles key, window and result messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		reserved := 2 + 2*inputStyle.GetVerticalFrameSize() + 2 + 1
		m.viewport.Width = max(20, msg.Width-transcriptStyle.GetHorizontalFrameSize())
		m.viewport.Height = max(3, msg.Height-reserved-fh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		m.status = ""
		if msg.resp.SessionID != m.loaded {
			m.transcript = nil
			m.loaded = msg.resp.SessionID
			m.session.SetValue(msg.resp.SessionID)
		}
		m.transcript = append(m.transcript,
			domain.UserTurn(msg.question),
			domain.AssistantTurn(msg.resp.Answer))
		m.refresh()
		return m, nil

	case historyMsg:
		if msg.sessionID == m.currentSession() {
			m.loaded = msg.sessionID
			m.transcript = msg.turns
			m.refresh()
		}
		return m, nil

	case errMsg:
		m.busy = false
		m.status = "Error: " + msg.err.Error()
		if msg.question != "" && m.question.Value() == "" {
			m.question.SetValue(msg.question)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyTab, tea.KeyShiftTab:
			return m.toggleFocus()
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	if m.focus == focusSession {
		m.session, cmd = m.session.Update(msg)
	} else {
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == focusQuestion {
		m.focus = focusSession
		m.question.Blur()
		return m, m.session.Focus()
	}
	m.focus = focusQuestion
	m.session.Blur()
	cmd := m.question.Focus()
	if id := m.currentSession(); id != m.loaded {
		return m, tea.Batch(cmd, m.loadHistory(id))
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.focus == focusSession {
		return m.toggleFocus()
	}
	q := strings.TrimSpace(m.question.Value())
	if q == "" || m.busy {
		return m, nil
	}
	m.busy = true
	m.status = "Thinking..."
	m.question.Reset()
	return m, m.ask(m.currentSession(), q)
}

func (m Model) ask(sessionID, question string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		resp, err := asker.Ask(ctx, sessionID, question)
		if err != nil {
			return errMsg{err: err, question: question}
		}
		return answerMsg{question: question, resp: resp}
	}
}

func (m Model) loadHistory(sessionID string) tea.Cmd {
	if sessionID == "" {
		return nil
	}
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		turns, err := asker.History(ctx, sessionID)
		if err != nil {
			return errMsg{err: err}
		}
		return historyMsg{sessionID: sessionID, turns: turns}
	}
}

func (m Model) currentSession() string {
	return strings.TrimSpace(m.session.Value())
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Conversational RAG With PDF uploads and chat history")
	summary := dimStyle.Render(m.summary)
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.session.View()) + "\n" +
		inputStyle.Render(m.question.View()) + "\n" +
		status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return dimStyle.Render(fmt.Sprintf("No messages in session %q yet.", m.loaded))
	}
	var b strings.Builder
	for i, t := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if t.Role == domain.RoleUser {
			b.WriteString(userStyle.Render("You: ") + t.Text)
		} else {
			b.WriteString(assistantStyle.Render("Assistant: ") + t.Text)
		}
	}
	return lipgloss.NewStyle().Width(m.viewport.Width).Render(b.String())
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
