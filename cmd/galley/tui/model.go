package tuicmder

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stovetop/galley/pkg/chat"
	"github.com/stovetop/galley/pkg/present"
)

var (
	userStyle   = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// completer is the one call the REPL makes per turn.
type completer interface {
	Complete(ctx context.Context, req *chat.Request) (*chat.Response, error)
}

// replyMsg carries a finished completion back into the event loop.
type replyMsg struct {
	resp *chat.Response
}

// errMsg carries a failed completion.
type errMsg struct {
	err error
}

// model is the REPL state: the full conversation so far, the transcript
// rendered for display, and whether a completion is in flight.
type model struct {
	client    completer
	modelName string
	renderer  *present.Renderer

	history    []chat.Message
	transcript []string

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	waiting  bool
	quitting bool
	ready    bool
}

func newModel(client completer, system, modelName string) model {
	input := textinput.New()
	input.Placeholder = "ask something"
	input.Prompt = "> "
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	var history []chat.Message
	if strings.TrimSpace(system) != "" {
		history = append(history, chat.Message{Role: chat.RoleSystem, Content: system})
	}

	return model{
		client:    client,
		modelName: modelName,
		renderer:  present.New(present.Detect()),
		history:   history,
		viewport:  viewport.New(80, 20),
		input:     input,
		spin:      spin,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 2
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.ready = true
		m.refresh()
		return m, nil

	case replyMsg:
		m.waiting = false
		m.history = append(m.history, msg.resp.Message)
		m.transcript = append(m.transcript, strings.TrimRight(m.renderer.Markdown(msg.resp.Text()), "\n"))
		m.refresh()
		return m, nil

	case errMsg:
		m.waiting = false
		m.transcript = append(m.transcript, errorStyle.Render("error: "+msg.err.Error()))
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit turns the input line into a user message and fires the completion.
func (m model) submit() (tea.Model, tea.Cmd) {
	if m.waiting {
		return m, nil
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	m.history = append(m.history, chat.Message{Role: chat.RoleUser, Content: text})
	m.transcript = append(m.transcript, userStyle.Render("you: ")+text)
	m.input.Reset()
	m.waiting = true
	m.refresh()

	return m, tea.Batch(m.spin.Tick, m.completeCmd())
}

// completeCmd sends the conversation so far. It closes over a copy of the
// history, so the in-flight request is immune to later edits.
func (m model) completeCmd() tea.Cmd {
	history := append([]chat.Message(nil), m.history...)
	client := m.client
	modelName := m.modelName

	return func() tea.Msg {
		resp, err := client.Complete(context.Background(), &chat.Request{
			Model:    modelName,
			Messages: history,
		})
		if err != nil {
			return errMsg{err}
		}
		return replyMsg{resp}
	}
}

// refresh rebuilds the viewport content and follows the tail.
func (m *model) refresh() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	status := m.input.View()
	if m.waiting {
		status = m.spin.View() + statusStyle.Render(" waiting for the model")
	}

	return m.viewport.View() + "\n" + status + "\n" + statusStyle.Render("ctrl+c to quit")
}
