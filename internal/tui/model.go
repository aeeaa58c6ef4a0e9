package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
	"docqa/internal/pipeline"
)

// QAPort is the TUI-facing subset of the answer pipeline.
type QAPort interface {
	Answer(ctx context.Context, req pipeline.Request) pipeline.Result
}

// Model is the Bubble Tea model for the QA console.
type Model struct {
	pipeline QAPort
	objects  []domain.Object
	input    textinput.Model
	viewport viewport.Model
	result   *pipeline.Result
	status   string
	ready    bool
}

// New creates a new console model. The object list plays the role of the
// session objects for every question asked.
func New(p QAPort, objects []domain.Object) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := fmt.Sprintf("Ready. %d session object(s) loaded.", len(objects))
	return Model{pipeline: p, objects: objects, input: ti, viewport: vp, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + query box + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				res := m.pipeline.Answer(context.Background(), pipeline.Request{
					Question:     q,
					Objects:      m.objects,
					EvidenceMode: true,
				})
				m.result = &res
				m.status = fmt.Sprintf("Answered via %s", res.Plan.Strategy)
				m.input.SetValue("")
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the console layout and the latest result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docqa console")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResult() string {
	if m.result == nil {
		return "No answer yet."
	}
	r := m.result
	var b strings.Builder
	b.WriteString(answerStyle.Render(r.Answer))
	b.WriteString("\n")

	if len(r.Evidence) > 0 {
		b.WriteString("\nEvidence:\n")
		for _, ev := range r.Evidence {
			b.WriteString(fmt.Sprintf("  [%d] %s\n", ev.SourceID, quoteStyle.Render(ev.Quote)))
			b.WriteString(dimStyle.Render(fmt.Sprintf("      chunk %s", ev.ChunkID)))
			b.WriteString("\n")
		}
	}

	if len(r.Checks) > 0 {
		b.WriteString("\nDiagnostics:\n")
		for _, c := range r.Checks {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s %s: %s", c.Level, c.Code, c.Message)))
			b.WriteString("\n")
		}
	}

	if len(r.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, s := range r.Sources {
			page := "?"
			if s.Page != nil {
				page = fmt.Sprintf("%d", *s.Page)
			}
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %s p.%s [%s] score=%.3f", s.Filename, page, s.Kind, s.Score)))
			b.WriteString("\n")
		}
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf("\nstrategy=%s provider=%s model=%s", r.Plan.Strategy, r.Meta.Provider, r.Meta.Model)))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Bold(true)
	quoteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
