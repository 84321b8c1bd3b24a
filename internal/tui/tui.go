// Package tui provides the Bubble Tea terminal interface of the chat
// client.
//
// The TUI is a thin rendering layer: transcript state, retries and failure
// messages all live in chat.Conversation. The model only tracks input,
// viewport scroll position and a thinking indicator.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/entropy1208/halsaveda-copilot/internal/chat"
	"github.com/entropy1208/halsaveda-copilot/internal/client"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput    State = iota // awaiting user input
	StateThinking              // a question is in flight
)

// maxHistory bounds the input history.
const maxHistory = 100

// Layout constants for viewport height calculation.
const (
	separatorLines = 2
	helpLines      = 1
	promptLines    = 1
	minViewport    = 3
)

// Statser fetches service telemetry for the status bar. *client.Client
// satisfies it.
type Statser interface {
	Stats(ctx context.Context) (*client.Stats, error)
}

// TUI is the Bubble Tea model for the chat interface.
type TUI struct {
	// Input
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	lastCtrlC time.Time
	notice    string // transient system text under the transcript

	// Output
	spinner  spinner.Model
	viewBuf  strings.Builder
	viewport viewport.Model

	// Help bar
	help help.Model
	keys keyMap

	// Telemetry for the status bar, nil until the first poll succeeds.
	stats   *client.Stats
	statser Statser

	// Dependencies
	conversation *chat.Conversation
	ctx          context.Context
	ctxCancel    context.CancelFunc

	// Dimensions
	width  int
	height int

	styles   Styles
	markdown *markdownRenderer
}

// New creates a TUI model around an existing conversation. statser may be
// nil; the status bar then shows no telemetry.
//
// ctx must be the same context passed to tea.WithContext so cancellation
// behaves consistently.
func New(ctx context.Context, conversation *chat.Conversation, statser Statser) (*TUI, error) {
	if conversation == nil {
		return nil, errors.New("tui.New: conversation is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	ta := textarea.New()
	ta.Placeholder = "Ask about Swedish healthcare..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{} // keys are routed explicitly in handleKey

	t := &TUI{
		conversation: conversation,
		statser:      statser,
		ctx:          ctx,
		ctxCancel:    cancel,
		input:        ta,
		spinner:      sp,
		viewport:     vp,
		help:         help.New(),
		keys:         newKeyMap(),
		styles:       DefaultStyles(),
		history:      make([]string, 0, maxHistory),
		markdown:     newMarkdownRenderer(80),
		width:        80,
	}
	t.rebuildViewportContent()
	return t, nil
}

// Init implements tea.Model.
func (t *TUI) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		t.spinner.Tick,
		t.input.Focus(),
		t.fetchStats(),
		scheduleStatsTick(),
	)
}

// Update implements tea.Model.
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return t.handleKey(msg)

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height

		inputHeight := t.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		t.viewport.SetWidth(msg.Width)
		t.viewport.SetHeight(vpHeight)
		t.input.SetWidth(msg.Width - 4)
		t.help.SetWidth(msg.Width)
		t.markdown.UpdateWidth(msg.Width)

		t.rebuildViewportContent()
		return t, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		// Redraw while thinking so the optimistic user message and the
		// spinner frame stay current.
		if t.state == StateThinking {
			t.rebuildViewportContent()
			t.viewport.GotoBottom()
		}
		return t, cmd

	case answerDoneMsg:
		t.state = StateInput
		if !msg.accepted {
			t.notice = "Still answering the previous question, try again in a moment."
		}
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.input.Focus()

	case statsMsg:
		if msg.stats != nil {
			t.stats = msg.stats
		}
		return t, nil

	case statsTickMsg:
		return t, tea.Batch(t.fetchStats(), scheduleStatsTick())
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

// View implements tea.Model.
func (t *TUI) View() tea.View {
	t.viewBuf.Reset()

	_, _ = t.viewBuf.WriteString(t.viewport.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.styles.Prompt.Render("> "))
	_, _ = t.viewBuf.WriteString(t.input.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderStatusBar())

	v := tea.NewView(t.viewBuf.String())
	v.AltScreen = true
	return v
}

// rebuildViewportContent reconstructs the viewport from the conversation
// transcript and TUI state.
func (t *TUI) rebuildViewportContent() {
	var b strings.Builder

	_, _ = b.WriteString(t.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(t.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	for _, msg := range t.conversation.Messages() {
		switch {
		case msg.Role == chat.RoleUser:
			_, _ = b.WriteString(t.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Content)
		case msg.Failed:
			_, _ = b.WriteString(t.styles.Error.Render("Hälsa> " + msg.Content))
		default:
			_, _ = b.WriteString(t.styles.Assistant.Render("Hälsa> "))
			_, _ = b.WriteString(t.markdown.Render(msg.Content))
			if block := chat.FormatSources(msg.Sources); block != "" {
				_, _ = b.WriteString("\n")
				_, _ = b.WriteString(t.styles.Source.Render(block))
			}
		}
		_, _ = b.WriteString("\n\n")
	}

	if t.notice != "" {
		_, _ = b.WriteString(t.styles.System.Render(t.notice))
		_, _ = b.WriteString("\n\n")
	}

	if t.state == StateThinking {
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(" Thinking...\n\n")
	}

	t.viewport.SetContent(b.String())
}

// renderSeparator returns a horizontal line separator.
func (t *TUI) renderSeparator() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return t.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns keyboard help plus service telemetry when known.
func (t *TUI) renderStatusBar() string {
	var bindings []key.Binding
	switch t.state {
	case StateInput:
		bindings = []key.Binding{
			t.keys.Submit, t.keys.History,
			t.keys.Cancel, t.keys.Quit, t.keys.ScrollUp,
		}
	case StateThinking:
		bindings = []key.Binding{
			t.keys.Cancel, t.keys.ScrollUp, t.keys.ScrollDown,
		}
	}

	bar := t.help.ShortHelpView(bindings)
	if t.stats != nil {
		bar += t.styles.StatusBar.Render(
			fmt.Sprintf("  │  %d chunks · %d answered", t.stats.Chunks, t.stats.QuestionsAnswered))
	}
	return bar
}
