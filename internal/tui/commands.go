package tui

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/entropy1208/halsaveda-copilot/internal/client"
)

// statsInterval is how often service telemetry is refreshed for the status
// bar. Stats are cosmetic; failures just leave the bar unchanged.
const statsInterval = 30 * time.Second

// answerDoneMsg signals that a submission finished. The transcript already
// holds the outcome; accepted reports whether the question was taken at all.
type answerDoneMsg struct {
	accepted bool
}

// statsMsg carries fresh service telemetry, nil on fetch failure.
type statsMsg struct {
	stats *client.Stats
}

// statsTickMsg triggers the next telemetry poll.
type statsTickMsg struct{}

// submitQuestion runs the full send procedure, retries included, off the
// event loop. The conversation is single-flight, so a duplicate submission
// while one is in flight comes back accepted=false without touching the
// transcript.
func (t *TUI) submitQuestion(question string) tea.Cmd {
	return func() tea.Msg {
		return answerDoneMsg{accepted: t.conversation.Submit(t.ctx, question)}
	}
}

// fetchStats polls the answer service for telemetry.
func (t *TUI) fetchStats() tea.Cmd {
	return func() tea.Msg {
		if t.statser == nil {
			return statsMsg{}
		}
		ctx, cancel := context.WithTimeout(t.ctx, 5*time.Second)
		defer cancel()

		stats, err := t.statser.Stats(ctx)
		if err != nil {
			return statsMsg{}
		}
		return statsMsg{stats: stats}
	}
}

// scheduleStatsTick arms the next telemetry poll.
func scheduleStatsTick() tea.Cmd {
	return tea.Tick(statsInterval, func(time.Time) tea.Msg {
		return statsTickMsg{}
	})
}
