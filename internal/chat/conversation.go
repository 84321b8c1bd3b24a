// Package chat holds the conversation state machine of the chat client.
//
// A Conversation owns the transcript and drives the send procedure: reject
// empty input, append the user message optimistically, call the answer
// service with retries, and append exactly one assistant message per
// accepted submission, answer or failure. The state machine is independent
// of any rendering layer so the retry and ordering behavior is testable
// without a terminal.
package chat

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/entropy1208/halsaveda-copilot/internal/client"
	"github.com/entropy1208/halsaveda-copilot/internal/config"
	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

// Message roles in the transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Greeting seeds every fresh transcript.
const Greeting = "Hej! I'm HälsaVeda Copilot. Ask me anything about Swedish healthcare " +
	"and I'll answer from 1177.se with cited sources."

// Conversation states.
type State int

const (
	// StateIdle accepts submissions.
	StateIdle State = iota
	// StateAwaiting has a question in flight; submissions are rejected.
	StateAwaiting
	// StateError is idle with the last assistant message being a failure.
	StateError
)

// Message is one transcript entry. Failed marks an assistant message that
// reports a request failure rather than an answer.
type Message struct {
	Role    string
	Content string
	Sources []client.Source
	Failed  bool
}

// Asker sends one question to the answer service. *client.Client satisfies
// it; tests substitute fakes.
type Asker interface {
	Ask(ctx context.Context, req client.Request) (*client.Response, error)
}

// Conversation is the chat client's state machine. Safe for concurrent use;
// at most one submission is in flight at a time.
type Conversation struct {
	asker   Asker
	policy  client.Policy
	backoff time.Duration
	topK    int
	logger  log.Logger

	mu       sync.Mutex
	state    State
	epoch    uint64 // bumped by Clear so an in-flight result is dropped
	messages []Message
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithPolicy overrides the retry policy.
func WithPolicy(p client.Policy) Option {
	return func(c *Conversation) { c.policy = p }
}

// WithBackoff overrides the pause between attempts.
func WithBackoff(d time.Duration) Option {
	return func(c *Conversation) { c.backoff = d }
}

// WithTopK overrides how many sources are requested per question.
func WithTopK(k int) Option {
	return func(c *Conversation) { c.topK = k }
}

// New creates a Conversation seeded with the greeting.
func New(asker Asker, logger log.Logger, opts ...Option) (*Conversation, error) {
	if asker == nil {
		return nil, fmt.Errorf("asker is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	c := &Conversation{
		asker:   asker,
		policy:  client.FixedPolicy(config.DefaultMaxRetries),
		backoff: config.DefaultRetryBackoff,
		topK:    config.DefaultTopK,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reset()
	return c, nil
}

// Submit runs one question through the send procedure and reports whether
// the submission was accepted. Empty or whitespace-only questions and
// submissions while another is in flight are rejected without touching the
// transcript. An accepted submission appends exactly one user message and,
// by return, exactly one assistant message, unless the transcript was
// cleared while the question was in flight; then the result is discarded.
func (c *Conversation) Submit(ctx context.Context, question string) bool {
	question = strings.TrimSpace(question)
	if question == "" {
		return false
	}

	c.mu.Lock()
	if c.state == StateAwaiting {
		c.mu.Unlock()
		return false
	}
	c.state = StateAwaiting
	epoch := c.epoch
	c.messages = append(c.messages, Message{Role: RoleUser, Content: question})
	c.mu.Unlock()

	resp, err := c.send(ctx, question)

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		// The transcript was cleared while this question was in flight.
		// The user message is gone, so drop the result rather than
		// append an assistant message with no matching question.
		c.state = StateIdle
		return true
	}

	if err != nil {
		c.messages = append(c.messages, Message{
			Role:    RoleAssistant,
			Content: failureMessage(err),
			Failed:  true,
		})
		c.state = StateError
		return true
	}

	c.messages = append(c.messages, Message{
		Role:    RoleAssistant,
		Content: resp.Answer,
		Sources: resp.Sources,
	})
	c.state = StateIdle
	return true
}

// send makes attempts until one succeeds or the policy gives up.
func (c *Conversation) send(ctx context.Context, question string) (*client.Response, error) {
	req := client.Request{Question: question, TopK: c.topK}

	for attempt := 1; ; attempt++ {
		resp, err := c.asker.Ask(ctx, req)
		if err == nil {
			return resp, nil
		}

		c.logger.Warn("answer request failed", "attempt", attempt, "error", err)

		if c.policy(attempt, err) == client.GiveUp {
			return nil, err
		}
		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Clear resets the transcript to the greeting alone. An in-flight
// submission stays in flight: the state remains StateAwaiting until it
// finishes, and its result is discarded instead of appended.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	inFlight := c.state == StateAwaiting
	c.reset()
	if inFlight {
		c.state = StateAwaiting
	}
}

func (c *Conversation) reset() {
	c.messages = []Message{{Role: RoleAssistant, Content: Greeting}}
	c.state = StateIdle
	c.epoch++
}

// Messages returns a copy of the transcript in submission order.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// State returns the current conversation state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FormatCitation renders one source as "Title (NN%)" with the similarity
// score as a rounded percentage.
func FormatCitation(s client.Source) string {
	return fmt.Sprintf("%s (%d%%)", s.Title, int(math.Round(s.Score*100)))
}

// FormatSources renders a citation block, one numbered source per line.
// Empty input yields the empty string so sourceless answers show no block.
func FormatSources(sources []client.Source) string {
	if len(sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "  [%d] %s\n", i+1, FormatCitation(s))
		if s.URL != "" {
			fmt.Fprintf(&b, "      %s\n", s.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// failureMessage turns a request error into the assistant's apology.
func failureMessage(err error) string {
	switch client.Classify(err) {
	case client.FailureTimeout:
		return "The answer service took too long to respond. Please try again in a moment."
	case client.FailureConnect:
		return "I couldn't reach the answer service. Check that it is running and try again."
	case client.FailureServer:
		return "The answer service had a problem with that question. Please try again."
	default:
		return "Something went wrong while answering. Please try again."
	}
}
