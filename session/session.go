// Package session runs request/response conversation turns against a compiled
// agent configuration.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/agentflow"
	"github.com/rs/zerolog/log"
)

// ApologyMessage replaces a failed reply under the Apologize policy.
const ApologyMessage = "Sorry, I encountered an error processing your request."

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of a conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the turn state of a session.
type State int

const (
	Idle State = iota
	AwaitingResponse
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	case Ready:
		return "ready"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "awaiting_response":
		*s = AwaitingResponse
	case "ready":
		*s = Ready
	default:
		return fmt.Errorf("session: unknown state %q", text)
	}
	return nil
}

// FailurePolicy decides what a failed generation leaves in the history.
type FailurePolicy int

const (
	// ReportFailure surfaces a *GenerationError and adds no assistant message.
	ReportFailure FailurePolicy = iota
	// Apologize records ApologyMessage as the assistant reply instead.
	Apologize
)

// Target is what a session converses against: a compiled configuration, or a
// raw graph that is extracted leniently on every turn.
type Target struct {
	GraphID string
	Config  *agentflow.Config
	Graph   *agentflow.Graph
}

// Resolve returns the configuration to run. With neither a config nor a graph
// set it falls back to agentflow.DefaultConfig.
func (t Target) Resolve() *agentflow.Config {
	if t.Config != nil {
		return t.Config
	}
	return agentflow.Extract(t.Graph)
}

// Turn is the input handed to a Generator. History excludes Message.
type Turn struct {
	SessionID string
	Target    Target
	History   []Message
	Message   string
}

// Generator produces the assistant reply for a turn.
type Generator interface {
	Generate(ctx context.Context, turn Turn) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, turn Turn) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, turn Turn) (string, error) { return f(ctx, turn) }

// Option configures a Session.
type Option func(*Session)

// WithQueueing makes Submit wait for the in-flight turn instead of failing
// with ErrSessionBusy.
func WithQueueing() Option {
	return func(s *Session) { s.queue = true }
}

func WithPolicy(p FailurePolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithHistory seeds the conversation, e.g. from a client that keeps its own
// history.
func WithHistory(msgs []Message) Option {
	return func(s *Session) {
		s.history = append([]Message(nil), msgs...)
		if len(msgs) > 0 {
			s.state = Ready
		}
	}
}

// WithRecorder mirrors every resolved turn to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is a single conversation. Turns are strictly serialized: at most one
// generation is in flight at a time.
type Session struct {
	id       string
	target   Target
	gen      Generator
	policy   FailurePolicy
	queue    bool
	recorder Recorder
	now      func() time.Time

	// slot is a one-slot semaphore held for the whole life of a turn.
	slot chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	history []Message
	state   State
	closed  bool

	// recMu orders recorder calls so that nothing is recorded after the
	// delete issued by Close.
	recMu     sync.Mutex
	forgotten bool
}

type outcome struct {
	msg Message
	err error
}

type pending struct {
	done      chan outcome
	resolved  bool
	abandoned bool
}

// New creates a session in the Idle state.
func New(target Target, gen Generator, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		target: target,
		gen:    gen,
		now:    time.Now,
		slot:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Target() Target { return s.target }

// State returns the current turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.history...)
}

// Submit sends a user message and waits for the reply.
//
// If ctx ends first Submit returns ctx.Err(). The generation keeps running
// under the session's own lifetime; once it resolves the turn counts as failed,
// no assistant message is added and the session returns to Ready.
func (s *Session) Submit(ctx context.Context, text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}
	if err := s.acquire(ctx); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.release()
		return Message{}, ErrSessionClosed
	}
	turn := Turn{
		SessionID: s.id,
		Target:    s.target,
		History:   append([]Message(nil), s.history...),
		Message:   text,
	}
	s.history = append(s.history, Message{Role: RoleUser, Content: text, Timestamp: s.now()})
	s.state = AwaitingResponse
	p := &pending{done: make(chan outcome, 1)}
	s.mu.Unlock()

	log.Debug().Str("session_id", s.id).Int("history", len(turn.History)).Msg("Turn started")
	go s.run(p, turn)

	select {
	case out := <-p.done:
		return out.msg, out.err
	case <-ctx.Done():
		s.mu.Lock()
		if !p.resolved {
			p.abandoned = true
			s.mu.Unlock()
			log.Warn().Str("session_id", s.id).Err(ctx.Err()).Msg("Caller left before the reply arrived")
			return Message{}, ctx.Err()
		}
		s.mu.Unlock()
		out := <-p.done
		return out.msg, out.err
	}
}

// run resolves a turn. The history is recorded and the slot released before
// the caller is woken, so a caller may submit again as soon as Submit returns.
func (s *Session) run(p *pending, turn Turn) {
	reply, err := s.generate(turn)

	s.mu.Lock()
	p.resolved = true
	var out outcome
	switch {
	case s.closed:
		log.Info().Str("session_id", s.id).Msg("Turn resolved after close; reply discarded")
		out.err = &GenerationError{SessionID: s.id, Err: context.Canceled}
	case p.abandoned:
		log.Info().Str("session_id", s.id).Msg("Abandoned turn resolved; reply discarded")
		out.err = &GenerationError{SessionID: s.id, Err: context.Canceled}
	case err != nil:
		gerr := &GenerationError{SessionID: s.id, Err: err}
		log.Error().Err(err).Str("session_id", s.id).Msg("Generation failed")
		if s.policy == Apologize {
			out.msg = Message{Role: RoleAssistant, Content: ApologyMessage, Timestamp: s.now()}
			s.history = append(s.history, out.msg)
		} else {
			out.err = gerr
		}
	default:
		out.msg = Message{Role: RoleAssistant, Content: reply, Timestamp: s.now()}
		s.history = append(s.history, out.msg)
	}
	s.state = Ready
	closed := s.closed
	snapshot := append([]Message(nil), s.history...)
	s.mu.Unlock()

	if !closed {
		s.record(snapshot)
	}
	s.release()
	p.done <- out
}

// generate calls the generator and reports a panic as an error.
func (s *Session) generate(turn Turn) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("session_id", s.id).Interface("panic", r).Msg("Generator panicked")
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	return s.gen.Generate(s.ctx, turn)
}

// Wait blocks until no turn is in flight.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		s.release()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight generation and rejects further turns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.forget()
}

func (s *Session) acquire(ctx context.Context) error {
	if !s.queue {
		select {
		case s.slot <- struct{}{}:
			return nil
		default:
			return ErrSessionBusy
		}
	}
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

func (s *Session) release() { <-s.slot }
