package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/agentflow"
)

func echo() Generator {
	return GeneratorFunc(func(_ context.Context, turn Turn) (string, error) {
		return "echo: " + turn.Message, nil
	})
}

// gated blocks every generation until release is closed or receives.
type gated struct {
	started chan Turn
	release chan struct{}
	err     error
}

func newGated() *gated {
	return &gated{started: make(chan Turn, 4), release: make(chan struct{})}
}

func (g *gated) Generate(ctx context.Context, turn Turn) (string, error) {
	g.started <- turn
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if g.err != nil {
		return "", g.err
	}
	return "reply to " + turn.Message, nil
}

func defaultTarget() Target { return Target{Config: agentflow.DefaultConfig()} }

func roles(msgs []Message) []Role {
	out := make([]Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestSubmitAlternatesHistory(t *testing.T) {
	var seen []int
	gen := GeneratorFunc(func(_ context.Context, turn Turn) (string, error) {
		seen = append(seen, len(turn.History))
		return "ok " + turn.Message, nil
	})
	s := New(defaultTarget(), gen)
	assert.Equal(t, Idle, s.State())

	const n = 3
	for i := 0; i < n; i++ {
		reply, err := s.Submit(context.Background(), fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Equal(t, RoleAssistant, reply.Role)
		assert.Equal(t, fmt.Sprintf("ok message %d", i), reply.Content)
		assert.Equal(t, Ready, s.State())
	}

	h := s.History()
	require.Len(t, h, 2*n)
	for i, m := range h {
		if i%2 == 0 {
			assert.Equal(t, RoleUser, m.Role)
		} else {
			assert.Equal(t, RoleAssistant, m.Role)
		}
		assert.False(t, m.Timestamp.IsZero())
	}
	assert.Equal(t, []int{0, 2, 4}, seen, "the generator sees prior turns only")
}

func TestSubmitRejectsEmptyMessage(t *testing.T) {
	s := New(defaultTarget(), echo())

	_, err := s.Submit(context.Background(), "   \n\t")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, Idle, s.State())
	assert.Empty(t, s.History())
}

func TestSubmitWhileAwaitingIsRejected(t *testing.T) {
	gen := newGated()
	s := New(defaultTarget(), gen)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "first")
		done <- err
	}()
	<-gen.started
	assert.Equal(t, AwaitingResponse, s.State())

	_, err := s.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(gen.release)
	require.NoError(t, <-done)

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, []Role{RoleUser, RoleAssistant}, roles(h))
	assert.Equal(t, "first", h[0].Content)
	assert.Equal(t, "reply to first", h[1].Content)
}

func TestQueuedSubmitsRunInOrder(t *testing.T) {
	gen := newGated()
	s := New(defaultTarget(), gen, WithQueueing())

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Submit(context.Background(), "first")
		errs <- err
	}()
	<-gen.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Submit(context.Background(), "second")
		errs <- err
	}()

	gen.release <- struct{}{}
	turn := <-gen.started
	assert.Equal(t, "second", turn.Message)
	assert.Len(t, turn.History, 2, "the queued turn sees the finished first turn")
	gen.release <- struct{}{}

	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}, roles(s.History()))
}

func TestQueuedSubmitHonoursCallerContext(t *testing.T) {
	gen := newGated()
	s := New(defaultTarget(), gen, WithQueueing())

	go func() { _, _ = s.Submit(context.Background(), "first") }()
	<-gen.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Submit(ctx, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(gen.release)
	require.NoError(t, s.Wait(context.Background()))
	assert.Len(t, s.History(), 2)
}

func TestGenerationFailure(t *testing.T) {
	boom := errors.New("model unavailable")

	t.Run("reported", func(t *testing.T) {
		calls := 0
		gen := GeneratorFunc(func(_ context.Context, turn Turn) (string, error) {
			calls++
			if calls == 1 {
				return "", boom
			}
			return "recovered", nil
		})
		s := New(defaultTarget(), gen)

		_, err := s.Submit(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrGeneration)
		assert.ErrorIs(t, err, boom)

		var gerr *GenerationError
		require.True(t, errors.As(err, &gerr))
		assert.True(t, gerr.Temporary())
		assert.Equal(t, s.ID(), gerr.SessionID)

		assert.Equal(t, Ready, s.State())
		assert.Equal(t, []Role{RoleUser}, roles(s.History()))

		reply, err := s.Submit(context.Background(), "again")
		require.NoError(t, err)
		assert.Equal(t, "recovered", reply.Content)
	})

	t.Run("apologize", func(t *testing.T) {
		gen := GeneratorFunc(func(context.Context, Turn) (string, error) { return "", boom })
		s := New(defaultTarget(), gen, WithPolicy(Apologize))

		reply, err := s.Submit(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, ApologyMessage, reply.Content)
		assert.Equal(t, []Role{RoleUser, RoleAssistant}, roles(s.History()))
	})
}

func TestCancelledCallerResolvesTurn(t *testing.T) {
	gen := newGated()
	s := New(defaultTarget(), gen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "slow question")
		done <- err
	}()
	<-gen.started

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	_, err := s.Submit(context.Background(), "too early")
	assert.ErrorIs(t, err, ErrSessionBusy, "no second turn until the first resolves")

	close(gen.release)
	require.NoError(t, s.Wait(context.Background()))

	assert.Equal(t, Ready, s.State())
	assert.Equal(t, []Role{RoleUser}, roles(s.History()), "the late reply is discarded")

	reply, err := s.Submit(context.Background(), "next")
	require.NoError(t, err)
	assert.Equal(t, "reply to next", reply.Content)
}

func TestCloseCancelsGeneration(t *testing.T) {
	gen := newGated()
	s := New(defaultTarget(), gen)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "hello")
		done <- err
	}()
	<-gen.started

	s.Close()
	err := <-done
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.Submit(context.Background(), "after close")
	assert.ErrorIs(t, err, ErrSessionClosed)
	s.Close()
}

// opsRecorder logs the order of recorder calls.
type opsRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *opsRecorder) Record(context.Context, string, []Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, "record")
	return nil
}

func (r *opsRecorder) Delete(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, "delete")
	return nil
}

func (r *opsRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func TestCloseMidTurnRecordsNothingAfterDelete(t *testing.T) {
	for _, policy := range []FailurePolicy{ReportFailure, Apologize} {
		rec := &opsRecorder{}
		gen := newGated()
		s := New(defaultTarget(), gen, WithPolicy(policy), WithRecorder(rec))

		done := make(chan error, 1)
		go func() {
			_, err := s.Submit(context.Background(), "hello")
			done <- err
		}()
		<-gen.started

		s.Close()
		err := <-done
		assert.ErrorIs(t, err, context.Canceled)

		assert.Equal(t, []string{"delete"}, rec.calls())
		assert.Equal(t, []Role{RoleUser}, roles(s.History()), "no reply is appended after close")
		assert.Equal(t, Ready, s.State())
	}
}

func TestCloseAfterTurnDeletesLast(t *testing.T) {
	rec := &opsRecorder{}
	s := New(defaultTarget(), echo(), WithRecorder(rec))

	_, err := s.Submit(context.Background(), "hello")
	require.NoError(t, err)
	s.Close()
	s.Close()

	assert.Equal(t, []string{"record", "delete"}, rec.calls())
}

func TestGeneratorPanicBecomesGenerationError(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, Turn) (string, error) {
		panic("provider SDK bug")
	})
	s := New(defaultTarget(), gen)

	_, err := s.Submit(context.Background(), "hello")
	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Err.Error(), "provider SDK bug")
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, []Role{RoleUser}, roles(s.History()))

	// the session stays usable
	_, err = s.Submit(context.Background(), "again")
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestWithHistorySeedsReadyState(t *testing.T) {
	seed := []Message{
		{Role: RoleUser, Content: "earlier"},
		{Role: RoleAssistant, Content: "answer"},
	}
	var got []Message
	gen := GeneratorFunc(func(_ context.Context, turn Turn) (string, error) {
		got = turn.History
		return "ok", nil
	})
	s := New(defaultTarget(), gen, WithHistory(seed))
	assert.Equal(t, Ready, s.State())

	seed[0].Content = "mutated"
	_, err := s.Submit(context.Background(), "now")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "earlier", got[0].Content)
	assert.Len(t, s.History(), 4)
}

func TestHistoryIsACopy(t *testing.T) {
	s := New(defaultTarget(), echo())
	_, err := s.Submit(context.Background(), "hi")
	require.NoError(t, err)

	h := s.History()
	h[0].Content = "changed"
	assert.Equal(t, "hi", s.History()[0].Content)
}

func TestTargetResolve(t *testing.T) {
	cfg := agentflow.DefaultConfig()
	cfg.Name = "Compiled"
	assert.Same(t, cfg, Target{Config: cfg}.Resolve())
	assert.Equal(t, agentflow.DefaultConfig(), Target{}.Resolve())
}

func TestStateText(t *testing.T) {
	for state, want := range map[State]string{Idle: "idle", AwaitingResponse: "awaiting_response", Ready: "ready"} {
		b, err := state.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
}
