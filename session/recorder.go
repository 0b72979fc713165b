package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const recordTimeout = 5 * time.Second

// Recorder mirrors session histories to durable storage. It is write-only:
// sessions never read back from it.
type Recorder interface {
	Record(ctx context.Context, sessionID string, history []Message) error
	Delete(ctx context.Context, sessionID string) error
}

func (s *Session) record(history []Message) {
	if s.recorder == nil {
		return
	}
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.forgotten {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.recorder.Record(ctx, s.id, history); err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("Failed to record session history")
	}
}

func (s *Session) forget() {
	if s.recorder == nil {
		return
	}
	s.recMu.Lock()
	defer s.recMu.Unlock()
	s.forgotten = true
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.recorder.Delete(ctx, s.id); err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("Failed to delete recorded session")
	}
}

// Recorders fans out to several recorders. Every recorder is called; the
// first error is returned.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, sessionID string, history []Message) error {
	var first error
	for _, r := range rs {
		if err := r.Record(ctx, sessionID, history); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (rs Recorders) Delete(ctx context.Context, sessionID string) error {
	var first error
	for _, r := range rs {
		if err := r.Delete(ctx, sessionID); err != nil && first == nil {
			first = err
		}
	}
	return first
}
