// Package redis mirrors session histories into Redis as JSON documents.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meikuraledutech/agentflow/session"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "agentflow:session:"

// Recorder implements session.Recorder. Entries expire after TTL; zero keeps
// them forever.
type Recorder struct {
	client *goredis.Client
	ttl    time.Duration
}

func New(client *goredis.Client, ttl time.Duration) *Recorder {
	return &Recorder{client: client, ttl: ttl}
}

func key(sessionID string) string { return keyPrefix + sessionID }

func (r *Recorder) Record(ctx context.Context, sessionID string, history []session.Message) error {
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("redis recorder: encode history: %w", err)
	}
	if err := r.client.Set(ctx, key(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis recorder: set: %w", err)
	}
	return nil
}

func (r *Recorder) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis recorder: del: %w", err)
	}
	return nil
}

// Load reads a recorded history back. A missing key yields an empty history.
func (r *Recorder) Load(ctx context.Context, sessionID string) ([]session.Message, error) {
	data, err := r.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []session.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis recorder: get: %w", err)
	}
	var history []session.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("redis recorder: decode history: %w", err)
	}
	return history, nil
}

var _ session.Recorder = (*Recorder)(nil)
