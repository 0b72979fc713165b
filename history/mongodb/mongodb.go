// Package mongodb mirrors session histories into a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meikuraledutech/agentflow/session"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionsCollection = "agentflow_sessions"

type document struct {
	SessionID string            `bson:"session_id"`
	Messages  []session.Message `bson:"messages"`
	UpdatedAt time.Time         `bson:"updated_at"`
}

// Recorder implements session.Recorder.
type Recorder struct {
	collection *mongo.Collection
}

// New creates a recorder on database and ensures its index.
func New(database *mongo.Database) *Recorder {
	r := &Recorder{collection: database.Collection(sessionsCollection)}
	r.ensureIndexes()
	return r
}

func (r *Recorder) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create index for agentflow_sessions")
	}
}

// Record upserts the full history of a session.
func (r *Recorder) Record(ctx context.Context, sessionID string, history []session.Message) error {
	filter := bson.M{"session_id": sessionID}
	update := bson.M{
		"$set": bson.M{
			"session_id": sessionID,
			"messages":   history,
			"updated_at": time.Now().UTC(),
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("mongodb recorder: save session: %w", err)
	}
	return nil
}

func (r *Recorder) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("mongodb recorder: delete session: %w", err)
	}
	return nil
}

// Load reads a recorded history back. A missing session yields an empty history.
func (r *Recorder) Load(ctx context.Context, sessionID string) ([]session.Message, error) {
	var doc document
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []session.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb recorder: load session: %w", err)
	}
	return doc.Messages, nil
}

var _ session.Recorder = (*Recorder)(nil)
