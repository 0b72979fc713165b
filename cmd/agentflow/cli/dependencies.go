package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/meikuraledutech/agentflow"
	"github.com/meikuraledutech/agentflow/agent"
	"github.com/meikuraledutech/agentflow/config"
	"github.com/meikuraledutech/agentflow/generate"
	"github.com/meikuraledutech/agentflow/history/mongodb"
	historyredis "github.com/meikuraledutech/agentflow/history/redis"
	"github.com/meikuraledutech/agentflow/inmem"
	"github.com/meikuraledutech/agentflow/postgres"
	"github.com/meikuraledutech/agentflow/session"
	"github.com/meikuraledutech/agentflow/tools"
)

const connectTimeout = 10 * time.Second

// dependencies are the long-lived collaborators built from configuration.
type dependencies struct {
	Store    agentflow.Store
	Redis    *goredis.Client
	Sessions *session.Manager

	recorders session.Recorders
	closers   []func()
}

func newDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	d := &dependencies{}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, pool.Close)

		store := postgres.New(pool)
		if err := store.CreateSchema(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
		d.Store = store
		log.Info().Msg("Using PostgreSQL graph store")
	} else {
		d.Store = inmem.New()
		log.Info().Msg("DATABASE_URL not set, using in-memory graph store")
	}

	if err := d.openRecorders(ctx, cfg); err != nil {
		d.Close()
		return nil, err
	}

	opts := sessionOptions(cfg)
	if len(d.recorders) > 0 {
		opts = append(opts, session.WithRecorder(d.recorders))
	}
	d.Sessions = session.NewManager(newRunner(cfg), opts...)

	return d, nil
}

// openRecorders connects the history recorders named by cfg: redis for
// REDIS_URL, mongodb for MONGODB_URI. The redis client doubles as the rate
// limiter backend.
func (d *dependencies) openRecorders(ctx context.Context, cfg *config.Config) error {
	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		d.Redis = goredis.NewClient(opts)
		d.closers = append(d.closers, func() { _ = d.Redis.Close() })
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis is not reachable; rate limiting fails open")
		}
		d.recorders = append(d.recorders, historyredis.New(d.Redis, cfg.HistoryTTL))
	}

	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return fmt.Errorf("connect mongodb: %w", err)
		}
		d.closers = append(d.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
			}
		})
		d.recorders = append(d.recorders, mongodb.New(client.Database(cfg.MongoDatabase)))
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func sessionOptions(cfg *config.Config) []session.Option {
	var opts []session.Option
	if cfg.QueueTurns {
		opts = append(opts, session.WithQueueing())
	}
	if cfg.FailurePolicy == "apologize" {
		opts = append(opts, session.WithPolicy(session.Apologize))
	}
	return opts
}

func newRunner(cfg *config.Config) *agent.Runner {
	var gen generate.Generator = generate.Stub{}
	if cfg.Generator == "router" {
		gen = generate.Router{Keys: cfg.LLMKeys(), Endpoints: cfg.LLMEndpoints()}
	}
	registry := tools.NewRegistry(tools.Env{Keys: cfg.ToolKeys(), Endpoints: cfg.ToolEndpoints()})
	return agent.NewRunner(gen, registry)
}
