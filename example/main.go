package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/agentflow"
	"github.com/meikuraledutech/agentflow/agent"
	"github.com/meikuraledutech/agentflow/generate"
	"github.com/meikuraledutech/agentflow/inmem"
	"github.com/meikuraledutech/agentflow/postgres"
	"github.com/meikuraledutech/agentflow/session"
)

const owner = "demo-user"

func main() {
	ctx := context.Background()

	// Wire up a Store: postgres when DATABASE_URL is set, memory otherwise.
	var store agentflow.Store = inmem.New()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}

	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Bulk insert ───────────────────────────────────────────────────
	g, err := agentflow.NewGraph([]agentflow.Node{
		agentflow.NewNode("llm-1", agentflow.KindLLM, map[string]any{
			"id": "openai-gpt-4", "name": "GPT-4", "apiKey": "sk-demo", "model": "gpt-4", "temperature": 0.2,
		}),
		agentflow.NewNode("agent-1", agentflow.KindAgent, map[string]any{
			"id": "conversational-agent", "name": "Helper", "systemPrompt": "You answer questions about markets.",
		}),
	}, []agentflow.Edge{
		{ID: "e1", Source: "llm-1", Target: "agent-1"},
	})
	if err != nil {
		log.Fatalf("graph: %v", err)
	}

	created, err := store.CreateGraph(ctx, &agentflow.GraphRecord{
		OwnerID:     owner,
		Name:        "Market Helper",
		Description: "Answers stock questions",
		Graph:       g,
	})
	if err != nil {
		log.Fatalf("create graph: %v", err)
	}
	fmt.Println("graph created")
	printJSON(created)

	// ── Granular: add a tool and connect it ───────────────────────────
	toolID, err := store.AddNode(ctx, owner, created.ID, agentflow.WireNode{
		Type: agentflow.TypeToolNode,
		Data: map[string]any{"id": "duckduckgo-search", "name": "DuckDuckGo", "maxResults": 3},
	})
	if err != nil {
		log.Fatalf("add node: %v", err)
	}
	fmt.Printf("\nadded node: %s\n", toolID)

	edgeID, err := store.AddEdge(ctx, owner, created.ID, agentflow.WireEdge{Source: toolID, Target: "agent-1"})
	if err != nil {
		log.Fatalf("add edge: %v", err)
	}
	fmt.Printf("added edge: %s\n", edgeID)

	// ── Validate and compile ──────────────────────────────────────────
	rec, err := store.GetGraph(ctx, owner, created.ID)
	if err != nil {
		log.Fatalf("get graph: %v", err)
	}
	res := agentflow.Validate(rec.Graph)
	fmt.Printf("\nvalid: %v %s\n", res.Valid, res.Error)
	if !res.Valid {
		os.Exit(1)
	}

	cfg, err := agentflow.Compile(rec.Graph, rec.Metadata())
	if err != nil {
		log.Fatalf("compile: %v", err)
	}
	data, err := cfg.Encode()
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Printf("\n%s:\n%s\n", cfg.FileName(), data)

	// ── Converse with the stub generator ──────────────────────────────
	s := session.New(session.Target{GraphID: rec.ID, Config: cfg}, agent.NewRunner(generate.Stub{}, nil))
	defer s.Close()

	for _, msg := range []string{"How did Coca Cola stock do?", "And what about the wider beverage market"} {
		reply, err := s.Submit(ctx, msg)
		if err != nil {
			log.Fatalf("submit: %v", err)
		}
		fmt.Printf("\n> %s\n%s\n", msg, reply.Content)
	}
	fmt.Printf("\nhistory (%d messages, state %s)\n", len(s.History()), s.State())

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DeleteGraph(ctx, owner, created.ID); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("\ngraph deleted")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
