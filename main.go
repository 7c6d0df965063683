package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/naphat/mathflow/agent/agents/orchestrator"
	contractx "github.com/naphat/mathflow/agent/contract"
	retrievalx "github.com/naphat/mathflow/agent/retrieval"
	statex "github.com/naphat/mathflow/agent/state"
	toolx "github.com/naphat/mathflow/agent/tool"
	configx "github.com/naphat/mathflow/pkg/config"
	embeddingx "github.com/naphat/mathflow/pkg/embedding"
	_ "github.com/naphat/mathflow/pkg/logger/autoload"
)

type AppConfig struct {
	UserID        string        `envconfig:"USER_ID" split_words:"true" default:"local"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" split_words:"true" default:"5m"`
	EnableMathJS  bool          `envconfig:"ENABLE_MATHJS" split_words:"true" default:"false"`
	EnableWolfram bool          `envconfig:"ENABLE_WOLFRAM" split_words:"true" default:"false"`
}

var seedDocuments = []string{
	"The derivative of x^n is n*x^(n-1) for any constant exponent n.",
	"The quadratic formula solves ax^2 + bx + c = 0 with x = (-b +- sqrt(b^2 - 4ac)) / (2a).",
	"Order of operations: parentheses, exponents, multiplication and division, addition and subtraction.",
	"The derivative of a sum is the sum of the derivatives.",
	"A percentage p of a quantity q is p/100 * q.",
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	embedCfg := configx.MustNew[embeddingx.Config]("EMBEDDING")
	embed := embeddingx.NewEmbedFunc(embeddingx.NewClient(*embedCfg), *embedCfg)
	if embed == nil {
		log.Info().Msg("no embedding api key configured, retrieval falls back to lexical scoring")
	}

	globalDocs := retrievalx.NewDocStore("global", retrievalx.WithEmbedder(embed))
	userDocs := retrievalx.NewUserStores(embed)
	seedGlobalCorpus(globalDocs)

	memory := buildMemoryStore(embed)

	coordCfg := configx.MustNew[retrievalx.CoordinatorConfig]("RETRIEVAL")
	coordinator := retrievalx.NewCoordinator(globalDocs, userDocs, memory, *coordCfg)

	registry := toolx.NewRegistry()
	registerTools(registry, appCfg)

	orchCfg := configx.MustNew[orchestratorx.Config]("ORCHESTRATOR")
	orch, err := orchestratorx.New(statex.NewMemoryStore(), coordinator, registry, memory, *orchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweepIdleSessions(ctx, orch, appCfg.SweepInterval)

	runREPL(ctx, orch, appCfg.UserID)
}

func buildMemoryStore(embed contractx.EmbedFunc) contractx.MemoryStore {
	pgCfg := configx.MustNew[retrievalx.PostgresConfig]("MEMORY_POSTGRES")
	if strings.TrimSpace(pgCfg.DSN) == "" {
		return retrievalx.NewConversationStore(retrievalx.WithMemoryEmbedder(embed))
	}

	store, err := retrievalx.NewPostgresMemoryStore(*pgCfg, embed)
	if err != nil {
		log.Fatal().Err(err).Msg("build postgres memory store")
	}
	if err := store.Init(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("init postgres memory store")
	}
	log.Info().Msg("conversation memory backed by postgres")
	return store
}

func seedGlobalCorpus(docs *retrievalx.DocStore) {
	ctx := context.Background()
	for i, text := range seedDocuments {
		doc := contractx.Document{
			ID:     fmt.Sprintf("seed-%02d", i+1),
			Corpus: docs.Corpus(),
			Text:   text,
		}
		if err := docs.Add(ctx, doc); err != nil {
			log.Warn().Err(err).Str("doc_id", doc.ID).Msg("seed document rejected")
		}
	}
}

func registerTools(registry *toolx.Registry, appCfg *AppConfig) {
	mustRegister(registry, toolx.EvaluateTool{})
	mustRegister(registry, toolx.DerivativeTool{})
	mustRegister(registry, toolx.GraphTool{})

	if appCfg.EnableMathJS {
		cfg := configx.MustNew[toolx.MathJSConfig]("MATHJS")
		t, err := toolx.NewMathJSTool(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build mathjs tool")
		}
		mustRegister(registry, t)
	}
	if appCfg.EnableWolfram {
		cfg := configx.MustNew[toolx.WolframConfig]("WOLFRAM")
		t, err := toolx.NewWolframTool(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build wolfram tool")
		}
		mustRegister(registry, t)
	}
}

func mustRegister(registry *toolx.Registry, t toolx.Tool) {
	if err := registry.Register(t); err != nil {
		log.Fatal().Err(err).Msg("register tool")
	}
}

func sweepIdleSessions(ctx context.Context, orch *orchestratorx.Orchestrator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if closed := orch.CloseIdleSessions(ctx); len(closed) > 0 {
				log.Info().Strs("session_ids", closed).Msg("closed idle sessions")
			}
		}
	}
}

func runREPL(ctx context.Context, orch *orchestratorx.Orchestrator, userID string) {
	sessionID := uuid.NewString()
	fmt.Printf("session %s, ask a math question or 'quit' to exit\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "quit" || question == "exit" {
			break
		}

		turn, err := orch.StartTurn(ctx, sessionID, userID, question)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			continue
		}
		fmt.Println(turn.Answer)
	}

	if _, err := orch.CloseSession(context.Background(), sessionID); err != nil {
		log.Warn().Err(err).Msg("close session")
	}
}
