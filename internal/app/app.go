// Package app wires the application together: configuration, logging,
// database, OpenAI client, knowledge store, persona, guardrail, tools, and
// the chat orchestrator.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CodeHalwell/digital-cv/db"
	"github.com/CodeHalwell/digital-cv/internal/chat"
	"github.com/CodeHalwell/digital-cv/internal/completion"
	"github.com/CodeHalwell/digital-cv/internal/config"
	"github.com/CodeHalwell/digital-cv/internal/database"
	"github.com/CodeHalwell/digital-cv/internal/guardrail"
	"github.com/CodeHalwell/digital-cv/internal/ingest"
	"github.com/CodeHalwell/digital-cv/internal/knowledge"
	"github.com/CodeHalwell/digital-cv/internal/log"
	"github.com/CodeHalwell/digital-cv/internal/notify"
	"github.com/CodeHalwell/digital-cv/internal/persona"
	"github.com/CodeHalwell/digital-cv/internal/tools"
)

// notifyTimeout bounds each outbound Pushover call.
const notifyTimeout = 10 * time.Second

// App is the core application container.
type App struct {
	Config       *config.Config
	Logger       log.Logger
	Pool         *pgxpool.Pool
	Client       *completion.Client
	Knowledge    *knowledge.Store
	Persona      *persona.Persona
	Orchestrator *chat.Orchestrator
	Ingest       *ingest.Pipeline

	closeLog func() error
}

// Setup initializes the full application. The returned App must be closed
// with Close when done.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, closeLog, err := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		File:  cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, closeLog: closeLog}
	if err := a.setup(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) setup(ctx context.Context) error {
	cfg := a.Config

	if err := db.Migrate(cfg.PostgresURL(), a.Logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	a.Pool = pool

	client, err := completion.NewClient(completion.ClientConfig{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		ChatModel:      cfg.ChatModel,
		GuardrailModel: cfg.GuardrailModel,
		EmbeddingModel: cfg.EmbeddingModel,
		EmbeddingDims:  cfg.EmbeddingDims,
		Logger:         a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating OpenAI client: %w", err)
	}
	a.Client = client

	store := knowledge.New(knowledge.NewPG(pool), client, a.Logger)
	a.Knowledge = store

	p, err := persona.New(ctx, persona.Config{
		Name:   cfg.PersonaName,
		Email:  cfg.PersonaEmail,
		Store:  store,
		Logger: a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating persona: %w", err)
	}
	a.Persona = p

	classifier, err := guardrail.New(guardrail.Config{
		Completer: client,
		Model:     cfg.GuardrailModel,
		Logger:    a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating guardrail: %w", err)
	}

	notifier := notify.NewPushover(notify.Config{
		Token:  cfg.PushoverToken,
		User:   cfg.PushoverUser,
		Client: &http.Client{Timeout: notifyTimeout},
		Logger: a.Logger,
	})

	registry := tools.NewRegistry(a.Logger)
	tools.NewRecorder(notifier, a.Logger).RegisterAll(registry)

	orchestrator, err := chat.New(chat.Config{
		Streamer:      client,
		Guardrail:     classifier,
		Persona:       p,
		Tools:         registry,
		Transcript:    chat.NewFileTranscript(cfg.TranscriptPath, a.Logger),
		MaxToolRounds: cfg.MaxToolRounds,
		Logger:        a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}
	a.Orchestrator = orchestrator

	pipeline, err := ingest.New(ingest.Config{
		Store:        store,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Logger:       a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating ingest pipeline: %w", err)
	}
	a.Ingest = pipeline

	return nil
}

// Close releases all held resources.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	if a.closeLog != nil {
		return a.closeLog()
	}
	return nil
}
