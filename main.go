package main

import (
	"context"

	"github.com/rs/zerolog/log"

	agentsx "github.com/deuterium1925/smart-ass-back/agent/agents"
	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
	executorx "github.com/deuterium1925/smart-ass-back/agent/executor"
	llmx "github.com/deuterium1925/smart-ass-back/agent/llm"
	orchestratorx "github.com/deuterium1925/smart-ass-back/agent/orchestrator"
	registryx "github.com/deuterium1925/smart-ass-back/agent/registry"
	storex "github.com/deuterium1925/smart-ass-back/agent/store"
	configx "github.com/deuterium1925/smart-ass-back/pkg/config"
	_ "github.com/deuterium1925/smart-ass-back/pkg/logger/autoload"
	openrouterx "github.com/deuterium1925/smart-ass-back/pkg/openrouter"
)

type AppConfig struct {
	StoreDriver  string `envconfig:"STORE_DRIVER" required:"true"`
	QueueEnabled bool   `envconfig:"QUEUE_ENABLED" default:"false"`
}

func main() {
	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("")

	var store storex.Store
	switch appCfg.StoreDriver {
	case "postgres":
		pgCfg := configx.MustNew[storex.PostgresConfig]("POSTGRES")
		pg, err := storex.NewPostgresStore(*pgCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open postgres store")
		}
		if err := pg.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize postgres schema")
		}
		store = pg
	case "memory":
		store = storex.NewMemoryStore()
	default:
		log.Fatal().Str("driver", appCfg.StoreDriver).Msg("unknown store driver")
	}

	var queue contractx.PendingQueue
	if appCfg.QueueEnabled {
		queueCfg := configx.MustNew[storex.UpstashQueueConfig]("UPSTASH")
		q, err := storex.NewUpstashPendingQueue(*queueCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pending queue")
		}
		queue = q
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if client := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.AgentIntent)); client == nil {
		log.Fatal().Msg("failed to initialize openrouter client")
	}

	agentSet, err := agentsx.NewSet(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent set")
	}

	registry, err := registryx.New(registryx.DefaultSpecs())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid agent registry configuration")
	}

	orchestrator, err := orchestratorx.New(
		store,
		registry,
		executorx.New(agentSet),
		queue,
		orchestratorx.Config{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build orchestrator")
	}
	_ = orchestrator

	log.Info().
		Str("store_driver", appCfg.StoreDriver).
		Bool("queue_enabled", appCfg.QueueEnabled).
		Msg("agent orchestration engine ready")
}
