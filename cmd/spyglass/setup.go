package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/spyglass/internal/config"
	"github.com/sandevgo/spyglass/internal/providers/llm"
	"github.com/sandevgo/spyglass/internal/providers/mcp"
	"github.com/sandevgo/spyglass/internal/providers/tools"
	"github.com/sandevgo/spyglass/internal/service/agent"
	"github.com/sandevgo/spyglass/internal/service/session"
	"github.com/sandevgo/spyglass/internal/storage/sqlite"
	"github.com/sandevgo/spyglass/internal/transport/httpapi"
	"github.com/sandevgo/spyglass/pkg/log"
	"github.com/sandevgo/spyglass/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))
	transcripts := sqlite.NewTranscriptRepo(db)

	// 3. Model backend and availability cache
	backend, err := llm.NewBackend(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize llm backend")
	}

	modelCache := llm.NewModelCache(backend)
	modelCache.Preload(ctx)
	if !modelCache.IsSupported(ctx, backend.Model()) {
		// Availability checking never blocks startup, the turn itself will
		// surface the provider error if the model truly does not exist.
		logger.Warn().Str("model", backend.Model()).Msg("configured model is not in the backend's model list")
	}

	// 4. Tools
	registry := tools.NewRegistry()
	registry.RegisterToolset(tools.NewFilesystem(appCfg.GetRuntimePath()))
	registry.RegisterToolset(tools.NewShell(appCfg.GetRuntimePath()))
	registry.RegisterToolset(tools.NewFetch())

	mcpManager, err := mcp.NewManager(ctx, appCfg.GetMCPConfigPath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize MCP manager")
	}
	registry.RegisterToolset(mcpManager)
	registry.AddSource(mcpManager)
	services = append(services, mcpManager)

	// 5. Gateway
	factory := func(sessionID string, params agent.Params) session.Agent {
		params.Model = backend.Model()
		params.Instructions = appCfg.Instructions
		return agent.NewAgent(sessionID, params, backend, registry, transcripts, appCfg.ContextWindowTokens)
	}
	gateway := session.NewGateway(factory, transcripts)
	services = append(services, srv.NewCleanup(func() error {
		gateway.Close(ctx)
		return nil
	}))

	// 6. HTTP surface
	handler := httpapi.NewHandler(gateway)
	server := httpapi.NewServer(ctx, httpapi.DefaultConfig(appCfg.HTTPHost, appCfg.HTTPPort), handler)
	services = append(services, server)

	return services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
