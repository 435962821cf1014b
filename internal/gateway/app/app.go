package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"scenestudio/internal/assets"
	"scenestudio/internal/gateway/agentstate"
	"scenestudio/internal/gateway/config"
	"scenestudio/internal/gateway/handler"
	"scenestudio/internal/gateway/scenestore"
	"scenestudio/internal/gateway/server"
	"scenestudio/internal/llm"
	"scenestudio/internal/playground/compiler"
	"scenestudio/internal/playground/modules"
	"scenestudio/internal/playground/registry"
	"scenestudio/internal/tts"
)

type App struct {
	server     *server.Server
	compiler   *compiler.Compiler
	sceneStore *scenestore.Store
}

// Options tweak construction beyond what the environment provides.
type Options struct {
	// Port overrides the configured listen address when non-empty.
	Port string
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Port != "" {
		cfg.Port = opts.Port
	}

	// Compilation pipeline. Initialization of the transpiler is kicked
	// off here so the first compile request does not pay for it.
	reg := registry.New()
	modules.Install(reg)
	comp := compiler.New(reg)
	go func() {
		if err := comp.Initialize(context.Background()); err != nil {
			log.Printf("transpiler init: %v (will retry on first compile)", err)
		}
	}()

	// Proxied upstreams. Each is optional; handlers report a clear
	// error when the corresponding key is missing.
	var analyzer *llm.Analyzer
	if cfg.Media.APIKey != "" {
		analyzer, err = llm.NewAnalyzer(ctx, cfg.Media.APIKey, cfg.Media.Model)
		if err != nil {
			return nil, fmt.Errorf("media analyzer: %w", err)
		}
	}
	ttsClient := tts.NewClient(cfg.TTS.APIKey, cfg.TTS.BaseURL)

	var assetStore *assets.Store
	if cfg.Asset.Enabled {
		assetStore, err = assets.NewStore(assets.Config{
			Endpoint:  cfg.Asset.Endpoint,
			Region:    cfg.Asset.Region,
			AccessKey: cfg.Asset.AccessKey,
			SecretKey: cfg.Asset.SecretKey,
			Bucket:    cfg.Asset.Bucket,
			UseSSL:    cfg.Asset.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("asset store: %w", err)
		}
	}

	// Persistence.
	agentStore := agentstate.NewStore(filepath.Join("tmp", "agent_states.json"))
	sceneStore := scenestore.NewFromEnv(cfg.DatabaseURL, filepath.Join("tmp", "scenes.json"))

	// Handlers, routing, server.
	var mediaAnalyzer handler.MediaAnalyzer
	if analyzer != nil {
		mediaAnalyzer = analyzer
	}
	mux := server.NewMux(
		handler.NewCompileHandler(comp),
		handler.NewSessionHandler(comp, agentStore),
		handler.NewTTSHandler(ttsClient, cfg.TTS.APIKey, assetStore),
		handler.NewMediaHandler(mediaAnalyzer),
		handler.NewAgentStateHandler(agentStore),
		handler.NewSceneHandler(sceneStore),
	)
	srv := server.New(cfg.Port, mux)

	return &App{
		server:     srv,
		compiler:   comp,
		sceneStore: sceneStore,
	}, nil
}

// Compiler exposes the shared compilation pipeline, used by the CLI
// compile command.
func (a *App) Compiler() *compiler.Compiler {
	return a.compiler
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.sceneStore.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
