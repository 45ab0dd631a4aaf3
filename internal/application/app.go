package application

import (
	"context"
	"fmt"
	"os"

	"github.com/bytebot-ai/bytebot/agent/internal/application/usecase"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/repository"
	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/computer"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/config"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/eventbus"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/inputcapture"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm"
	_ "github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm/anthropic" // register anthropic provider factory
	_ "github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm/google"    // register google provider factory
	_ "github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm/openai"    // register openai provider factory
	_ "github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm/proxy"     // register proxy provider factory
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/monitoring"
	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/persistence"
	httpServer "github.com/bytebot-ai/bytebot/agent/internal/interfaces/http"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

// App is the dependency-injection container.
type App struct {
	config *config.Config
	logger *zap.Logger
	level  zap.AtomicLevel
	db     *gorm.DB

	// Repositories
	taskRepo    repository.TaskRepository
	messageRepo repository.MessageRepository
	summaryRepo repository.SummaryRepository

	// Infrastructure
	bus      *eventbus.InMemoryBus
	monitor  *monitoring.Monitor
	registry *llm.Registry
	watcher  *config.Watcher

	// Domain services
	processor *service.AgentProcessor

	// Application services
	taskUseCase *usecase.TaskUseCase

	// Interfaces
	httpServer *httpServer.Server
}

// NewApp wires the application together.
func NewApp(cfg *config.Config, logger *zap.Logger, level zap.AtomicLevel) (*App, error) {
	// Bootstrap: ensure ~/.bytebot exists with default files on first run
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("Bootstrap failed (non-fatal)", zap.Error(err))
	}

	app := &App{
		config: cfg,
		logger: logger,
		level:  level,
	}

	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := app.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	app.initDomainServices()
	app.initApplicationServices()
	app.initInterfaces()

	return app, nil
}

func (a *App) initRepositories() error {
	db, err := persistence.NewDBConnection(&a.config.Database)
	if err != nil {
		return err
	}
	a.db = db
	a.taskRepo = persistence.NewGormTaskRepository(db)
	a.messageRepo = persistence.NewGormMessageRepository(db)
	a.summaryRepo = persistence.NewGormSummaryRepository(db)
	return nil
}

func (a *App) initInfrastructure() error {
	a.bus = eventbus.NewInMemoryBus(a.logger, 64)
	a.monitor = monitoring.NewMonitor(a.logger)

	a.registry = llm.NewRegistry(a.logger)
	providerConfigs := []struct {
		tag string
		cfg llm.ProviderConfig
	}{
		{"anthropic", llm.ProviderConfig{Name: "anthropic", APIKey: os.Getenv(llm.EnvAnthropicAPIKey)}},
		{"openai", llm.ProviderConfig{Name: "openai", APIKey: os.Getenv(llm.EnvOpenAIAPIKey)}},
		{"google", llm.ProviderConfig{Name: "google", APIKey: os.Getenv(llm.EnvGeminiAPIKey)}},
		{"proxy", llm.ProviderConfig{
			Name:    "proxy",
			BaseURL: os.Getenv(llm.EnvLLMProxyURL),
			Models:  a.config.Agent.ProxyModels,
		}},
	}
	for _, pc := range providerConfigs {
		provider, err := llm.CreateProvider(pc.tag, pc.cfg, a.logger)
		if err != nil {
			return err
		}
		a.registry.Add(provider)
	}
	return nil
}

func (a *App) initDomainServices() {
	assembler := service.NewConversationAssembler(a.messageRepo, a.summaryRepo, a.logger)
	summarizer := service.NewSummarizer(a.summaryRepo, a.messageRepo, a.monitor, a.logger)

	computerClient := computer.NewClient(a.config.Agent.DesktopURL, a.logger)
	dispatcher := service.NewToolDispatcher(a.taskRepo, a.messageRepo, computerClient, a.monitor, a.logger)

	capture := inputcapture.NewClient(a.config.Agent.DesktopURL, a.logger)

	a.processor = service.NewAgentProcessor(
		a.taskRepo,
		a.messageRepo,
		a.registry,
		assembler,
		summarizer,
		dispatcher,
		capture,
		a.monitor,
		a.logger,
	)
}

func (a *App) initApplicationServices() {
	a.taskUseCase = usecase.NewTaskUseCase(a.taskRepo, a.messageRepo, a.processor, a.bus, a.logger)
}

func (a *App) initInterfaces() {
	a.httpServer = httpServer.NewServer(httpServer.Config{
		Host:        a.config.Server.Host,
		Port:        a.config.Server.Port,
		Mode:        a.config.Server.Mode,
		ProxyModels: a.config.Agent.ProxyModels,
	}, a.taskUseCase, a.processor, a.monitor, a.logger)
}

// Start wires event subscriptions and brings the interfaces up.
func (a *App) Start(ctx context.Context) error {
	a.subscribeLifecycleEvents()

	if err := a.httpServer.Start(ctx); err != nil {
		return err
	}

	watcher, err := config.NewWatcher(a.onConfigChange, a.logger)
	if err != nil {
		a.logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		a.watcher = watcher
	}

	a.logger.Info("Application started")
	return nil
}

// Stop winds everything down in reverse order.
func (a *App) Stop(ctx context.Context) error {
	a.processor.StopProcessing()

	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Warn("HTTP server stop failed", zap.Error(err))
	}
	a.bus.Close()

	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	a.logger.Info("Application stopped")
	return nil
}

// subscribeLifecycleEvents routes bus events into the processor.
func (a *App) subscribeLifecycleEvents() {
	a.bus.Subscribe(eventbus.EventTaskTakeover, func(ctx context.Context, event eventbus.Event) {
		if payload, ok := event.Payload().(eventbus.TaskEventPayload); ok {
			a.processor.OnTakeover(payload.TaskID)
		}
	})
	a.bus.Subscribe(eventbus.EventTaskResume, func(ctx context.Context, event eventbus.Event) {
		if payload, ok := event.Payload().(eventbus.TaskEventPayload); ok {
			if !a.processor.OnResume(payload.TaskID) {
				// The processor released the task (fresh process, retry
				// exhaustion); start a new run.
				a.processor.ProcessTask(payload.TaskID)
			}
		}
	})
	a.bus.Subscribe(eventbus.EventTaskCancel, func(ctx context.Context, event eventbus.Event) {
		if payload, ok := event.Payload().(eventbus.TaskEventPayload); ok {
			a.processor.OnCancel(payload.TaskID)
		}
	})
}

// onConfigChange applies hot-reloadable settings from a config reload.
func (a *App) onConfigChange(cfg *config.Config) {
	if level, err := zapcore.ParseLevel(cfg.Log.Level); err == nil {
		if a.level.Level() != level {
			a.level.SetLevel(level)
			a.logger.Info("Log level changed", zap.String("level", cfg.Log.Level))
		}
	}
}

// Processor exposes the agent processor (tests, diagnostics).
func (a *App) Processor() *service.AgentProcessor {
	return a.processor
}
