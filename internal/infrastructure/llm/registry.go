package llm

import (
	"fmt"
	"sync"

	"github.com/bytebot-ai/bytebot/agent/internal/domain/service"
	"go.uber.org/zap"
)

// Provider is the infrastructure-layer LLM provider interface. Each
// provider implements service.MessageGenerator so the processor can use it
// directly once resolved.
type Provider interface {
	service.MessageGenerator

	// Name returns the provider tag ("anthropic", "openai", "google", "proxy").
	Name() string

	// Models returns the model identifiers this provider serves
	// (empty = any model).
	Models() []string

	// IsAvailable reports whether the provider is usable (credentials or
	// endpoint configured).
	IsAvailable() bool
}

// ProviderConfig holds configuration for an LLM provider.
type ProviderConfig struct {
	Name    string   `json:"name"`
	BaseURL string   `json:"base_url"`
	APIKey  string   `json:"api_key"`
	Models  []string `json:"models"`
}

// --- Provider Factory Registry ---
// Providers register themselves via init() in their own package.
// Adding a new provider type = implement Provider + RegisterFactory("tag", New).

// ProviderFactory creates a Provider from config.
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) Provider

var (
	factoryMu sync.RWMutex
	factories = map[string]ProviderFactory{}
)

// RegisterFactory registers a provider factory for the given tag.
// Called from init() in each provider sub-package.
func RegisterFactory(tag string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[tag] = factory
}

// CreateProvider creates a Provider using the registered factory for tag.
func CreateProvider(tag string, cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	factoryMu.RLock()
	factory, ok := factories[tag]
	factoryMu.RUnlock()

	if !ok {
		factoryMu.RLock()
		available := make([]string, 0, len(factories))
		for k := range factories {
			available = append(available, k)
		}
		factoryMu.RUnlock()
		return nil, fmt.Errorf("unknown provider tag %q (available: %v)", tag, available)
	}

	return factory(cfg, logger), nil
}

// Registry maps provider tags to providers. It implements
// service.ProviderResolver; unresolvable or unavailable tags report a miss
// and the iteration fails the task.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		logger:    logger.With(zap.String("component", "llm-registry")),
	}
}

// Compile-time interface check: Registry implements service.ProviderResolver.
var _ service.ProviderResolver = (*Registry)(nil)

// Add registers a provider under its tag.
func (r *Registry) Add(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	r.logger.Info("LLM provider registered",
		zap.String("tag", p.Name()),
		zap.Strings("models", p.Models()),
		zap.Bool("available", p.IsAvailable()),
	)
}

// Resolve implements service.ProviderResolver.
func (r *Registry) Resolve(tag string) (service.MessageGenerator, bool) {
	r.mu.RLock()
	p, ok := r.providers[tag]
	r.mu.RUnlock()
	if !ok || !p.IsAvailable() {
		return nil, false
	}
	return p, true
}

// Tags returns the registered, available provider tags.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.providers))
	for tag, p := range r.providers {
		if p.IsAvailable() {
			tags = append(tags, tag)
		}
	}
	return tags
}
