package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/drfintrack/fintrack-auth/pkg/debug"
	emailtypes "github.com/drfintrack/fintrack-auth/pkg/email"
)

var (
	// ErrProviderNotConfigured is returned when the email provider is not properly configured
	ErrProviderNotConfigured = errors.New("email provider not configured")
	// ErrUnsupportedProvider is returned for provider types with no registered factory
	ErrUnsupportedProvider = errors.New("unsupported email provider type")
	// ErrEmptyMessage is returned when a message has no recipients or body
	ErrEmptyMessage = errors.New("email has no recipients or content")
)

// Provider defines the interface for email providers
type Provider interface {
	// Initialize sets up the provider with the given configuration
	Initialize(cfg *emailtypes.Config) error

	// Send sends an already rendered email
	Send(ctx context.Context, data *emailtypes.EmailData) error

	// ValidateConfig validates the provider configuration
	ValidateConfig(cfg *emailtypes.Config) error

	// Verify checks that the provider can deliver mail without sending any.
	Verify(ctx context.Context) error
}

// ProviderFactory is a function that creates a new Provider instance
type ProviderFactory func() Provider

var (
	mu        sync.RWMutex
	providers = make(map[emailtypes.ProviderType]ProviderFactory)
)

// Register registers a new provider factory for the given provider type
func Register(providerType emailtypes.ProviderType, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	providers[providerType] = factory
}

// New creates a new Provider instance for the given provider type
func New(providerType emailtypes.ProviderType) (Provider, error) {
	mu.RLock()
	factory, exists := providers[providerType]
	mu.RUnlock()
	if !exists {
		debug.Error("unsupported email provider type: %s", providerType)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerType)
	}
	return factory(), nil
}

// NewFromConfig creates, validates and initializes the provider named by cfg.
func NewFromConfig(cfg *emailtypes.Config) (Provider, error) {
	provider, err := New(cfg.ProviderType)
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := provider.Initialize(cfg); err != nil {
		return nil, err
	}
	debug.Info("initialized email provider: %s", cfg.ProviderType)
	return provider, nil
}

func checkMessage(data *emailtypes.EmailData) error {
	if data == nil || len(data.To) == 0 {
		return ErrEmptyMessage
	}
	if data.HTMLContent == "" && data.TextContent == "" {
		return ErrEmptyMessage
	}
	return nil
}

func requireSender(name string, cfg *emailtypes.Config) error {
	if cfg.FromAddress == "" {
		return fmt.Errorf("%s from address is required", name)
	}
	if cfg.FromName == "" {
		return fmt.Errorf("%s from name is required", name)
	}
	return nil
}
