package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"cumulus/internal/config"
	"cumulus/pkg/storage"
)

// Factory resolves provider names into ready storage boundaries using the
// registrations the implementation packages contributed at init time.
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// Returns a sorted list of providers that are registered and configured
func (f *Factory) GetConfiguredProviders() []string {
	var configured []string
	for name, registration := range GetAllRegistrations() {
		if registration.ConfigCheck(f.cfg) {
			configured = append(configured, string(name))
		}
	}
	sort.Strings(configured)
	return configured
}

// Checks if a specific provider is registered and configured
func (f *Factory) IsConfigured(providerName string) bool {
	registration, exists := GetRegistration(providerName)
	if !exists {
		return false
	}
	return registration.ConfigCheck(f.cfg)
}

// Initializes and returns the storage boundary for the specified provider
func (f *Factory) GetBoundary(ctx context.Context, providerName string) (storage.Boundary, error) {
	normalizedName := strings.ToLower(providerName)
	providerLogger := f.logger.With("provider", normalizedName)

	registration, exists := GetRegistration(normalizedName)
	if !exists {
		return nil, fmt.Errorf("unsupported provider: %s. Supported providers are: %v", providerName, Supported())
	}

	if !registration.ConfigCheck(f.cfg) {
		return nil, fmt.Errorf("provider '%s' is not configured. Use 'cumulus config set %s.<key> <value>' (e.g., 'gcs.project' or 'local.path')", normalizedName, normalizedName)
	}

	boundary, err := registration.Initializer(ctx, f.cfg, providerLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", normalizedName, err)
	}

	return boundary, nil
}
