package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"cumulus/internal/config"
	"cumulus/pkg/common"
	"cumulus/pkg/storage"
)

// ConfigCheck reports whether the configuration carries enough for a
// boundary to start
type ConfigCheck func(cfg *config.Config) bool

// Initializer creates a ready storage boundary from the configuration
type Initializer func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Boundary, error)

// Registration holds the functions a boundary package contributes when it
// registers itself
type Registration struct {
	ConfigCheck ConfigCheck
	Initializer Initializer
}

var (
	// Stores the registrations, keyed by provider name
	registry   = make(map[common.Provider]Registration)
	registryMu sync.RWMutex
)

// Register allows a boundary implementation package to register itself
// during initialization (init())
func Register(name common.Provider, registration Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("provider %s already registered", name))
	}

	if registration.ConfigCheck == nil {
		panic(fmt.Sprintf("provider %s registration missing ConfigCheck", name))
	}
	if registration.Initializer == nil {
		panic(fmt.Sprintf("provider %s registration missing Initializer", name))
	}

	registry[name] = registration
}

// Supported returns a sorted list of all registered provider names
func Supported() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, string(name))
	}
	sort.Strings(providers)
	return providers
}

// IsSupported checks if a provider name has been registered
func IsSupported(providerName string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	_, exists := registry[common.Provider(strings.ToLower(providerName))]
	return exists
}

// GetRegistration retrieves the registration details for a provider
func GetRegistration(providerName string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	registration, exists := registry[common.Provider(strings.ToLower(providerName))]
	return registration, exists
}

// GetAllRegistrations returns a copy of the entire registry map
func GetAllRegistrations() map[common.Provider]Registration {
	registryMu.RLock()
	defer registryMu.RUnlock()

	registrations := make(map[common.Provider]Registration, len(registry))
	for k, v := range registry {
		registrations[k] = v
	}
	return registrations
}
