package main

import (
	"log/slog"
	"os"

	"cumulus/internal/config"
	"cumulus/internal/provider"
	"cumulus/internal/service"
	"cumulus/internal/ui/prompt"
	"cumulus/pkg/formatter"
)

// appContainer holds all the shared dependencies for the application
// This includes configuration, service clients, formatters, and the logger
type appContainer struct {
	Config           *config.Config
	ConfigManager    *config.ConfigManager
	ProviderFactory  *provider.Factory
	StorageService   *service.StorageService
	StorageFormatter *formatter.StorageFormatter
	Prompter         prompt.Prompter
	Logger           *slog.Logger
}

// Creates and initializes a new application container
func newApp(logger *slog.Logger) (*appContainer, error) {
	cfgManager, err := config.NewConfigManager()
	if err != nil {
		return nil, err
	}

	cfg, err := cfgManager.LoadConfig()
	if err != nil {
		return nil, err
	}

	providerFactory := provider.NewFactory(cfg, logger)
	storageService := service.NewStorageService(providerFactory, cfg, logger)
	storageFormatter := formatter.NewStorageFormatter()

	return &appContainer{
		Config:           cfg,
		ConfigManager:    cfgManager,
		ProviderFactory:  providerFactory,
		StorageService:   storageService,
		StorageFormatter: storageFormatter,
		Prompter:         prompt.NewStandardPrompter(os.Stdin, os.Stdout),
		Logger:           logger,
	}, nil
}
