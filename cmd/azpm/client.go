package main

import (
	"fmt"

	"github.com/pegodk/azpm/internal/azure"
	"github.com/pegodk/azpm/internal/config"
	"github.com/pegodk/azpm/internal/logger"
)

// loadConfig loads configuration and applies the logging settings it carries.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.LogLevel != "" {
		if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
			logger.Default.SetLevel(level)
		}
	}
	return cfg, nil
}

// connectClient builds an Azure DevOps client from validated configuration.
func connectClient() (*azure.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return azure.NewClient(cfg.Organization, cfg.Project, cfg.PAT, cfg.APIVersion), cfg, nil
}
