// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values for azpm.
type Config struct {
	Organization string `mapstructure:"organization" yaml:"organization"`
	Project      string `mapstructure:"project" yaml:"project"`
	PAT          string `mapstructure:"pat" yaml:"pat"`
	APIVersion   string `mapstructure:"api_version" yaml:"api_version"`
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFile      string `mapstructure:"log_file" yaml:"log_file"`
}

// Load loads configuration with full precedence:
// ENV vars > project config > XDG global config > defaults.
//
// A .env file in the working directory is loaded first, so the standard
// AZURE_DEVOPS_* variables work the same way they do for the hosted tooling.
func Load() (*Config, error) {
	// Missing .env files are fine; real values come from the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("azpm")

	v.SetDefault("api_version", "7.1")
	v.SetDefault("output_dir", "data")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("AZPM")
	v.AutomaticEnv()

	// Each key also binds the AZURE_DEVOPS_* names used by the service's own
	// tooling, so existing environments carry over unchanged.
	bindings := map[string][]string{
		"organization": {"AZPM_ORGANIZATION", "AZURE_DEVOPS_ORG_NAME"},
		"project":      {"AZPM_PROJECT", "AZURE_DEVOPS_PROJECT_NAME"},
		"pat":          {"AZPM_PAT", "AZURE_DEVOPS_PERSONAL_ACCESS_TOKEN"},
		"api_version":  {"AZPM_API_VERSION", "AZURE_DEVOPS_API_VERSION"},
		"output_dir":   {"AZPM_OUTPUT_DIR"},
		"log_level":    {"AZPM_LOG_LEVEL"},
		"log_file":     {"AZPM_LOG_FILE"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	// Load global config first (if exists)
	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	// Merge project config on top (if exists)
	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the fields required to reach Azure DevOps are set.
func (c *Config) Validate() error {
	if c.Organization == "" {
		return fmt.Errorf("organization is not configured (set AZURE_DEVOPS_ORG_NAME or add it to azpm.yml)")
	}
	if c.Project == "" {
		return fmt.Errorf("project is not configured (set AZURE_DEVOPS_PROJECT_NAME or add it to azpm.yml)")
	}
	if c.PAT == "" {
		return fmt.Errorf("personal access token is not configured (set AZURE_DEVOPS_PERSONAL_ACCESS_TOKEN)")
	}
	return nil
}

// GlobalPath returns the XDG global config path:
// $XDG_CONFIG_HOME/azpm/azpm.yml or ~/.config/azpm/azpm.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "azpm", "azpm.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "azpm", "azpm.yml")
}

// ProjectPath returns the project-local config path in the working directory.
func ProjectPath() string {
	return "azpm.yml"
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
