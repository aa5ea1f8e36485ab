package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/pegodk/azpm/internal/logger"
	"github.com/spf13/cobra"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "azpm",
	Short: "Azure DevOps project manager with YAML templating and an MCP server",
	Long: `azpm manages an Azure DevOps backlog as a hierarchy of epics, features,
user stories, and tasks.

It generates concrete project plans from parameterized YAML templates,
uploads them as work items (skipping any that already exist), renders the
live backlog as a tree, and exposes the whole surface as MCP tools for
AI assistants over stdio or HTTP.`,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(serveCmd)
}
