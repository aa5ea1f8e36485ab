// Package mcpserver exposes backlog management as MCP tools so any
// MCP-compatible client (VS Code Copilot, Claude Desktop, etc.) can manage
// an Azure DevOps project conversationally.
package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/pegodk/azpm/internal/azure"
	"github.com/pegodk/azpm/internal/hierarchy"
	"github.com/pegodk/azpm/internal/logger"
	"github.com/pegodk/azpm/internal/uploader"
)

// Store is the full work-item store surface the tool handlers need.
// *azure.Client satisfies it; tests substitute fakes.
type Store interface {
	hierarchy.Store
	uploader.Store

	GetWorkItem(ctx context.Context, id int) (*azure.RawWorkItem, error)
	UpdateWorkItem(ctx context.Context, id int, data map[string]any) (*azure.RawWorkItem, error)
	DeleteWorkItem(ctx context.Context, id int) error
	GetIterations(ctx context.Context) ([]azure.Iteration, error)
	CreateIteration(ctx context.Context, name, startDate, finishDate string) (*azure.Iteration, error)
	UpdateIteration(ctx context.Context, currentName, newName, startDate, finishDate string) (*azure.Iteration, error)
	SubscribeIteration(ctx context.Context, identifier string) (string, error)
	ValidateConnection(ctx context.Context) (bool, string)
}

// Server wraps an MCP server exposing the backlog tools over stdio or
// streamable HTTP.
type Server struct {
	store     Store
	outputDir string

	mcpServer *server.MCPServer
	stdServer *http.Server
	port      int
	mu        sync.Mutex
}

// New creates a server for the given store. Generated and exported YAML
// files land in outputDir.
func New(store Store, outputDir string) *Server {
	s := &Server{
		store:     store,
		outputDir: outputDir,
	}
	s.mcpServer = server.NewMCPServer(
		"azpm",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// ServeStdio serves the MCP protocol over stdin/stdout. Blocks until the
// client disconnects.
func (s *Server) ServeStdio() error {
	logger.Info("Serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}

// StartHTTP starts the streamable-HTTP transport on the given local port.
// Pass port 0 to pick a free one. Returns the bound port.
func (s *Server) StartHTTP(port int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, fmt.Errorf("server already started")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return 0, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithStateLess(true),
	))
	s.stdServer = &http.Server{Handler: mux}

	logger.Info("Serving MCP over HTTP on port %d", s.port)
	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP server error: %v", err)
		}
	}()
	return s.port, nil
}

// Stop shuts down the HTTP transport if it is running.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil
	}
	logger.Debug("Stopping MCP server")
	if err := s.stdServer.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	s.stdServer = nil
	return nil
}

// URL returns the HTTP endpoint once StartHTTP has run.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}
