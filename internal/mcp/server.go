// Package mcp adapts the tracking engine, workspace store, and git
// queries to Model Context Protocol tools and resources.
package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/repolens/repolens/internal/config"
	"github.com/repolens/repolens/internal/gitops"
	"github.com/repolens/repolens/internal/repository"
	"github.com/repolens/repolens/internal/state"
	"github.com/repolens/repolens/internal/tracker"
	"github.com/repolens/repolens/internal/versions"
	"github.com/repolens/repolens/internal/workspace"
)

// Server wires the domain components to an MCP server instance.
type Server struct {
	cfg        *config.Config
	registry   repository.Registry
	session    *repository.Session
	states     state.Store
	workspaces workspace.Store
	engine     *tracker.Engine
	git        gitops.Client

	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers all tools and
// resources.
func NewServer(
	cfg *config.Config,
	registry repository.Registry,
	session *repository.Session,
	states state.Store,
	workspaces workspace.Store,
	engine *tracker.Engine,
	git gitops.Client,
) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   registry,
		session:    session,
		states:     states,
		workspaces: workspaces,
		engine:     engine,
		git:        git,
	}

	s.mcpServer = server.NewMCPServer(
		"repolens",
		versions.GetVersionInfo().Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)

	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio runs the server over stdin/stdout until the client
// disconnects. Logging goes to stderr to keep the channel clean.
func (s *Server) ServeStdio() error {
	slog.Info("Serving MCP over stdio", "session", s.session.ID)
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP runs the server as a streamable HTTP endpoint.
func (s *Server) ServeHTTP(address string) error {
	slog.Info("Serving MCP over HTTP", "address", address, "session", s.session.ID)
	return server.NewStreamableHTTPServer(s.mcpServer).Start(address)
}

// currentRepo resolves the session's selection, or returns a tool error
// telling the caller to select one first.
func (s *Server) currentRepo() (repository.Repository, *mcp.CallToolResult) {
	repo, ok := s.session.Current()
	if !ok {
		return repository.Repository{}, mcp.NewToolResultError(
			"no repository selected; use the set_repository tool first")
	}
	return repo, nil
}

// jsonResult marshals v as an indented JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError shapes a domain error as a tool-level failure. Nothing the
// engine returns is fatal to the process.
func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
