package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/repolens/repolens/internal/pathfilter"
	"github.com/repolens/repolens/internal/state"
	"github.com/repolens/repolens/internal/tracker"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"git://repositories",
		"Available Repositories",
		mcp.WithResourceDescription("List of discovered git repositories"),
		mcp.WithMIMEType("application/json"),
	), s.readRepositories)

	s.mcpServer.AddResource(mcp.NewResource(
		"git://current",
		"Current Repository Info",
		mcp.WithResourceDescription("Information about the selected repository"),
		mcp.WithMIMEType("application/json"),
	), s.readCurrent)

	s.mcpServer.AddResource(mcp.NewResource(
		"git://status",
		"Git Status",
		mcp.WithResourceDescription("Worktree status of the selected repository"),
		mcp.WithMIMEType("application/json"),
	), s.readStatus)

	s.mcpServer.AddResource(mcp.NewResource(
		"git://summary",
		"Repository Summary",
		mcp.WithResourceDescription("File counts and tracking summary of the selected repository"),
		mcp.WithMIMEType("application/json"),
	), s.readSummary)
}

func (s *Server) readRepositories(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	repos, err := s.registry.Discover()
	if err != nil {
		return nil, err
	}
	current, _ := s.session.Current()
	return jsonContents(req.Params.URI, map[string]any{
		"repositories":       repos,
		"current_repository": current.Name,
		"total_found":        len(repos),
	})
}

func (s *Server) readCurrent(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	repo, ok := s.session.Current()
	if !ok {
		return jsonContents(req.Params.URI, map[string]any{
			"message": "no repository selected; use the set_repository tool",
		})
	}
	filter := pathfilter.New(repo.Path)
	return jsonContents(req.Params.URI, map[string]any{
		"current_repository": repo.Name,
		"repository_path":    repo.Path,
		"ignore_patterns":    filter.PatternCount(),
	})
}

func (s *Server) readStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	repo, ok := s.session.Current()
	if !ok {
		return nil, fmt.Errorf("no repository selected")
	}
	status, err := s.git.Status(ctx, repo.Path)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, status)
}

func (s *Server) readSummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	repo, ok := s.session.Current()
	if !ok {
		return nil, fmt.Errorf("no repository selected")
	}

	filter := pathfilter.New(repo.Path)
	files, err := tracker.WalkFiles(repo.Path, filter)
	if err != nil {
		return nil, err
	}

	byExtension := make(map[string]int)
	for _, f := range files {
		ext := filepath.Ext(f)
		if ext == "" {
			ext = "no extension"
		}
		byExtension[ext]++
	}

	tracked, err := s.states.List(state.RepoScope(repo.Name, repo.Path))
	if err != nil {
		return nil, err
	}
	workspaces, err := s.workspaces.List(repo)
	if err != nil {
		return nil, err
	}

	summary := map[string]any{
		"repository_name":  repo.Name,
		"repository_path":  repo.Path,
		"file_count":       len(files),
		"tracked_in_state": len(tracked),
		"file_types":       byExtension,
		"workspaces_count": len(workspaces),
		"ignore_patterns":  filter.PatternCount(),
	}

	// Git context is a bonus; absence should not fail the summary.
	if status, err := s.git.Status(ctx, repo.Path); err == nil {
		summary["branch"] = status.Branch
		summary["is_dirty"] = status.IsDirty
	}

	return jsonContents(req.Params.URI, summary)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
