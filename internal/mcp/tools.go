package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/repolens/repolens/internal/pathfilter"
	"github.com/repolens/repolens/internal/repository"
	"github.com/repolens/repolens/internal/state"
	"github.com/repolens/repolens/internal/tracker"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_repositories",
		mcp.WithDescription("List all git repositories discovered under the base directory"),
	), s.handleListRepositories)

	s.mcpServer.AddTool(mcp.NewTool("set_repository",
		mcp.WithDescription("Set the active git repository for this session"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Repository name")),
	), s.handleSetRepository)

	s.mcpServer.AddTool(mcp.NewTool("create_workspace",
		mcp.WithDescription("Create a curated workspace with specific files; replaces an existing workspace of the same name"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workspace name")),
		mcp.WithArray("paths", mcp.Required(),
			mcp.Description("Repository-relative file paths"),
			mcp.Items(map[string]any{"type": "string"})),
	), s.handleCreateWorkspace)

	s.mcpServer.AddTool(mcp.NewTool("load_workspace",
		mcp.WithDescription("Load a workspace with the given update mode (default smart)"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workspace name")),
		mcp.WithString("update_mode", mcp.Description("smart, diffs_only, full_content, or changed_files_only")),
	), s.handleLoadWorkspace)

	s.mcpServer.AddTool(mcp.NewTool("update_workspace",
		mcp.WithDescription("Refresh a workspace with current file states (default mode diffs_only)"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workspace name")),
		mcp.WithString("update_mode", mcp.Description("smart, diffs_only, full_content, or changed_files_only")),
	), s.handleUpdateWorkspace)

	s.mcpServer.AddTool(mcp.NewTool("list_workspaces",
		mcp.WithDescription("List workspaces of the current repository"),
	), s.handleListWorkspaces)

	s.mcpServer.AddTool(mcp.NewTool("delete_workspace",
		mcp.WithDescription("Delete a workspace and its tracking state"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workspace name")),
	), s.handleDeleteWorkspace)

	s.mcpServer.AddTool(mcp.NewTool("get_files",
		mcp.WithDescription("Get specific files with update mode control"),
		mcp.WithArray("paths", mcp.Required(),
			mcp.Description("Repository-relative file paths"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("update_mode", mcp.Description("smart, diffs_only, full_content, or changed_files_only")),
	), s.handleGetFiles)

	s.mcpServer.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Search for non-ignored files by glob pattern or substring"),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Glob pattern or substring")),
	), s.handleSearchFiles)

	s.mcpServer.AddTool(mcp.NewTool("reset_state",
		mcp.WithDescription("Reset tracking state for a workspace, or all of the current repository's scopes"),
		mcp.WithString("workspace", mcp.Description("Workspace name; omit to reset every scope of the repository")),
	), s.handleResetState)

	s.mcpServer.AddTool(mcp.NewTool("load_git_context",
		mcp.WithDescription("Discover and track the repository's non-ignored files, with git status (use sparingly)"),
		mcp.WithNumber("max_files", mcp.Description("Maximum files to include (default 50)")),
		mcp.WithString("update_mode", mcp.Description("smart, diffs_only, full_content, or changed_files_only")),
	), s.handleGitContext)

	s.mcpServer.AddTool(mcp.NewTool("get_commit_history",
		mcp.WithDescription("Get recent commit history"),
		mcp.WithNumber("limit", mcp.Description("Maximum commits to return (default 10)")),
	), s.handleCommitHistory)

	s.mcpServer.AddTool(mcp.NewTool("get_file_history",
		mcp.WithDescription("Get commit history for one file"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Repository-relative file path")),
		mcp.WithNumber("limit", mcp.Description("Maximum commits to return (default 10)")),
	), s.handleFileHistory)

	s.mcpServer.AddTool(mcp.NewTool("get_branches",
		mcp.WithDescription("List local branches"),
	), s.handleBranches)

	s.mcpServer.AddTool(mcp.NewTool("get_tags",
		mcp.WithDescription("List tags"),
	), s.handleTags)

	s.mcpServer.AddTool(mcp.NewTool("get_remote_info",
		mcp.WithDescription("List configured remotes"),
	), s.handleRemotes)

	s.mcpServer.AddTool(mcp.NewTool("get_commit_diff",
		mcp.WithDescription("Render the patch between two revisions, optionally for one path"),
		mcp.WithString("from", mcp.Required(), mcp.Description("Base revision")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target revision")),
		mcp.WithString("path", mcp.Description("Restrict the patch to this path")),
	), s.handleCommitDiff)
}

func (s *Server) handleListRepositories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := s.registry.Discover()
	if err != nil {
		return toolError(err)
	}
	current, _ := s.session.Current()
	return jsonResult(map[string]any{
		"repositories":       repos,
		"current_repository": current.Name,
		"total_found":        len(repos),
	})
}

func (s *Server) handleSetRepository(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return toolError(err)
	}
	repo, err := s.registry.Get(name)
	if err != nil {
		return toolError(err)
	}
	s.session.SetCurrent(repo)
	filter := pathfilter.New(repo.Path)
	return jsonResult(map[string]any{
		"repository":      repo.Name,
		"path":            repo.Path,
		"ignore_patterns": filter.PatternCount(),
	})
}

func (s *Server) handleCreateWorkspace(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return toolError(err)
	}
	paths := req.GetStringSlice("paths", nil)

	valid, invalid := validatePaths(repo, paths)
	if len(valid) == 0 {
		return jsonResult(map[string]any{
			"error":         "no valid files provided",
			"invalid_files": invalid,
		})
	}

	ws, err := s.workspaces.Create(repo, name, valid)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"workspace_name": ws.Name,
		"file_count":     len(ws.Files),
		"invalid_files":  invalid,
	})
}

func (s *Server) handleLoadWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.refreshWorkspace(ctx, req, tracker.ModeSmart)
}

func (s *Server) handleUpdateWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.refreshWorkspace(ctx, req, tracker.ModeDiffsOnly)
}

// refreshWorkspace tracks a workspace's members against its own scope.
// Load and update differ only in their default mode.
func (s *Server) refreshWorkspace(ctx context.Context, req mcp.CallToolRequest, fallback tracker.UpdateMode) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return toolError(err)
	}
	mode, err := tracker.ParseMode(req.GetString("update_mode", ""), fallback)
	if err != nil {
		return toolError(err)
	}

	ws, err := s.workspaces.Get(repo, name)
	if err != nil {
		return toolError(err)
	}

	scope := state.WorkspaceScope(repo.Name, repo.Path, ws.Name)
	outputs, err := s.engine.Track(ctx, repo.Path, scope, ws.Files, mode)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"workspace_name": ws.Name,
		"update_mode":    string(mode),
		"files":          outputs,
	})
}

func (s *Server) handleListWorkspaces(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	list, err := s.workspaces.List(repo)
	if err != nil {
		return toolError(err)
	}
	summaries := make([]map[string]any, 0, len(list))
	for _, ws := range list {
		summaries = append(summaries, map[string]any{
			"name":       ws.Name,
			"file_count": len(ws.Files),
			"created_at": ws.CreatedAt,
		})
	}
	return jsonResult(map[string]any{
		"workspaces": summaries,
		"total":      len(summaries),
	})
}

func (s *Server) handleDeleteWorkspace(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return toolError(err)
	}
	if err := s.workspaces.Delete(repo, name); err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"deleted": name})
}

func (s *Server) handleGetFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	paths := req.GetStringSlice("paths", nil)
	if len(paths) == 0 {
		return mcp.NewToolResultError("paths must not be empty"), nil
	}
	mode, err := tracker.ParseMode(req.GetString("update_mode", ""), tracker.ModeSmart)
	if err != nil {
		return toolError(err)
	}

	scope := state.RepoScope(repo.Name, repo.Path)
	outputs, err := s.engine.Track(ctx, repo.Path, scope, paths, mode)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"update_mode": string(mode),
		"files":       outputs,
	})
}

func (s *Server) handleSearchFiles(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return toolError(err)
	}
	filter := pathfilter.New(repo.Path)
	matches, err := tracker.Search(repo.Path, filter, pattern, s.cfg.SearchLimit)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"pattern": pattern,
		"matches": matches,
		"total":   len(matches),
	})
}

func (s *Server) handleResetState(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}

	if name := req.GetString("workspace", ""); name != "" {
		if _, err := s.workspaces.Get(repo, name); err != nil {
			return toolError(err)
		}
		if err := s.states.ResetScope(state.WorkspaceScope(repo.Name, repo.Path, name)); err != nil {
			return toolError(err)
		}
		return jsonResult(map[string]any{"reset": name})
	}

	// Unscoped reset clears the repository ledger and every workspace
	// ledger.
	if err := s.states.ResetScope(state.RepoScope(repo.Name, repo.Path)); err != nil {
		return toolError(err)
	}
	list, err := s.workspaces.List(repo)
	if err != nil {
		return toolError(err)
	}
	for _, ws := range list {
		if err := s.states.ResetScope(state.WorkspaceScope(repo.Name, repo.Path, ws.Name)); err != nil {
			return toolError(err)
		}
	}
	return jsonResult(map[string]any{"reset": "all", "workspaces_reset": len(list)})
}

// defaultGitContextFiles caps load_git_context's discovered file set
// when the caller does not ask for more.
const defaultGitContextFiles = 50

// handleGitContext runs the discovery-driven tracking pass: every
// non-ignored file in the repository, capped, classified against the
// repository scope, with the worktree status alongside.
func (s *Server) handleGitContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	mode, err := tracker.ParseMode(req.GetString("update_mode", ""), tracker.ModeSmart)
	if err != nil {
		return toolError(err)
	}
	maxFiles := req.GetInt("max_files", defaultGitContextFiles)

	scope := state.RepoScope(repo.Name, repo.Path)
	filter := pathfilter.New(repo.Path)
	outputs, discovered, err := s.engine.TrackDiscovered(ctx, repo.Path, scope, filter, maxFiles, mode)
	if err != nil {
		return toolError(err)
	}

	result := map[string]any{
		"update_mode":      string(mode),
		"files":            outputs,
		"files_discovered": discovered,
	}
	// The worktree status rides along; a broken .git directory should
	// not fail the tracking pass.
	if status, err := s.git.Status(ctx, repo.Path); err == nil {
		result["git_status"] = status
	}
	return jsonResult(result)
}

func (s *Server) handleCommitHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	limit := req.GetInt("limit", 10)
	commits, err := s.git.Log(ctx, repo.Path, limit)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"commits": commits})
}

func (s *Server) handleFileHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return toolError(err)
	}
	limit := req.GetInt("limit", 10)
	commits, err := s.git.FileHistory(ctx, repo.Path, path, limit)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"path": path, "commits": commits})
}

func (s *Server) handleBranches(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	branches, err := s.git.Branches(ctx, repo.Path)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"branches": branches})
}

func (s *Server) handleTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	tags, err := s.git.Tags(ctx, repo.Path)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"tags": tags})
}

func (s *Server) handleRemotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	remotes, err := s.git.Remotes(ctx, repo.Path)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{"remotes": remotes})
}

func (s *Server) handleCommitDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, errResult := s.currentRepo()
	if errResult != nil {
		return errResult, nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return toolError(err)
	}
	to, err := req.RequireString("to")
	if err != nil {
		return toolError(err)
	}
	patch, err := s.git.CommitDiff(ctx, repo.Path, from, to, req.GetString("path", ""))
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(patch), nil
}

// validatePaths splits requested paths into workspace-eligible members
// and rejected ones with reasons.
func validatePaths(repo repository.Repository, paths []string) (valid []string, invalid []map[string]string) {
	filter := pathfilter.New(repo.Path)
	for _, p := range paths {
		rel := filepath.ToSlash(filepath.Clean(p))
		if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
			invalid = append(invalid, map[string]string{"file": rel, "reason": "outside the repository"})
			continue
		}
		full := filepath.Join(repo.Path, rel)
		info, err := os.Stat(full)
		switch {
		case err != nil || info.IsDir():
			invalid = append(invalid, map[string]string{"file": rel, "reason": "file not found"})
		case filter.IsIgnored(rel):
			invalid = append(invalid, map[string]string{"file": rel, "reason": "file is ignored"})
		default:
			valid = append(valid, rel)
		}
	}
	return valid, invalid
}
