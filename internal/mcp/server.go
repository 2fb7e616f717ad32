package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/issuetracker/internal/issues"
	"github.com/joescharf/issuetracker/internal/models"
)

// Server exposes the issue service as MCP tools.
type Server struct {
	svc     *issues.Service
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *issues.Service, version string) *Server {
	return &Server{svc: svc, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("issuetracker", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.deleteIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// issueFieldOptions declares the optional string parameters shared by the
// create, list and update tools.
func issueFieldOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString(models.FieldTitle, mcp.Description("Issue title")),
		mcp.WithString(models.FieldText, mcp.Description("Issue text")),
		mcp.WithString(models.FieldCreatedBy, mcp.Description("Who reported the issue")),
		mcp.WithString(models.FieldAssignedTo, mcp.Description("Who the issue is assigned to")),
		mcp.WithString(models.FieldStatusText, mcp.Description("Free-form status")),
	}
}

func projectOption() mcp.ToolOption {
	return mcp.WithString("project", mcp.Required(), mcp.Description("Project name"))
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// issue_create
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Create an open issue in a project. issue_title, issue_text and created_by are required. Returns the stored issue as JSON."),
		projectOption(),
	}
	tool := mcp.NewTool("issue_create", append(opts, issueFieldOptions()...)...)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	issue, err := s.svc.Create(ctx, project, issues.CreateInputFromFields(request.GetArguments()))
	if err != nil {
		return mcp.NewToolResultError(issues.Reason(err)), nil
	}
	return textResult(issue)
}

// issue_list
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List a project's issues in creation order. Every other parameter is an exact-match filter."),
		projectOption(),
		mcp.WithString(models.FieldID, mcp.Description("Issue id")),
		mcp.WithString(models.FieldOpen, mcp.Description("true or false")),
		mcp.WithString(models.FieldCreatedOn, mcp.Description("Creation timestamp (RFC 3339)")),
		mcp.WithString(models.FieldUpdatedOn, mcp.Description("Last update timestamp (RFC 3339)")),
	}
	tool := mcp.NewTool("issue_list", append(opts, issueFieldOptions()...)...)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	values := map[string]string{}
	for key, v := range request.GetArguments() {
		if key == "project" || v == nil {
			continue
		}
		values[key] = fmt.Sprint(v)
	}

	found, err := s.svc.List(ctx, project, issues.NewFilter(values))
	if err != nil {
		return mcp.NewToolResultError(issues.Reason(err)), nil
	}
	return textResult(found)
}

// issue_update
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Update fields of an issue. Only the fields passed are changed; updated_on is refreshed."),
		projectOption(),
		mcp.WithString(models.FieldID, mcp.Required(), mcp.Description("Issue id")),
		mcp.WithBoolean(models.FieldOpen, mcp.Description("Set to false to close the issue")),
	}
	tool := mcp.NewTool("issue_update", append(opts, issueFieldOptions()...)...)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	args := request.GetArguments()
	id := issues.IDFromFields(args)
	res, err := s.svc.Update(ctx, project, id, issues.PatchFromFields(args, false))
	if err != nil {
		return mcp.NewToolResultError(issues.Reason(err)), nil
	}
	return textResult(res)
}

// issue_delete
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issue_delete",
		mcp.WithDescription("Permanently delete an issue from a project."),
		projectOption(),
		mcp.WithString(models.FieldID, mcp.Required(), mcp.Description("Issue id")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	res, err := s.svc.Delete(ctx, project, request.GetString(models.FieldID, ""))
	if err != nil {
		return mcp.NewToolResultError(issues.Reason(err)), nil
	}
	return textResult(res)
}
