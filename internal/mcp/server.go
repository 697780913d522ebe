package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/nick-dorsch/tasklist/internal/tasklist"
	"github.com/nick-dorsch/tasklist/pkg/models"
)

// Controller is the task list surface exposed as MCP tools.
type Controller interface {
	AddTask(ctx context.Context, description string) tasklist.Result
	ToggleCompletion(ctx context.Context, id string) tasklist.Result
	Tasks(ctx context.Context) ([]*models.Task, error)
}

// NewServer creates a new MCP server.
func NewServer(ctrl Controller) *server.MCPServer {
	s := server.NewMCPServer("Tasklist", "0.1.0")

	s.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Add a new incomplete task to the to-do list."),
		mcp.WithString("description", mcp.Description("Task description (must not be blank)"), mcp.Required()),
	), addTaskHandler(ctrl))

	s.AddTool(mcp.NewTool("toggle_task",
		mcp.WithDescription("Flip the completion state of a task."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), toggleTaskHandler(ctrl))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks, sorted by description."),
	), listTasksHandler(ctrl))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func addTaskHandler(ctrl Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description := mcp.ParseString(request, "description", "")

		res := ctrl.AddTask(ctx, description)
		if !res.OK() {
			return mcp.NewToolResultError(fmt.Sprintf("Task not added: %v", res.Err)), nil
		}
		return taskResult(res.Task)
	}
}

func toggleTaskHandler(ctrl Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		res := ctrl.ToggleCompletion(ctx, id)
		switch res.Outcome {
		case tasklist.OutcomeToggled:
			return taskResult(res.Task)
		case tasklist.OutcomeNotFound:
			return mcp.NewToolResultError(fmt.Sprintf("Task with id '%s' not found", id)), nil
		default:
			return mcp.NewToolResultError(res.Err.Error()), nil
		}
	}
}

func listTasksHandler(ctrl Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tasks, err := ctrl.Tasks(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func taskResult(t *models.Task) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
