package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/nick-dorsch/tasklist/internal/db"
	"github.com/nick-dorsch/tasklist/internal/tasklist"
	"github.com/nick-dorsch/tasklist/pkg/models"
)

func TestServerInitialization(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.Init(context.Background()); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	s := NewServer(tasklist.NewController(database, nil))
	stdio := server.NewStdioServer(s)

	r, w := io.Pipe()
	outR, outW := io.Pipe()
	defer outR.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- stdio.Listen(ctx, r, outW)
	}()

	// Send initialize request
	initReq := mcp.InitializeRequest{}
	initReq.Method = "initialize"
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}

	// Use a map for the raw JSON-RPC message because mcp.InitializeRequest
	// doesn't have the "jsonrpc" and "id" fields in the way we want for manual writing.
	rawReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	}

	data, err := json.Marshal(rawReq)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	lines := make(chan []byte, 1)
	go func() {
		scanner := bufio.NewScanner(outR)
		if scanner.Scan() {
			lines <- append([]byte(nil), scanner.Bytes()...)
		}
		close(lines)
	}()

	var line []byte
	select {
	case l, ok := <-lines:
		if !ok {
			t.Fatal("Expected response from server, got none")
		}
		line = l
	case <-ctx.Done():
		t.Fatal("Timed out waiting for initialize response")
	}

	var resp struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Result  struct {
			ProtocolVersion string `json:"protocolVersion"`
			ServerInfo      struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}

	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, line)
	}

	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}

	if resp.Result.ServerInfo.Name != "Tasklist" {
		t.Errorf("Expected server name Tasklist, got %v", resp.Result.ServerInfo.Name)
	}
}

func newTestServer(t *testing.T) (*server.MCPServer, *db.DB) {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Init(context.Background()); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	return NewServer(tasklist.NewController(database, nil)), database
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()

	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected content in tool result")
	}
	return result.Content[0].(mcp.TextContent).Text
}

func TestToolHandlers(t *testing.T) {
	s, database := newTestServer(t)
	ctx := context.Background()

	var added models.Task

	t.Run("add_task", func(t *testing.T) {
		result := callTool(t, s, "add_task", map[string]interface{}{
			"description": "  Buy milk  ",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		if err := json.Unmarshal([]byte(resultText(t, result)), &added); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if added.ID == "" || added.Description != "Buy milk" || added.Completed {
			t.Errorf("Unexpected task: %+v", added)
		}

		stored, err := database.GetTask(ctx, added.ID)
		if err != nil {
			t.Fatalf("Failed to get task: %v", err)
		}
		if stored == nil {
			t.Fatal("Task not found in DB")
		}
	})

	t.Run("add_task rejects blank", func(t *testing.T) {
		result := callTool(t, s, "add_task", map[string]interface{}{
			"description": "   ",
		})
		if !result.IsError {
			t.Fatal("Expected error for blank description")
		}

		total, _, err := database.CountTasks(ctx)
		if err != nil {
			t.Fatalf("CountTasks failed: %v", err)
		}
		if total != 1 {
			t.Errorf("Expected 1 task, got %d", total)
		}
	})

	t.Run("toggle_task", func(t *testing.T) {
		result := callTool(t, s, "toggle_task", map[string]interface{}{"id": added.ID})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		var toggled models.Task
		if err := json.Unmarshal([]byte(resultText(t, result)), &toggled); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if !toggled.Completed {
			t.Error("Expected task to be completed")
		}
	})

	t.Run("toggle_task unknown id", func(t *testing.T) {
		result := callTool(t, s, "toggle_task", map[string]interface{}{"id": "missing"})
		if !result.IsError {
			t.Fatal("Expected error for unknown id")
		}
		if text := resultText(t, result); text != "Task with id 'missing' not found" {
			t.Errorf("Unexpected error text: %s", text)
		}
	})

	t.Run("list_tasks", func(t *testing.T) {
		callTool(t, s, "add_task", map[string]interface{}{"description": "A-task"})

		result := callTool(t, s, "list_tasks", map[string]interface{}{})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", result.Content[0])
		}

		var resp struct {
			Tasks []models.Task `json:"tasks"`
		}
		if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if len(resp.Tasks) != 2 {
			t.Fatalf("Expected 2 tasks, got %d", len(resp.Tasks))
		}
		if resp.Tasks[0].Description != "A-task" || resp.Tasks[1].Description != "Buy milk" {
			t.Errorf("Expected tasks sorted by description, got %s, %s",
				resp.Tasks[0].Description, resp.Tasks[1].Description)
		}
		if !resp.Tasks[1].Completed {
			t.Error("Expected Buy milk to be completed")
		}
	})
}

func TestListTasksEmpty(t *testing.T) {
	s, _ := newTestServer(t)

	result := callTool(t, s, "list_tasks", nil)
	if result.IsError {
		t.Fatalf("Tool returned error: %v", result.Content[0])
	}
	if text := resultText(t, result); text != `{"tasks":[]}` {
		t.Errorf("Expected empty task array, got %s", text)
	}
}
