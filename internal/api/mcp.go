package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/calbers/twinchat/internal/profile"
	"github.com/calbers/twinchat/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Profile profile.Profile
}

// NewMCPServer exposes the twin over MCP so desktop assistants can review
// captured leads and unanswered questions and read the owner's profile.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"twinchat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("twinchat — conversational stand-in for a personal site; review visitor leads and unanswered questions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_leads",
			mcp.WithDescription("List visitor contacts captured during chats, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListLeads(deps),
	)

	s.AddTool(
		mcp.NewTool("list_questions",
			mcp.WithDescription("List visitor questions the twin could not answer, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListQuestions(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"twin://profile",
			"Owner Profile",
			mcp.WithResourceDescription("The loaded owner profile the twin answers from, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpListLeads(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Store == nil {
			return mcpError("persistence is disabled"), nil
		}

		limit := clampLimit(req.GetInt("limit", 20))
		leads, err := deps.Store.ListLeads(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list leads: %v", err)), nil
		}

		type leadResult struct {
			ID        string `json:"id"`
			Email     string `json:"email"`
			Name      string `json:"name"`
			Notes     string `json:"notes,omitempty"`
			CreatedAt string `json:"created_at"`
		}
		results := make([]leadResult, len(leads))
		for i, l := range leads {
			results[i] = leadResult{
				ID:        l.ID,
				Email:     l.Email,
				Name:      l.Name,
				Notes:     l.Notes,
				CreatedAt: l.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListQuestions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Store == nil {
			return mcpError("persistence is disabled"), nil
		}

		limit := clampLimit(req.GetInt("limit", 20))
		questions, err := deps.Store.ListQuestions(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list questions: %v", err)), nil
		}

		type questionResult struct {
			ID        string `json:"id"`
			Question  string `json:"question"`
			CreatedAt string `json:"created_at"`
		}
		results := make([]questionResult, len(questions))
		for i, q := range questions {
			results[i] = questionResult{
				ID:        q.ID,
				Question:  q.Question,
				CreatedAt: q.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func clampLimit(n int) int {
	if n <= 0 {
		return 20
	}
	if n > 100 {
		return 100
	}
	return n
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
