package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/juskvi/internal/synthesis"
)

const noMemories = "No related verdicts in memory."

// NewMCPServer creates an MCP server exposing synthesis and memory recall as tools.
func NewMCPServer(s Synthesizer, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"juskvi",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("juskvi weighs a question from an optimistic and a critical viewpoint and returns a judged verdict."),
		server.WithRecovery(),
	)

	srv.AddTool(
		mcp.NewTool("synthesize",
			mcp.WithDescription("Ask the Visionary and the Skeptic about a prompt and return both views plus the Judge's final synthesis as JSON."),
			mcp.WithString("prompt", mcp.Description("The question or decision to weigh"), mcp.Required()),
			mcp.WithString("image", mcp.Description("Optional attachment as a data URL (data:<mime>;base64,<payload>)")),
		),
		mcpSynthesize(s),
	)

	srv.AddTool(
		mcp.NewTool("recall_memory",
			mcp.WithDescription("Return past verdicts similar to a query."),
			mcp.WithString("query", mcp.Description("Text to match against past prompts"), mcp.Required()),
		),
		mcpRecallMemory(s),
	)

	return srv
}

func mcpSynthesize(s Synthesizer) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}

		res := s.Synthesize(ctx, synthesis.Request{
			Prompt: prompt,
			Image:  req.GetString("image", ""),
		})

		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecallMemory(s Synthesizer) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		digest := s.Recall(ctx, query)
		if digest == "" {
			return mcpText(noMemories), nil
		}
		return mcpText(digest), nil
	}
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
