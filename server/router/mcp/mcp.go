// Package mcp exposes the public feed to MCP clients over streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v5"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/tmc/langchaingo/tools"

	"github.com/murmurchat/murmur/plugin/vectorstore"
	"github.com/murmurchat/murmur/store"
)

const toolErrorPrefix = "Error: "

type MCPService struct {
	server *mcpserver.MCPServer
	http   *mcpserver.StreamableHTTPServer
}

// NewMCPService registers the feed tools. search_entries is only offered when
// vs is not nil.
func NewMCPService(version string, store *store.Store, source EntrySource, vs *vectorstore.Store) *MCPService {
	s := mcpserver.NewMCPServer("murmur", version, mcpserver.WithToolCapabilities(false))

	s.AddTool(mcpgo.NewTool("list_threads",
		mcpgo.WithDescription("List the most recently active conversation threads of the public feed."),
		mcpgo.WithNumber("limit", mcpgo.Description("Maximum number of threads, 10 by default")),
		mcpgo.WithString("filter", mcpgo.Description(`CEL expression over username, thread_id, message, response and created_ts, e.g. username == "alice"`)),
	), toolHandler(newListThreadsTool(source)))

	s.AddTool(mcpgo.NewTool("get_thread",
		mcpgo.WithDescription("Read every exchange of one conversation thread in order."),
		mcpgo.WithString("thread_id", mcpgo.Required(), mcpgo.Description("Thread ID")),
	), toolHandler(newGetThreadTool(store)))

	if vs != nil {
		s.AddTool(mcpgo.NewTool("search_entries",
			mcpgo.WithDescription("Search past exchanges semantically."),
			mcpgo.WithString("query", mcpgo.Required(), mcpgo.Description("The search query")),
			mcpgo.WithNumber("limit", mcpgo.Description("Maximum number of results, 5 by default")),
		), toolHandler(newSearchEntriesTool(vs)))
	}

	return &MCPService{
		server: s,
		http:   mcpserver.NewStreamableHTTPServer(s, mcpserver.WithStateLess(true)),
	}
}

func (s *MCPService) RegisterRoutes(e *echo.Echo) {
	e.Any("/mcp", echo.WrapHandler(s.http))
}

// toolHandler serves a tool whose input is the JSON encoding of the call arguments.
func toolHandler(tool tools.Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		input, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcpgo.NewToolResultError("invalid arguments"), nil
		}
		output, err := tool.Call(ctx, string(input))
		if err != nil {
			slog.Error("mcp tool failed", slog.String("tool", tool.Name()), slog.Any("err", err))
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		if message, ok := strings.CutPrefix(output, toolErrorPrefix); ok {
			return mcpgo.NewToolResultError(message), nil
		}
		return mcpgo.NewToolResultText(output), nil
	}
}
