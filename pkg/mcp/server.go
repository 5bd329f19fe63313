// Package mcp exposes the engine over the Model Context Protocol so MCP
// hosts (editors, agent runtimes) can issue monitoring queries as tool
// calls.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vigil-ai/vigil/pkg/skill"
)

// Handler processes one natural-language request and returns the
// response text plus a run identifier.
type Handler interface {
	Handle(ctx context.Context, text string, images []string) (string, string)
}

// Server wraps an mcp-go stdio server around the engine.
type Server struct {
	mcpServer *server.MCPServer
	handler   Handler
	registry  *skill.Registry
}

// NewServer builds the MCP surface: a `query` tool running requests
// through the engine and a `list_skills` tool describing the registry.
func NewServer(name, version string, handler Handler, registry *skill.Registry) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version),
		handler:   handler,
		registry:  registry,
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin/stdout until the host disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	queryTool := mcp.NewTool("query",
		mcp.WithDescription("안전 모니터링 어시스턴트에게 자연어 요청을 전달합니다."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("자연어 요청 (한국어)"),
		),
		mcp.WithArray("images",
			mcp.Description("base64 인코딩 이미지 목록 (선택)"),
		),
	)
	s.mcpServer.AddTool(queryTool, s.handleQuery)

	listTool := mcp.NewTool("list_skills",
		mcp.WithDescription("등록된 스킬과 각 스킬의 작업 목록을 반환합니다."),
	)
	s.mcpServer.AddTool(listTool, s.handleListSkills)
}

func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	text, _ := args["text"].(string)
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("text argument is required"), nil
	}
	images := stringList(args["images"])

	response, runID := s.handler.Handle(ctx, text, images)
	return mcp.NewToolResultText(fmt.Sprintf("[run %s]\n%s", runID, response)), nil
}

func (s *Server) handleListSkills(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	for _, d := range s.registry.Descriptors() {
		tasks, err := s.registry.Capabilities(d.Name)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s (v%s): %s\n", d.Name, d.Version, d.Description)
		fmt.Fprintf(&b, "  tasks: %s (default %s)\n", strings.Join(tasks, ", "), d.DefaultTask)
	}
	if b.Len() == 0 {
		return mcp.NewToolResultText("no skills registered"), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
