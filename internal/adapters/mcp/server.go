package mcpadapter

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/kirillkom/podcast-qa/internal/core/ports"
)

const (
	Version = "0.1.0"

	askToolName = "ask_podcast"
)

// Server exposes the question answerer as MCP tools.
type Server struct {
	answers ports.QuestionAnswerer
	server  *server.MCPServer
}

func NewServer(answers ports.QuestionAnswerer) (*Server, error) {
	if answers == nil {
		return nil, errors.New("question answerer is required")
	}
	s := &Server{
		answers: answers,
		server:  server.NewMCPServer("podcast-qa", Version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

// Run serves MCP over the given streams until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	return server.NewStdioServer(s.server).Listen(ctx, stdin, stdout)
}

func (s *Server) registerTools() {
	tool := mcp.NewTool(askToolName,
		mcp.WithDescription("Answer a question using the indexed podcast transcripts and cite the episodes used."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("natural-language question about the podcast"),
		),
	)
	s.server.AddTool(tool, s.handleAsk)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}

	answer, err := s.answers.Answer(ctx, question)
	if err != nil {
		log.Warn().Err(err).Str("tool", askToolName).Msg("mcp_tool_failed")
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString(answer.Text)
	if citations := answer.Citations(); len(citations) > 0 {
		b.WriteString("\n\nSources:")
		for _, c := range citations {
			b.WriteString("\n- ")
			b.WriteString(c)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
